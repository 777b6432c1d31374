package domain

import (
	"time"

	"github.com/google/uuid"
)

type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Identity is the authenticated subject of a request. It is rebuilt from the
// access token on every request and never stored.
type Identity struct {
	UserID uuid.UUID
}

// Token is a signed credential together with the claims it carries.
type Token struct {
	Value     string
	Kind      TokenKind
	ID        string
	Subject   uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is what a successful sign in, sign up or refresh hands back to the
// transport layer.
type Session struct {
	User         *User
	AccessToken  Token
	RefreshToken Token
	CSRFToken    string
}
