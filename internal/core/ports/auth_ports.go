package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/taskboard/internal/core/domain"
)

type AuthRepository interface {
	StoreRefreshToken(ctx context.Context, token *domain.RefreshRecord) error
	// RotateRefreshToken revokes the token with oldHash and stores next in one
	// transaction, returning the old record as it was before the call. It
	// returns (nil, nil) if no token has that hash. next is not stored when
	// the old record was already revoked or belongs to another user.
	RotateRefreshToken(ctx context.Context, oldHash string, next *domain.RefreshRecord) (*domain.RefreshRecord, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	// PurgeExpired deletes tokens that expired before the given time and
	// returns how many were removed.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// TokenIssuer signs and verifies access and refresh tokens. Implementations
// do no I/O.
type TokenIssuer interface {
	IssueAccessToken(id domain.Identity) (domain.Token, error)
	IssueRefreshToken(id domain.Identity) (domain.Token, error)
	Verify(raw string, kind domain.TokenKind) (domain.Identity, error)
	Refresh(raw string) (access domain.Token, refresh domain.Token, err error)
}

// CSRFSigner issues and checks CSRF tokens bound to an identity.
type CSRFSigner interface {
	Issue(id domain.Identity) (string, error)
	Verify(id domain.Identity, token string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type AuthService interface {
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	SignOut(ctx context.Context, refreshToken string) error
	IssueCSRF(id domain.Identity) (string, error)
}
