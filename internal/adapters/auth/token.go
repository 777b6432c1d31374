package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/taskboard/internal/config"
	"github.com/vncsmyrnk/taskboard/internal/core/domain"
	"github.com/vncsmyrnk/taskboard/internal/core/ports"
)

var _ ports.TokenIssuer = (*TokenService)(nil)

// Claims are the JWT claims of both token kinds. Kind keeps an access token
// from being accepted where a refresh token is expected and the other way round.
type Claims struct {
	jwt.RegisteredClaims
	Kind domain.TokenKind `json:"kind"`
}

// TokenService signs and verifies access and refresh tokens with the
// configured HMAC secret.
type TokenService struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

type Option func(*TokenService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) {
		s.now = now
	}
}

func NewTokenService(settings *config.Settings, opts ...Option) (*TokenService, error) {
	method := jwt.GetSigningMethod(strings.ToUpper(settings.JWTAlgorithm))
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", settings.JWTAlgorithm)
	}
	if settings.JWTSecret == "" {
		return nil, errors.New("jwt secret is empty")
	}

	s := &TokenService{
		secret:     []byte(settings.JWTSecret),
		method:     method,
		accessTTL:  settings.AccessTokenTTL(),
		refreshTTL: settings.RefreshTokenTTL(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return s, nil
}

func (s *TokenService) IssueAccessToken(id domain.Identity) (domain.Token, error) {
	return s.issue(id, domain.AccessToken, s.accessTTL)
}

func (s *TokenService) IssueRefreshToken(id domain.Identity) (domain.Token, error) {
	return s.issue(id, domain.RefreshToken, s.refreshTTL)
}

// Verify checks signature, expiry and kind and returns the embedded identity.
func (s *TokenService) Verify(raw string, kind domain.TokenKind) (domain.Identity, error) {
	var claims Claims
	_, err := s.parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, domain.ErrExpiredToken
		}
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	if claims.Kind != kind {
		return domain.Identity{}, domain.ErrWrongTokenKind
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: bad subject", domain.ErrInvalidToken)
	}
	return domain.Identity{UserID: userID}, nil
}

// Refresh verifies a refresh token and issues a new access token together
// with a rotated refresh token.
func (s *TokenService) Refresh(raw string) (domain.Token, domain.Token, error) {
	id, err := s.Verify(raw, domain.RefreshToken)
	if err != nil {
		return domain.Token{}, domain.Token{}, err
	}

	access, err := s.IssueAccessToken(id)
	if err != nil {
		return domain.Token{}, domain.Token{}, err
	}
	refresh, err := s.IssueRefreshToken(id)
	if err != nil {
		return domain.Token{}, domain.Token{}, err
	}
	return access, refresh, nil
}

func (s *TokenService) issue(id domain.Identity, kind domain.TokenKind, ttl time.Duration) (domain.Token, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return domain.Token{}, fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	return domain.Token{
		Value:     signed,
		Kind:      kind,
		ID:        claims.ID,
		Subject:   id.UserID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
