package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vncsmyrnk/taskboard/internal/core/domain"
	"github.com/vncsmyrnk/taskboard/internal/core/ports"
)

var _ ports.AuthService = (*AuthService)(nil)

type signUpInput struct {
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required,min=8,max=72,password"`
}

type AuthService struct {
	userRepo ports.UserRepository
	authRepo ports.AuthRepository
	tokens   ports.TokenIssuer
	csrf     ports.CSRFSigner
	hasher   ports.PasswordHasher
	logger   *zap.Logger
}

func NewAuthService(
	userRepo ports.UserRepository,
	authRepo ports.AuthRepository,
	tokens ports.TokenIssuer,
	csrf ports.CSRFSigner,
	hasher ports.PasswordHasher,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		authRepo: authRepo,
		tokens:   tokens,
		csrf:     csrf,
		hasher:   hasher,
		logger:   logger.Named("auth_service"),
	}
}

func (s *AuthService) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	input := signUpInput{Email: strings.TrimSpace(email), Password: password}
	if err := validate.Struct(input); err != nil {
		return nil, invalid(domain.ErrInvalidSignUp, err)
	}

	existing, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        input.Email,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID.String()))
	return s.newSession(ctx, user)
}

// SignIn does not reveal whether the email exists: both an unknown email and
// a wrong password return ErrInvalidCredentials.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.newSession(ctx, user)
}

// Refresh exchanges a refresh token for a new pair. Each refresh token works
// once; presenting a consumed one revokes every refresh token of its owner.
// Nothing is spent until the new pair is stored, so a failed refresh can be
// retried with the same token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	access, refresh, err := s.tokens.Refresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, access.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrInvalidToken
	}

	csrfToken, err := s.csrf.Issue(domain.Identity{UserID: user.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to issue csrf token: %w", err)
	}

	next := newRefreshRecord(refresh)
	stored, err := s.authRepo.RotateRefreshToken(ctx, hashToken(refreshToken), next)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if stored == nil || stored.UserID != user.ID {
		return nil, domain.ErrInvalidToken
	}
	if stored.Revoked {
		s.logger.Warn("refresh token reuse detected, revoking all sessions",
			zap.String("user_id", stored.UserID.String()),
		)
		if err := s.authRepo.RevokeAllForUser(ctx, stored.UserID); err != nil {
			return nil, fmt.Errorf("failed to revoke refresh tokens: %w", err)
		}
		return nil, domain.ErrRefreshTokenReused
	}

	return &domain.Session{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		CSRFToken:    csrfToken,
	}, nil
}

// SignOut revokes the presented refresh token. Unknown or malformed tokens
// are ignored so sign out always succeeds for the client.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.authRepo.RevokeRefreshToken(ctx, hashToken(refreshToken)); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// PurgeExpiredTokens drops refresh token records that can no longer be used.
func (s *AuthService) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	removed, err := s.authRepo.PurgeExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	s.logger.Info("purged expired refresh tokens", zap.Int64("removed", removed))
	return removed, nil
}

func (s *AuthService) IssueCSRF(id domain.Identity) (string, error) {
	return s.csrf.Issue(id)
}

func (s *AuthService) newSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	id := domain.Identity{UserID: user.ID}

	access, err := s.tokens.IssueAccessToken(id)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(id)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	if err := s.storeRefreshToken(ctx, refresh); err != nil {
		return nil, err
	}
	csrfToken, err := s.csrf.Issue(id)
	if err != nil {
		return nil, fmt.Errorf("failed to issue csrf token: %w", err)
	}

	return &domain.Session{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		CSRFToken:    csrfToken,
	}, nil
}

func (s *AuthService) storeRefreshToken(ctx context.Context, token domain.Token) error {
	if err := s.authRepo.StoreRefreshToken(ctx, newRefreshRecord(token)); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func newRefreshRecord(token domain.Token) *domain.RefreshRecord {
	return &domain.RefreshRecord{
		UserID:    token.Subject,
		TokenHash: hashToken(token.Value),
		ExpiresAt: token.ExpiresAt,
	}
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
