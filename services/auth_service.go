package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/repositories"
)

// TokenRevoker tracks tokens invalidated by logout.
type TokenRevoker interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) bool
}

// AuthService handles registration, login and caller resolution.
type AuthService struct {
	users       repositories.UserRepository
	credentials *CredentialService
	revoker     TokenRevoker
	logger      *zap.Logger
}

// NewAuthService creates an AuthService. revoker and logger may be nil.
func NewAuthService(users repositories.UserRepository, credentials *CredentialService, revoker TokenRevoker, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:       users,
		credentials: credentials,
		revoker:     revoker,
		logger:      logger,
	}
}

// Register creates a new account. It does not log the user in.
func (s *AuthService) Register(ctx context.Context, username, password string) (models.UserView, error) {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return models.UserView{}, fmt.Errorf("username already exists: %w", models.ErrConflict)
	} else if !errors.Is(err, models.ErrNotFound) {
		return models.UserView{}, err
	}

	hash, err := s.credentials.Hash(password)
	if err != nil {
		return models.UserView{}, err
	}

	// the store re-checks uniqueness atomically, so a concurrent registration still conflicts here
	u, err := s.users.Create(ctx, username, hash)
	if err != nil {
		return models.UserView{}, err
	}
	s.logger.Info("user registered", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	return u.View(), nil
}

// Authenticate verifies credentials and issues a token bound to the user id.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if !s.credentials.Verify(password, u.PasswordHash) {
		s.logger.Info("login rejected", zap.String("username", username))
		return "", fmt.Errorf("user %q: %w", username, models.ErrCredential)
	}
	return s.credentials.IssueToken(u.ID)
}

// ResolveCaller maps a token back to the user it was issued for. Bad, revoked or
// orphaned tokens all yield models.ErrUnauthenticated.
func (s *AuthService) ResolveCaller(ctx context.Context, token string) (models.User, error) {
	if s.revoker != nil && s.revoker.IsRevoked(ctx, token) {
		return models.User{}, fmt.Errorf("%w: token revoked", models.ErrUnauthenticated)
	}
	id, err := s.credentials.ResolveToken(token)
	if err != nil {
		return models.User{}, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}
	return u, nil
}

// Logout revokes token until its expiry.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.credentials.ParseToken(token)
	if err != nil {
		return err
	}
	if s.revoker == nil {
		return nil
	}
	// tokens without expiry stay revoked for a year
	expiresAt := time.Now().AddDate(1, 0, 0)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.revoker.Revoke(ctx, token, expiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.logger.Info("user logged out", zap.Int64("user_id", claims.UserID))
	return nil
}

// ChangePassword replaces the password after verifying the current one. The store only
// accepts the write if the hash that was verified is still current.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.credentials.Verify(oldPassword, u.PasswordHash) {
		return fmt.Errorf("user %d: %w", userID, models.ErrCredential)
	}
	hash, err := s.credentials.Hash(newPassword)
	if err != nil {
		return err
	}
	if _, err := s.users.UpdatePassword(ctx, userID, u.PasswordHash, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.Int64("user_id", userID))
	return nil
}

func (s *AuthService) GetUser(ctx context.Context, id int64) (models.UserView, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.UserView{}, err
	}
	return u.View(), nil
}

func (s *AuthService) GetUserByUsername(ctx context.Context, username string) (models.UserView, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return models.UserView{}, err
	}
	return u.View(), nil
}
