package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/giecabral/team-flow-management/internal/auth"
	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/internal/event"
	"github.com/giecabral/team-flow-management/internal/repository"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
)

const (
	// minRegisterPasswordLength is the password floor at self-registration.
	minRegisterPasswordLength = 6
	// maxPasswordBytes is the longest input bcrypt accepts.
	maxPasswordBytes = 72
)

// AuthService drives the register, login, refresh and logout flows.
type AuthService struct {
	users    repository.UserRepository
	ledger   repository.RefreshTokenLedger
	hasher   *auth.PasswordHasher
	codec    *auth.TokenCodec
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	ledger repository.RefreshTokenLedger,
	hasher *auth.PasswordHasher,
	codec *auth.TokenCodec,
	producer *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		ledger:   ledger,
		hasher:   hasher,
		codec:    codec,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult is the user plus a freshly issued token pair.
type AuthResult struct {
	User *domain.User `json:"user"`
	domain.TokenPair
}

// Register creates a user account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (result *AuthResult, err error) {
	defer func() { recordAuthEvent(authEventRegister, err) }()

	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return nil, apperrors.InvalidInput("first and last name are required")
	}
	if len(input.Password) < minRegisterPasswordLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minRegisterPasswordLength))
	}
	if len(input.Password) > maxPasswordBytes {
		return nil, apperrors.InvalidInput(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrEmailExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return &AuthResult{User: user, TokenPair: *tokens}, nil
}

// Login verifies credentials and issues a token pair. Unknown emails and
// wrong passwords fail identically and cost the same bcrypt work.
func (s *AuthService) Login(ctx context.Context, email, password string) (result *AuthResult, err error) {
	defer func() { recordAuthEvent(authEventLogin, err) }()

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("get user by email: %w", err)
		}
		s.hasher.VerifyDummy(password)
		return nil, apperrors.InvalidCredentials()
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, apperrors.InvalidCredentials()
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return &AuthResult{User: user, TokenPair: *tokens}, nil
}

// Logout revokes one refresh token of userID, or all of them when
// refreshToken is empty. Revoking nothing is not an error.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) (err error) {
	defer func() { recordAuthEvent(authEventLogout, err) }()

	if refreshToken == "" {
		if err := s.RevokeAll(ctx, userID); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "user logged out everywhere", slog.String("user_id", userID))
		return nil
	}

	if err := s.ledger.DeleteForUser(ctx, userID, auth.HashRefreshToken(refreshToken)); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	s.logger.InfoContext(ctx, "user logged out", slog.String("user_id", userID))
	return nil
}

// RevokeAll deletes every refresh token of userID.
func (s *AuthService) RevokeAll(ctx context.Context, userID string) error {
	if err := s.ledger.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return nil
}

// Refresh rotates a refresh token. The presented token is consumed whether
// or not it is still valid, so any replay fails with InvalidToken.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (tokens *domain.TokenPair, err error) {
	defer func() { recordAuthEvent(authEventRefresh, err) }()

	if refreshToken == "" {
		return nil, apperrors.InvalidToken()
	}

	record, err := s.ledger.Consume(ctx, auth.HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidToken()
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	if record.Expired(s.now()) {
		return nil, apperrors.TokenExpired()
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidToken()
		}
		return nil, fmt.Errorf("get user for token refresh: %w", err)
	}

	tokens, err = s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "refresh token rotated", slog.String("user_id", user.ID))
	return tokens, nil
}

// GetCurrentUser returns the user or nil when the row no longer exists.
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return user, nil
}

// VerifyAccessToken checks an access token and returns its claims.
func (s *AuthService) VerifyAccessToken(token string) (*auth.Claims, error) {
	return s.codec.VerifyAccessToken(token)
}

func (s *AuthService) issueTokens(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	access, err := s.codec.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.codec.IssueRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := s.ledger.Store(ctx, user.ID, auth.HashRefreshToken(refresh), s.codec.RefreshTokenExpiry()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
