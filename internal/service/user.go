package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/giecabral/team-flow-management/internal/auth"
	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/internal/event"
	"github.com/giecabral/team-flow-management/internal/repository"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
	"github.com/giecabral/team-flow-management/pkg/pagination"
)

const (
	// minPasswordLength applies to changed passwords.
	minPasswordLength = 8

	// generatedPasswordAlphabet leaves out characters that are easy to misread.
	generatedPasswordAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"
	generatedPasswordGroups   = 3
	generatedPasswordGroupLen = 4
)

// SessionRevoker ends every session of a user. AuthService implements it.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID string) error
}

// UserService manages user accounts on behalf of signed-in users.
type UserService struct {
	users    repository.UserRepository
	sessions SessionRevoker
	hasher   *auth.PasswordHasher
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewUserService creates a new user service.
func NewUserService(
	users repository.UserRepository,
	sessions SessionRevoker,
	hasher *auth.PasswordHasher,
	producer *event.Producer,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateUserInput holds the parameters for creating a user for someone else.
type CreateUserInput struct {
	Email     string
	FirstName string
	LastName  string
}

// CreatedUser is a new user and its generated password. The password is
// only ever returned here.
type CreatedUser struct {
	User     *domain.User `json:"user"`
	Password string       `json:"password"`
}

// UpdateProfileInput holds the profile fields to change. Nil means unchanged.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// List returns a page of users matching search.
func (s *UserService) List(ctx context.Context, search string, page pagination.Params) (pagination.Result[domain.User], error) {
	users, total, err := s.users.List(ctx, strings.TrimSpace(search), page)
	if err != nil {
		return pagination.Result[domain.User]{}, fmt.Errorf("list users: %w", err)
	}
	return pagination.NewResult(users, total, page), nil
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Create adds a user with a generated password.
func (s *UserService) Create(ctx context.Context, actorID string, input CreateUserInput) (*CreatedUser, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return nil, apperrors.InvalidInput("first and last name are required")
	}

	password, err := GeneratePassword()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
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

	if err := s.producer.PublishUserCreated(ctx, user, actorID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.created event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user created",
		slog.String("user_id", user.ID),
		slog.String("created_by", actorID),
	)
	return &CreatedUser{User: user, Password: password}, nil
}

// UpdateProfile changes the caller's names and email.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.FirstName != nil {
		name := strings.TrimSpace(*input.FirstName)
		if name == "" {
			return nil, apperrors.InvalidInput("first name must not be empty")
		}
		user.FirstName = name
	}
	if input.LastName != nil {
		name := strings.TrimSpace(*input.LastName)
		if name == "" {
			return nil, apperrors.InvalidInput("last name must not be empty")
		}
		user.LastName = name
	}
	if input.Email != nil {
		email := domain.NormalizeEmail(*input.Email)
		if email == "" {
			return nil, apperrors.InvalidInput("email must not be empty")
		}
		user.Email = email
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrEmailExists) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "profile updated", slog.String("user_id", user.ID))
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current
// one and signs the user out of every session.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (err error) {
	defer func() { recordAuthEvent(authEventChangePassword, err) }()

	if len(newPassword) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(newPassword) > maxPasswordBytes {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return apperrors.InvalidCredentials()
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
		return fmt.Errorf("revoke sessions after password change: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", user.ID))
	return nil
}

// GeneratePassword returns a random password such as "aB3d-Ef4g-Hj5k".
func GeneratePassword() (string, error) {
	n := big.NewInt(int64(len(generatedPasswordAlphabet)))

	var b strings.Builder
	for g := range generatedPasswordGroups {
		if g > 0 {
			b.WriteByte('-')
		}
		for range generatedPasswordGroupLen {
			i, err := rand.Int(rand.Reader, n)
			if err != nil {
				return "", fmt.Errorf("generate password: %w", err)
			}
			b.WriteByte(generatedPasswordAlphabet[i.Int64()])
		}
	}
	return b.String(), nil
}
