package repository

import (
	"context"
	"time"

	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/pkg/pagination"
)

// UserRepository defines persistence for users. Emails are stored in
// canonical form; callers normalise before calling.
type UserRepository interface {
	// Create inserts a user. Fails with apperrors.ErrEmailExists on collision.
	Create(ctx context.Context, user *domain.User) error

	// GetByID returns apperrors.ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail returns apperrors.ErrNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update saves profile fields. Fails with apperrors.ErrEmailExists when
	// the new email belongs to another user.
	Update(ctx context.Context, user *domain.User) error

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// List returns a page of users ordered by first and last name, optionally
	// filtered by a case-insensitive match on email or name, plus the total count.
	List(ctx context.Context, search string, page pagination.Params) ([]domain.User, int, error)

	// SearchNotInTeam returns up to limit users matching query who are not
	// members of teamID.
	SearchNotInTeam(ctx context.Context, teamID, query string, limit int) ([]domain.UserSummary, error)
}

// RefreshTokenLedger persists refresh token records keyed by token hash.
type RefreshTokenLedger interface {
	// Store inserts one record.
	Store(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// FindByHash returns apperrors.ErrNotFound when absent.
	FindByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// Consume atomically removes the record and returns it. Of any number of
	// concurrent callers presenting the same hash at most one succeeds; the
	// rest get apperrors.ErrNotFound. Expired records are removed too and
	// returned so the caller can tell expiry from absence.
	Consume(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)

	// DeleteByHash removes a record if present.
	DeleteByHash(ctx context.Context, tokenHash string) error

	// DeleteForUser removes the record only when it belongs to userID.
	DeleteForUser(ctx context.Context, userID, tokenHash string) error

	// DeleteAllForUser removes every record of userID.
	DeleteAllForUser(ctx context.Context, userID string) error

	// DeleteExpired removes records that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TeamRepository defines persistence for teams.
type TeamRepository interface {
	// CreateWithAdmin inserts the team and makes team.CreatedBy its admin in
	// one transaction.
	CreateWithAdmin(ctx context.Context, team *domain.Team) error

	// GetByID returns apperrors.ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*domain.Team, error)

	// ListForUser returns the teams userID belongs to with the user's role.
	ListForUser(ctx context.Context, userID string) ([]domain.TeamWithRole, error)

	Update(ctx context.Context, team *domain.Team) error

	// Delete removes the team; memberships, tasks and comments cascade.
	Delete(ctx context.Context, id string) error
}

// MemberRepository defines persistence for team memberships.
type MemberRepository interface {
	// Get returns apperrors.ErrNotFound when userID is not in teamID.
	Get(ctx context.Context, teamID, userID string) (*domain.TeamMember, error)

	List(ctx context.Context, teamID string) ([]domain.MemberWithUser, error)

	// Add fails with apperrors.ErrAlreadyMember when the pair exists.
	Add(ctx context.Context, member *domain.TeamMember) error

	UpdateRole(ctx context.Context, teamID, userID string, role domain.Role) error

	Remove(ctx context.Context, teamID, userID string) error

	// CountAdmins returns the number of admin members of teamID.
	CountAdmins(ctx context.Context, teamID string) (int, error)
}

// TaskFilter narrows team task listings.
type TaskFilter struct {
	Status     *domain.TaskStatus
	AssignedTo *string
}

// VisibleTaskFilter narrows the tasks visible to a user across teams.
type VisibleTaskFilter struct {
	Status *domain.TaskStatus
	TeamID *string
}

// TaskRepository defines persistence for tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error

	// GetByID returns apperrors.ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*domain.Task, error)

	// GetDetails returns the task with creator, assignee and comment count.
	GetDetails(ctx context.Context, id string) (*domain.TaskWithDetails, error)

	// ListByTeam returns team tasks, newest first.
	ListByTeam(ctx context.Context, teamID string, filter TaskFilter) ([]domain.TaskWithDetails, error)

	// ListAssignedTo returns tasks assigned to userID ordered by status
	// (todo, in_progress, rest), due date with nulls last, then newest first.
	ListAssignedTo(ctx context.Context, userID string) ([]domain.TaskWithDetails, error)

	// ListVisibleTo returns personal tasks userID created or is assigned to
	// plus tasks of every team userID belongs to, newest first.
	ListVisibleTo(ctx context.Context, userID string, filter VisibleTaskFilter) ([]domain.TaskWithDetails, error)

	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) error
}

// CommentRepository defines persistence for task comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error

	// GetByID returns apperrors.ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*domain.Comment, error)

	// ListByTask returns comments oldest first with their authors.
	ListByTask(ctx context.Context, taskID string) ([]domain.CommentWithAuthor, error)

	Update(ctx context.Context, comment *domain.Comment) error
	Delete(ctx context.Context, id string) error
}
