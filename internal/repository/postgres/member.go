package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/pkg/database"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
)

// MemberRepository implements repository.MemberRepository using PostgreSQL.
type MemberRepository struct {
	db database.DBTX
}

// NewMemberRepository creates a new PostgreSQL-backed membership repository.
func NewMemberRepository(db database.DBTX) *MemberRepository {
	return &MemberRepository{db: db}
}

// Get returns one membership.
func (r *MemberRepository) Get(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	var m domain.TeamMember
	err := r.db.QueryRow(ctx, `
		SELECT team_id, user_id, role, joined_at
		FROM team_members
		WHERE team_id = $1 AND user_id = $2`, teamID, userID,
	).Scan(&m.TeamID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan team member: %w", err)
	}
	return &m, nil
}

// List returns the team's members with their profiles, earliest joiner first.
func (r *MemberRepository) List(ctx context.Context, teamID string) ([]domain.MemberWithUser, error) {
	rows, err := r.db.Query(ctx, `
		SELECT tm.team_id, tm.user_id, tm.role, tm.joined_at, u.email, u.first_name, u.last_name
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY tm.joined_at`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	members := []domain.MemberWithUser{}
	for rows.Next() {
		var m domain.MemberWithUser
		if err := rows.Scan(
			&m.TeamID, &m.UserID, &m.Role, &m.JoinedAt, &m.User.Email, &m.User.FirstName, &m.User.LastName,
		); err != nil {
			return nil, fmt.Errorf("scan team member row: %w", err)
		}
		m.User.ID = m.UserID
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team member rows: %w", err)
	}
	return members, nil
}

// Add inserts a membership.
func (r *MemberRepository) Add(ctx context.Context, m *domain.TeamMember) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO team_members (team_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)`,
		m.TeamID, m.UserID, m.Role, m.JoinedAt,
	)
	if err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return apperrors.AlreadyMember(m.UserID)
		case database.IsForeignKeyViolation(err):
			return apperrors.UserNotFound(m.UserID)
		}
		return fmt.Errorf("insert team member: %w", err)
	}
	return nil
}

// UpdateRole changes a member's role.
func (r *MemberRepository) UpdateRole(ctx context.Context, teamID, userID string, role domain.Role) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE team_members SET role = $1 WHERE team_id = $2 AND user_id = $3`,
		role, teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("team member", userID)
	}
	return nil
}

// Remove deletes a membership.
func (r *MemberRepository) Remove(ctx context.Context, teamID, userID string) error {
	ct, err := r.db.Exec(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete team member: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("team member", userID)
	}
	return nil
}

// CountAdmins counts admin members of the team.
func (r *MemberRepository) CountAdmins(ctx context.Context, teamID string) (int, error) {
	var n int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM team_members WHERE team_id = $1 AND role = $2`, teamID, domain.RoleAdmin,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count team admins: %w", err)
	}
	return int(n), nil
}
