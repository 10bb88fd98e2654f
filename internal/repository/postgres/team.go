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

// TeamRepository implements repository.TeamRepository using PostgreSQL.
type TeamRepository struct {
	db database.DBTX
}

// NewTeamRepository creates a new PostgreSQL-backed team repository.
func NewTeamRepository(db database.DBTX) *TeamRepository {
	return &TeamRepository{db: db}
}

// CreateWithAdmin inserts the team and its creator's admin membership.
func (r *TeamRepository) CreateWithAdmin(ctx context.Context, t *domain.Team) error {
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO teams (id, name, description, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			t.ID, t.Name, t.Description, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert team: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO team_members (team_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)`,
			t.ID, t.CreatedBy, domain.RoleAdmin, t.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert team admin: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a team by ID.
func (r *TeamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	var t domain.Team
	err := r.db.QueryRow(ctx, `
		SELECT id, name, description, created_by, created_at, updated_at
		FROM teams
		WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan team: %w", err)
	}
	return &t, nil
}

// ListForUser returns the user's teams, newest first.
func (r *TeamRepository) ListForUser(ctx context.Context, userID string) ([]domain.TeamWithRole, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.name, t.description, t.created_by, t.created_at, t.updated_at, tm.role,
		       (SELECT COUNT(*) FROM team_members m WHERE m.team_id = t.id) AS member_count
		FROM teams t
		JOIN team_members tm ON tm.team_id = t.id AND tm.user_id = $1
		ORDER BY t.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	teams := []domain.TeamWithRole{}
	for rows.Next() {
		var (
			t     domain.TeamWithRole
			count int64
		)
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt, &t.Role, &count,
		); err != nil {
			return nil, fmt.Errorf("scan team row: %w", err)
		}
		t.MemberCount = int(count)
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team rows: %w", err)
	}
	return teams, nil
}

// Update saves name and description.
func (r *TeamRepository) Update(ctx context.Context, t *domain.Team) error {
	t.UpdatedAt = time.Now().UTC()

	ct, err := r.db.Exec(ctx,
		`UPDATE teams SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		t.Name, t.Description, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("team", t.ID)
	}
	return nil
}

// Delete removes a team. Foreign keys cascade to members, tasks and comments.
func (r *TeamRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("team", id)
	}
	return nil
}
