package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/internal/repository"
	"github.com/giecabral/team-flow-management/pkg/database"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
)

const taskColumns = `id, team_id, title, description, status, priority, due_date, assigned_to, created_by, created_at, updated_at`

// taskDetailsSelect joins creator, assignee, team name and comment count.
const taskDetailsSelect = `
	SELECT t.id, t.team_id, t.title, t.description, t.status, t.priority, t.due_date,
	       t.assigned_to, t.created_by, t.created_at, t.updated_at,
	       cu.email, cu.first_name, cu.last_name,
	       au.email, au.first_name, au.last_name,
	       tm.name,
	       (SELECT COUNT(*) FROM task_comments tc WHERE tc.task_id = t.id) AS comment_count
	FROM tasks t
	JOIN users cu ON cu.id = t.created_by
	LEFT JOIN users au ON au.id = t.assigned_to
	LEFT JOIN teams tm ON tm.id = t.team_id`

// TaskRepository implements repository.TaskRepository using PostgreSQL.
type TaskRepository struct {
	db database.DBTX
}

// NewTaskRepository creates a new PostgreSQL-backed task repository.
func NewTaskRepository(db database.DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a task.
func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.TeamID, t.Title, t.Description, t.Status, t.Priority, t.DueDate,
		t.AssignedTo, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.InvalidInput("referenced team or user does not exist")
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID retrieves the bare task row.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var t domain.Task
	err := r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id).Scan(
		&t.ID, &t.TeamID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate,
		&t.AssignedTo, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}

// GetDetails retrieves the task with its related users.
func (r *TaskRepository) GetDetails(ctx context.Context, id string) (*domain.TaskWithDetails, error) {
	t, err := scanTaskDetails(r.db.QueryRow(ctx, taskDetailsSelect+` WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListByTeam lists team tasks, newest first.
func (r *TaskRepository) ListByTeam(ctx context.Context, teamID string, f repository.TaskFilter) ([]domain.TaskWithDetails, error) {
	conds := []string{"t.team_id = $1"}
	args := []any{teamID}
	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if f.AssignedTo != nil {
		args = append(args, *f.AssignedTo)
		conds = append(conds, fmt.Sprintf("t.assigned_to = $%d", len(args)))
	}

	query := taskDetailsSelect + ` WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY t.created_at DESC`
	return r.list(ctx, query, args...)
}

// ListAssignedTo lists the user's assigned tasks by status, due date and age.
func (r *TaskRepository) ListAssignedTo(ctx context.Context, userID string) ([]domain.TaskWithDetails, error) {
	query := taskDetailsSelect + `
	WHERE t.assigned_to = $1
	ORDER BY CASE t.status WHEN 'todo' THEN 0 WHEN 'in_progress' THEN 1 ELSE 2 END,
	         t.due_date ASC NULLS LAST,
	         t.created_at DESC`
	return r.list(ctx, query, userID)
}

// ListVisibleTo lists personal tasks of the user and tasks of the user's teams.
func (r *TaskRepository) ListVisibleTo(ctx context.Context, userID string, f repository.VisibleTaskFilter) ([]domain.TaskWithDetails, error) {
	conds := []string{`((t.team_id IS NULL AND (t.created_by = $1 OR t.assigned_to = $1))
	   OR t.team_id IN (SELECT team_id FROM team_members WHERE user_id = $1))`}
	args := []any{userID}
	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if f.TeamID != nil {
		args = append(args, *f.TeamID)
		conds = append(conds, fmt.Sprintf("t.team_id = $%d", len(args)))
	}

	query := taskDetailsSelect + ` WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY t.created_at DESC`
	return r.list(ctx, query, args...)
}

// Update saves every mutable field.
func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	t.UpdatedAt = time.Now().UTC()

	ct, err := r.db.Exec(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4, due_date = $5,
		    assigned_to = $6, updated_at = $7
		WHERE id = $8`,
		t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.AssignedTo, t.UpdatedAt, t.ID,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.InvalidInput("assignee does not exist")
		}
		return fmt.Errorf("update task: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("task", t.ID)
	}
	return nil
}

// Delete removes a task and, by cascade, its comments.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("task", id)
	}
	return nil
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...any) ([]domain.TaskWithDetails, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.TaskWithDetails{}
	for rows.Next() {
		t, err := scanTaskDetails(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return tasks, nil
}

func scanTaskDetails(row rowScanner) (*domain.TaskWithDetails, error) {
	var (
		t                        domain.TaskWithDetails
		auEmail, auFirst, auLast *string
		comments                 int64
	)
	err := row.Scan(
		&t.ID, &t.TeamID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate,
		&t.AssignedTo, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
		&t.Creator.Email, &t.Creator.FirstName, &t.Creator.LastName,
		&auEmail, &auFirst, &auLast,
		&t.TeamName,
		&comments,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task details: %w", err)
	}

	t.Creator.ID = t.CreatedBy
	if t.AssignedTo != nil && auEmail != nil {
		t.AssignedUser = &domain.UserSummary{
			ID:        *t.AssignedTo,
			Email:     *auEmail,
			FirstName: deref(auFirst),
			LastName:  deref(auLast),
		}
	}
	t.CommentCount = int(comments)
	return &t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
