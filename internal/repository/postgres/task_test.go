package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/internal/repository"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
)

func strPtr(s string) *string { return &s }

func sampleTask() *domain.Task {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Task{
		ID:         "task-1",
		TeamID:     strPtr("team-1"),
		Title:      "Write docs",
		Status:     domain.StatusTodo,
		Priority:   domain.PriorityMedium,
		AssignedTo: strPtr("u-2"),
		CreatedBy:  "u-1",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

var detailColumns = []string{
	"id", "team_id", "title", "description", "status", "priority", "due_date",
	"assigned_to", "created_by", "created_at", "updated_at",
	"cu_email", "cu_first", "cu_last", "au_email", "au_first", "au_last", "team_name", "comment_count",
}

func detailRow(rows *pgxmock.Rows, t *domain.Task, assigned bool, comments int64) *pgxmock.Rows {
	var auEmail, auFirst, auLast *string
	if assigned {
		auEmail, auFirst, auLast = strPtr("bob@example.com"), strPtr("Bob"), strPtr("Jones")
	}
	return rows.AddRow(
		t.ID, t.TeamID, t.Title, t.Description, t.Status, t.Priority, t.DueDate,
		t.AssignedTo, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
		"alice@example.com", "Alice", "Smith",
		auEmail, auFirst, auLast, strPtr("Platform"), comments,
	)
}

func TestTaskRepository_Create(t *testing.T) {
	task := sampleTask()

	mock := newMockPool(t)
	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(task.ID, task.TeamID, task.Title, task.Description, task.Status, task.Priority, task.DueDate,
			task.AssignedTo, task.CreatedBy, task.CreatedAt, task.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(task.ID, task.TeamID, task.Title, task.Description, task.Status, task.Priority, task.DueDate,
			task.AssignedTo, task.CreatedBy, task.CreatedAt, task.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	repo := NewTaskRepository(mock)
	require.NoError(t, repo.Create(context.Background(), task))
	assert.ErrorIs(t, repo.Create(context.Background(), task), apperrors.ErrInvalidInput)
}

func TestTaskRepository_GetDetails(t *testing.T) {
	task := sampleTask()

	t.Run("with assignee", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).
			WithArgs(task.ID).
			WillReturnRows(detailRow(pgxmock.NewRows(detailColumns), task, true, 3))

		got, err := NewTaskRepository(mock).GetDetails(context.Background(), task.ID)
		require.NoError(t, err)
		assert.Equal(t, "u-1", got.Creator.ID)
		assert.Equal(t, "Alice", got.Creator.FirstName)
		require.NotNil(t, got.AssignedUser)
		assert.Equal(t, domain.UserSummary{ID: "u-2", Email: "bob@example.com", FirstName: "Bob", LastName: "Jones"}, *got.AssignedUser)
		assert.Equal(t, 3, got.CommentCount)
		assert.Equal(t, "Platform", *got.TeamName)
	})

	t.Run("unassigned", func(t *testing.T) {
		unassigned := sampleTask()
		unassigned.AssignedTo = nil

		mock := newMockPool(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).
			WithArgs(task.ID).
			WillReturnRows(detailRow(pgxmock.NewRows(detailColumns), unassigned, false, 0))

		got, err := NewTaskRepository(mock).GetDetails(context.Background(), task.ID)
		require.NoError(t, err)
		assert.Nil(t, got.AssignedUser)
	})

	t.Run("missing", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE t.id = $1")).
			WithArgs("nope").
			WillReturnError(pgx.ErrNoRows)

		_, err := NewTaskRepository(mock).GetDetails(context.Background(), "nope")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestTaskRepository_ListByTeam_Filters(t *testing.T) {
	task := sampleTask()
	status := domain.StatusTodo
	assignee := "u-2"

	mock := newMockPool(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.team_id = $1 AND t.status = $2 AND t.assigned_to = $3 ORDER BY t.created_at DESC")).
		WithArgs("team-1", status, assignee).
		WillReturnRows(detailRow(pgxmock.NewRows(detailColumns), task, true, 0))

	tasks, err := NewTaskRepository(mock).ListByTeam(context.Background(), "team-1",
		repository.TaskFilter{Status: &status, AssignedTo: &assignee})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestTaskRepository_ListAssignedTo_Ordering(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery(`(?s)WHERE t.assigned_to = \$1.*CASE t.status WHEN 'todo' THEN 0 WHEN 'in_progress' THEN 1 ELSE 2 END.*t.due_date ASC NULLS LAST.*t.created_at DESC`).
		WithArgs("u-2").
		WillReturnRows(pgxmock.NewRows(detailColumns))

	tasks, err := NewTaskRepository(mock).ListAssignedTo(context.Background(), "u-2")
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestTaskRepository_ListVisibleTo(t *testing.T) {
	personal := sampleTask()
	personal.TeamID = nil
	teamID := "team-7"

	mock := newMockPool(t)
	mock.ExpectQuery(`(?s)t.team_id IS NULL AND \(t.created_by = \$1 OR t.assigned_to = \$1\).*SELECT team_id FROM team_members WHERE user_id = \$1.*t.team_id = \$2`).
		WithArgs("u-1", teamID).
		WillReturnRows(detailRow(pgxmock.NewRows(detailColumns), personal, true, 1))

	tasks, err := NewTaskRepository(mock).ListVisibleTo(context.Background(), "u-1",
		repository.VisibleTaskFilter{TeamID: &teamID})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsPersonal())
}

func TestTaskRepository_UpdateAndDelete(t *testing.T) {
	task := sampleTask()

	mock := newMockPool(t)
	mock.ExpectExec("UPDATE tasks").
		WithArgs(task.Title, task.Description, task.Status, task.Priority, task.DueDate, task.AssignedTo, pgxmock.AnyArg(), task.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("DELETE FROM tasks").
		WithArgs(task.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := NewTaskRepository(mock)
	assert.ErrorIs(t, repo.Update(context.Background(), task), apperrors.ErrNotFound)
	require.NoError(t, repo.Delete(context.Background(), task.ID))
}

func TestCommentRepository(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	c := &domain.Comment{ID: "c-1", TaskID: "task-1", UserID: "u-1", Content: "LGTM", CreatedAt: now, UpdatedAt: now}

	mock := newMockPool(t)
	mock.ExpectExec("INSERT INTO task_comments").
		WithArgs(c.ID, c.TaskID, c.UserID, c.Content, c.CreatedAt, c.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("FROM task_comments").
		WithArgs(c.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "task_id", "user_id", "content", "created_at", "updated_at"}).
			AddRow(c.ID, c.TaskID, c.UserID, c.Content, c.CreatedAt, c.UpdatedAt))
	mock.ExpectQuery("ORDER BY c.created_at ASC").
		WithArgs(c.TaskID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "task_id", "user_id", "content", "created_at", "updated_at", "email", "first_name", "last_name",
		}).AddRow(c.ID, c.TaskID, c.UserID, c.Content, c.CreatedAt, c.UpdatedAt, "alice@example.com", "Alice", "Smith"))
	mock.ExpectExec("UPDATE task_comments").
		WithArgs("edited", pgxmock.AnyArg(), c.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM task_comments").
		WithArgs("c-404").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewCommentRepository(mock)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, c))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	list, err := repo.ListByTask(ctx, c.TaskID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u-1", list[0].User.ID)

	edited := *c
	edited.Content = "edited"
	require.NoError(t, repo.Update(ctx, &edited))
	assert.ErrorIs(t, repo.Delete(ctx, "c-404"), apperrors.ErrNotFound)
}
