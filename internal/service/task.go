package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/internal/event"
	"github.com/giecabral/team-flow-management/internal/repository"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
)

// Actor is the caller of a task operation. TeamRole is the role resolved by
// the team-membership gate on team-scoped routes and is empty elsewhere.
type Actor struct {
	UserID   string
	TeamRole domain.Role
}

// TaskService manages tasks and their comments. Every task operation takes
// a teamID: a non-empty teamID scopes the call to that team and trusts
// Actor.TeamRole, an empty one resolves access from the task itself.
type TaskService struct {
	tasks    repository.TaskRepository
	comments repository.CommentRepository
	members  repository.MemberRepository
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewTaskService creates a new task service.
func NewTaskService(
	tasks repository.TaskRepository,
	comments repository.CommentRepository,
	members repository.MemberRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *TaskService {
	return &TaskService{
		tasks:    tasks,
		comments: comments,
		members:  members,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateTaskInput holds the parameters for creating a task. Zero status and
// priority take the defaults.
type CreateTaskInput struct {
	Title       string
	Description *string
	Status      domain.TaskStatus
	Priority    domain.TaskPriority
	DueDate     *time.Time
	AssignedTo  *string
}

// UpdateTaskInput holds the task fields to change. Nil means unchanged; an
// empty AssignedTo unassigns and the Clear flags remove optional fields.
type UpdateTaskInput struct {
	Title            *string
	Description      *string
	ClearDescription bool
	Status           *domain.TaskStatus
	Priority         *domain.TaskPriority
	DueDate          *time.Time
	ClearDueDate     bool
	AssignedTo       *string
}

// ListTeam returns the team's tasks.
func (s *TaskService) ListTeam(ctx context.Context, teamID string, filter repository.TaskFilter) ([]domain.TaskWithDetails, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", *filter.Status))
	}
	tasks, err := s.tasks.ListByTeam(ctx, teamID, filter)
	if err != nil {
		return nil, fmt.Errorf("list team tasks: %w", err)
	}
	return nonNil(tasks), nil
}

// ListAssigned returns the tasks assigned to userID across all teams.
func (s *TaskService) ListAssigned(ctx context.Context, userID string) ([]domain.TaskWithDetails, error) {
	tasks, err := s.tasks.ListAssignedTo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list assigned tasks: %w", err)
	}
	return nonNil(tasks), nil
}

// ListVisible returns the personal tasks of userID and the tasks of every
// team userID belongs to.
func (s *TaskService) ListVisible(ctx context.Context, userID string, filter repository.VisibleTaskFilter) ([]domain.TaskWithDetails, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", *filter.Status))
	}
	tasks, err := s.tasks.ListVisibleTo(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list visible tasks: %w", err)
	}
	return nonNil(tasks), nil
}

// Create adds a task to teamID, or a personal task when teamID is empty.
// Team tasks need at least the dev role and a team member as assignee.
func (s *TaskService) Create(ctx context.Context, actor Actor, teamID string, input CreateTaskInput) (*domain.TaskWithDetails, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.InvalidInput("title is required")
	}
	if input.Status == "" {
		input.Status = domain.StatusTodo
	}
	if input.Priority == "" {
		input.Priority = domain.PriorityMedium
	}
	if err := validateStatusPriority(&input.Status, &input.Priority); err != nil {
		return nil, err
	}
	if input.AssignedTo != nil && *input.AssignedTo == "" {
		input.AssignedTo = nil
	}

	now := s.now().UTC()
	task := &domain.Task{
		ID:          uuid.New().String(),
		Title:       title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		AssignedTo:  input.AssignedTo,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if teamID != "" {
		if err := CanCreateTeamTask(actor.TeamRole); err != nil {
			return nil, err
		}
		if task.AssignedTo != nil {
			if err := s.checkAssignee(ctx, teamID, *task.AssignedTo); err != nil {
				return nil, err
			}
		}
		task.TeamID = &teamID
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		if errors.Is(err, apperrors.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("create task: %w", err)
	}

	if err := s.producer.PublishTaskCreated(ctx, task); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish task.created event",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
	}
	if task.AssignedTo != nil {
		s.publishAssigned(ctx, task, actor.UserID)
	}

	s.logger.InfoContext(ctx, "task created",
		slog.String("task_id", task.ID),
		slog.String("user_id", actor.UserID),
	)
	return s.details(ctx, task.ID)
}

// Get returns one task with its details.
func (s *TaskService) Get(ctx context.Context, actor Actor, teamID, taskID string) (*domain.TaskWithDetails, error) {
	if _, _, err := s.resolve(ctx, actor, teamID, taskID); err != nil {
		return nil, err
	}
	return s.details(ctx, taskID)
}

// Update applies input to the task. Only a team admin or the assignee may
// change a team task.
func (s *TaskService) Update(ctx context.Context, actor Actor, teamID, taskID string, input UpdateTaskInput) (*domain.TaskWithDetails, error) {
	task, role, err := s.resolve(ctx, actor, teamID, taskID)
	if err != nil {
		return nil, err
	}
	if err := CanModifyTask(actor.UserID, role, task); err != nil {
		return nil, err
	}
	if err := validateStatusPriority(input.Status, input.Priority); err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.InvalidInput("title must not be empty")
		}
		task.Title = title
	}
	switch {
	case input.ClearDescription:
		task.Description = nil
	case input.Description != nil:
		task.Description = input.Description
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	switch {
	case input.ClearDueDate:
		task.DueDate = nil
	case input.DueDate != nil:
		task.DueDate = input.DueDate
	}

	reassigned := false
	if input.AssignedTo != nil {
		next := *input.AssignedTo
		if next == "" {
			task.AssignedTo = nil
		} else if !task.IsAssignedTo(next) {
			if !task.IsPersonal() {
				if err := s.checkAssignee(ctx, *task.TeamID, next); err != nil {
					return nil, err
				}
			}
			task.AssignedTo = &next
			reassigned = true
		}
	}
	task.UpdatedAt = s.now().UTC()

	if err := s.tasks.Update(ctx, task); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("update task: %w", err)
	}

	if reassigned {
		s.publishAssigned(ctx, task, actor.UserID)
	}
	return s.details(ctx, task.ID)
}

// Delete removes the task and its comments.
func (s *TaskService) Delete(ctx context.Context, actor Actor, teamID, taskID string) error {
	task, role, err := s.resolve(ctx, actor, teamID, taskID)
	if err != nil {
		return err
	}
	if err := CanModifyTask(actor.UserID, role, task); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete task: %w", err)
	}

	s.logger.InfoContext(ctx, "task deleted",
		slog.String("task_id", taskID),
		slog.String("user_id", actor.UserID),
	)
	return nil
}

// ListComments returns the task's comments, oldest first.
func (s *TaskService) ListComments(ctx context.Context, actor Actor, teamID, taskID string) ([]domain.CommentWithAuthor, error) {
	if _, _, err := s.resolve(ctx, actor, teamID, taskID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if comments == nil {
		comments = []domain.CommentWithAuthor{}
	}
	return comments, nil
}

// AddComment posts a comment. Any caller who can see the task may comment.
func (s *TaskService) AddComment(ctx context.Context, actor Actor, teamID, taskID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.InvalidInput("content is required")
	}
	if _, _, err := s.resolve(ctx, actor, teamID, taskID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	comment := &domain.Comment{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		UserID:    actor.UserID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

// UpdateComment replaces the comment text. Only a team admin or the author
// may edit.
func (s *TaskService) UpdateComment(ctx context.Context, actor Actor, teamID, taskID, commentID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.InvalidInput("content is required")
	}
	comment, err := s.resolveComment(ctx, actor, teamID, taskID, commentID)
	if err != nil {
		return nil, err
	}

	comment.Content = content
	comment.UpdatedAt = s.now().UTC()
	if err := s.comments.Update(ctx, comment); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update comment: %w", err)
	}
	return comment, nil
}

// DeleteComment removes a comment. Only a team admin or the author may delete.
func (s *TaskService) DeleteComment(ctx context.Context, actor Actor, teamID, taskID, commentID string) error {
	if _, err := s.resolveComment(ctx, actor, teamID, taskID, commentID); err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// resolve loads the task and the actor's role on it. Tasks the actor may not
// see are reported as not found.
func (s *TaskService) resolve(ctx context.Context, actor Actor, teamID, taskID string) (*domain.Task, domain.Role, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", apperrors.NotFound("task", taskID)
		}
		return nil, "", fmt.Errorf("get task: %w", err)
	}

	if teamID != "" {
		if task.TeamID == nil || *task.TeamID != teamID {
			return nil, "", apperrors.NotFound("task", taskID)
		}
		return task, actor.TeamRole, nil
	}

	if task.IsPersonal() {
		if !CanAccessPersonalTask(actor.UserID, task) {
			return nil, "", apperrors.NotFound("task", taskID)
		}
		return task, "", nil
	}

	member, err := s.members.Get(ctx, *task.TeamID, actor.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", apperrors.NotFound("task", taskID)
		}
		return nil, "", fmt.Errorf("get membership: %w", err)
	}
	return task, member.Role, nil
}

func (s *TaskService) resolveComment(ctx context.Context, actor Actor, teamID, taskID, commentID string) (*domain.Comment, error) {
	_, role, err := s.resolve(ctx, actor, teamID, taskID)
	if err != nil {
		return nil, err
	}

	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("comment", commentID)
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}
	if comment.TaskID != taskID {
		return nil, apperrors.NotFound("comment", commentID)
	}
	if err := CanModifyComment(actor.UserID, role, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *TaskService) checkAssignee(ctx context.Context, teamID, userID string) error {
	if _, err := s.members.Get(ctx, teamID, userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidInput("assignee must be a member of the team")
		}
		return fmt.Errorf("get assignee membership: %w", err)
	}
	return nil
}

func (s *TaskService) details(ctx context.Context, taskID string) (*domain.TaskWithDetails, error) {
	task, err := s.tasks.GetDetails(ctx, taskID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("task", taskID)
		}
		return nil, fmt.Errorf("get task details: %w", err)
	}
	return task, nil
}

func (s *TaskService) publishAssigned(ctx context.Context, task *domain.Task, actorID string) {
	if err := s.producer.PublishTaskAssigned(ctx, task, actorID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish task.assigned event",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
	}
}

func validateStatusPriority(status *domain.TaskStatus, priority *domain.TaskPriority) error {
	if status != nil && !status.IsValid() {
		return apperrors.InvalidInput(fmt.Sprintf("invalid status %q", *status))
	}
	if priority != nil && !priority.IsValid() {
		return apperrors.InvalidInput(fmt.Sprintf("invalid priority %q", *priority))
	}
	return nil
}

func nonNil(tasks []domain.TaskWithDetails) []domain.TaskWithDetails {
	if tasks == nil {
		return []domain.TaskWithDetails{}
	}
	return tasks
}
