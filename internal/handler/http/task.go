package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/internal/repository"
	"github.com/giecabral/team-flow-management/internal/service"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
	"github.com/giecabral/team-flow-management/pkg/httputil"
)

// TaskHandler serves both the team-scoped task routes and the cross-team
// /tasks routes. On team routes the membership gate has resolved the team
// and the caller's role; elsewhere the service resolves access per task.
type TaskHandler struct {
	service *service.TaskService
	logger  *slog.Logger
}

// NewTaskHandler creates a new task HTTP handler.
func NewTaskHandler(svc *service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{service: svc, logger: logger}
}

// CreateTaskRequest is the JSON request body for creating a task.
type CreateTaskRequest struct {
	Title       string              `json:"title" validate:"required,notblank,max=255"`
	Description *string             `json:"description" validate:"omitempty,max=5000"`
	Status      domain.TaskStatus   `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Priority    domain.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *string             `json:"dueDate"`
	AssignedTo  *string             `json:"assignedTo" validate:"omitempty,uuid"`
}

// UpdateTaskRequest is the JSON request body for updating a task. Explicit
// nulls clear description, dueDate and assignedTo.
type UpdateTaskRequest struct {
	Title       *string              `json:"title" validate:"omitempty,notblank,max=255"`
	Description nullableString       `json:"description"`
	Status      *domain.TaskStatus   `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Priority    *domain.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     nullableString       `json:"dueDate"`
	AssignedTo  nullableString       `json:"assignedTo"`
}

// CommentRequest is the JSON request body for creating or editing a comment.
type CommentRequest struct {
	Content string `json:"content" validate:"required,notblank,max=5000"`
}

// ListTeam handles GET /api/v1/teams/{teamId}/tasks
func (h *TaskHandler) ListTeam(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter repository.TaskFilter
	if v := q.Get("status"); v != "" {
		status := domain.TaskStatus(v)
		filter.Status = &status
	}
	if v := q.Get("assignedTo"); v != "" {
		id, ok := httputil.ParseUUID(w, r, v)
		if !ok {
			return
		}
		filter.AssignedTo = &id
	}

	tasks, err := h.service.ListTeam(r.Context(), teamIDFrom(r), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, tasks)
}

// ListMine handles GET /api/v1/tasks/me
func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.ListAssigned(r.Context(), userIDFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, tasks)
}

// ListVisible handles GET /api/v1/tasks
func (h *TaskHandler) ListVisible(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter repository.VisibleTaskFilter
	if v := q.Get("status"); v != "" {
		status := domain.TaskStatus(v)
		filter.Status = &status
	}
	if v := q.Get("teamId"); v != "" {
		id, ok := httputil.ParseUUID(w, r, v)
		if !ok {
			return
		}
		filter.TeamID = &id
	}

	tasks, err := h.service.ListVisible(r.Context(), userIDFrom(r), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, tasks)
}

// Create handles POST /api/v1/teams/{teamId}/tasks and POST /api/v1/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	input := service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		input.DueDate = &due
	}

	task, err := h.service.Create(r.Context(), actorFrom(r), teamIDFrom(r), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, task)
}

// Get handles GET .../tasks/{taskId}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "taskId"))
	if !ok {
		return
	}

	task, err := h.service.Get(r.Context(), actorFrom(r), teamIDFrom(r), taskID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, task)
}

// Update handles PATCH .../tasks/{taskId}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	taskID, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "taskId"))
	if !ok {
		return
	}
	var req UpdateTaskRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	input, err := req.toInput()
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	task, err := h.service.Update(r.Context(), actorFrom(r), teamIDFrom(r), taskID, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, task)
}

func (req UpdateTaskRequest) toInput() (service.UpdateTaskInput, error) {
	input := service.UpdateTaskInput{
		Title:    req.Title,
		Status:   req.Status,
		Priority: req.Priority,
	}

	if req.Description.Set {
		if req.Description.Value == nil {
			input.ClearDescription = true
		} else if len(*req.Description.Value) > 5000 {
			return input, apperrors.InvalidInput("description must be at most 5000 characters")
		} else {
			input.Description = req.Description.Value
		}
	}

	if req.DueDate.Set {
		if req.DueDate.Value == nil || *req.DueDate.Value == "" {
			input.ClearDueDate = true
		} else {
			due, err := parseDueDate(*req.DueDate.Value)
			if err != nil {
				return input, err
			}
			input.DueDate = &due
		}
	}

	if req.AssignedTo.Set {
		assignee := ""
		if req.AssignedTo.Value != nil && *req.AssignedTo.Value != "" {
			id, err := uuid.Parse(*req.AssignedTo.Value)
			if err != nil {
				return input, apperrors.InvalidInput("assignedTo must be a valid UUID")
			}
			assignee = id.String()
		}
		input.AssignedTo = &assignee
	}

	return input, nil
}

// Delete handles DELETE .../tasks/{taskId}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "taskId"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), actorFrom(r), teamIDFrom(r), taskID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteNoContent(w)
}

// ListComments handles GET .../tasks/{taskId}/comments
func (h *TaskHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	taskID, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "taskId"))
	if !ok {
		return
	}

	comments, err := h.service.ListComments(r.Context(), actorFrom(r), teamIDFrom(r), taskID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, comments)
}

// AddComment handles POST .../tasks/{taskId}/comments
func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	taskID, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "taskId"))
	if !ok {
		return
	}
	var req CommentRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	comment, err := h.service.AddComment(r.Context(), actorFrom(r), teamIDFrom(r), taskID, req.Content)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, comment)
}

// UpdateComment handles PATCH .../tasks/{taskId}/comments/{commentId}
func (h *TaskHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	taskID, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "taskId"))
	if !ok {
		return
	}
	commentID, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "commentId"))
	if !ok {
		return
	}
	var req CommentRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	comment, err := h.service.UpdateComment(r.Context(), actorFrom(r), teamIDFrom(r), taskID, commentID, req.Content)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, comment)
}

// DeleteComment handles DELETE .../tasks/{taskId}/comments/{commentId}
func (h *TaskHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	taskID, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "taskId"))
	if !ok {
		return
	}
	commentID, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "commentId"))
	if !ok {
		return
	}

	if err := h.service.DeleteComment(r.Context(), actorFrom(r), teamIDFrom(r), taskID, commentID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteNoContent(w)
}
