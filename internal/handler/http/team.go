package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/internal/service"
	"github.com/giecabral/team-flow-management/pkg/httputil"
)

// TeamHandler handles HTTP requests for teams and memberships. Team-scoped
// routes run behind RequireTeamMembership, so {teamId} is already validated.
type TeamHandler struct {
	service *service.TeamService
	logger  *slog.Logger
}

// NewTeamHandler creates a new team HTTP handler.
func NewTeamHandler(svc *service.TeamService, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{service: svc, logger: logger}
}

// CreateTeamRequest is the JSON request body for creating a team.
type CreateTeamRequest struct {
	Name        string  `json:"name" validate:"required,notblank,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// UpdateTeamRequest is the JSON request body for updating a team.
type UpdateTeamRequest struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// AddMemberRequest is the JSON request body for adding a member.
type AddMemberRequest struct {
	UserID string      `json:"userId" validate:"required,uuid"`
	Role   domain.Role `json:"role" validate:"omitempty,oneof=admin manager dev guest"`
}

// UpdateMemberRequest is the JSON request body for changing a member's role.
type UpdateMemberRequest struct {
	Role domain.Role `json:"role" validate:"required,oneof=admin manager dev guest"`
}

// List handles GET /api/v1/teams
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.ListForUser(r.Context(), userIDFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, teams)
}

// Create handles POST /api/v1/teams
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	team, err := h.service.Create(r.Context(), userIDFrom(r), service.CreateTeamInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, team)
}

// Get handles GET /api/v1/teams/{teamId}
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	team, err := h.service.Get(r.Context(), teamIDFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, team)
}

// Update handles PATCH /api/v1/teams/{teamId}
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateTeamRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	team, err := h.service.Update(r.Context(), teamIDFrom(r), service.UpdateTeamInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, team)
}

// Delete handles DELETE /api/v1/teams/{teamId}
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), teamIDFrom(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteNoContent(w)
}

// ListMembers handles GET /api/v1/teams/{teamId}/members
func (h *TeamHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context(), teamIDFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, members)
}

// AddMember handles POST /api/v1/teams/{teamId}/members
func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	member, err := h.service.AddMember(r.Context(), userIDFrom(r), teamIDFrom(r), req.UserID, req.Role)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, member)
}

// UpdateMember handles PATCH /api/v1/teams/{teamId}/members/{userId}
func (h *TeamHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "userId"))
	if !ok {
		return
	}
	var req UpdateMemberRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	member, err := h.service.ChangeMemberRole(r.Context(), userIDFrom(r), teamIDFrom(r), userID, req.Role)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, member)
}

// RemoveMember handles DELETE /api/v1/teams/{teamId}/members/{userId}
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "userId"))
	if !ok {
		return
	}

	if err := h.service.RemoveMember(r.Context(), userIDFrom(r), teamIDFrom(r), userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteNoContent(w)
}

// SearchUsers handles GET /api/v1/teams/{teamId}/users/search?q=
func (h *TeamHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.SearchUsers(r.Context(), teamIDFrom(r), r.URL.Query().Get("q"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, users)
}
