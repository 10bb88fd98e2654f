package http

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/internal/repository"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
)

func teamTask(createdBy string, assignee *string) *domain.Task {
	tid := teamID
	return &domain.Task{
		ID:         taskID,
		TeamID:     &tid,
		Title:      "Ship it",
		Status:     domain.StatusTodo,
		Priority:   domain.PriorityMedium,
		CreatedBy:  createdBy,
		AssignedTo: assignee,
	}
}

func personalTask(createdBy string) *domain.Task {
	return &domain.Task{
		ID:        taskID,
		Title:     "Groceries",
		Status:    domain.StatusTodo,
		Priority:  domain.PriorityLow,
		CreatedBy: createdBy,
	}
}

func TestTaskHandler_CreateTeamTask(t *testing.T) {
	e := newTestEnv(t, nil)
	e.memberOf(aliceID, domain.RoleDev)
	var created *domain.Task
	e.tasks.On("Create", mock.Anything, mock.AnythingOfType("*domain.Task")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.Task) }).
		Return(nil)
	e.tasks.On("GetDetails", mock.Anything, mock.Anything).
		Return(&domain.TaskWithDetails{Task: domain.Task{ID: taskID, Title: "Ship it"}}, nil)

	rec := e.do(http.MethodPost, "/api/v1/teams/"+teamID+"/tasks",
		`{"title":"Ship it","priority":"high","dueDate":"2026-12-01"}`, e.token(t, aliceID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.NotNil(t, created)
	require.NotNil(t, created.TeamID)
	assert.Equal(t, teamID, *created.TeamID)
	assert.Equal(t, domain.StatusTodo, created.Status)
	assert.Equal(t, domain.PriorityHigh, created.Priority)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, "2026-12-01", created.DueDate.Format("2006-01-02"))
	assert.Equal(t, aliceID, created.CreatedBy)
}

func TestTaskHandler_CreateTeamTask_GuestForbidden(t *testing.T) {
	e := newTestEnv(t, nil)
	e.memberOf(bobID, domain.RoleGuest)

	rec := e.do(http.MethodPost, "/api/v1/teams/"+teamID+"/tasks", `{"title":"Ship it"}`, e.token(t, bobID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
	e.tasks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTaskHandler_CreateTeamTask_AssigneeNotMember(t *testing.T) {
	e := newTestEnv(t, nil)
	e.memberOf(aliceID, domain.RoleAdmin)
	e.members.On("Get", mock.Anything, teamID, bobID).Return(nil, apperrors.ErrNotFound)

	rec := e.do(http.MethodPost, "/api/v1/teams/"+teamID+"/tasks",
		`{"title":"Ship it","assignedTo":"`+bobID+`"}`, e.token(t, aliceID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))
}

func TestTaskHandler_Create_BadDueDate(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(http.MethodPost, "/api/v1/tasks", `{"title":"x","dueDate":"next week"}`, e.token(t, aliceID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))
}

func TestTaskHandler_CreatePersonalTask(t *testing.T) {
	e := newTestEnv(t, nil)
	var created *domain.Task
	e.tasks.On("Create", mock.Anything, mock.AnythingOfType("*domain.Task")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.Task) }).
		Return(nil)
	e.tasks.On("GetDetails", mock.Anything, mock.Anything).Return(&domain.TaskWithDetails{}, nil)

	rec := e.do(http.MethodPost, "/api/v1/tasks", `{"title":"Groceries"}`, e.token(t, aliceID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, created)
	assert.Nil(t, created.TeamID)
	e.members.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskHandler_Get_Visibility(t *testing.T) {
	tests := []struct {
		name   string
		task   *domain.Task
		setup  func(e *testEnv)
		caller string
		want   int
	}{
		{
			name:   "personal task of another user is hidden",
			task:   personalTask(aliceID),
			setup:  func(*testEnv) {},
			caller: bobID,
			want:   http.StatusNotFound,
		},
		{
			name:   "personal task visible to creator",
			task:   personalTask(aliceID),
			setup:  func(*testEnv) {},
			caller: aliceID,
			want:   http.StatusOK,
		},
		{
			name: "team task hidden from non-member",
			task: teamTask(aliceID, nil),
			setup: func(e *testEnv) {
				e.members.On("Get", mock.Anything, teamID, bobID).Return(nil, apperrors.ErrNotFound)
			},
			caller: bobID,
			want:   http.StatusNotFound,
		},
		{
			name:   "team task visible to member",
			task:   teamTask(aliceID, nil),
			setup:  func(e *testEnv) { e.memberOf(bobID, domain.RoleGuest) },
			caller: bobID,
			want:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, nil)
			e.tasks.On("GetByID", mock.Anything, taskID).Return(tt.task, nil)
			e.tasks.On("GetDetails", mock.Anything, taskID).Return(&domain.TaskWithDetails{Task: *tt.task}, nil)
			tt.setup(e)

			rec := e.do(http.MethodGet, "/api/v1/tasks/"+taskID, "", e.token(t, tt.caller))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want == http.StatusNotFound {
				assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
			}
		})
	}
}

func TestTaskHandler_TeamRoute_TaskFromOtherTeam(t *testing.T) {
	e := newTestEnv(t, nil)
	e.memberOf(aliceID, domain.RoleAdmin)
	other := "66666666-6666-6666-6666-666666666666"
	task := teamTask(aliceID, nil)
	task.TeamID = &other
	e.tasks.On("GetByID", mock.Anything, taskID).Return(task, nil)

	rec := e.do(http.MethodGet, "/api/v1/teams/"+teamID+"/tasks/"+taskID, "", e.token(t, aliceID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskHandler_Update_ModifyRules(t *testing.T) {
	tests := []struct {
		name   string
		role   domain.Role
		caller string
		task   *domain.Task
		want   int
	}{
		{"admin may edit any team task", domain.RoleAdmin, aliceID, teamTask(bobID, nil), http.StatusOK},
		{"assignee may edit", domain.RoleDev, bobID, teamTask(aliceID, strPtr(bobID)), http.StatusOK},
		{"creator without assignment may not", domain.RoleManager, bobID, teamTask(bobID, nil), http.StatusForbidden},
		{"other member may not", domain.RoleDev, bobID, teamTask(aliceID, strPtr(aliceID)), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, nil)
			e.memberOf(tt.caller, tt.role)
			e.tasks.On("GetByID", mock.Anything, taskID).Return(tt.task, nil)
			e.tasks.On("Update", mock.Anything, mock.AnythingOfType("*domain.Task")).Return(nil)
			e.tasks.On("GetDetails", mock.Anything, taskID).Return(&domain.TaskWithDetails{Task: *tt.task}, nil)

			rec := e.do(http.MethodPatch, "/api/v1/teams/"+teamID+"/tasks/"+taskID, `{"status":"done"}`, e.token(t, tt.caller))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want == http.StatusForbidden {
				e.tasks.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestTaskHandler_Update_ClearsNullableFields(t *testing.T) {
	e := newTestEnv(t, nil)
	desc := "old"
	task := personalTask(aliceID)
	task.Description = &desc
	task.AssignedTo = strPtr(aliceID)
	e.tasks.On("GetByID", mock.Anything, taskID).Return(task, nil)
	var saved *domain.Task
	e.tasks.On("Update", mock.Anything, mock.AnythingOfType("*domain.Task")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.Task) }).
		Return(nil)
	e.tasks.On("GetDetails", mock.Anything, taskID).Return(&domain.TaskWithDetails{}, nil)

	rec := e.do(http.MethodPatch, "/api/v1/tasks/"+taskID, `{"description":null,"assignedTo":null}`, e.token(t, aliceID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, saved)
	assert.Nil(t, saved.Description)
	assert.Nil(t, saved.AssignedTo)
	assert.Equal(t, "Groceries", saved.Title)
}

func TestTaskHandler_Delete(t *testing.T) {
	e := newTestEnv(t, nil)
	e.tasks.On("GetByID", mock.Anything, taskID).Return(personalTask(aliceID), nil)
	e.tasks.On("Delete", mock.Anything, taskID).Return(nil)

	rec := e.do(http.MethodDelete, "/api/v1/tasks/"+taskID, "", e.token(t, aliceID))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	e.tasks.AssertCalled(t, "Delete", mock.Anything, taskID)
}

func TestTaskHandler_ListTeam_Filters(t *testing.T) {
	e := newTestEnv(t, nil)
	e.memberOf(aliceID, domain.RoleGuest)
	filtered := mock.MatchedBy(func(f repository.TaskFilter) bool {
		return f.Status != nil && *f.Status == domain.StatusDone && f.AssignedTo != nil && *f.AssignedTo == bobID
	})
	e.tasks.On("ListByTeam", mock.Anything, teamID, filtered).Return(nil, nil)

	rec := e.do(http.MethodGet, "/api/v1/teams/"+teamID+"/tasks?status=done&assignedTo="+bobID, "", e.token(t, aliceID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[]`, string(decodeEnvelope(t, rec).Data))

	rec = e.do(http.MethodGet, "/api/v1/teams/"+teamID+"/tasks?status=blocked", "", e.token(t, aliceID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_ListMine(t *testing.T) {
	e := newTestEnv(t, nil)
	e.tasks.On("ListAssignedTo", mock.Anything, aliceID).
		Return([]domain.TaskWithDetails{{Task: *personalTask(aliceID)}}, nil)

	rec := e.do(http.MethodGet, "/api/v1/tasks/me", "", e.token(t, aliceID))
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []domain.TaskWithDetails
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &tasks))
	assert.Len(t, tasks, 1)
}

func TestTaskHandler_Comments(t *testing.T) {
	e := newTestEnv(t, nil)
	e.memberOf(bobID, domain.RoleGuest)
	e.tasks.On("GetByID", mock.Anything, taskID).Return(teamTask(aliceID, nil), nil)
	e.comments.On("Create", mock.Anything, mock.AnythingOfType("*domain.Comment")).Return(nil)
	e.comments.On("ListByTask", mock.Anything, taskID).Return(nil, nil)
	tok := e.token(t, bobID)
	base := "/api/v1/teams/" + teamID + "/tasks/" + taskID + "/comments"

	rec := e.do(http.MethodPost, base, `{"content":"  looks good  "}`, tok)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var comment domain.Comment
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &comment))
	assert.Equal(t, "looks good", comment.Content)
	assert.Equal(t, bobID, comment.UserID)

	rec = e.do(http.MethodPost, base, `{"content":""}`, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodGet, base, "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(decodeEnvelope(t, rec).Data))
}

func TestTaskHandler_CommentModifyRules(t *testing.T) {
	tests := []struct {
		name   string
		caller string
		role   domain.Role
		want   int
	}{
		{"author may delete", bobID, domain.RoleGuest, http.StatusNoContent},
		{"admin may delete", aliceID, domain.RoleAdmin, http.StatusNoContent},
		{"manager who is not author may not", aliceID, domain.RoleManager, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, nil)
			e.memberOf(tt.caller, tt.role)
			e.tasks.On("GetByID", mock.Anything, taskID).Return(teamTask(aliceID, nil), nil)
			e.comments.On("GetByID", mock.Anything, commentID).
				Return(&domain.Comment{ID: commentID, TaskID: taskID, UserID: bobID, Content: "hi"}, nil)
			e.comments.On("Delete", mock.Anything, commentID).Return(nil)

			rec := e.do(http.MethodDelete, "/api/v1/teams/"+teamID+"/tasks/"+taskID+"/comments/"+commentID, "", e.token(t, tt.caller))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestTaskHandler_CommentOnOtherTask(t *testing.T) {
	e := newTestEnv(t, nil)
	e.tasks.On("GetByID", mock.Anything, taskID).Return(personalTask(aliceID), nil)
	e.comments.On("GetByID", mock.Anything, commentID).
		Return(&domain.Comment{ID: commentID, TaskID: "77777777-7777-7777-7777-777777777777", UserID: aliceID}, nil)

	rec := e.do(http.MethodPatch, "/api/v1/tasks/"+taskID+"/comments/"+commentID, `{"content":"edit"}`, e.token(t, aliceID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	e.comments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}
