package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests drive a running server end to end. They are skipped unless
// TEAMFLOW_BASE_URL points at a reachable instance, e.g.
//
//	TEAMFLOW_BASE_URL=http://localhost:3001 go test ./internal/app/

func baseURL(t *testing.T) string {
	t.Helper()
	base := strings.TrimRight(os.Getenv("TEAMFLOW_BASE_URL"), "/")
	if base == "" {
		t.Skip("TEAMFLOW_BASE_URL not set")
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(base + "/health/live")
	if err != nil {
		t.Skipf("server at %s not reachable: %v", base, err)
	}
	resp.Body.Close()
	return base
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@flow.example.com", prefix, uuid.NewString()[:8])
}

type flowClient struct {
	t     *testing.T
	base  string
	http  *http.Client
	token string
}

func newFlowClient(t *testing.T) *flowClient {
	return &flowClient{t: t, base: baseURL(t), http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *flowClient) as(token string) *flowClient {
	cp := *c
	cp.token = token
	return &cp
}

// do sends a JSON request and returns the status and decoded envelope.
func (c *flowClient) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err, "%s %s", method, path)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// field walks a dot-separated path through decoded JSON.
func field(data map[string]any, path string) any {
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func str(t *testing.T, data map[string]any, path string) string {
	t.Helper()
	s, ok := field(data, path).(string)
	require.True(t, ok, "expected string at %q in %v", path, data)
	return s
}

func (c *flowClient) register(prefix string) (id, access, refresh string) {
	c.t.Helper()
	status, data := c.do(http.MethodPost, "/api/v1/auth/register", map[string]any{
		"email":     uniqueEmail(prefix),
		"password":  "FlowPass123",
		"firstName": "Flow",
		"lastName":  prefix,
	})
	require.Equal(c.t, http.StatusCreated, status, data)
	return str(c.t, data, "data.user.id"), str(c.t, data, "data.accessToken"), str(c.t, data, "data.refreshToken")
}

func TestFlow_RefreshRotation(t *testing.T) {
	c := newFlowClient(t)
	_, access, refresh := c.register("rotate")

	status, data := c.do(http.MethodPost, "/api/v1/auth/refresh", map[string]any{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, status, data)
	next := str(t, data, "data.refreshToken")
	assert.NotEqual(t, refresh, next)

	status, data = c.do(http.MethodPost, "/api/v1/auth/refresh", map[string]any{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", field(data, "error.code"))

	status, _ = c.as(access).do(http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = c.do(http.MethodPost, "/api/v1/auth/refresh", map[string]any{"refreshToken": next})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestFlow_TeamLifecycle(t *testing.T) {
	c := newFlowClient(t)
	adminID, adminToken, _ := c.register("admin")
	devID, devToken, _ := c.register("dev")
	admin, dev := c.as(adminToken), c.as(devToken)

	status, data := admin.do(http.MethodPost, "/api/v1/teams", map[string]any{"name": "Flow team"})
	require.Equal(t, http.StatusCreated, status, data)
	teamID := str(t, data, "data.id")

	status, _ = dev.do(http.MethodGet, "/api/v1/teams/"+teamID, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, data = admin.do(http.MethodPost, "/api/v1/teams/"+teamID+"/members", map[string]any{"userId": devID})
	require.Equal(t, http.StatusCreated, status, data)
	assert.Equal(t, "dev", field(data, "data.role"))

	status, data = dev.do(http.MethodPost, "/api/v1/teams/"+teamID+"/tasks", map[string]any{
		"title":      "Write flow tests",
		"assignedTo": devID,
	})
	require.Equal(t, http.StatusCreated, status, data)
	taskID := str(t, data, "data.id")

	status, data = dev.do(http.MethodPatch, "/api/v1/teams/"+teamID+"/tasks/"+taskID, map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, status, data)
	assert.Equal(t, "in_progress", field(data, "data.status"))

	status, data = dev.do(http.MethodPost, "/api/v1/tasks/"+taskID+"/comments", map[string]any{"content": "on it"})
	require.Equal(t, http.StatusCreated, status, data)

	status, data = admin.do(http.MethodDelete, "/api/v1/teams/"+teamID+"/members/"+adminID, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "LAST_ADMIN", field(data, "error.code"))

	status, _ = admin.do(http.MethodPatch, "/api/v1/teams/"+teamID+"/members/"+devID, map[string]any{"role": "admin"})
	require.Equal(t, http.StatusOK, status)
	status, _ = admin.do(http.MethodDelete, "/api/v1/teams/"+teamID+"/members/"+adminID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = dev.do(http.MethodDelete, "/api/v1/teams/"+teamID, nil)
	assert.Equal(t, http.StatusNoContent, status)
}
