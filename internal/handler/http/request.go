package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/giecabral/team-flow-management/internal/service"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
	"github.com/giecabral/team-flow-management/pkg/httputil"
	"github.com/giecabral/team-flow-management/pkg/middleware"
	"github.com/giecabral/team-flow-management/pkg/validator"
)

// decodeJSON decodes and validates the request body into dst, writing a 400
// and returning false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	if err := validator.DecodeAndValidate(w, r, dst, allowEmpty); err != nil {
		httputil.WriteValidationError(w, r, err)
		return false
	}
	return true
}

func userIDFrom(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func actorFrom(r *http.Request) service.Actor {
	return service.Actor{
		UserID:   userIDFrom(r),
		TeamRole: TeamRoleFromContext(r.Context()),
	}
}

// nullableString tells an absent JSON field apart from an explicit null.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(b, []byte("null")) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// dueDateLayouts are the accepted due date formats.
var dueDateLayouts = []string{time.RFC3339, time.DateOnly}

func parseDueDate(s string) (time.Time, error) {
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperrors.InvalidInput("dueDate must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
}
