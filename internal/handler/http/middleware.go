package http

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/internal/repository"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
	"github.com/giecabral/team-flow-management/pkg/httputil"
	"github.com/giecabral/team-flow-management/pkg/logger"
)

// ContentTypeJSON rejects request bodies declared as anything but JSON. A
// missing Content-Type is accepted.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" {
			mediaType, _, err := mime.ParseMediaType(ct)
			if err != nil || mediaType != "application/json" {
				httputil.WriteErrorCode(w, r, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type membershipKey struct{}

type membership struct {
	teamID string
	role   domain.Role
}

// RequireTeamMembership admits callers who belong to the team named by the
// {teamId} route parameter and hold at least minRole. An empty minRole
// admits any member. The resolved role is stored in the request context;
// a membership already resolved for the same team is reused.
func RequireTeamMembership(members repository.MemberRepository, minRole domain.Role, fallback *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			teamID, ok := httputil.ParseUUID(w, r, chi.URLParam(r, "teamId"))
			if !ok {
				return
			}

			ctx := r.Context()
			m, resolved := ctx.Value(membershipKey{}).(membership)
			if !resolved || m.teamID != teamID {
				userID := userIDFrom(r)
				member, err := members.Get(ctx, teamID, userID)
				if err != nil {
					if errors.Is(err, apperrors.ErrNotFound) {
						httputil.WriteErrorCode(w, r, http.StatusForbidden, "FORBIDDEN", "Not a team member")
						return
					}
					httputil.WriteError(w, r, err, fallback)
					return
				}
				m = membership{teamID: teamID, role: member.Role}

				ctx = context.WithValue(ctx, membershipKey{}, m)
				ctx = logger.WithTeamID(ctx, teamID)
				ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("team_id", teamID)))
			}

			if minRole != "" && !m.role.AtLeast(minRole) {
				httputil.WriteErrorCode(w, r, http.StatusForbidden, "FORBIDDEN", "Insufficient role")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TeamRoleFromContext returns the caller's role in the gated team, or ""
// outside a team-membership gate.
func TeamRoleFromContext(ctx context.Context) domain.Role {
	m, _ := ctx.Value(membershipKey{}).(membership)
	return m.role
}

// teamIDFrom returns the canonical team ID resolved by RequireTeamMembership.
func teamIDFrom(r *http.Request) string {
	m, _ := r.Context().Value(membershipKey{}).(membership)
	return m.teamID
}
