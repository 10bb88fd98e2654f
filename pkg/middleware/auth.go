package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
	"github.com/giecabral/team-flow-management/pkg/httputil"
	"github.com/giecabral/team-flow-management/pkg/logger"
)

type identityKey struct{}

// Identity is the caller resolved from a verified access token.
type Identity struct {
	UserID string
	Email  string
}

// TokenVerifier verifies a raw bearer token. Any error means the token is
// unusable; the reason is not reported to the client.
type TokenVerifier func(token string) (Identity, error)

// Authenticate requires a valid "Authorization: Bearer <token>" header and
// attaches the resulting Identity to the request context. A missing header
// and a bad token both answer 401 UNAUTHORIZED.
func Authenticate(verify TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized("No token provided"), nil)
				return
			}

			id, err := verify(token)
			if err != nil {
				httputil.WriteError(w, r, apperrors.Unauthorized("Invalid or expired token"), nil)
				return
			}

			ctx := WithIdentity(r.Context(), id)
			ctx = logger.WithUserID(ctx, id.UserID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("user_id", id.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the Identity attached by Authenticate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// UserIDFromContext returns the authenticated user ID, or "" when absent.
func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}
