package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/internal/repository"
	"github.com/giecabral/team-flow-management/internal/service"
	"github.com/giecabral/team-flow-management/pkg/health"
	"github.com/giecabral/team-flow-management/pkg/middleware"
)

// serviceName labels metrics and spans.
const serviceName = "team-flow"

// RouterDeps carries everything the router mounts.
type RouterDeps struct {
	Auth    *service.AuthService
	Users   *service.UserService
	Teams   *service.TeamService
	Tasks   *service.TaskService
	Members repository.MemberRepository

	Health      *health.Handler
	AuthLimiter *middleware.RateLimiter
	CORS        middleware.CORSConfig

	PprofEnabled    bool
	PprofAllowedIPs []string

	Logger *slog.Logger
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.CORS(deps.CORS))

	// Health check and metrics endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if deps.PprofEnabled {
		middleware.RegisterPprof(r, deps.PprofAllowedIPs, logger)
	}

	authenticate := middleware.Authenticate(func(token string) (middleware.Identity, error) {
		claims, err := deps.Auth.VerifyAccessToken(token)
		if err != nil {
			return middleware.Identity{}, err
		}
		return middleware.Identity{UserID: claims.UserID, Email: claims.Email}, nil
	})
	gate := func(minRole domain.Role) func(http.Handler) http.Handler {
		return RequireTeamMembership(deps.Members, minRole, logger)
	}

	authHandler := NewAuthHandler(deps.Auth, logger)
	userHandler := NewUserHandler(deps.Users, logger)
	teamHandler := NewTeamHandler(deps.Teams, logger)
	taskHandler := NewTaskHandler(deps.Tasks, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if deps.AuthLimiter != nil {
					r.Use(deps.AuthLimiter.Middleware)
				}
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
			})
			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/", userHandler.List)
			r.Post("/", userHandler.Create)
			r.Patch("/me", userHandler.UpdateMe)
			r.Patch("/me/password", userHandler.ChangePassword)
			r.Get("/{userId}", userHandler.Get)
		})

		r.Route("/teams", func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/", teamHandler.List)
			r.Post("/", teamHandler.Create)

			r.Route("/{teamId}", func(r chi.Router) {
				r.Use(gate(""))
				r.Get("/", teamHandler.Get)
				r.With(gate(domain.RoleAdmin)).Patch("/", teamHandler.Update)
				r.With(gate(domain.RoleAdmin)).Delete("/", teamHandler.Delete)

				r.Get("/members", teamHandler.ListMembers)
				r.With(gate(domain.RoleAdmin)).Post("/members", teamHandler.AddMember)
				r.With(gate(domain.RoleAdmin)).Patch("/members/{userId}", teamHandler.UpdateMember)
				r.With(gate(domain.RoleAdmin)).Delete("/members/{userId}", teamHandler.RemoveMember)
				r.With(gate(domain.RoleAdmin)).Get("/users/search", teamHandler.SearchUsers)

				r.Route("/tasks", func(r chi.Router) {
					r.Get("/", taskHandler.ListTeam)
					r.With(gate(domain.RoleDev)).Post("/", taskHandler.Create)
					mountTaskRoutes(r, taskHandler)
				})
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/", taskHandler.ListVisible)
			r.Get("/me", taskHandler.ListMine)
			r.Post("/", taskHandler.Create)
			mountTaskRoutes(r, taskHandler)
		})
	})

	return r
}

func mountTaskRoutes(r chi.Router, h *TaskHandler) {
	r.Get("/{taskId}", h.Get)
	r.Patch("/{taskId}", h.Update)
	r.Delete("/{taskId}", h.Delete)
	r.Get("/{taskId}/comments", h.ListComments)
	r.Post("/{taskId}/comments", h.AddComment)
	r.Patch("/{taskId}/comments/{commentId}", h.UpdateComment)
	r.Delete("/{taskId}/comments/{commentId}", h.DeleteComment)
}
