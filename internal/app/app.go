package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/giecabral/team-flow-management/internal/auth"
	"github.com/giecabral/team-flow-management/internal/config"
	"github.com/giecabral/team-flow-management/internal/event"
	handler "github.com/giecabral/team-flow-management/internal/handler/http"
	"github.com/giecabral/team-flow-management/internal/repository"
	"github.com/giecabral/team-flow-management/internal/repository/postgres"
	redisrepo "github.com/giecabral/team-flow-management/internal/repository/redis"
	"github.com/giecabral/team-flow-management/internal/service"
	"github.com/giecabral/team-flow-management/migrations"
	"github.com/giecabral/team-flow-management/pkg/database"
	"github.com/giecabral/team-flow-management/pkg/health"
	pkgkafka "github.com/giecabral/team-flow-management/pkg/kafka"
	"github.com/giecabral/team-flow-management/pkg/middleware"
	"github.com/giecabral/team-flow-management/pkg/tracing"
)

// ServiceName identifies the server in logs, metrics and traces.
const ServiceName = "team-flow"

// App wires together all dependencies and runs the server.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	ledger         repository.RefreshTokenLedger
	limiter        *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	a.tracerShutdown, err = tracing.InitTracer(initCtx, cfg.Tracing(ServiceName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a.pool, err = database.NewPostgresPool(initCtx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, a.pool, ServiceName); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	if err := database.RunMigrations(initCtx, a.pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})

	switch cfg.TokenLedger {
	case config.LedgerRedis:
		a.redis, err = database.NewRedisClient(initCtx, cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		redisLedger := redisrepo.NewRefreshTokenLedger(a.redis)
		a.ledger = redisLedger
		healthHandler.RegisterCritical("redis", redisLedger.Ping)
		logger.Info("refresh token ledger on redis", slog.String("addr", cfg.RedisAddr))
	default:
		a.ledger = postgres.NewRefreshTokenLedger(a.pool)
	}

	var publisher pkgkafka.Publisher = pkgkafka.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{Brokers: cfg.KafkaBrokers}, logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("KAFKA_BROKERS is empty, domain events are discarded")
	}

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	codec := auth.NewTokenCodec(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.RefreshTokenTTL())
	producer := event.NewProducer(publisher, logger)

	users := postgres.NewUserRepository(a.pool)
	teams := postgres.NewTeamRepository(a.pool)
	members := postgres.NewMemberRepository(a.pool)
	tasks := postgres.NewTaskRepository(a.pool)
	comments := postgres.NewCommentRepository(a.pool)

	a.limiter = middleware.NewRateLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst, 10*time.Minute)

	authService := service.NewAuthService(users, a.ledger, hasher, codec, producer, logger)

	router := handler.NewRouter(handler.RouterDeps{
		Auth:            authService,
		Users:           service.NewUserService(users, authService, hasher, producer, logger),
		Teams:           service.NewTeamService(teams, members, users, producer, logger),
		Tasks:           service.NewTaskService(tasks, comments, members, producer, logger),
		Members:         members,
		Health:          healthHandler,
		AuthLimiter:     a.limiter,
		CORS:            middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
		PprofEnabled:    cfg.PprofEnabled,
		PprofAllowedIPs: cfg.PprofAllowedIPs,
		Logger:          logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run serves HTTP and runs the background sweepers until ctx is canceled,
// then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.sweepLedger(gctx)
		return nil
	})
	g.Go(func() error {
		a.sweepLimiter(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			a.logger.Info("shutdown signal received")
		}
		return a.shutdownHTTP()
	})

	err := g.Wait()
	return errors.Join(err, a.closeResources())
}

// sweepLedger deletes expired refresh tokens on every tick. Expired tokens
// are already rejected on use; this only keeps the ledger small.
func (a *App) sweepLedger(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.LedgerSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := a.ledger.DeleteExpired(ctx, now)
			if err != nil {
				if ctx.Err() == nil {
					a.logger.Error("refresh token sweep failed", slog.String("error", err.Error()))
				}
				continue
			}
			if n > 0 {
				a.logger.Info("expired refresh tokens removed", slog.Int64("count", n))
			}
		}
	}
}

func (a *App) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.limiter.Sweep()
		}
	}
}

func (a *App) shutdownHTTP() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// closeResources releases everything after the HTTP server has drained:
// tracer first so spans of drained requests are flushed, then the producer,
// redis and finally the postgres pool.
func (a *App) closeResources() error {
	var errs []error

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}

	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
