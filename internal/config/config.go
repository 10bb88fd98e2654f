package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/giecabral/team-flow-management/pkg/database"
	"github.com/giecabral/team-flow-management/pkg/tracing"
)

// DefaultJWTSecret is only accepted in development and test environments.
const DefaultJWTSecret = "change-this-to-a-secure-secret"

// Ledger backends.
const (
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

// Config holds all configuration for the team-flow server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"3001"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// PostgreSQL
	PostgresHost     string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string        `env:"POSTGRES_USER" envDefault:"teamflow"`
	PostgresPass     string        `env:"POSTGRES_PASSWORD" envDefault:"teamflow_secret"`
	PostgresDB       string        `env:"POSTGRES_DB" envDefault:"teamflow"`
	PostgresSSL      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns int32         `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	SlowQuery        time.Duration `env:"POSTGRES_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// JWT and refresh tokens
	JWTSecret         string        `env:"JWT_ACCESS_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTAccessExpiry   time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenDays  int           `env:"JWT_REFRESH_TOKEN_DAYS" envDefault:"7"`
	BcryptCost        int           `env:"BCRYPT_COST" envDefault:"12"`
	TokenLedger       string        `env:"TOKEN_LEDGER" envDefault:"postgres"`
	LedgerSweepPeriod time.Duration `env:"LEDGER_SWEEP_INTERVAL" envDefault:"1h"`

	// Redis, used when TOKEN_LEDGER=redis
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka; empty disables publishing
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// Tracing; empty endpoint disables export
	OTLPEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TraceSampleRate float64 `env:"OTEL_TRACE_SAMPLE_RATE" envDefault:"1"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Throttling of login, register and refresh
	LoginRatePerMinute int `env:"LOGIN_RATE_PER_MINUTE" envDefault:"20"`
	LoginBurst         int `env:"LOGIN_BURST" envDefault:"5"`

	// pprof
	PprofEnabled    bool     `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAllowedIPs []string `env:"PPROF_ALLOWED_IPS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and the secret policy.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.JWTAccessExpiry <= 0 {
		return fmt.Errorf("JWT_ACCESS_TOKEN_EXPIRY must be positive, got %s", c.JWTAccessExpiry)
	}
	if c.RefreshTokenDays < 1 {
		return fmt.Errorf("JWT_REFRESH_TOKEN_DAYS must be at least 1, got %d", c.RefreshTokenDays)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if !slices.Contains([]string{LedgerPostgres, LedgerRedis}, c.TokenLedger) {
		return fmt.Errorf("TOKEN_LEDGER must be %q or %q, got %q", LedgerPostgres, LedgerRedis, c.TokenLedger)
	}
	if c.LedgerSweepPeriod <= 0 {
		return fmt.Errorf("LEDGER_SWEEP_INTERVAL must be positive, got %s", c.LedgerSweepPeriod)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	if c.LoginRatePerMinute < 1 || c.LoginBurst < 1 {
		return fmt.Errorf("LOGIN_RATE_PER_MINUTE and LOGIN_BURST must be positive")
	}

	// Outside development and test, require an explicitly set, strong secret.
	if !c.IsDevelopment() {
		if c.JWTSecret == DefaultJWTSecret {
			return fmt.Errorf("JWT_ACCESS_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_ACCESS_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	return nil
}

// IsDevelopment reports whether relaxed defaults are acceptable.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

// RefreshTokenTTL is the refresh token lifetime.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

// Postgres returns the connection settings for the pool.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPass,
		DBName:   c.PostgresDB,
		SSLMode:  c.PostgresSSL,
		MaxConns: c.PostgresMaxConns,

		SlowQueryThreshold: c.SlowQuery,
	}
}

// Redis returns the redis client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// Tracing returns the tracer provider settings.
func (c *Config) Tracing(service string) tracing.Config {
	return tracing.Config{
		ServiceName:    service,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		Endpoint:       c.OTLPEndpoint,
		SampleRate:     c.TraceSampleRate,
	}
}
