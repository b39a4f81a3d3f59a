package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Reconcile    ReconcileConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior. Format is "json" or "console".
type LoggerConfig struct {
	Level   string
	Format  string
	Service string
	Env     string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	Issuer                string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// ReconcileConfig drives the periodic ticket status sweep.
type ReconcileConfig struct {
	Enabled         bool
	IntervalSeconds int
	BatchLimit      int
	LockKey         string
	LockTTLSeconds  int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "cassette-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  getEnv("LOG_FORMAT", "json"),
			Service: getEnv("APP_NAME", "cassette-service"),
			Env:     getEnv("APP_ENV", "development"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", devSecret),
			Issuer:                getEnv("AUTH_ISSUER", "cassette-service"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@cassette.local"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Reconcile: ReconcileConfig{
			Enabled:         getEnvAsBool("RECONCILE_ENABLED", true),
			IntervalSeconds: getEnvAsInt("RECONCILE_INTERVAL_SECONDS", 300),
			BatchLimit:      getEnvAsInt("RECONCILE_BATCH_LIMIT", 50),
			LockKey:         getEnv("RECONCILE_LOCK_KEY", "cassette-service:reconcile"),
			LockTTLSeconds:  getEnvAsInt("RECONCILE_LOCK_TTL_SECONDS", 120),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const devSecret = "dev-secret"

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.App.Env == "production" && c.Auth.JWTSecret == devSecret {
		return fmt.Errorf("AUTH_JWT_SECRET must be set in production")
	}
	if c.Auth.AccessTokenTTLMinutes < 1 {
		return fmt.Errorf("AUTH_ACCESS_TOKEN_TTL_MINUTES must be at least 1")
	}
	if c.Postgres.MinConns > c.Postgres.MaxConns {
		return fmt.Errorf("POSTGRES_MIN_CONNS (%d) exceeds POSTGRES_MAX_CONNS (%d)", c.Postgres.MinConns, c.Postgres.MaxConns)
	}
	if c.Reconcile.BatchLimit < 1 {
		return fmt.Errorf("RECONCILE_BATCH_LIMIT must be at least 1")
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q, must be json or console", c.Logger.Format)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Interval returns the sweep period, defaulting to five minutes.
func (r ReconcileConfig) Interval() time.Duration {
	if r.IntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(r.IntervalSeconds) * time.Second
}

// LockTTL returns how long one replica holds the sweep lease.
func (r ReconcileConfig) LockTTL() time.Duration {
	if r.LockTTLSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(r.LockTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
