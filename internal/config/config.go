package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Token store drivers.
const (
	DriverBolt   = "bolt"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName       string
	Environment   string
	HTTP          HTTPConfig
	Backend       BackendConfig
	Session       SessionConfig
	TokenStore    TokenStoreConfig
	Redis         RedisConfig
	Audit         AuditConfig
	Notifications NotificationsConfig
	RateLimit     RateLimitConfig
	Metrics       MetricsConfig
	Context       ContextConfig
	Logger        LoggerConfig
	Migrations    MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

// BackendConfig points at the API that owns accounts and issues tokens.
type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

type SessionConfig struct {
	IdleTimeout       time.Duration
	ExpiredMessage    string
	InactivityMessage string
}

type TokenStoreConfig struct {
	Driver    string
	BoltPath  string
	KeyPrefix string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// AuditConfig controls the Postgres session audit trail. An empty
// DatabaseURL keeps the trail in the log only.
type AuditConfig struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxConnLifetime time.Duration
	SyncInterval    time.Duration
	BatchSize       int
	MaxRetry        int
}

type NotificationsConfig struct {
	PollInterval time.Duration
}

// RateLimitConfig throttles the login, signup and password endpoints per
// client IP.
type RateLimitConfig struct {
	PerMinute float64
	Burst     int
}

type MetricsConfig struct {
	Enabled bool
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the server can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "storefront"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "127.0.0.1"),
			Port:         getString("SERVER_PORT", "3000"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Backend: BackendConfig{
			URL:     getString("BACKEND_URL", "http://localhost:8080"),
			Timeout: getDuration("BACKEND_TIMEOUT", 10*time.Second),
		},
		Session: SessionConfig{
			IdleTimeout:       getDuration("SESSION_IDLE_TIMEOUT", 15*time.Minute),
			ExpiredMessage:    getString("SESSION_EXPIRED_MESSAGE", "Your session has expired. Please log in again."),
			InactivityMessage: getString("SESSION_INACTIVITY_MESSAGE", "Your session has expired due to inactivity."),
		},
		TokenStore: TokenStoreConfig{
			Driver:    strings.ToLower(getString("TOKEN_STORE_DRIVER", DriverBolt)),
			BoltPath:  getString("BOLTDB_PATH", "./data/session.db"),
			KeyPrefix: getString("REDIS_KEY_PREFIX", "storefront:credential:"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Audit: AuditConfig{
			DatabaseURL:     os.Getenv("AUDIT_DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 5),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SyncInterval:    getDuration("AUDIT_SYNC_INTERVAL", 30*time.Second),
			BatchSize:       getInt("AUDIT_BATCH_SIZE", 100),
			MaxRetry:        getInt("MAX_RETRY_ATTEMPTS", 3),
		},
		Notifications: NotificationsConfig{
			PollInterval: getDuration("NOTIFICATIONS_POLL_INTERVAL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getFloat("LOGIN_RATE_PER_MINUTE", 10),
			Burst:     getInt("LOGIN_RATE_BURST", 5),
		},
		Metrics: MetricsConfig{
			Enabled: getBool("SERVER_ENABLE_METRICS", true),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Audit.DatabaseURL == "" && os.Getenv("DB_HOST") != "" {
		cfg.Audit.DatabaseURL = buildPostgresURL()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.TokenStore.Driver {
	case DriverBolt, DriverRedis, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown TOKEN_STORE_DRIVER %q", c.TokenStore.Driver))
	}
	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, errors.New("SESSION_IDLE_TIMEOUT must be positive"))
	}
	if c.Backend.URL == "" {
		errs = append(errs, errors.New("BACKEND_URL is required"))
	}
	if c.Notifications.PollInterval <= 0 {
		errs = append(errs, errors.New("NOTIFICATIONS_POLL_INTERVAL must be positive"))
	}
	if c.RateLimit.PerMinute <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_PER_MINUTE and LOGIN_RATE_BURST must be positive"))
	}
	return errors.Join(errs...)
}

// AuditEnabled reports whether session events are persisted to Postgres.
func (c *Config) AuditEnabled() bool {
	return c.Audit.DatabaseURL != ""
}

func buildPostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getString("DB_USER", "storefront"),
		os.Getenv("DB_PASSWORD"),
		getString("DB_HOST", "localhost"),
		getString("DB_PORT", "5432"),
		getString("DB_NAME", "storefront"),
		getString("DB_SSLMODE", "disable"),
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
