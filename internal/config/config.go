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
	Queue        QueueConfig
	Auth         AuthConfig
	Notification NotificationConfig
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

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// QueueConfig tunes the line engine.
type QueueConfig struct {
	// DefaultServiceMinutes is the ETA fallback before any service-time
	// samples exist.
	DefaultServiceMinutes int
	// SampleWindow is how many of the most recent service-time samples feed
	// the rolling average.
	SampleWindow int
	// StoreTimeoutSeconds bounds each store operation.
	StoreTimeoutSeconds int
	// StoreRetries is how many times a transient store failure is retried
	// before surfacing.
	StoreRetries int
	// BoardCacheTTLSeconds controls the Redis board cache; 0 disables it.
	BoardCacheTTLSeconds int
	// RecentActivity is the size of the board's recent-activity view.
	RecentActivity int
	// JoinRateLimit / JoinRateWindowSeconds throttle webhook commands per
	// contact; 0 disables throttling.
	JoinRateLimit         int
	JoinRateWindowSeconds int
	// RejoinCooldownSeconds blocks a contact from rejoining right after a
	// no-show or cancel; 0 disables the cooldown. Policy, not invariant.
	RejoinCooldownSeconds int
	// EventChannel is the Redis pub/sub channel for queue events.
	EventChannel string
}

// AuthConfig defines admin authentication parameters.
type AuthConfig struct {
	// AdminPasscodeHash is a bcrypt hash of the staff passcode. When empty,
	// AdminPasscode is hashed at startup (development convenience).
	AdminPasscodeHash     string
	AdminPasscode         string
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds outbound notification settings.
type NotificationConfig struct {
	ClinicName string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "clinic-queue"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Queue: QueueConfig{
			DefaultServiceMinutes: getEnvAsInt("QUEUE_DEFAULT_SERVICE_MINUTES", 12),
			SampleWindow:          getEnvAsInt("QUEUE_SAMPLE_WINDOW", 20),
			StoreTimeoutSeconds:   getEnvAsInt("QUEUE_STORE_TIMEOUT_SECONDS", 5),
			StoreRetries:          getEnvAsInt("QUEUE_STORE_RETRIES", 2),
			BoardCacheTTLSeconds:  getEnvAsInt("QUEUE_BOARD_CACHE_TTL_SECONDS", 30),
			RecentActivity:        getEnvAsInt("QUEUE_RECENT_ACTIVITY", 5),
			JoinRateLimit:         getEnvAsInt("QUEUE_JOIN_RATE_LIMIT", 10),
			JoinRateWindowSeconds: getEnvAsInt("QUEUE_JOIN_RATE_WINDOW_SECONDS", 300),
			RejoinCooldownSeconds: getEnvAsInt("QUEUE_REJOIN_COOLDOWN_SECONDS", 0),
			EventChannel:          getEnv("QUEUE_EVENT_CHANNEL", "clinic:updates"),
		},
		Auth: AuthConfig{
			AdminPasscodeHash:     os.Getenv("ADMIN_PASSCODE_HASH"),
			AdminPasscode:         getEnv("ADMIN_PASSCODE", "demo"),
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 480),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			ClinicName: getEnv("CLINIC_NAME", "Clinic Queue"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
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

// DefaultService returns the ETA fallback as a duration.
func (q QueueConfig) DefaultService() time.Duration {
	return time.Duration(q.DefaultServiceMinutes) * time.Minute
}

// StoreTimeout returns the per-operation store bound.
func (q QueueConfig) StoreTimeout() time.Duration {
	return time.Duration(q.StoreTimeoutSeconds) * time.Second
}

// BoardCacheTTL returns the board cache lifetime.
func (q QueueConfig) BoardCacheTTL() time.Duration {
	return time.Duration(q.BoardCacheTTLSeconds) * time.Second
}

// RejoinCooldown returns the rejoin policy window.
func (q QueueConfig) RejoinCooldown() time.Duration {
	return time.Duration(q.RejoinCooldownSeconds) * time.Second
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
