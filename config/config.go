package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StatusSourceBackend = "backend"
	StatusSourceStripe  = "stripe"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	Backend           BackendConfig
	MySQL             MySQLConfig
	Redis             RedisConfig
	Stripe            StripeConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Poller            PollerConfig
	Confirmations     ConfirmationConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type BackendConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type StripeConfig struct {
	SecretKey string
}

type LogConfig struct {
	Level string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type PollerConfig struct {
	MaxAttempts          int
	Interval             time.Duration
	Deadline             time.Duration
	RetryTransportErrors bool
	StatusSource         string
}

type ConfirmationConfig struct {
	Retention      time.Duration
	StaleAfter     time.Duration
	AllowedOrigins []string
}

type JobsConfig struct {
	StaleCleanupInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	backendURL := strings.TrimRight(getEnv("BACKEND_URL", os.Getenv("REACT_APP_BACKEND_URL")), "/")
	if backendURL == "" {
		return nil, errors.New("BACKEND_URL environment variable is required")
	}

	statusSource := strings.ToLower(getEnv("STATUS_SOURCE", StatusSourceBackend))
	if statusSource != StatusSourceBackend && statusSource != StatusSourceStripe {
		return nil, errors.New("STATUS_SOURCE must be backend or stripe")
	}
	stripeKey := getEnv("STRIPE_SECRET_KEY", os.Getenv("STRIPE_API_KEY"))
	if statusSource == StatusSourceStripe && stripeKey == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is required when STATUS_SOURCE=stripe")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "payment-confirmations-service"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		Backend: BackendConfig{
			BaseURL:        backendURL,
			RequestTimeout: getMillisEnv("BACKEND_REQUEST_TIMEOUT_MS", 10*time.Second),
		},
		MySQL: MySQLConfig{
			DSN:             getEnv("MYSQL_DSN", ""),
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_LATCH_PREFIX", "payment-confirmations:latch:"),
		},
		Stripe: StripeConfig{SecretKey: stripeKey},
		Log:    LogConfig{Level: getEnv("LOG_LEVEL", "info")},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Poller: PollerConfig{
			MaxAttempts:          getIntEnv("POLL_MAX_ATTEMPTS", 5),
			Interval:             getMillisEnv("POLL_INTERVAL_MS", 2000*time.Millisecond),
			Deadline:             getMillisEnv("POLL_DEADLINE_MS", 0),
			RetryTransportErrors: getBoolEnv("POLL_RETRY_TRANSPORT_ERRORS", false),
			StatusSource:         statusSource,
		},
		Confirmations: ConfirmationConfig{
			Retention:      getDurationEnv("CONFIRMATION_RETENTION_MINUTES", 10*time.Minute),
			StaleAfter:     getDurationEnv("STALE_CONFIRMATION_MINUTES", 30*time.Minute),
			AllowedOrigins: getListEnv("ALLOWED_ORIGINS"),
		},
		Jobs: JobsConfig{
			StaleCleanupInterval: getDurationEnv("STALE_CLEANUP_INTERVAL_MINUTES", 10*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getMillisEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
