package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresBackendURL(t *testing.T) {
	unsetEnv(t, "BACKEND_URL")
	unsetEnv(t, "REACT_APP_BACKEND_URL")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing BACKEND_URL")
	}
}

func TestLoadFallsBackToReactAppBackendURL(t *testing.T) {
	unsetEnv(t, "BACKEND_URL")
	unsetEnv(t, "STATUS_SOURCE")
	setEnv(t, "REACT_APP_BACKEND_URL", "https://court.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Backend.BaseURL != "https://court.example.com" {
		t.Fatalf("unexpected base url: %s", cfg.Backend.BaseURL)
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, "BACKEND_URL", "http://localhost:8001")
	for _, key := range []string{"POLL_MAX_ATTEMPTS", "POLL_INTERVAL_MS", "POLL_DEADLINE_MS", "POLL_RETRY_TRANSPORT_ERRORS", "STATUS_SOURCE", "MYSQL_DSN", "REDIS_ADDR"} {
		unsetEnv(t, key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Poller.MaxAttempts != 5 || cfg.Poller.Interval != 2*time.Second {
		t.Fatalf("unexpected poller defaults: %+v", cfg.Poller)
	}
	if cfg.Poller.Deadline != 0 || cfg.Poller.RetryTransportErrors {
		t.Fatalf("unexpected poller defaults: %+v", cfg.Poller)
	}
	if cfg.Poller.StatusSource != StatusSourceBackend {
		t.Fatalf("unexpected status source: %s", cfg.Poller.StatusSource)
	}
	if cfg.MySQL.DSN != "" || cfg.Redis.Addr != "" {
		t.Fatalf("expected optional stores to be disabled, got mysql=%q redis=%q", cfg.MySQL.DSN, cfg.Redis.Addr)
	}
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, "BACKEND_URL", "http://localhost:8001")
	setEnv(t, "APP_SERVICE_NAME", "confirmations-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "GRPC_PORT", "9191")
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/confirmations?parseTime=true")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "POLL_MAX_ATTEMPTS", "8")
	setEnv(t, "POLL_INTERVAL_MS", "500")
	setEnv(t, "POLL_DEADLINE_MS", "15000")
	setEnv(t, "POLL_RETRY_TRANSPORT_ERRORS", "true")
	setEnv(t, "STATUS_SOURCE", "stripe")
	setEnv(t, "STRIPE_SECRET_KEY", "sk_test_123")
	setEnv(t, "CONFIRMATION_RETENTION_MINUTES", "3")
	setEnv(t, "ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "confirmations-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" || cfg.GRPC.Port != "9191" {
		t.Fatalf("unexpected ports: http=%s grpc=%s", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql lifetime: %v", cfg.MySQL.ConnMaxLifetime)
	}
	if cfg.Poller.MaxAttempts != 8 || cfg.Poller.Interval != 500*time.Millisecond || cfg.Poller.Deadline != 15*time.Second {
		t.Fatalf("unexpected poller config: %+v", cfg.Poller)
	}
	if !cfg.Poller.RetryTransportErrors || cfg.Poller.StatusSource != StatusSourceStripe {
		t.Fatalf("unexpected poller config: %+v", cfg.Poller)
	}
	if cfg.Stripe.SecretKey != "sk_test_123" {
		t.Fatalf("unexpected stripe key: %s", cfg.Stripe.SecretKey)
	}
	if cfg.Confirmations.Retention != 3*time.Minute {
		t.Fatalf("unexpected retention: %v", cfg.Confirmations.Retention)
	}
	if len(cfg.Confirmations.AllowedOrigins) != 2 || cfg.Confirmations.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected allowed origins: %v", cfg.Confirmations.AllowedOrigins)
	}
}

func TestLoadStripeSourceRequiresKey(t *testing.T) {
	setEnv(t, "BACKEND_URL", "http://localhost:8001")
	setEnv(t, "STATUS_SOURCE", "stripe")
	unsetEnv(t, "STRIPE_SECRET_KEY")
	unsetEnv(t, "STRIPE_API_KEY")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing stripe key")
	}
}

func TestLoadRejectsUnknownStatusSource(t *testing.T) {
	setEnv(t, "BACKEND_URL", "http://localhost:8001")
	setEnv(t, "STATUS_SOURCE", "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown status source")
	}
}
