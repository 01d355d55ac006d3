package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/backend"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/latch"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/poller"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/repository"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/service"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/session"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/stripe"
	"github.com/vibast-solutions/ms-go-payment-confirmations/config"

	_ "github.com/go-sql-driver/mysql"
)

type dependencies struct {
	cfg                 *config.Config
	backend             *backend.Client
	poller              *poller.Poller
	tracker             *poller.Tracker
	confirmationService *service.ConfirmationService
	billingService      *service.BillingService
	closers             []func() error
}

func (d *dependencies) Close() {
	if d.tracker != nil {
		d.tracker.Shutdown()
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logrus.WithError(err).Warn("Failed to close dependency")
		}
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

// buildDependencies wires the confirmation stack. MySQL and Redis are only
// connected when configured; requireLedger makes a missing MySQL DSN fatal.
func buildDependencies(ctx context.Context, cfg *config.Config, requireLedger bool) (*dependencies, error) {
	deps := &dependencies{cfg: cfg}

	deps.backend = backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout)
	deps.poller = poller.New(pollerConfig(cfg), statusSource(cfg, deps.backend), session.NewRefresher(deps.backend))

	var l latch.Latch = latch.NewMemory()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.closers = append(deps.closers, client.Close)
		l = latch.NewRedis(client, cfg.Redis.Prefix)
	}
	deps.tracker = poller.NewTracker(deps.poller, l, cfg.Confirmations.Retention)

	var ledger service.ConfirmationLedger
	if cfg.MySQL.DSN != "" {
		db, err := openDatabase(ctx, cfg.MySQL)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.closers = append(deps.closers, db.Close)
		ledger = repository.NewConfirmationRepository(db)
	} else if requireLedger {
		deps.Close()
		return nil, fmt.Errorf("MYSQL_DSN is required for this command")
	}

	deps.confirmationService = service.NewConfirmationService(deps.tracker, ledger, cfg.Confirmations)
	deps.billingService = service.NewBillingService(deps.backend, cfg.Confirmations)
	return deps, nil
}

func pollerConfig(cfg *config.Config) poller.Config {
	return poller.Config{
		MaxAttempts:          cfg.Poller.MaxAttempts,
		Interval:             cfg.Poller.Interval,
		Deadline:             cfg.Poller.Deadline,
		RetryTransportErrors: cfg.Poller.RetryTransportErrors,
	}
}

func statusSource(cfg *config.Config, client *backend.Client) poller.StatusSource {
	if cfg.Poller.StatusSource == config.StatusSourceStripe {
		return stripe.NewStatusSource(cfg.Stripe.SecretKey, client)
	}
	return client
}

func openDatabase(ctx context.Context, cfg config.MySQLConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
