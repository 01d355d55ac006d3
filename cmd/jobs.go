package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/service"
	"github.com/vibast-solutions/ms-go-payment-confirmations/config"
)

var staleConfirmationsWorker bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run confirmation ledger maintenance commands",
}

var cleanupStaleConfirmationsCmd = &cobra.Command{
	Use:   "stale-confirmations",
	Short: "Mark confirmations abandoned in polling as timed out",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"stale_confirmations",
			staleConfirmationsWorker,
			func(cfg *config.Config) time.Duration { return cfg.Jobs.StaleCleanupInterval },
			func(s *service.ConfirmationService, ctx context.Context) error {
				return s.RunStaleCleanupBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.AddCommand(cleanupStaleConfirmationsCmd)

	cleanupStaleConfirmationsCmd.Flags().BoolVar(&staleConfirmationsWorker, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	worker bool,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.ConfirmationService, ctx context.Context) error,
) {
	cfg := mustLoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := buildDependencies(ctx, cfg, true)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize dependencies")
	}
	defer deps.Close()

	if worker {
		runWorker(ctx, name, intervalResolver(cfg), deps.confirmationService, fn)
		return
	}

	runJob(name, func() error { return fn(deps.confirmationService, ctx) })
}

func runWorker(
	ctx context.Context,
	name string,
	interval time.Duration,
	confirmationService *service.ConfirmationService,
	fn func(s *service.ConfirmationService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runJob(name, func() error { return fn(confirmationService, ctx) })

	for {
		select {
		case <-ctx.Done():
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(confirmationService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
