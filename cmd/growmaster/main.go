// Command growmaster runs the grow-operation scheduling daemon. On a
// fixed cadence it generates care tasks for every active garden and
// rebuilds the coordinated day plan, while the notification worker scans
// continuously in the background.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rezkam/growmaster/internal/application/coordinator"
	"github.com/rezkam/growmaster/internal/application/generator"
	"github.com/rezkam/growmaster/internal/application/notifier"
	"github.com/rezkam/growmaster/internal/config"
	"github.com/rezkam/growmaster/internal/infrastructure/observability"
	"github.com/rezkam/growmaster/internal/infrastructure/persistence/postgres"
	"github.com/rezkam/growmaster/internal/storage/sqlite"
	"github.com/rezkam/growmaster/internal/templates"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

// repositories is the storage surface the daemon needs, satisfied by both
// backends.
type repositories interface {
	generator.Repository
	coordinator.Repository
	notifier.Repository
	Close() error
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("invalid database config: %w", err)
	}
	if err := cfg.Notifier.Validate(); err != nil {
		return fmt.Errorf("invalid notifier config: %w", err)
	}

	// Root context for all normal operations; cancels on SIGTERM/SIGINT.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	otelCfg := observability.Config{
		Enabled:     cfg.Observability.Enabled,
		ServiceName: cfg.Observability.ServiceName,
	}

	lp, logger, err := observability.InitLogger(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer shutdownProvider(lp.Shutdown, "logger provider")
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("failed to init tracer provider: %w", err)
	}
	defer shutdownProvider(tp.Shutdown, "tracer provider")

	mp, err := observability.InitMeterProvider(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("failed to init meter provider: %w", err)
	}
	defer shutdownProvider(mp.Shutdown, "meter provider")

	slog.InfoContext(ctx, "starting growmaster scheduler", "driver", cfg.Database.Driver)

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.ErrorContext(ctx, "failed to close store", "error", err)
		}
	}()
	slog.InfoContext(ctx, "storage initialized", "dsn", maskPassword(cfg.Database.DSN))

	lib, err := templates.New()
	if err != nil {
		return fmt.Errorf("failed to load template catalogue: %w", err)
	}

	gen := generator.New(store, lib)
	coord := coordinator.New(store)
	worker := notifier.New(store, selectTransport(cfg.Notifier),
		notifier.WithScanInterval(cfg.Notifier.ScanInterval),
		notifier.WithCycleTimeout(cfg.Notifier.CycleTimeout),
	)

	errResult := make(chan error, 1)
	go func() {
		errResult <- worker.Start(ctx)
	}()
	go runScheduleLoop(ctx, gen, coord, cfg.Scheduler)

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")
		// The notifier finishes its in-flight cycle before returning.
		if err := <-errResult; err != nil {
			slog.WarnContext(ctx, "notification worker stopped with error", "error", err)
		}
		return nil
	case err := <-errResult:
		return err
	}
}

// openStore connects to the configured backend. Both return a store
// implementing every repository interface the engine consumes.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (repositories, error) {
	if cfg.Driver == config.DriverSQLite {
		return sqlite.Open(ctx, cfg.DSN)
	}
	return postgres.NewStoreWithConfig(ctx, postgres.DBConfig{
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTime) * time.Second,
		AutoMigrate:     cfg.AutoMigrate,
	})
}

func selectTransport(cfg config.NotifierConfig) notifier.Transport {
	if cfg.Transport == config.TransportDesktop {
		return notifier.ExecTransport{}
	}
	return notifier.LogTransport{}
}

// runScheduleLoop sweeps task generation for all active gardens and then
// rebuilds the coordinated plan for the current day. The first sweep runs
// immediately so a fresh install gets its tasks without waiting a day.
func runScheduleLoop(ctx context.Context, gen *generator.Generator, coord *coordinator.Coordinator, cfg config.SchedulerConfig) {
	sweep := func() {
		sweepCtx, cancel := context.WithTimeout(ctx, cfg.OperationTimeout)
		defer cancel()

		created, err := gen.GenerateAll(sweepCtx)
		if err != nil {
			slog.ErrorContext(sweepCtx, "task generation sweep failed", "error", err, "tasks_created", created)
		} else {
			slog.InfoContext(sweepCtx, "task generation sweep complete", "tasks_created", created)
		}

		now := time.Now().UTC()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		plan, err := coord.Coordinate(sweepCtx, today)
		if err != nil {
			slog.ErrorContext(sweepCtx, "daily coordination failed", "error", err)
			return
		}
		slog.InfoContext(sweepCtx, "daily plan ready",
			"batches", len(plan.Batches),
			"conflicts", len(plan.Conflicts),
			"efficiency", plan.Efficiency,
			"time_savings_min", plan.TimeSavings.Minutes())
	}

	sweep()
	ticker := time.NewTicker(cfg.GenerationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// shutdownProvider flushes an OTel provider with a bounded timeout so an
// unreachable collector cannot hang process exit.
func shutdownProvider(shutdown func(context.Context) error, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to shutdown "+name, "error", err)
	}
}

// maskPassword masks the password in a connection string for logging.
// Plain file paths (the SQLite case) pass through unchanged.
func maskPassword(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
	}
	return u.String()
}
