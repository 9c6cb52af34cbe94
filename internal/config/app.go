package config

import (
	"fmt"
	"time"

	"github.com/rezkam/growmaster/internal/env"
)

// Notification transports.
const (
	TransportLog     = "log"
	TransportDesktop = "desktop"
)

// NotifierConfig holds the background notification worker settings.
type NotifierConfig struct {
	// ScanInterval is the cadence of the notification scan loop.
	ScanInterval time.Duration `env:"GROWMASTER_NOTIFIER_SCAN_INTERVAL"`

	// CycleTimeout bounds one scan cycle and therefore shutdown latency.
	CycleTimeout time.Duration `env:"GROWMASTER_NOTIFIER_CYCLE_TIMEOUT"`

	// Transport selects the delivery mechanism: desktop (notify-send) or log.
	Transport string `env:"GROWMASTER_NOTIFIER_TRANSPORT"`
}

// Validate validates the notifier configuration.
func (c *NotifierConfig) Validate() error {
	switch c.Transport {
	case "", TransportLog, TransportDesktop:
		return nil
	default:
		return fmt.Errorf("GROWMASTER_NOTIFIER_TRANSPORT must be %q or %q, got %q", TransportLog, TransportDesktop, c.Transport)
	}
}

// SchedulerConfig holds the timers for the generation and coordination sweeps.
type SchedulerConfig struct {
	// GenerationInterval is how often tasks are generated for all gardens.
	GenerationInterval time.Duration `env:"GROWMASTER_GENERATION_INTERVAL"`

	// OperationTimeout bounds individual storage operations in the sweeps.
	OperationTimeout time.Duration `env:"GROWMASTER_OPERATION_TIMEOUT"`
}

// ObservabilityConfig holds OpenTelemetry settings. Exporter endpoints and
// headers come from the standard OTEL_* environment variables.
type ObservabilityConfig struct {
	Enabled     bool   `env:"GROWMASTER_OTEL_ENABLED"`
	ServiceName string `env:"OTEL_SERVICE_NAME"`
}

// AppConfig holds all configuration for the growmaster binary.
type AppConfig struct {
	Database      DatabaseConfig
	Notifier      NotifierConfig
	Scheduler     SchedulerConfig
	Observability ObservabilityConfig
}

// Load reads the application configuration from the environment and
// applies defaults for everything left unset.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "growmaster.db",
		},
		Notifier: NotifierConfig{
			ScanInterval: time.Minute,
			CycleTimeout: 5 * time.Second,
			Transport:    TransportLog,
		},
		Scheduler: SchedulerConfig{
			GenerationInterval: 24 * time.Hour,
			OperationTimeout:   30 * time.Second,
		},
	}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
