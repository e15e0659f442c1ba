package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cbodonnell/cardroom/pkg/log"
	"github.com/cbodonnell/cardroom/pkg/scheduler"
)

// Config is the server configuration, read from CARDROOM_* environment variables.
type Config struct {
	DatabaseURL string `env:"CARDROOM_DATABASE_URL" envDefault:"sqlite://cardroom.db"`
	LogLevel    string `env:"CARDROOM_LOG_LEVEL" envDefault:"info"`

	WSPort         int      `env:"CARDROOM_WS_PORT" envDefault:"8080"`
	APIPort        int      `env:"CARDROOM_API_PORT" envDefault:"9090"`
	TLSCertFile    string   `env:"CARDROOM_TLS_CERT_FILE"`
	TLSKeyFile     string   `env:"CARDROOM_TLS_KEY_FILE"`
	AllowedOrigins []string `env:"CARDROOM_ALLOWED_ORIGINS" envSeparator:","`
	AdminToken     string   `env:"CARDROOM_ADMIN_TOKEN"`

	ReconciliationInterval     time.Duration `env:"CARDROOM_RECONCILIATION_INTERVAL" envDefault:"30s"`
	CleanupInterval            time.Duration `env:"CARDROOM_CLEANUP_INTERVAL" envDefault:"5m"`
	MonitoringInterval         time.Duration `env:"CARDROOM_MONITORING_INTERVAL" envDefault:"60s"`
	StaleThreshold             time.Duration `env:"CARDROOM_STALE_THRESHOLD" envDefault:"10m"`
	OrphanGracePeriod          time.Duration `env:"CARDROOM_ORPHAN_GRACE_PERIOD" envDefault:"1h"`
	MaxConcurrentRooms         int           `env:"CARDROOM_MAX_CONCURRENT_ROOMS" envDefault:"16"`
	FailureRateThreshold       float64       `env:"CARDROOM_FAILURE_RATE_THRESHOLD" envDefault:"0.10"`
	InconsistencyRateThreshold float64       `env:"CARDROOM_INCONSISTENCY_RATE_THRESHOLD" envDefault:"0.20"`
	StaleConnectionsThreshold  int           `env:"CARDROOM_STALE_CONNECTIONS_THRESHOLD" envDefault:"10"`

	ConfirmationTimeout time.Duration `env:"CARDROOM_CONFIRMATION_TIMEOUT" envDefault:"5s"`
	MaxDeliveryAttempts int           `env:"CARDROOM_MAX_DELIVERY_ATTEMPTS" envDefault:"3"`
	// CriticalEvents replaces the default set of events that need confirmation.
	CriticalEvents []string `env:"CARDROOM_CRITICAL_EVENTS" envSeparator:","`

	MaxPlayers       int           `env:"CARDROOM_MAX_PLAYERS" envDefault:"4"`
	PersistInterval  time.Duration `env:"CARDROOM_PERSIST_INTERVAL" envDefault:"1s"`
	PersistQueueSize int           `env:"CARDROOM_PERSIST_QUEUE_SIZE" envDefault:"10000"`
	ShutdownTimeout  time.Duration `env:"CARDROOM_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := log.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("CARDROOM_TLS_CERT_FILE and CARDROOM_TLS_KEY_FILE must be set together")
	}
	if c.MaxPlayers < 2 {
		return fmt.Errorf("max players must be at least 2, got %d", c.MaxPlayers)
	}
	if c.MaxDeliveryAttempts < 1 {
		return fmt.Errorf("max delivery attempts must be at least 1, got %d", c.MaxDeliveryAttempts)
	}
	if c.ConfirmationTimeout <= 0 || c.PersistInterval <= 0 {
		return fmt.Errorf("confirmation timeout and persist interval must be positive")
	}
	if c.PersistQueueSize <= 0 {
		return fmt.Errorf("persist queue size must be positive, got %d", c.PersistQueueSize)
	}
	return c.Scheduler().Validate()
}

// Scheduler returns the reconciliation scheduler settings.
func (c Config) Scheduler() scheduler.Config {
	return scheduler.Config{
		ReconciliationInterval: c.ReconciliationInterval,
		CleanupInterval:        c.CleanupInterval,
		MonitoringInterval:     c.MonitoringInterval,
		StaleThreshold:         c.StaleThreshold,
		OrphanGracePeriod:      c.OrphanGracePeriod,
		MaxConcurrentRooms:     c.MaxConcurrentRooms,
		Thresholds: scheduler.Thresholds{
			FailureRate:       c.FailureRateThreshold,
			InconsistencyRate: c.InconsistencyRateThreshold,
			StaleConnections:  c.StaleConnectionsThreshold,
		},
	}
}

func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != ""
}
