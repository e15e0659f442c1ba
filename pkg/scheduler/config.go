package scheduler

import (
	"encoding/json"
	"fmt"
	"time"
)

type Config struct {
	ReconciliationInterval time.Duration `json:"reconciliationInterval"`
	CleanupInterval        time.Duration `json:"cleanupInterval"`
	MonitoringInterval     time.Duration `json:"monitoringInterval"`
	// StaleThreshold is how long a player may stay disconnected before cleanup removes them.
	StaleThreshold time.Duration `json:"staleThreshold"`
	// OrphanGracePeriod is how long a durable room may go untouched while absent from the live store.
	OrphanGracePeriod time.Duration `json:"orphanGracePeriod"`
	// MaxConcurrentRooms bounds the reconciliation fan-out.
	MaxConcurrentRooms int        `json:"maxConcurrentRooms"`
	Thresholds         Thresholds `json:"thresholds"`
}

type Thresholds struct {
	FailureRate       float64 `json:"failureRate"`
	InconsistencyRate float64 `json:"inconsistencyRate"`
	StaleConnections  int     `json:"staleConnections"`
}

func DefaultConfig() Config {
	return Config{
		ReconciliationInterval: 30 * time.Second,
		CleanupInterval:        5 * time.Minute,
		MonitoringInterval:     60 * time.Second,
		StaleThreshold:         10 * time.Minute,
		OrphanGracePeriod:      time.Hour,
		MaxConcurrentRooms:     16,
		Thresholds: Thresholds{
			FailureRate:       0.10,
			InconsistencyRate: 0.20,
			StaleConnections:  10,
		},
	}
}

func (c Config) Validate() error {
	if c.ReconciliationInterval <= 0 || c.CleanupInterval <= 0 || c.MonitoringInterval <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}
	if c.StaleThreshold <= 0 {
		return fmt.Errorf("stale threshold must be positive")
	}
	if c.OrphanGracePeriod <= 0 {
		return fmt.Errorf("orphan grace period must be positive")
	}
	if c.MaxConcurrentRooms < 1 {
		return fmt.Errorf("max concurrent rooms must be at least 1")
	}
	return nil
}

// ConfigUpdate is a partial Config. Nil fields are left unchanged.
type ConfigUpdate struct {
	ReconciliationInterval     *time.Duration `json:"reconciliationInterval,omitempty"`
	CleanupInterval            *time.Duration `json:"cleanupInterval,omitempty"`
	MonitoringInterval         *time.Duration `json:"monitoringInterval,omitempty"`
	StaleThreshold             *time.Duration `json:"staleThreshold,omitempty"`
	OrphanGracePeriod          *time.Duration `json:"orphanGracePeriod,omitempty"`
	MaxConcurrentRooms         *int           `json:"maxConcurrentRooms,omitempty"`
	FailureRateThreshold       *float64       `json:"failureRateThreshold,omitempty"`
	InconsistencyRateThreshold *float64       `json:"inconsistencyRateThreshold,omitempty"`
	StaleConnectionsThreshold  *int           `json:"staleConnectionsThreshold,omitempty"`
}

// UnmarshalJSON accepts durations either as strings like "5m" or as integer nanoseconds.
func (u *ConfigUpdate) UnmarshalJSON(b []byte) error {
	type plain ConfigUpdate
	aux := struct {
		*plain
		ReconciliationInterval json.RawMessage `json:"reconciliationInterval"`
		CleanupInterval        json.RawMessage `json:"cleanupInterval"`
		MonitoringInterval     json.RawMessage `json:"monitoringInterval"`
		StaleThreshold         json.RawMessage `json:"staleThreshold"`
		OrphanGracePeriod      json.RawMessage `json:"orphanGracePeriod"`
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	fields := []struct {
		name string
		raw  json.RawMessage
		dst  **time.Duration
	}{
		{"reconciliationInterval", aux.ReconciliationInterval, &u.ReconciliationInterval},
		{"cleanupInterval", aux.CleanupInterval, &u.CleanupInterval},
		{"monitoringInterval", aux.MonitoringInterval, &u.MonitoringInterval},
		{"staleThreshold", aux.StaleThreshold, &u.StaleThreshold},
		{"orphanGracePeriod", aux.OrphanGracePeriod, &u.OrphanGracePeriod},
	}
	for _, f := range fields {
		d, err := parseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

func parseDuration(raw json.RawMessage) (*time.Duration, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, err
		}
		return &d, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("expected a duration string or integer nanoseconds")
	}
	d := time.Duration(n)
	return &d, nil
}

func (u ConfigUpdate) apply(c Config) Config {
	if u.ReconciliationInterval != nil {
		c.ReconciliationInterval = *u.ReconciliationInterval
	}
	if u.CleanupInterval != nil {
		c.CleanupInterval = *u.CleanupInterval
	}
	if u.MonitoringInterval != nil {
		c.MonitoringInterval = *u.MonitoringInterval
	}
	if u.StaleThreshold != nil {
		c.StaleThreshold = *u.StaleThreshold
	}
	if u.OrphanGracePeriod != nil {
		c.OrphanGracePeriod = *u.OrphanGracePeriod
	}
	if u.MaxConcurrentRooms != nil {
		c.MaxConcurrentRooms = *u.MaxConcurrentRooms
	}
	if u.FailureRateThreshold != nil {
		c.Thresholds.FailureRate = *u.FailureRateThreshold
	}
	if u.InconsistencyRateThreshold != nil {
		c.Thresholds.InconsistencyRate = *u.InconsistencyRateThreshold
	}
	if u.StaleConnectionsThreshold != nil {
		c.Thresholds.StaleConnections = *u.StaleConnectionsThreshold
	}
	return c
}
