// Package config provides configuration loading for sovereignd.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables. All tunable policy (validation thresholds, retry
// bounds, fan-out limits) lives here so tests can construct independently
// configured instances in the same process.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete sovereignd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
	NATS          NATSConfig          `koanf:"nats"`
	Heart         HeartConfig         `koanf:"heart"`
	Planner       PlannerConfig       `koanf:"planner"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// ObservabilityConfig holds telemetry configuration.
type ObservabilityConfig struct {
	EnableTracing bool   `koanf:"enable_tracing"`
	ServiceName   string `koanf:"service_name"`
}

// NATSConfig holds coordination store connection configuration.
type NATSConfig struct {
	URL          string `koanf:"url"`
	ResultBucket string `koanf:"result_bucket"`
	EventChannel string `koanf:"event_channel"`
}

// HeartConfig holds validator thresholds and client settings.
//
// The three thresholds are the externally overridable policy surface:
// TORSION_MAX, VDR_MIN and COMPLEXITY_THRESHOLD map here directly.
type HeartConfig struct {
	TorsionMax          float64       `koanf:"torsion_max"`
	VDRMin              float64       `koanf:"vdr_min"`
	ComplexityThreshold float64       `koanf:"complexity_threshold"`
	URL                 string        `koanf:"url"`
	RequestTimeout      time.Duration `koanf:"request_timeout"`
	RateLimit           float64       `koanf:"rate_limit"` // validate calls/sec, 0 = unlimited
}

// PlannerConfig holds orchestration policy.
type PlannerConfig struct {
	RefactorRetryLimit int           `koanf:"refactor_retry_limit"`
	ValidatorAttempts  int           `koanf:"validator_attempts"`
	FanoutLimit        int           `koanf:"fanout_limit"`
	MaxDepth           int           `koanf:"max_depth"`
	MaxGoalLength      int           `koanf:"max_goal_length"`
	CancelGrace        time.Duration `koanf:"cancel_grace"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Heart.VDRMin < 0 {
		return fmt.Errorf("heart.vdr_min cannot be negative: %f", c.Heart.VDRMin)
	}
	if c.Heart.ComplexityThreshold < 0 || c.Heart.ComplexityThreshold > 1 {
		return fmt.Errorf("heart.complexity_threshold must be in [0,1]: %f", c.Heart.ComplexityThreshold)
	}
	if c.Planner.RefactorRetryLimit < 0 {
		return errors.New("planner.refactor_retry_limit cannot be negative")
	}
	if c.Planner.ValidatorAttempts < 1 {
		return errors.New("planner.validator_attempts must be at least 1")
	}
	if c.Planner.FanoutLimit < 1 {
		return errors.New("planner.fanout_limit must be at least 1")
	}
	if c.Planner.MaxDepth < 1 {
		return errors.New("planner.max_depth must be at least 1")
	}
	if c.Observability.EnableTracing && c.Observability.ServiceName == "" {
		return errors.New("service name required when tracing is enabled")
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9001
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "sovereignd"
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.NATS.ResultBucket == "" {
		cfg.NATS.ResultBucket = "sovereign_results"
	}
	if cfg.NATS.EventChannel == "" {
		cfg.NATS.EventChannel = "sovereign.events"
	}

	// TorsionMax defaults to 0.0: any positive torsion fails.
	if cfg.Heart.VDRMin == 0 {
		cfg.Heart.VDRMin = 1.0
	}
	if cfg.Heart.ComplexityThreshold == 0 {
		cfg.Heart.ComplexityThreshold = 0.5
	}
	if cfg.Heart.URL == "" {
		cfg.Heart.URL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	if cfg.Heart.RequestTimeout == 0 {
		cfg.Heart.RequestTimeout = 5 * time.Second
	}

	if cfg.Planner.RefactorRetryLimit == 0 {
		cfg.Planner.RefactorRetryLimit = 3
	}
	if cfg.Planner.ValidatorAttempts == 0 {
		cfg.Planner.ValidatorAttempts = 3
	}
	if cfg.Planner.FanoutLimit == 0 {
		cfg.Planner.FanoutLimit = 1 // sequential unless subtasks are provably independent
	}
	if cfg.Planner.MaxDepth == 0 {
		cfg.Planner.MaxDepth = 5
	}
	if cfg.Planner.MaxGoalLength == 0 {
		cfg.Planner.MaxGoalLength = 4096
	}
	if cfg.Planner.CancelGrace == 0 {
		cfg.Planner.CancelGrace = 5 * time.Second
	}
}
