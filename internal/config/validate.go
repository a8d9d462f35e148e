package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/boardmon/internal/logstore"
)

// Validate checks configuration correctness.
// Zero values mean "use the default" and always pass.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Log.Level != "" {
		if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}

	if cfg.LogStore.Capacity < 0 {
		return fmt.Errorf("logstore.capacity must not be negative, got %d",
			cfg.LogStore.Capacity)
	}
	if cfg.LogStore.MinLevel != "" {
		if _, err := logstore.ParseLevel(cfg.LogStore.MinLevel); err != nil {
			return fmt.Errorf("logstore.min_level: %w", err)
		}
	}

	if cfg.Watchdog.Capacity < 0 {
		return fmt.Errorf("watchdog.capacity must not be negative, got %d",
			cfg.Watchdog.Capacity)
	}
	if cfg.Watchdog.CheckIntervalMs < 0 {
		return fmt.Errorf("watchdog.check_interval_ms must not be negative, got %d",
			cfg.Watchdog.CheckIntervalMs)
	}

	if cfg.Telemetry.IntervalMs < 0 {
		return fmt.Errorf("telemetry.interval_ms must not be negative, got %d",
			cfg.Telemetry.IntervalMs)
	}

	if cfg.Workers.PulseIntervalMs < 0 {
		return fmt.Errorf("workers.pulse_interval_ms must not be negative, got %d",
			cfg.Workers.PulseIntervalMs)
	}

	return nil
}
