package config

// Defaults applied by Normalize.
const (
	DefaultBoard           = "shrike-lite"
	DefaultLogLevel        = "info"
	DefaultStoreCapacity   = 64
	DefaultStoreMinLevel   = "DEBUG"
	DefaultWdgCapacity     = 8
	DefaultWdgIntervalMs   = 1000
	DefaultPrompt          = "bmon> "
	DefaultTelemetryMs     = 2000
	DefaultTCPListen       = ":7070"
	DefaultHTTPListen      = ":8765"
	DefaultPulseIntervalMs = 300
)

// Normalize fills every zero field with its default.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Board == "" {
		cfg.Board = DefaultBoard
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.LogStore.Capacity == 0 {
		cfg.LogStore.Capacity = DefaultStoreCapacity
	}
	if cfg.LogStore.MinLevel == "" {
		cfg.LogStore.MinLevel = DefaultStoreMinLevel
	}
	if cfg.Watchdog.Capacity == 0 {
		cfg.Watchdog.Capacity = DefaultWdgCapacity
	}
	if cfg.Watchdog.CheckIntervalMs == 0 {
		cfg.Watchdog.CheckIntervalMs = DefaultWdgIntervalMs
	}
	if cfg.Shell.Prompt == "" {
		cfg.Shell.Prompt = DefaultPrompt
	}
	if cfg.Telemetry.IntervalMs == 0 {
		cfg.Telemetry.IntervalMs = DefaultTelemetryMs
	}
	if cfg.Listen.TCP == "" {
		cfg.Listen.TCP = DefaultTCPListen
	}
	if cfg.Listen.HTTP == "" {
		cfg.Listen.HTTP = DefaultHTTPListen
	}
	if cfg.Workers.PulseIntervalMs == 0 {
		cfg.Workers.PulseIntervalMs = DefaultPulseIntervalMs
	}
}
