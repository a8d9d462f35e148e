// Package config defines the daemon's runtime configuration. Loading,
// validation, and normalization are separate steps: Validate never
// mutates, Normalize fills defaults and runs only after Validate.
package config

type Config struct {
	Board     string          `yaml:"board"`
	Log       LogConfig       `yaml:"log"`
	LogStore  LogStoreConfig  `yaml:"logstore"`
	Watchdog  WatchdogConfig  `yaml:"watchdog"`
	Shell     ShellConfig     `yaml:"shell"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Listen    ListenConfig    `yaml:"listen"`
	Workers   WorkersConfig   `yaml:"workers"`
}

// ---- OPERATIONAL LOG (zap) ----

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ---- DIAGNOSTIC LOG STORE ----

type LogStoreConfig struct {
	Capacity int    `yaml:"capacity"`
	MinLevel string `yaml:"min_level"`
}

// ---- WATCHDOG ----

type WatchdogConfig struct {
	Capacity        int `yaml:"capacity"`
	CheckIntervalMs int `yaml:"check_interval_ms"`
}

// ---- SHELL ----

type ShellConfig struct {
	Prompt string `yaml:"prompt"`
}

// ---- TELEMETRY ----

type TelemetryConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// ---- LISTENERS ----

type ListenConfig struct {
	TCP  string `yaml:"tcp"`  // line console listener
	HTTP string `yaml:"http"` // REST/WS/metrics listener
}

// ---- DEMO WORKERS ----

type WorkersConfig struct {
	PulseIntervalMs int  `yaml:"pulse_interval_ms"`
	Flaky           bool `yaml:"flaky"` // register the misbehaving worker
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}
