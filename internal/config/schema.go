package config

// Config is the root configuration structure for every tunable this module
// exposes, loaded from YAML.
type Config struct {
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	Health      HealthConfig      `mapstructure:"health"`
	Canary      CanaryConfig      `mapstructure:"canary"`
	Daemon      DaemonConfig      `mapstructure:"daemon"`
}

// ConcurrencyConfig holds the per-function concurrency tunables.
type ConcurrencyConfig struct {
	Enabled                        bool    `mapstructure:"dynamic_concurrency_enabled"`
	MaxDegreeOfParallelism         int     `mapstructure:"max_degree_of_parallelism"`
	MinConsecutiveIncreaseLimit    int     `mapstructure:"min_consecutive_increase_limit"`
	MinConsecutiveDecreaseLimit    int     `mapstructure:"min_consecutive_decrease_limit"`
	MinAdjustmentFrequencySeconds  int     `mapstructure:"min_adjustment_frequency_seconds"`
	FailedAdjustmentQuietWindowSec int     `mapstructure:"failed_adjustment_quiet_window_seconds"`
	AdjustmentRunWindowSeconds     int     `mapstructure:"adjustment_run_window_seconds"`
	ThrottleCheckIntervalSeconds   int     `mapstructure:"throttle_check_interval_seconds"`
}

// HealthConfig mirrors the sampling and threshold tunables consumed by the
// process monitor and host health monitor.
type HealthConfig struct {
	SampleHistorySize int     `mapstructure:"sample_history_size"`
	SampleIntervalMs  int     `mapstructure:"sample_interval_ms"`
	MinSampleCount    int     `mapstructure:"min_sample_count"`
	MaxCPUThreshold   float64 `mapstructure:"max_cpu_threshold"`
	MaxMemoryThreshold float64 `mapstructure:"max_memory_threshold"`
	PerCoreMemoryGiB  float64 `mapstructure:"per_core_memory_gib"`
}

// CanaryConfig mirrors the thread-starvation canary's own tunables.
type CanaryConfig struct {
	IntervalMs        int     `mapstructure:"canary_interval_ms"`
	FailureThreshold  float64 `mapstructure:"canary_failure_threshold"`
}

// DaemonConfig holds ambient process settings.
type DaemonConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}
