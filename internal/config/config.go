package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads the YAML config at path, applies defaults, and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("concurrency.dynamic_concurrency_enabled", false)
	v.SetDefault("concurrency.max_degree_of_parallelism", 100)
	v.SetDefault("concurrency.min_consecutive_increase_limit", 5)
	v.SetDefault("concurrency.min_consecutive_decrease_limit", 3)
	v.SetDefault("concurrency.min_adjustment_frequency_seconds", 5)
	v.SetDefault("concurrency.failed_adjustment_quiet_window_seconds", 30)
	v.SetDefault("concurrency.adjustment_run_window_seconds", 10)
	v.SetDefault("concurrency.throttle_check_interval_seconds", 1)

	v.SetDefault("health.sample_history_size", 10)
	v.SetDefault("health.sample_interval_ms", 1000)
	v.SetDefault("health.min_sample_count", 5)
	v.SetDefault("health.max_cpu_threshold", 80.0)
	v.SetDefault("health.max_memory_threshold", 0.90)
	v.SetDefault("health.per_core_memory_gib", 3.5)

	v.SetDefault("canary.canary_interval_ms", 100)
	v.SetDefault("canary.canary_failure_threshold", 0.50)

	v.SetDefault("daemon.log_level", "info")
	v.SetDefault("daemon.log_format", "text")
}

// ErrInvalidConfig wraps every validation failure collected by validate, so
// callers can distinguish "file not found"/"bad yaml" from "values rejected"
// with errors.Is.
var ErrInvalidConfig = errors.New("config: validation failed")

func validate(cfg *Config) error {
	var errs []string

	c := cfg.Concurrency
	if c.MaxDegreeOfParallelism <= 0 {
		errs = append(errs, "concurrency.max_degree_of_parallelism must be > 0")
	}
	if c.MinConsecutiveIncreaseLimit <= 0 {
		errs = append(errs, "concurrency.min_consecutive_increase_limit must be > 0")
	}
	if c.MinConsecutiveDecreaseLimit <= 0 {
		errs = append(errs, "concurrency.min_consecutive_decrease_limit must be > 0")
	}
	if c.MinAdjustmentFrequencySeconds <= 0 {
		errs = append(errs, "concurrency.min_adjustment_frequency_seconds must be > 0")
	}
	if c.FailedAdjustmentQuietWindowSec < 0 {
		errs = append(errs, "concurrency.failed_adjustment_quiet_window_seconds must be >= 0")
	}
	if c.AdjustmentRunWindowSeconds <= 0 {
		errs = append(errs, "concurrency.adjustment_run_window_seconds must be > 0")
	}
	if c.ThrottleCheckIntervalSeconds <= 0 {
		errs = append(errs, "concurrency.throttle_check_interval_seconds must be > 0")
	}

	h := cfg.Health
	if h.SampleHistorySize <= 0 {
		errs = append(errs, "health.sample_history_size must be > 0")
	}
	if h.SampleIntervalMs <= 0 {
		errs = append(errs, "health.sample_interval_ms must be > 0")
	}
	if h.MinSampleCount <= 0 || h.MinSampleCount > h.SampleHistorySize {
		errs = append(errs, "health.min_sample_count must be > 0 and <= sample_history_size")
	}
	if h.MaxCPUThreshold <= 0 || h.MaxCPUThreshold > 100 {
		errs = append(errs, "health.max_cpu_threshold must be in (0, 100]")
	}
	if h.MaxMemoryThreshold <= 0 || h.MaxMemoryThreshold > 1 {
		errs = append(errs, "health.max_memory_threshold must be in (0, 1]")
	}
	if h.PerCoreMemoryGiB <= 0 {
		errs = append(errs, "health.per_core_memory_gib must be > 0")
	}

	ca := cfg.Canary
	if ca.IntervalMs <= 0 {
		errs = append(errs, "canary.canary_interval_ms must be > 0")
	}
	if ca.FailureThreshold <= 0 || ca.FailureThreshold > 1 {
		errs = append(errs, "canary.canary_failure_threshold must be in (0, 1]")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Daemon.LogLevel] {
		errs = append(errs, fmt.Sprintf("daemon.log_level must be one of debug|info|warn|error, got %q", cfg.Daemon.LogLevel))
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[cfg.Daemon.LogFormat] {
		errs = append(errs, fmt.Sprintf("daemon.log_format must be text|json, got %q", cfg.Daemon.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
