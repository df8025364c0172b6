package scheduler

import (
	"time"

	"github.com/smallbiznis/planix/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval       time.Duration
	BatchSize         int
	RecoveryThreshold time.Duration
	ResetInterval     time.Duration
	JobTimeout        time.Duration
	EnabledJobs       []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       time.Minute,
		BatchSize:         100,
		RecoveryThreshold: 15 * time.Minute,
		ResetInterval:     720 * time.Hour,
		JobTimeout:        30 * time.Second,
	}
}

// ProvideConfig derives the scheduler settings from the application config.
func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:       cfg.Scheduler.RunInterval,
		BatchSize:         cfg.Scheduler.BatchSize,
		RecoveryThreshold: cfg.Scheduler.RecoveryThreshold,
		ResetInterval:     cfg.Quota.ResetInterval,
		EnabledJobs:       cfg.Scheduler.EnabledJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = defaults.RecoveryThreshold
	}
	if c.ResetInterval <= 0 {
		c.ResetInterval = defaults.ResetInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
