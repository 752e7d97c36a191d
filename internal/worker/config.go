// Package worker runs export jobs in the background: an in-process pool,
// a Pub/Sub dispatcher and receiver, and the periodic sweep.
package worker

import (
	"time"

	"github.com/invitely/invitely/internal/config"
)

// PoolConfig holds configuration for the in-process worker pool.
type PoolConfig struct {
	// Workers is the number of jobs processed concurrently.
	// Default: 4
	Workers int

	// QueueSize bounds the number of dispatched jobs waiting for a worker.
	// Dispatch fails with ErrQueueFull beyond it and the poller picks the job up later.
	// Default: 256
	QueueSize int

	// PollInterval is how often pending jobs are re-read from the repository.
	// Zero disables polling.
	// Default: 30 seconds
	PollInterval time.Duration

	// JobTimeout bounds a single Process call.
	// Default: 5 minutes
	JobTimeout time.Duration
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:      4,
		QueueSize:    256,
		PollInterval: 30 * time.Second,
		JobTimeout:   5 * time.Minute,
	}
}

// SweepConfig holds configuration for the periodic reconcile sweep.
type SweepConfig struct {
	// Interval between sweeps.
	// Default: 5 minutes
	Interval time.Duration

	// Timeout bounds a single sweep.
	// Default: 2 minutes
	Timeout time.Duration
}

// DefaultSweepConfig returns the default sweep configuration.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Interval: 5 * time.Minute,
		Timeout:  2 * time.Minute,
	}
}

// ConfigFromExport derives pool and sweep settings from the application config.
func ConfigFromExport(cfg config.ExportConfig) (PoolConfig, SweepConfig) {
	pool := DefaultPoolConfig()
	if cfg.Workers > 0 {
		pool.Workers = cfg.Workers
	}
	if cfg.QueueSize > 0 {
		pool.QueueSize = cfg.QueueSize
	}
	pool.PollInterval = cfg.PollInterval

	sweep := DefaultSweepConfig()
	if cfg.SweepInterval > 0 {
		sweep.Interval = cfg.SweepInterval
	}
	return pool, sweep
}
