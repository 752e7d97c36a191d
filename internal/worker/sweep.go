package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/invitely/invitely/internal/export"
)

// Reconciler repairs export state left behind by interrupted work.
type Reconciler interface {
	Reconcile(ctx context.Context) (export.Report, error)
}

// SweepJob runs the reconciler periodically and keeps running totals.
type SweepJob struct {
	config     SweepConfig
	reconciler Reconciler
	logger     zerolog.Logger

	metrics *SweepMetrics
}

// SweepMetrics tracks sweep statistics.
type SweepMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalSweeps     int64
	FailedSweeps    int64
	DeletesFinished int64
	StaleFailed     int64
	Redispatched    int64
	OrphansRemoved  int64

	// Timings
	LastSweepAt       time.Time
	LastSweepDuration time.Duration
}

// NewSweepJob creates a sweep job.
func NewSweepJob(cfg SweepConfig, reconciler Reconciler, logger zerolog.Logger) *SweepJob {
	def := DefaultSweepConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	return &SweepJob{
		config:     cfg,
		reconciler: reconciler,
		logger:     logger.With().Str("component", "sweep").Logger(),
		metrics:    &SweepMetrics{},
	}
}

// SweepResult contains the result of one sweep.
type SweepResult struct {
	StartTime time.Time
	Duration  time.Duration
	Report    export.Report
	Err       error
}

// Run executes a single sweep.
func (j *SweepJob) Run(ctx context.Context) *SweepResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	report, err := j.reconciler.Reconcile(ctx)
	result := &SweepResult{
		StartTime: start,
		Duration:  time.Since(start),
		Report:    report,
		Err:       err,
	}

	j.updateMetrics(result)

	event := j.logger.Info()
	if err != nil {
		event = j.logger.Error().Err(err)
	}
	event.
		Dur("duration", result.Duration).
		Int("deletes_finished", report.DeletesFinished).
		Int("stale_failed", report.StaleFailed).
		Int("redispatched", report.Redispatched).
		Int("orphans_removed", report.OrphansRemoved).
		Int("errors", report.Errors).
		Msg("export sweep completed")

	return result
}

// Start runs a sweep immediately and then on every interval until ctx is cancelled.
func (j *SweepJob) Start(ctx context.Context) error {
	j.logger.Info().Dur("interval", j.config.Interval).Msg("starting export sweep")

	j.Run(ctx)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *SweepJob) updateMetrics(result *SweepResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalSweeps++
	if result.Err != nil {
		j.metrics.FailedSweeps++
	}
	j.metrics.DeletesFinished += int64(result.Report.DeletesFinished)
	j.metrics.StaleFailed += int64(result.Report.StaleFailed)
	j.metrics.Redispatched += int64(result.Report.Redispatched)
	j.metrics.OrphansRemoved += int64(result.Report.OrphansRemoved)
	j.metrics.LastSweepAt = result.StartTime
	j.metrics.LastSweepDuration = result.Duration
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *SweepJob) MetricsSnapshot() map[string]interface{} {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	m := j.metrics
	return map[string]interface{}{
		"total_sweeps":        m.TotalSweeps,
		"failed_sweeps":       m.FailedSweeps,
		"deletes_finished":    m.DeletesFinished,
		"stale_failed":        m.StaleFailed,
		"redispatched":        m.Redispatched,
		"orphans_removed":     m.OrphansRemoved,
		"last_sweep_at":       m.LastSweepAt,
		"last_sweep_duration": m.LastSweepDuration.String(),
	}
}
