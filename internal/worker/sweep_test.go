package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invitely/invitely/internal/config"
	"github.com/invitely/invitely/internal/export"
	"github.com/invitely/invitely/internal/worker"
)

type stubReconciler struct {
	report export.Report
	err    error
	calls  atomic.Int32
}

func (s *stubReconciler) Reconcile(context.Context) (export.Report, error) {
	s.calls.Add(1)
	return s.report, s.err
}

func TestDefaultConfigs(t *testing.T) {
	pool := worker.DefaultPoolConfig()
	assert.Equal(t, 4, pool.Workers)
	assert.Equal(t, 256, pool.QueueSize)
	assert.Equal(t, 30*time.Second, pool.PollInterval)

	sweep := worker.DefaultSweepConfig()
	assert.Equal(t, 5*time.Minute, sweep.Interval)
}

func TestConfigFromExport(t *testing.T) {
	pool, sweep := worker.ConfigFromExport(config.ExportConfig{
		Workers:       8,
		QueueSize:     16,
		PollInterval:  time.Second,
		SweepInterval: time.Minute,
	})

	assert.Equal(t, 8, pool.Workers)
	assert.Equal(t, 16, pool.QueueSize)
	assert.Equal(t, time.Second, pool.PollInterval)
	assert.Equal(t, time.Minute, sweep.Interval)
}

func TestConfigFromExport_ZeroPollIntervalDisablesPolling(t *testing.T) {
	pool, _ := worker.ConfigFromExport(config.ExportConfig{Workers: 2})

	assert.Equal(t, time.Duration(0), pool.PollInterval)
}

func TestSweepJob_Run_AccumulatesMetrics(t *testing.T) {
	rec := &stubReconciler{report: export.Report{DeletesFinished: 1, StaleFailed: 2, Redispatched: 3, OrphansRemoved: 4}}
	job := worker.NewSweepJob(worker.SweepConfig{Interval: time.Hour}, rec, zerolog.Nop())

	result := job.Run(context.Background())
	require.NoError(t, result.Err)
	job.Run(context.Background())

	m := job.MetricsSnapshot()
	assert.Equal(t, int64(2), m["total_sweeps"])
	assert.Equal(t, int64(0), m["failed_sweeps"])
	assert.Equal(t, int64(2), m["deletes_finished"])
	assert.Equal(t, int64(4), m["stale_failed"])
	assert.Equal(t, int64(6), m["redispatched"])
	assert.Equal(t, int64(8), m["orphans_removed"])
}

func TestSweepJob_Run_RecordsFailure(t *testing.T) {
	rec := &stubReconciler{err: errors.New("repository unavailable")}
	job := worker.NewSweepJob(worker.SweepConfig{}, rec, zerolog.Nop())

	result := job.Run(context.Background())
	assert.Error(t, result.Err)
	assert.Equal(t, int64(1), job.MetricsSnapshot()["failed_sweeps"])
}

func TestSweepJob_Start_RunsImmediatelyAndOnInterval(t *testing.T) {
	rec := &stubReconciler{}
	job := worker.NewSweepJob(worker.SweepConfig{Interval: 10 * time.Millisecond}, rec, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Start(ctx) }()

	assert.Eventually(t, func() bool { return rec.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
