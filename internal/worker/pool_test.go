package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invitely/invitely/internal/export"
	"github.com/invitely/invitely/internal/worker"
)

// recordingProcessor records processed IDs and optionally blocks until released.
type recordingProcessor struct {
	mu    sync.Mutex
	ids   []string
	ctxs  []context.Context
	gate  chan struct{}
	calls chan string
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{calls: make(chan string, 64)}
}

func (p *recordingProcessor) Process(ctx context.Context, id string) error {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	p.ids = append(p.ids, id)
	p.ctxs = append(p.ctxs, ctx)
	p.mu.Unlock()
	select {
	case p.calls <- id:
	default:
	}
	return nil
}

func (p *recordingProcessor) processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for processing")
		return ""
	}
}

func TestPool_ProcessesDispatchedJobs(t *testing.T) {
	proc := newRecordingProcessor()
	pool := worker.NewPool(worker.PoolConfig{Workers: 2, QueueSize: 4}, proc, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	require.NoError(t, pool.Dispatch(ctx, "exp_1"))
	require.NoError(t, pool.Dispatch(ctx, "exp_2"))

	got := []string{waitFor(t, proc.calls), waitFor(t, proc.calls)}
	assert.ElementsMatch(t, []string{"exp_1", "exp_2"}, got)

	cancel()
	require.NoError(t, <-done)
}

func TestPool_DispatchQueueFull(t *testing.T) {
	proc := newRecordingProcessor()
	pool := worker.NewPool(worker.PoolConfig{Workers: 1, QueueSize: 1}, proc, nil, zerolog.Nop())

	require.NoError(t, pool.Dispatch(context.Background(), "exp_1"))
	require.NoError(t, pool.Dispatch(context.Background(), "exp_1"), "a queued job is not enqueued twice")
	assert.ErrorIs(t, pool.Dispatch(context.Background(), "exp_2"), worker.ErrQueueFull)
}

func TestPool_InFlightJobSurvivesShutdown(t *testing.T) {
	proc := newRecordingProcessor()
	proc.gate = make(chan struct{})
	pool := worker.NewPool(worker.PoolConfig{Workers: 1, QueueSize: 1}, proc, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	require.NoError(t, pool.Dispatch(ctx, "exp_1"))
	// Give the worker time to pick the job up before shutting down.
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(proc.gate)

	assert.Equal(t, "exp_1", waitFor(t, proc.calls))
	require.NoError(t, <-done)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.NoError(t, proc.ctxs[0].Err(), "processing context is detached from shutdown")
}

type pendingStub struct {
	jobs []*export.Job
}

func (s pendingStub) ListByStatus(_ context.Context, status export.Status, _ time.Time) ([]*export.Job, error) {
	if status != export.StatusPending {
		return nil, nil
	}
	return s.jobs, nil
}

func TestPool_PollsPendingJobs(t *testing.T) {
	proc := newRecordingProcessor()
	pending := pendingStub{jobs: []*export.Job{{ID: "exp_lost", Status: export.StatusPending}}}
	pool := worker.NewPool(worker.PoolConfig{
		Workers:      1,
		QueueSize:    4,
		PollInterval: 10 * time.Millisecond,
	}, proc, pending, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pool.Run(ctx) }()

	assert.Equal(t, "exp_lost", waitFor(t, proc.calls))
	assert.Contains(t, proc.processed(), "exp_lost")
}
