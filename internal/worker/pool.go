package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/invitely/invitely/internal/export"
)

// ErrQueueFull is returned by Dispatch when the pool's queue is at capacity.
var ErrQueueFull = errors.New("export queue is full")

// Processor runs one export job to completion.
type Processor interface {
	Process(ctx context.Context, id string) error
}

// PendingLister finds jobs that are still waiting to run.
type PendingLister interface {
	ListByStatus(ctx context.Context, status export.Status, updatedBefore time.Time) ([]*export.Job, error)
}

// Pool processes dispatched jobs on a fixed number of goroutines.
type Pool struct {
	config    PoolConfig
	processor Processor
	pending   PendingLister
	logger    zerolog.Logger

	queue chan string

	mu     sync.Mutex
	queued map[string]struct{}
}

// NewPool creates a worker pool. pending may be nil to disable polling.
func NewPool(cfg PoolConfig, processor Processor, pending PendingLister, logger zerolog.Logger) *Pool {
	def := DefaultPoolConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}

	return &Pool{
		config:    cfg,
		processor: processor,
		pending:   pending,
		logger:    logger.With().Str("component", "worker_pool").Logger(),
		queue:     make(chan string, cfg.QueueSize),
		queued:    make(map[string]struct{}),
	}
}

// Dispatch enqueues a job without waiting for it to run. A job already
// waiting in the queue is not enqueued twice.
func (p *Pool) Dispatch(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.queued[id]; ok {
		return nil
	}

	select {
	case p.queue <- id:
		p.queued[id] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// Run starts the workers and the poller and blocks until ctx is cancelled.
// Jobs already being processed run to completion; queued jobs stay pending
// in the repository for the next start.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info().
		Int("workers", p.config.Workers).
		Int("queue_size", p.config.QueueSize).
		Dur("poll_interval", p.config.PollInterval).
		Msg("starting worker pool")

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < p.config.Workers; i++ {
		g.Go(func() error {
			p.work(gctx)
			return nil
		})
	}

	if p.pending != nil && p.config.PollInterval > 0 {
		g.Go(func() error {
			p.poll(gctx)
			return nil
		})
	}

	err := g.Wait()
	p.logger.Info().Msg("worker pool stopped")
	return err
}

func (p *Pool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			p.mu.Lock()
			delete(p.queued, id)
			p.mu.Unlock()

			p.process(ctx, id)
		}
	}
}

// process detaches from ctx so shutdown does not interrupt a job mid-write.
func (p *Pool) process(ctx context.Context, id string) {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.JobTimeout)
	defer cancel()

	if err := p.processor.Process(jobCtx, id); err != nil {
		p.logger.Error().Err(err).Str("export_id", id).Msg("export processing failed")
	}
}

func (p *Pool) poll(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.enqueuePending(ctx)
		}
	}
}

// enqueuePending picks up jobs whose dispatch was lost or rejected.
func (p *Pool) enqueuePending(ctx context.Context) {
	jobs, err := p.pending.ListByStatus(ctx, export.StatusPending, time.Now().Add(-p.config.PollInterval))
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to list pending exports")
		return
	}

	for _, job := range jobs {
		if err := p.Dispatch(ctx, job.ID); err != nil {
			p.logger.Warn().Err(err).Int("pending", len(jobs)).Msg("queue full, deferring pending exports")
			return
		}
	}

	if len(jobs) > 0 {
		p.logger.Debug().Int("count", len(jobs)).Msg("enqueued pending exports")
	}
}

// Ensure Pool implements export.Dispatcher.
var _ export.Dispatcher = (*Pool)(nil)
