package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/invitely/invitely/internal/storage"
)

// Progress checkpoints written while a job is processed.
const (
	ProgressStarted   = 10
	ProgressPreparing = 30
	ProgressRendering = 60
	ProgressDone      = 100
)

var (
	// errAborted signals that the record was deleted while the worker held it.
	errAborted = errors.New("export deleted during processing")

	// errSuperseded signals that another worker moved the job on first.
	errSuperseded = errors.New("export taken over by another worker")
)

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Repo    Repository
	Storage storage.Interface
	Locker  Locker
	Metrics *Metrics
	Logger  zerolog.Logger

	// StepDelay is the pause between progress checkpoints.
	StepDelay time.Duration

	// LeaseTTL bounds how long a crashed worker can keep others off a job.
	LeaseTTL time.Duration
}

// Processor drives a pending job to completed or failed.
type Processor struct {
	repo      Repository
	storage   storage.Interface
	locker    Locker
	metrics   *Metrics
	logger    zerolog.Logger
	tracer    trace.Tracer
	stepDelay time.Duration
	leaseTTL  time.Duration
}

// NewProcessor creates a Processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Locker == nil {
		cfg.Locker = NewLocalLocker()
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 2 * time.Minute
	}
	return &Processor{
		repo:      cfg.Repo,
		storage:   cfg.Storage,
		locker:    cfg.Locker,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("component", "export_processor").Logger(),
		tracer:    otel.Tracer(instrumentationName),
		stepDelay: cfg.StepDelay,
		leaseTTL:  cfg.LeaseTTL,
	}
}

// Process runs the job with the given ID.
//
// Job-level failures are recorded on the job and Process returns nil. A
// non-nil error means the outcome could not be recorded and the job should be
// delivered again. Jobs that are missing, already claimed or no longer pending
// are skipped.
func (p *Processor) Process(ctx context.Context, id string) error {
	release, err := p.locker.Acquire(ctx, id, p.leaseTTL)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			p.logger.Debug().Str("export_id", id).Msg("export already claimed")
			return nil
		}
		return fmt.Errorf("acquire lease: %w", err)
	}
	defer release()

	job, err := p.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrExportNotFound) {
			return nil
		}
		return fmt.Errorf("load export: %w", err)
	}
	if job.Status != StatusPending {
		return nil
	}

	ctx, span := p.tracer.Start(ctx, "export.process", trace.WithAttributes(
		attribute.String("export.id", job.ID),
		attribute.String("export.type", string(job.Type)),
		attribute.String("export.format", string(job.Format)),
	))
	defer span.End()

	log := p.logger.With().
		Str("export_id", job.ID).
		Str("type", string(job.Type)).
		Str("format", string(job.Format)).
		Logger()

	job, key, err := p.run(ctx, job)
	switch {
	case err == nil:
		p.metrics.recordCompleted(ctx, job)
		log.Info().Int64("size", job.FileInfo.Size).Msg("export completed")
		return nil

	case errors.Is(err, errAborted):
		if key != "" {
			if delErr := p.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
				log.Warn().Err(delErr).Str("key", key).Msg("failed to remove file of deleted export")
			}
		}
		p.metrics.recordAborted(ctx, job)
		log.Info().Msg("export deleted during processing")
		return nil

	case errors.Is(err, errSuperseded):
		// The other worker owns the job and its file, which shares our key.
		log.Debug().Err(err).Msg("export claimed by another worker")
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	failed, saveErr := p.fail(context.WithoutCancel(ctx), job, err)
	if saveErr != nil {
		if errors.Is(saveErr, errAborted) {
			p.metrics.recordAborted(ctx, job)
			return nil
		}
		if errors.Is(saveErr, errSuperseded) {
			log.Debug().Err(err).Msg("export failure not recorded, job moved on")
			return nil
		}
		log.Error().Err(saveErr).AnErr("cause", err).Msg("failed to record export failure")
		return fmt.Errorf("record failure: %w", saveErr)
	}

	p.metrics.recordFailed(ctx, failed)
	log.Warn().Err(err).Msg("export failed")
	return nil
}

// run performs the lifecycle steps. It returns the latest job, the storage key
// once a file has been written and the first error encountered.
func (p *Processor) run(ctx context.Context, job *Job) (*Job, string, error) {
	job, err := p.advance(ctx, job, StatusPending, func(j *Job) {
		now := time.Now().UTC()
		j.Status = StatusProcessing
		j.Processing.StartedAt = &now
		j.Processing.Progress = ProgressStarted
	})
	if err != nil {
		return job, "", err
	}

	for _, progress := range []int{ProgressPreparing, ProgressRendering} {
		if err := p.sleep(ctx); err != nil {
			return job, "", err
		}
		job, err = p.advance(ctx, job, StatusProcessing, func(j *Job) {
			j.Processing.Progress = progress
		})
		if err != nil {
			return job, "", err
		}
	}

	renderer, err := RendererFor(job.Format)
	if err != nil {
		return job, "", err
	}

	start := time.Now()
	out, err := renderer.Render(ctx, job)
	if err != nil {
		return job, "", err
	}
	p.metrics.recordRender(ctx, job, time.Since(start))

	filename := Filename(job.ID, out.Extension)
	key := StorageKey(filename)
	if _, err := p.storage.Put(ctx, key, bytes.NewReader(out.Data), int64(len(out.Data)), out.MIMEType); err != nil {
		return job, "", fmt.Errorf("store export file: %w", err)
	}

	job, err = p.advance(ctx, job, StatusProcessing, func(j *Job) {
		now := time.Now().UTC()
		j.Status = StatusCompleted
		j.Processing.CompletedAt = &now
		j.Processing.Progress = ProgressDone
		j.Processing.Error = ""
		j.FileInfo = &FileInfo{
			Filename:        filename,
			Size:            int64(len(out.Data)),
			MIMEType:        out.MIMEType,
			URL:             DownloadURL(j.ID),
			StorageProvider: p.storage.Provider(),
		}
	})
	return job, key, err
}

// fail moves the job to failed with cause as its error.
func (p *Processor) fail(ctx context.Context, job *Job, cause error) (*Job, error) {
	from := job.Status
	if from.IsTerminal() {
		return job, nil
	}
	return p.advance(ctx, job, from, func(j *Job) {
		j.Status = StatusFailed
		j.Processing.Error = cause.Error()
		j.FileInfo = nil
	})
}

// advance applies mutate to the latest version of job and saves it. The write
// only happens while the stored job is still in status from. A record that
// disappeared or is being deleted yields errAborted; one another worker moved
// to a different status yields errSuperseded.
func (p *Processor) advance(ctx context.Context, job *Job, from Status, mutate func(*Job)) (*Job, error) {
	const maxAttempts = 3

	current := job
	for attempt := 1; ; attempt++ {
		if current.Status == StatusDeleting {
			return current, errAborted
		}
		if current.Status != from {
			return current, fmt.Errorf("%w: export is %s, expected %s", errSuperseded, current.Status, from)
		}

		next := current.Clone()
		mutate(next)
		if next.Processing.Progress < current.Processing.Progress {
			next.Processing.Progress = current.Processing.Progress
		}
		next.UpdatedAt = time.Now().UTC()

		err := p.repo.Update(ctx, next)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, ErrExportNotFound) {
			return current, errAborted
		}
		if !errors.Is(err, ErrVersionConflict) || attempt == maxAttempts {
			return current, fmt.Errorf("save export: %w", err)
		}

		reloaded, err := p.repo.Get(ctx, current.ID)
		if err != nil {
			if errors.Is(err, ErrExportNotFound) {
				return current, errAborted
			}
			return current, fmt.Errorf("reload export: %w", err)
		}
		current = reloaded
	}
}

func (p *Processor) sleep(ctx context.Context) error {
	if p.stepDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.stepDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("processing interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
