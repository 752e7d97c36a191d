package export

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/invitely/invitely/internal/storage"
)

// ErrInterrupted is recorded on jobs whose worker stopped before finishing.
var ErrInterrupted = errors.New("export processing was interrupted")

// ReconcilerConfig configures a Reconciler.
type ReconcilerConfig struct {
	Repo       Repository
	Storage    storage.Interface
	Dispatcher Dispatcher
	Locker     Locker
	Logger     zerolog.Logger

	// StaleAfter is how long a job may sit unchanged in pending or processing,
	// and how old an unreferenced file must be, before the reconciler acts.
	StaleAfter time.Duration
	LeaseTTL   time.Duration
}

// Report summarises one reconciliation pass.
type Report struct {
	DeletesFinished int
	StaleFailed     int
	Redispatched    int
	OrphansRemoved  int
	Errors          int
}

// Reconciler repairs state left behind by crashes and interrupted requests.
type Reconciler struct {
	repo       Repository
	storage    storage.Interface
	dispatcher Dispatcher
	locker     Locker
	logger     zerolog.Logger
	staleAfter time.Duration
	leaseTTL   time.Duration
	now        func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.Locker == nil {
		cfg.Locker = NewLocalLocker()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 2 * time.Minute
	}
	return &Reconciler{
		repo:       cfg.Repo,
		storage:    cfg.Storage,
		dispatcher: cfg.Dispatcher,
		locker:     cfg.Locker,
		logger:     cfg.Logger.With().Str("component", "export_reconciler").Logger(),
		staleAfter: cfg.StaleAfter,
		leaseTTL:   cfg.LeaseTTL,
		now:        time.Now,
	}
}

// Reconcile runs one pass:
//   - finishes deletions left in StatusDeleting
//   - fails processing jobs whose worker is gone
//   - re-dispatches pending jobs that were never picked up
//   - removes export files with no job record
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	var report Report
	now := r.now()
	cutoff := now.Add(-r.staleAfter)

	deleting, err := r.repo.ListByStatus(ctx, StatusDeleting, now)
	if err != nil {
		return report, fmt.Errorf("list deleting exports: %w", err)
	}
	for _, job := range deleting {
		if err := purgeJob(ctx, r.repo, r.storage, job); err != nil {
			report.Errors++
			r.logger.Warn().Err(err).Str("export_id", job.ID).Msg("failed to finish export delete")
			continue
		}
		report.DeletesFinished++
	}

	processing, err := r.repo.ListByStatus(ctx, StatusProcessing, cutoff)
	if err != nil {
		return report, fmt.Errorf("list processing exports: %w", err)
	}
	for _, job := range processing {
		ok, err := r.failStale(ctx, job)
		if err != nil {
			report.Errors++
			r.logger.Warn().Err(err).Str("export_id", job.ID).Msg("failed to fail stale export")
			continue
		}
		if ok {
			report.StaleFailed++
		}
	}

	pending, err := r.repo.ListByStatus(ctx, StatusPending, cutoff)
	if err != nil {
		return report, fmt.Errorf("list pending exports: %w", err)
	}
	for _, job := range pending {
		if err := r.dispatcher.Dispatch(ctx, job.ID); err != nil {
			report.Errors++
			r.logger.Warn().Err(err).Str("export_id", job.ID).Msg("failed to re-dispatch export")
			continue
		}
		report.Redispatched++
	}

	removed, err := r.removeOrphans(ctx, cutoff)
	report.OrphansRemoved = removed
	if err != nil {
		return report, err
	}

	if report != (Report{}) {
		r.logger.Info().
			Int("deletes_finished", report.DeletesFinished).
			Int("stale_failed", report.StaleFailed).
			Int("redispatched", report.Redispatched).
			Int("orphans_removed", report.OrphansRemoved).
			Int("errors", report.Errors).
			Msg("export reconciliation finished")
	}
	return report, nil
}

// failStale fails a processing job unless a worker still holds its lease.
func (r *Reconciler) failStale(ctx context.Context, job *Job) (bool, error) {
	release, err := r.locker.Acquire(ctx, job.ID, r.leaseTTL)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			return false, nil
		}
		return false, err
	}
	defer release()

	job.Status = StatusFailed
	job.Processing.Error = ErrInterrupted.Error()
	job.FileInfo = nil
	job.UpdatedAt = r.now().UTC()

	if err := r.repo.Update(ctx, job); err != nil {
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrExportNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Reconciler) removeOrphans(ctx context.Context, olderThan time.Time) (int, error) {
	objects, err := r.storage.List(ctx, StoragePrefix)
	if err != nil {
		return 0, fmt.Errorf("list export files: %w", err)
	}

	removed := 0
	for _, obj := range objects {
		if !obj.LastModified.IsZero() && obj.LastModified.After(olderThan) {
			continue
		}
		id, ok := jobIDFromKey(obj.Key)
		if !ok {
			continue
		}

		_, err := r.repo.Get(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrExportNotFound) {
			return removed, fmt.Errorf("look up export %s: %w", id, err)
		}

		if err := r.storage.Delete(ctx, obj.Key); err != nil {
			r.logger.Warn().Err(err).Str("key", obj.Key).Msg("failed to remove orphaned export file")
			continue
		}
		removed++
	}
	return removed, nil
}

// jobIDFromKey extracts the job ID from "exports/export_<id>.<ext>".
func jobIDFromKey(key string) (string, bool) {
	name := strings.TrimPrefix(key, StoragePrefix)
	if name == key || !strings.HasPrefix(name, "export_") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, "export_"), path.Ext(name))
	return id, id != ""
}
