package export_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invitely/invitely/internal/export"
)

func newReconciler(h *harness) *export.Reconciler {
	return export.NewReconciler(export.ReconcilerConfig{
		Repo:       h.repo,
		Storage:    h.store,
		Dispatcher: h.queue,
		Locker:     h.locker,
		Logger:     zerolog.New(io.Discard),
		StaleAfter: time.Nanosecond,
	})
}

func TestReconcile_FinishesInterruptedDeletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job := h.submit(t, export.TypeInvitation, export.FormatPDF)
	h.drain(t)

	stuck, err := h.repo.Get(ctx, job.ID)
	require.NoError(t, err)
	stuck.Status = export.StatusDeleting
	require.NoError(t, h.repo.Update(ctx, stuck))

	report, err := newReconciler(h).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DeletesFinished)

	_, err = h.repo.Get(ctx, job.ID)
	assert.ErrorIs(t, err, export.ErrExportNotFound)

	objects, err := h.store.List(ctx, export.StoragePrefix)
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestReconcile_FailsStaleProcessingJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)

	require.NoError(t, h.repo.Create(ctx, newJob("exp_stale", testUser, export.StatusProcessing, old)))
	require.NoError(t, h.repo.Create(ctx, newJob("exp_busy", testUser, export.StatusProcessing, old)))

	release, err := h.locker.Acquire(ctx, "exp_busy", time.Minute)
	require.NoError(t, err)
	defer release()

	report, err := newReconciler(h).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.StaleFailed)

	stale, err := h.repo.Get(ctx, "exp_stale")
	require.NoError(t, err)
	assert.Equal(t, export.StatusFailed, stale.Status)
	assert.Equal(t, export.ErrInterrupted.Error(), stale.Processing.Error)

	busy, err := h.repo.Get(ctx, "exp_busy")
	require.NoError(t, err)
	assert.Equal(t, export.StatusProcessing, busy.Status, "leased job is left to its worker")
}

func TestReconcile_RedispatchesStalePendingJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.repo.Create(ctx, newJob("exp_lost", testUser, export.StatusPending, time.Now().Add(-time.Hour))))

	report, err := newReconciler(h).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Redispatched)
	assert.Equal(t, []string{"exp_lost"}, h.queue.take())
}

func TestReconcile_RemovesOrphanedFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job := h.submit(t, export.TypeInvitation, export.FormatPDF)
	h.drain(t)

	_, err := h.store.Put(ctx, export.StorageKey("export_exp_gone.pdf"), strings.NewReader("%PDF"), 4, "application/pdf")
	require.NoError(t, err)
	_, err = h.store.Put(ctx, export.StorageKey("notes.txt"), strings.NewReader("keep"), 4, "text/plain")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	report, err := newReconciler(h).Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrphansRemoved)

	objects, err := h.store.List(ctx, export.StoragePrefix)
	require.NoError(t, err)

	var keys []string
	for _, o := range objects {
		keys = append(keys, o.Key)
	}
	assert.ElementsMatch(t, []string{
		export.StorageKey(export.Filename(job.ID, "pdf")),
		export.StorageKey("notes.txt"),
	}, keys)
}
