package export_test

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/invitely/invitely/internal/export"
	"github.com/invitely/invitely/internal/storage"
)

const (
	testUser  = "usr_alice"
	otherUser = "usr_bob"
	testEvent = "evt_wedding"
)

// fakeEvents maps event IDs to their owner.
type fakeEvents map[string]string

func (f fakeEvents) Owns(_ context.Context, userID, eventID string) (bool, error) {
	owner, ok := f[eventID]
	return ok && owner == userID, nil
}

// queue is a Dispatcher that records IDs for the test to process explicitly.
type queue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *queue) Dispatch(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

func (q *queue) take() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := q.ids
	q.ids = nil
	return ids
}

// recordingRepo records every successful update and optionally runs a hook after it.
type recordingRepo struct {
	*export.InMemoryRepository

	mu       sync.Mutex
	updates  []export.Job
	onUpdate func(job *export.Job)
}

func (r *recordingRepo) Update(ctx context.Context, job *export.Job) error {
	if err := r.InMemoryRepository.Update(ctx, job); err != nil {
		return err
	}
	r.mu.Lock()
	r.updates = append(r.updates, *job.Clone())
	hook := r.onUpdate
	r.mu.Unlock()

	if hook != nil {
		hook(job.Clone())
	}
	return nil
}

func (r *recordingRepo) history() []export.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]export.Job(nil), r.updates...)
}

type harness struct {
	repo    *recordingRepo
	store   *storage.LocalStorage
	queue   *queue
	locker  *export.LocalLocker
	proc    *export.Processor
	service *export.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	h := &harness{
		repo:   &recordingRepo{InMemoryRepository: export.NewInMemoryRepository()},
		store:  store,
		queue:  &queue{},
		locker: export.NewLocalLocker(),
	}
	h.proc = export.NewProcessor(export.ProcessorConfig{
		Repo:    h.repo,
		Storage: h.store,
		Locker:  h.locker,
		Logger:  zerolog.New(io.Discard),
	})
	h.service = export.NewService(export.ServiceConfig{
		Repo:       h.repo,
		Events:     fakeEvents{testEvent: testUser},
		Storage:    h.store,
		Dispatcher: h.queue,
		Logger:     zerolog.New(io.Discard),
	})
	return h
}

// drain processes every dispatched job.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	for _, id := range h.queue.take() {
		require.NoError(t, h.proc.Process(context.Background(), id))
	}
}

func (h *harness) submit(t *testing.T, typ export.Type, format export.Format) *export.Job {
	t.Helper()
	job, err := h.service.Submit(context.Background(), testUser, &export.SubmitInput{
		EventID: testEvent,
		Type:    typ,
		Format:  format,
	})
	require.NoError(t, err)
	return job
}
