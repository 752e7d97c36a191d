package export

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and single-process deployments.
type InMemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewInMemoryRepository creates a new in-memory export repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		jobs: make(map[string]*Job),
	}
}

// Create stores a new job.
func (r *InMemoryRepository) Create(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job.Version = 1
	r.jobs[job.ID] = job.Clone()
	return nil
}

// Get retrieves a job by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrExportNotFound
	}
	return j.Clone(), nil
}

// GetByUserAndID retrieves a visible job owned by userID.
func (r *InMemoryRepository) GetByUserAndID(_ context.Context, userID, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok || j.UserID != userID || j.Status == StatusDeleting {
		return nil, ErrExportNotFound
	}
	return j.Clone(), nil
}

// List returns a user's visible jobs, newest first.
func (r *InMemoryRepository) List(_ context.Context, userID string, filter ListFilter) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*Job, 0)
	for _, j := range r.jobs {
		if j.UserID != userID || j.Status == StatusDeleting || !filter.Matches(j) {
			continue
		}
		jobs = append(jobs, j.Clone())
	}

	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].ID > jobs[b].ID
		}
		return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
	})
	return jobs, nil
}

// ListByStatus returns jobs in status updated before the cutoff.
func (r *InMemoryRepository) ListByStatus(_ context.Context, status Status, updatedBefore time.Time) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var jobs []*Job
	for _, j := range r.jobs {
		if j.Status == status && j.UpdatedAt.Before(updatedBefore) {
			jobs = append(jobs, j.Clone())
		}
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].UpdatedAt.Before(jobs[b].UpdatedAt) })
	return jobs, nil
}

// Update performs a compare-and-swap on Version.
func (r *InMemoryRepository) Update(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[job.ID]
	if !ok {
		return ErrExportNotFound
	}
	if stored.Version != job.Version {
		return ErrVersionConflict
	}

	job.Version++
	r.jobs[job.ID] = job.Clone()
	return nil
}

// IncrementDownloads records a download on a completed job.
func (r *InMemoryRepository) IncrementDownloads(_ context.Context, id string, at time.Time) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || j.Status != StatusCompleted {
		return nil, ErrExportNotFound
	}

	j.Downloads.Total++
	t := at
	j.Downloads.LastDownloaded = &t
	j.UpdatedAt = at
	j.Version++
	return j.Clone(), nil
}

// Delete removes a job.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return ErrExportNotFound
	}
	delete(r.jobs, id)
	return nil
}

// Ensure InMemoryRepository implements Repository.
var _ Repository = (*InMemoryRepository)(nil)
