package export

import (
	"context"
	"time"
)

// Repository persists export jobs.
//
// Writes are optimistic: Update succeeds only when the stored version equals
// job.Version, and increments it. Records in StatusDeleting are hidden from
// GetByUserAndID and List.
type Repository interface {
	// Create stores a new job with Version 1.
	Create(ctx context.Context, job *Job) error

	// Get retrieves a job by ID regardless of owner or status.
	Get(ctx context.Context, id string) (*Job, error)

	// GetByUserAndID returns ErrExportNotFound if the job doesn't exist,
	// belongs to another user or is being deleted.
	GetByUserAndID(ctx context.Context, userID, id string) (*Job, error)

	// List returns a user's jobs matching filter, newest first.
	List(ctx context.Context, userID string, filter ListFilter) ([]*Job, error)

	// ListByStatus returns jobs in status last updated before the cutoff.
	ListByStatus(ctx context.Context, status Status, updatedBefore time.Time) ([]*Job, error)

	// Update writes job if its Version matches the stored one and bumps Version.
	// Returns ErrExportNotFound or ErrVersionConflict.
	Update(ctx context.Context, job *Job) error

	// IncrementDownloads records a download on a completed job and returns the
	// updated record. Returns ErrExportNotFound if no completed job has the ID.
	IncrementDownloads(ctx context.Context, id string, at time.Time) (*Job, error)

	// Delete removes the record. Returns ErrExportNotFound if absent.
	Delete(ctx context.Context, id string) error
}
