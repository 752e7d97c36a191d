package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL export repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectJobColumns = `
	SELECT
		id, user_id, event_id, type, format, status,
		started_at, completed_at, progress, error,
		file_filename, file_size, file_mime_type, file_url, file_storage,
		downloads_total, downloads_last,
		version, created_at, updated_at
	FROM exports
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j        Job
		errMsg   *string
		filename *string
		size     *int64
		mimeType *string
		url      *string
		provider *string
	)

	err := row.Scan(
		&j.ID, &j.UserID, &j.EventID, &j.Type, &j.Format, &j.Status,
		&j.Processing.StartedAt, &j.Processing.CompletedAt, &j.Processing.Progress, &errMsg,
		&filename, &size, &mimeType, &url, &provider,
		&j.Downloads.Total, &j.Downloads.LastDownloaded,
		&j.Version, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if errMsg != nil {
		j.Processing.Error = *errMsg
	}
	if filename != nil {
		j.FileInfo = &FileInfo{Filename: *filename}
		if size != nil {
			j.FileInfo.Size = *size
		}
		if mimeType != nil {
			j.FileInfo.MIMEType = *mimeType
		}
		if url != nil {
			j.FileInfo.URL = *url
		}
		if provider != nil {
			j.FileInfo.StorageProvider = *provider
		}
	}
	return &j, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*Job, error) {
	j, err := scanJob(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExportNotFound
		}
		return nil, err
	}
	return j, nil
}

func (r *PostgresRepository) queryMany(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]*Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Create stores a new job.
func (r *PostgresRepository) Create(ctx context.Context, job *Job) error {
	job.Version = 1
	query := `
		INSERT INTO exports (
			id, user_id, event_id, type, format, status,
			progress, downloads_total, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.EventID, job.Type, job.Format, job.Status,
		job.Processing.Progress, job.Downloads.Total, job.Version, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

// Get retrieves a job by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Job, error) {
	return r.queryOne(ctx, selectJobColumns+` WHERE id = $1`, id)
}

// GetByUserAndID retrieves a visible job owned by userID.
func (r *PostgresRepository) GetByUserAndID(ctx context.Context, userID, id string) (*Job, error) {
	return r.queryOne(ctx, selectJobColumns+` WHERE id = $1 AND user_id = $2 AND status <> $3`,
		id, userID, StatusDeleting)
}

// List returns a user's visible jobs, newest first.
func (r *PostgresRepository) List(ctx context.Context, userID string, filter ListFilter) ([]*Job, error) {
	conds := []string{"user_id = $1", "status <> $2"}
	args := []any{userID, StatusDeleting}

	if filter.EventID != "" {
		args = append(args, filter.EventID)
		conds = append(conds, fmt.Sprintf("event_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := selectJobColumns + " WHERE " + strings.Join(conds, " AND ") + " ORDER BY created_at DESC, id DESC"
	return r.queryMany(ctx, query, args...)
}

// ListByStatus returns jobs in status updated before the cutoff.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status Status, updatedBefore time.Time) ([]*Job, error) {
	return r.queryMany(ctx, selectJobColumns+` WHERE status = $1 AND updated_at < $2 ORDER BY updated_at`,
		status, updatedBefore)
}

// Update performs a compare-and-swap on version.
func (r *PostgresRepository) Update(ctx context.Context, job *Job) error {
	var (
		errMsg                            *string
		filename, mimeType, url, provider *string
		size                              *int64
	)
	if job.Processing.Error != "" {
		errMsg = &job.Processing.Error
	}
	if fi := job.FileInfo; fi != nil {
		filename, mimeType, url, provider = &fi.Filename, &fi.MIMEType, &fi.URL, &fi.StorageProvider
		size = &fi.Size
	}

	query := `
		UPDATE exports SET
			status = $3,
			started_at = $4,
			completed_at = $5,
			progress = $6,
			error = $7,
			file_filename = $8,
			file_size = $9,
			file_mime_type = $10,
			file_url = $11,
			file_storage = $12,
			downloads_total = $13,
			downloads_last = $14,
			updated_at = $15,
			version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := r.pool.Exec(ctx, query,
		job.ID, job.Version,
		job.Status, job.Processing.StartedAt, job.Processing.CompletedAt, job.Processing.Progress, errMsg,
		filename, size, mimeType, url, provider,
		job.Downloads.Total, job.Downloads.LastDownloaded,
		job.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM exports WHERE id = $1)`, job.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrExportNotFound
		}
		return ErrVersionConflict
	}

	job.Version++
	return nil
}

// IncrementDownloads records a download on a completed job.
func (r *PostgresRepository) IncrementDownloads(ctx context.Context, id string, at time.Time) (*Job, error) {
	query := `
		UPDATE exports SET
			downloads_total = downloads_total + 1,
			downloads_last = $2,
			updated_at = $2,
			version = version + 1
		WHERE id = $1 AND status = $3
		RETURNING id
	`
	var updated string
	if err := r.pool.QueryRow(ctx, query, id, at, StatusCompleted).Scan(&updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExportNotFound
		}
		return nil, err
	}
	return r.Get(ctx, updated)
}

// Delete removes a job.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM exports WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrExportNotFound
	}
	return nil
}

// Ensure PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)
