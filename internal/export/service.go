package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/invitely/invitely/internal/api/models"
	"github.com/invitely/invitely/internal/storage"
	"github.com/invitely/invitely/internal/validation"
)

// EventOwnership reports whether an event exists and belongs to a user.
type EventOwnership interface {
	Owns(ctx context.Context, userID, eventID string) (bool, error)
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Repo       Repository
	Events     EventOwnership
	Storage    storage.Interface
	Dispatcher Dispatcher
	Metrics    *Metrics
	Logger     zerolog.Logger
}

// Service provides export job operations.
type Service struct {
	repo       Repository
	events     EventOwnership
	storage    storage.Interface
	dispatcher Dispatcher
	metrics    *Metrics
	logger     zerolog.Logger
}

// NewService creates a new export service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:       cfg.Repo,
		events:     cfg.Events,
		storage:    cfg.Storage,
		dispatcher: cfg.Dispatcher,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With().Str("component", "export_service").Logger(),
	}
}

// Submit validates the request, checks event ownership, stores a pending job
// and hands it to the dispatcher. The pending job is returned without waiting
// for processing.
func (s *Service) Submit(ctx context.Context, userID string, input *SubmitInput) (*Job, error) {
	if errs := validation.Struct(input); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	owned, err := s.events.Owns(ctx, userID, input.EventID)
	if err != nil {
		return nil, fmt.Errorf("check event ownership: %w", err)
	}
	if !owned {
		return nil, ErrEventNotFound
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        "exp_" + uuid.New().String()[:22],
		UserID:    userID,
		EventID:   input.EventID,
		Type:      input.Type,
		Format:    input.Format,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create export: %w", err)
	}
	s.metrics.recordSubmitted(ctx, job)

	result := job.Clone()

	// A job that fails to dispatch stays pending and is picked up by the reconciler.
	if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
		s.logger.Error().Err(err).Str("export_id", job.ID).Msg("failed to dispatch export")
	}

	return result, nil
}

// List returns the user's jobs matching filter, newest first.
func (s *Service) List(ctx context.Context, userID string, filter ListFilter) ([]*Job, error) {
	return s.repo.List(ctx, userID, filter)
}

// Get returns one of the user's jobs.
func (s *Service) Get(ctx context.Context, userID, id string) (*Job, error) {
	return s.repo.GetByUserAndID(ctx, userID, id)
}

// Download is an open export file. The caller must close Body.
type Download struct {
	Job      *Job
	Body     io.ReadCloser
	Filename string
	MIMEType string
	Size     int64
}

// Download opens a completed job's file and records the download.
func (s *Service) Download(ctx context.Context, userID, id string) (*Download, error) {
	job, err := s.repo.GetByUserAndID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusCompleted || job.FileInfo == nil {
		return nil, ErrNotReady
	}

	body, err := s.storage.Open(ctx, StorageKey(job.FileInfo.Filename))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("open export file: %w", err)
	}

	updated, err := s.repo.IncrementDownloads(ctx, job.ID, time.Now().UTC())
	if err != nil {
		_ = body.Close()
		return nil, err
	}
	s.metrics.recordDownload(ctx, updated)

	return &Download{
		Job:      updated,
		Body:     body,
		Filename: updated.FileInfo.Filename,
		MIMEType: updated.FileInfo.MIMEType,
		Size:     updated.FileInfo.Size,
	}, nil
}

// Delete removes the job and its file. The record is first marked deleting,
// which hides it from callers and stops any in-flight worker from completing
// it. File and record removal failures after that point are left to the
// reconciler.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	job, err := s.markDeleting(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.purge(ctx, job); err != nil {
		s.logger.Warn().Err(err).Str("export_id", job.ID).Msg("export delete incomplete, reconciler will retry")
	}
	return nil
}

func (s *Service) markDeleting(ctx context.Context, userID, id string) (*Job, error) {
	const maxAttempts = 3

	for attempt := 1; ; attempt++ {
		job, err := s.repo.GetByUserAndID(ctx, userID, id)
		if err != nil {
			return nil, err
		}

		job.Status = StatusDeleting
		job.UpdatedAt = time.Now().UTC()
		err = s.repo.Update(ctx, job)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt == maxAttempts {
			return nil, err
		}
	}
}

// purge removes the file and then the record of a job marked deleting.
func (s *Service) purge(ctx context.Context, job *Job) error {
	return purgeJob(ctx, s.repo, s.storage, job)
}

func purgeJob(ctx context.Context, repo Repository, store storage.Interface, job *Job) error {
	filename := Filename(job.ID, job.Format.Extension())
	if job.FileInfo != nil {
		filename = job.FileInfo.Filename
	}
	if err := store.Delete(ctx, StorageKey(filename)); err != nil {
		return fmt.Errorf("delete export file: %w", err)
	}
	if err := repo.Delete(ctx, job.ID); err != nil && !errors.Is(err, ErrExportNotFound) {
		return fmt.Errorf("delete export record: %w", err)
	}
	return nil
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
