package event

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invitely/invitely/internal/api/models"
	"github.com/invitely/invitely/internal/validation"
)

// Service provides event operations.
type Service struct {
	repo    Repository
	baseURL string
}

// NewService creates a new event service. baseURL prefixes share links.
func NewService(repo Repository, baseURL string) *Service {
	return &Service{repo: repo, baseURL: strings.TrimRight(baseURL, "/")}
}

// Create validates input and stores a draft event for the user.
func (s *Service) Create(ctx context.Context, userID string, input *CreateInput) (*Event, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Venue.Name = strings.TrimSpace(input.Venue.Name)

	if errs := validation.Struct(input); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	date, err := time.Parse(time.DateOnly, input.EventDate)
	if err != nil {
		return nil, &ValidationError{Errors: []models.FieldError{
			{Field: "eventDate", Message: "eventDate must be a valid date", Code: "datetime"},
		}}
	}

	timezone := input.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	now := time.Now().UTC()
	id := "evt_" + uuid.New().String()[:22]

	event := &Event{
		ID:          id,
		UserID:      userID,
		Title:       input.Title,
		Description: input.Description,
		Type:        input.Type,
		Status:      StatusDraft,
		EventDate:   date,
		EventTime:   input.EventTime,
		Timezone:    timezone,
		Venue:       Venue{Name: input.Venue.Name, Address: input.Venue.Address},
		ShareLink:   s.baseURL + "/event/" + id,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// List returns the user's events, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]*Event, error) {
	return s.repo.List(ctx, userID)
}

// Get returns one of the user's events.
func (s *Service) Get(ctx context.Context, userID, eventID string) (*Event, error) {
	return s.repo.GetByUserAndID(ctx, userID, eventID)
}

// Owns reports whether eventID exists and belongs to userID.
func (s *Service) Owns(ctx context.Context, userID, eventID string) (bool, error) {
	_, err := s.repo.GetByUserAndID(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
