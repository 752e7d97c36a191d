package event

import "context"

// Repository defines the interface for event persistence.
type Repository interface {
	// Create stores a new event.
	Create(ctx context.Context, event *Event) error

	// GetByUserAndID returns ErrEventNotFound if the event doesn't exist or
	// belongs to another user.
	GetByUserAndID(ctx context.Context, userID, eventID string) (*Event, error)

	// List returns a user's events, newest first.
	List(ctx context.Context, userID string) ([]*Event, error)
}
