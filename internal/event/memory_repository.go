package event

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu     sync.RWMutex
	events map[string]*Event
}

// NewInMemoryRepository creates a new in-memory event repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		events: make(map[string]*Event),
	}
}

// Create stores a new event.
func (r *InMemoryRepository) Create(_ context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *event
	r.events[event.ID] = &cpy
	return nil
}

// GetByUserAndID retrieves an event owned by userID.
func (r *InMemoryRepository) GetByUserAndID(_ context.Context, userID, eventID string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.events[eventID]
	if !ok || e.UserID != userID {
		return nil, ErrEventNotFound
	}

	cpy := *e
	return &cpy, nil
}

// List returns a user's events, newest first.
func (r *InMemoryRepository) List(_ context.Context, userID string) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]*Event, 0)
	for _, e := range r.events {
		if e.UserID == userID {
			cpy := *e
			events = append(events, &cpy)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	return events, nil
}

// Ensure InMemoryRepository implements Repository.
var _ Repository = (*InMemoryRepository)(nil)
