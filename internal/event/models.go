// Package event manages the events that exports are rendered for.
package event

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrEventNotFound = errors.New("event not found")
)

// Type is the kind of event.
type Type string

// Event types.
const (
	TypeWedding     Type = "wedding"
	TypeEngagement  Type = "engagement"
	TypeAnniversary Type = "anniversary"
	TypeOther       Type = "other"
)

// Status is the publication state of an event.
type Status string

// Event statuses.
const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Event is an occasion that invitations and other assets are produced for.
type Event struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Type        Type
	Status      Status
	EventDate   time.Time
	EventTime   string
	Timezone    string
	Venue       Venue
	ShareLink   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Venue is where the event takes place.
type Venue struct {
	Name    string
	Address string
}

// CreateInput is the payload for a new event.
type CreateInput struct {
	Title       string     `json:"title"       validate:"required,min=2,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	Type        Type       `json:"type"        validate:"required,oneof=wedding engagement anniversary other"`
	EventDate   string     `json:"eventDate"   validate:"required,datetime=2006-01-02"`
	EventTime   string     `json:"eventTime"   validate:"required,max=32"`
	Timezone    string     `json:"timezone"    validate:"omitempty,timezone"`
	Venue       VenueInput `json:"venue"`
}

// VenueInput is the venue part of CreateInput.
type VenueInput struct {
	Name    string `json:"name"    validate:"required,min=2,max=200"`
	Address string `json:"address" validate:"max=500"`
}
