package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/invitely/invitely/internal/api/middleware"
	"github.com/invitely/invitely/internal/api/models"
	"github.com/invitely/invitely/internal/api/response"
	"github.com/invitely/invitely/internal/event"
)

// EventHandler handles event endpoints.
type EventHandler struct {
	service *event.Service
	logger  zerolog.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service *event.Service, logger zerolog.Logger) *EventHandler {
	return &EventHandler{service: service, logger: logger}
}

// ListEvents handles GET /api/events.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list events")
		response.InternalError(w, r, "failed to fetch events")
		return
	}

	items := make([]models.Event, 0, len(events))
	for _, e := range events {
		items = append(items, toAPIEvent(e))
	}
	response.JSON(w, r, http.StatusOK, models.EventList{Events: items})
}

// CreateEvent handles POST /api/events.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var input event.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	e, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), &input)
	if err != nil {
		var validationErr *event.ValidationError
		if errors.As(err, &validationErr) {
			response.BadRequest(w, r, "invalid event", validationErr.Errors)
			return
		}
		h.logger.Error().Err(err).Msg("failed to create event")
		response.InternalError(w, r, "failed to create event")
		return
	}

	response.Created(w, r, fmt.Sprintf("/api/events/%s", e.ID), models.EventResponse{
		Message: "Event created successfully",
		Event:   toAPIEvent(e),
	})
}

// GetEvent handles GET /api/events/{eventId}.
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "eventId"))
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			response.NotFound(w, r, "event not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to get event")
		response.InternalError(w, r, "failed to fetch event")
		return
	}
	response.JSON(w, r, http.StatusOK, models.EventResponse{Event: toAPIEvent(e)})
}

func toAPIEvent(e *event.Event) models.Event {
	return models.Event{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Type:        string(e.Type),
		Status:      string(e.Status),
		EventDate:   e.EventDate.Format(time.DateOnly),
		EventTime:   e.EventTime,
		Timezone:    e.Timezone,
		Venue:       models.Venue{Name: e.Venue.Name, Address: e.Venue.Address},
		ShareLink:   e.ShareLink,
		CreatedAt:   models.Timestamp(e.CreatedAt),
		UpdatedAt:   models.Timestamp(e.UpdatedAt),
	}
}
