package models

// Event is an event as returned by the API.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	EventDate   string    `json:"eventDate"`
	EventTime   string    `json:"eventTime"`
	Timezone    string    `json:"timezone"`
	Venue       Venue     `json:"venue"`
	ShareLink   string    `json:"shareLink"`
	CreatedAt   Timestamp `json:"createdAt"`
	UpdatedAt   Timestamp `json:"updatedAt"`
}

// Venue is where an event takes place.
type Venue struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// EventResponse wraps a single event.
type EventResponse struct {
	Message string `json:"message,omitempty"`
	Event   Event  `json:"event"`
}

// EventList wraps an event listing.
type EventList struct {
	Events []Event `json:"events"`
}
