package event_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invitely/invitely/internal/event"
)

func validInput() *event.CreateInput {
	return &event.CreateInput{
		Title:     "  Sam & Alex  ",
		Type:      event.TypeWedding,
		EventDate: "2027-06-12",
		EventTime: "15:30",
		Venue:     event.VenueInput{Name: "Old Mill", Address: "1 River Road"},
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc := event.NewService(event.NewInMemoryRepository(), "https://invitely.test/")

	e, err := svc.Create(ctx, "usr_alice", validInput())
	require.NoError(t, err)

	assert.Regexp(t, `^evt_[0-9a-f-]{22}$`, e.ID)
	assert.Equal(t, "Sam & Alex", e.Title)
	assert.Equal(t, event.StatusDraft, e.Status)
	assert.Equal(t, "UTC", e.Timezone)
	assert.Equal(t, time.Date(2027, 6, 12, 0, 0, 0, 0, time.UTC), e.EventDate)
	assert.Equal(t, "https://invitely.test/event/"+e.ID, e.ShareLink)

	got, err := svc.Get(ctx, "usr_alice", e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Title, got.Title)
}

func TestService_Create_Validation(t *testing.T) {
	svc := event.NewService(event.NewInMemoryRepository(), "")

	tests := []struct {
		name   string
		mutate func(in *event.CreateInput)
		field  string
	}{
		{"missing title", func(in *event.CreateInput) { in.Title = "  " }, "title"},
		{"bad type", func(in *event.CreateInput) { in.Type = "birthday" }, "type"},
		{"bad date", func(in *event.CreateInput) { in.EventDate = "12/06/2027" }, "eventDate"},
		{"missing venue", func(in *event.CreateInput) { in.Venue.Name = "" }, "venue.name"},
		{"bad timezone", func(in *event.CreateInput) { in.Timezone = "Mars/Olympus" }, "timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(in)

			_, err := svc.Create(context.Background(), "usr_alice", in)

			var verr *event.ValidationError
			require.ErrorAs(t, err, &verr)
			require.NotEmpty(t, verr.Errors)
			assert.Equal(t, tt.field, verr.Errors[0].Field)
		})
	}
}

func TestService_Owns(t *testing.T) {
	ctx := context.Background()
	svc := event.NewService(event.NewInMemoryRepository(), "")

	e, err := svc.Create(ctx, "usr_alice", validInput())
	require.NoError(t, err)

	owns, err := svc.Owns(ctx, "usr_alice", e.ID)
	require.NoError(t, err)
	assert.True(t, owns)

	owns, err = svc.Owns(ctx, "usr_bob", e.ID)
	require.NoError(t, err)
	assert.False(t, owns)

	owns, err = svc.Owns(ctx, "usr_alice", "evt_missing")
	require.NoError(t, err)
	assert.False(t, owns)
}

func TestService_List_IsScopedToUser(t *testing.T) {
	ctx := context.Background()
	svc := event.NewService(event.NewInMemoryRepository(), "")

	_, err := svc.Create(ctx, "usr_alice", validInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, "usr_bob", validInput())
	require.NoError(t, err)

	events, err := svc.List(ctx, "usr_alice")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "usr_alice", events[0].UserID)

	_, err = svc.Get(ctx, "usr_bob", events[0].ID)
	assert.ErrorIs(t, err, event.ErrEventNotFound)
}
