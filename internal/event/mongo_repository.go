package event

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository is a MongoDB implementation of Repository.
type MongoRepository struct {
	collection *mongo.Collection
}

// NewMongoRepository creates a repository over the given collection.
func NewMongoRepository(collection *mongo.Collection) *MongoRepository {
	return &MongoRepository{collection: collection}
}

type eventDocument struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description,omitempty"`
	Type        string    `bson:"type"`
	Status      string    `bson:"status"`
	EventDate   time.Time `bson:"event_date"`
	EventTime   string    `bson:"event_time"`
	Timezone    string    `bson:"timezone"`
	Venue       struct {
		Name    string `bson:"name"`
		Address string `bson:"address,omitempty"`
	} `bson:"venue"`
	ShareLink string    `bson:"share_link"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d *eventDocument) toEvent() *Event {
	return &Event{
		ID:          d.ID,
		UserID:      d.UserID,
		Title:       d.Title,
		Description: d.Description,
		Type:        Type(d.Type),
		Status:      Status(d.Status),
		EventDate:   d.EventDate,
		EventTime:   d.EventTime,
		Timezone:    d.Timezone,
		Venue:       Venue{Name: d.Venue.Name, Address: d.Venue.Address},
		ShareLink:   d.ShareLink,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// Create stores a new event.
func (r *MongoRepository) Create(ctx context.Context, event *Event) error {
	doc := eventDocument{
		ID:          event.ID,
		UserID:      event.UserID,
		Title:       event.Title,
		Description: event.Description,
		Type:        string(event.Type),
		Status:      string(event.Status),
		EventDate:   event.EventDate,
		EventTime:   event.EventTime,
		Timezone:    event.Timezone,
		ShareLink:   event.ShareLink,
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
	doc.Venue.Name = event.Venue.Name
	doc.Venue.Address = event.Venue.Address

	_, err := r.collection.InsertOne(ctx, doc)
	return err
}

// GetByUserAndID retrieves an event owned by userID.
func (r *MongoRepository) GetByUserAndID(ctx context.Context, userID, eventID string) (*Event, error) {
	var doc eventDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": eventID, "user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return doc.toEvent(), nil
}

// List returns a user's events, newest first.
func (r *MongoRepository) List(ctx context.Context, userID string) ([]*Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []eventDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	events := make([]*Event, 0, len(docs))
	for i := range docs {
		events = append(events, docs[i].toEvent())
	}
	return events, nil
}

// Ensure MongoRepository implements Repository.
var _ Repository = (*MongoRepository)(nil)
