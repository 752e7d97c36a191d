package event

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL event repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectEventColumns = `
	SELECT
		id, user_id, title, description, type, status,
		event_date, event_time, timezone,
		venue_name, venue_address, share_link,
		created_at, updated_at
	FROM events
`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID, &e.UserID, &e.Title, &e.Description, &e.Type, &e.Status,
		&e.EventDate, &e.EventTime, &e.Timezone,
		&e.Venue.Name, &e.Venue.Address, &e.ShareLink,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create stores a new event.
func (r *PostgresRepository) Create(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (
			id, user_id, title, description, type, status,
			event_date, event_time, timezone,
			venue_name, venue_address, share_link,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.pool.Exec(ctx, query,
		event.ID, event.UserID, event.Title, event.Description, event.Type, event.Status,
		event.EventDate, event.EventTime, event.Timezone,
		event.Venue.Name, event.Venue.Address, event.ShareLink,
		event.CreatedAt, event.UpdatedAt,
	)
	return err
}

// GetByUserAndID retrieves an event owned by userID.
func (r *PostgresRepository) GetByUserAndID(ctx context.Context, userID, eventID string) (*Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx, selectEventColumns+` WHERE id = $1 AND user_id = $2`, eventID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return e, nil
}

// List returns a user's events, newest first.
func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*Event, error) {
	rows, err := r.pool.Query(ctx, selectEventColumns+` WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Ensure PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)
