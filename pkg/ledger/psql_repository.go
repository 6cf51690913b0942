package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PsqlEventRepository implements EventRepository backed by PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE verification_events (
//	    id UUID PRIMARY KEY,
//	    subject_user_id TEXT NOT NULL,
//	    event_type TEXT NOT NULL,
//	    occurred_at TIMESTAMPTZ NOT NULL,
//	    payload JSONB NOT NULL
//	);
//	CREATE INDEX ON verification_events (subject_user_id, event_type, occurred_at DESC);
type PsqlEventRepository struct {
	db *pgxpool.Pool
}

// NewPsqlEventRepository creates a PostgreSQL-backed event repository.
func NewPsqlEventRepository(db *pgxpool.Pool) *PsqlEventRepository {
	return &PsqlEventRepository{db: db}
}

// Append inserts the event. Events are never updated or deleted.
func (r *PsqlEventRepository) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO verification_events (id, subject_user_id, event_type, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, event.ID, event.SubjectUserID, string(event.Type), event.OccurredAt, event.Payload)
	return err
}

// QueryLatest returns the most recent matching event.
func (r *PsqlEventRepository) QueryLatest(ctx context.Context, subjectUserID string, eventType EventType) (Event, error) {
	query := `
		SELECT id, subject_user_id, event_type, occurred_at, payload
		FROM verification_events
		WHERE subject_user_id = $1 AND event_type = $2
		ORDER BY occurred_at DESC
		LIMIT 1
	`
	var e Event
	var t string
	err := r.db.QueryRow(ctx, query, subjectUserID, string(eventType)).Scan(
		&e.ID, &e.SubjectUserID, &t, &e.OccurredAt, &e.Payload,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, err
	}
	e.Type = EventType(t)
	return e, nil
}

// QueryAll returns all matching events, newest first.
func (r *PsqlEventRepository) QueryAll(ctx context.Context, subjectUserID string, eventType EventType) ([]Event, error) {
	query := `
		SELECT id, subject_user_id, event_type, occurred_at, payload
		FROM verification_events
		WHERE subject_user_id = $1 AND event_type = $2
		ORDER BY occurred_at DESC
	`
	rows, err := r.db.Query(ctx, query, subjectUserID, string(eventType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var t string
		if err := rows.Scan(&e.ID, &e.SubjectUserID, &t, &e.OccurredAt, &e.Payload); err != nil {
			return nil, err
		}
		e.Type = EventType(t)
		events = append(events, e)
	}
	return events, rows.Err()
}
