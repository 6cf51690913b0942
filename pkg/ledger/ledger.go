package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType tags the payload variant carried by an Event.
type EventType string

const (
	EventCredentialsVerified  EventType = "credentials_verified"
	EventSignupCompleted      EventType = "signup_completed"
	EventLoginCompleted       EventType = "login_completed"
	EventDeviceVerification   EventType = "device_verification"
	EventLocationVerification EventType = "location_verification"
)

// ErrEventNotFound is returned when no event matches a query.
var ErrEventNotFound = errors.New("event not found")

// Event is the immutable envelope appended to the ledger. Verification state
// is reconstructed from the latest events for a subject, never held in
// server memory.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	SubjectUserID string          `json:"subject_user_id"`
	Type          EventType       `json:"type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEvent builds an envelope around a payload. Marshal failure is returned
// rather than panicking so callers can degrade.
func NewEvent(subjectUserID string, eventType EventType, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            uuid.New(),
		SubjectUserID: subjectUserID,
		Type:          eventType,
		OccurredAt:    time.Now().UTC(),
		Payload:       raw,
	}, nil
}

// Decode unmarshals the payload into out. Unknown or corrupt payloads are
// reported as an error; callers fall back to their unknown sentinels rather
// than failing the flow.
func (e Event) Decode(out interface{}) error {
	return json.Unmarshal(e.Payload, out)
}

// EventRepository is the append-only store behind the verification engine.
// Reads may be eventually consistent; appends are durable.
type EventRepository interface {
	Append(ctx context.Context, event Event) error

	// QueryLatest returns the most recent event of the given type for the
	// subject, or ErrEventNotFound.
	QueryLatest(ctx context.Context, subjectUserID string, eventType EventType) (Event, error)

	// QueryAll returns all events of the given type for the subject, newest
	// first.
	QueryAll(ctx context.Context, subjectUserID string, eventType EventType) ([]Event, error)
}
