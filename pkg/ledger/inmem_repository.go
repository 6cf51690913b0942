package ledger

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// InMemEventRepository implements EventRepository using an in-memory slice.
type InMemEventRepository struct {
	events []Event
	mu     sync.Mutex
}

// NewInMemEventRepository creates a new in-memory event repository.
func NewInMemEventRepository() *InMemEventRepository {
	return &InMemEventRepository{}
}

// Append stores the event.
func (r *InMemEventRepository) Append(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	slog.Debug("Event appended", "type", event.Type, "subject", event.SubjectUserID)
	return nil
}

// QueryLatest returns the most recent matching event.
func (r *InMemEventRepository) QueryLatest(ctx context.Context, subjectUserID string, eventType EventType) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *Event
	for i := range r.events {
		e := r.events[i]
		if e.SubjectUserID != subjectUserID || e.Type != eventType {
			continue
		}
		if latest == nil || e.OccurredAt.After(latest.OccurredAt) {
			latest = &r.events[i]
		}
	}
	if latest == nil {
		return Event{}, ErrEventNotFound
	}
	return *latest, nil
}

// QueryAll returns all matching events, newest first.
func (r *InMemEventRepository) QueryAll(ctx context.Context, subjectUserID string, eventType EventType) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []Event
	for _, e := range r.events {
		if e.SubjectUserID == subjectUserID && e.Type == eventType {
			matches = append(matches, e)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].OccurredAt.After(matches[j].OccurredAt)
	})
	return matches, nil
}
