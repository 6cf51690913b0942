package otp

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// InMemChallengeRepository implements ChallengeRepository using an in-memory
// slice guarded by a mutex. The mutex makes ConsumeChallenge a single
// conditional update, matching the semantics of the SQL implementation.
type InMemChallengeRepository struct {
	challenges []Challenge
	mu         sync.Mutex
}

// NewInMemChallengeRepository creates a new in-memory challenge repository.
func NewInMemChallengeRepository() *InMemChallengeRepository {
	return &InMemChallengeRepository{}
}

// CreateChallenge persists a new challenge.
func (r *InMemChallengeRepository) CreateChallenge(ctx context.Context, challenge Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.challenges = append(r.challenges, challenge)
	slog.Debug("Challenge created", "purpose", challenge.Purpose, "subject", challenge.Subject)
	return nil
}

// InvalidateChallenges marks all unconsumed challenges for the pair consumed.
func (r *InMemChallengeRepository) InvalidateChallenges(ctx context.Context, purpose Purpose, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	invalidated := 0
	for i := range r.challenges {
		c := &r.challenges[i]
		if c.Purpose == purpose && c.Subject == subject && !c.Consumed {
			c.Consumed = true
			c.ConsumedAt = &now
			invalidated++
		}
	}
	if invalidated > 0 {
		slog.Debug("Challenges invalidated", "purpose", purpose, "subject", subject, "count", invalidated)
	}
	return nil
}

// ConsumeChallenge atomically consumes the matching challenge.
func (r *InMemChallengeRepository) ConsumeChallenge(ctx context.Context, purpose Purpose, subject, code string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code = strings.TrimSpace(code)
	for i := range r.challenges {
		c := &r.challenges[i]
		if c.Purpose != purpose || c.Subject != subject || c.Consumed {
			continue
		}
		if c.Code != code || c.Expired(now) {
			continue
		}
		consumedAt := now.UTC()
		c.Consumed = true
		c.ConsumedAt = &consumedAt
		return true, nil
	}
	return false, nil
}

// GetActiveChallenge returns the current unconsumed challenge.
func (r *InMemChallengeRepository) GetActiveChallenge(ctx context.Context, purpose Purpose, subject string) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.challenges) - 1; i >= 0; i-- {
		c := r.challenges[i]
		if c.Purpose == purpose && c.Subject == subject && !c.Consumed {
			return c, nil
		}
	}
	return Challenge{}, ErrChallengeNotFound
}
