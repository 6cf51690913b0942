package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Purpose scopes a challenge. Codes issued for one purpose never satisfy a
// validation for another.
type Purpose string

const (
	PurposeEmail    Purpose = "email"
	PurposeDevice   Purpose = "device"
	PurposeLocation Purpose = "location"
)

// ParsePurpose validates a purpose string from an untrusted source.
func ParsePurpose(s string) (Purpose, error) {
	switch Purpose(s) {
	case PurposeEmail, PurposeDevice, PurposeLocation:
		return Purpose(s), nil
	default:
		return "", fmt.Errorf("invalid challenge purpose: %q", s)
	}
}

// Challenge is a one-time numeric code bound to a (purpose, subject) pair.
// At most one unconsumed challenge exists per pair; issuing a new one
// supersedes all prior unconsumed challenges. Consumed and superseded
// challenges are retained for audit, never hard-deleted.
type Challenge struct {
	ID         uuid.UUID  `json:"id"`
	Purpose    Purpose    `json:"purpose"`
	Subject    string     `json:"subject"`
	Code       string     `json:"code"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Consumed   bool       `json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// Expired reports whether the challenge is past its expiry at the given time.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ChallengeRepository defines the storage contract for challenges.
//
// ConsumeChallenge is the single concurrency-sensitive operation: it must
// match and mark consumed in one conditional write so that exactly one of
// any number of concurrent callers succeeds for a given challenge.
type ChallengeRepository interface {
	// CreateChallenge persists a new challenge.
	CreateChallenge(ctx context.Context, challenge Challenge) error

	// InvalidateChallenges marks all unconsumed challenges for the pair as
	// consumed so they can never validate again.
	InvalidateChallenges(ctx context.Context, purpose Purpose, subject string) error

	// ConsumeChallenge atomically consumes the unconsumed, unexpired
	// challenge matching (purpose, subject, code). Returns true iff this
	// call performed the consumption.
	ConsumeChallenge(ctx context.Context, purpose Purpose, subject, code string, now time.Time) (bool, error)

	// GetActiveChallenge returns the current unconsumed challenge for the
	// pair, or ErrChallengeNotFound.
	GetActiveChallenge(ctx context.Context, purpose Purpose, subject string) (Challenge, error)
}

// DefaultExpiry is the challenge lifetime fixed at issuance.
const DefaultExpiry = 10 * time.Minute

// CodeLength is the number of digits in a generated code.
const CodeLength = 6
