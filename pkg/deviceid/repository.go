package deviceid

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TrustedDeviceRecord links a subject to a device they chose to trust after
// a successful verification. Consulted on every login; expires by time.
type TrustedDeviceRecord struct {
	ID               uuid.UUID `json:"id"`
	SubjectUserID    string    `json:"subject_user_id"`
	DeviceRawID      string    `json:"device_raw_id"`
	TrustedAt        time.Time `json:"trusted_at"`
	TrustedUntil     time.Time `json:"trusted_until"`
	FirstSeenCity    string    `json:"first_seen_city"`
	FirstSeenCountry string    `json:"first_seen_country"`
}

// Expired reports whether the trust grant has lapsed.
func (r TrustedDeviceRecord) Expired(now time.Time) bool {
	return now.After(r.TrustedUntil)
}

// ErrTrustedDeviceNotFound is returned when no record matches.
var ErrTrustedDeviceNotFound = errors.New("trusted device not found")

// DefaultTrustDays is how long a trust grant lasts.
const DefaultTrustDays = 90

// CalculateExpiryDate returns a UTC time days in the future from now.
func CalculateExpiryDate(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, days)
}

// TrustedDeviceRepository defines storage for trust grants.
type TrustedDeviceRepository interface {
	CreateTrustedDevice(ctx context.Context, record TrustedDeviceRecord) (TrustedDeviceRecord, error)
	FindTrustedDevicesByUser(ctx context.Context, subjectUserID string) ([]TrustedDeviceRecord, error)

	// UpdateDeviceRawID rewrites the stored identifier, used when a legacy
	// identifier is migrated to its hybrid successor.
	UpdateDeviceRawID(ctx context.Context, id uuid.UUID, rawID string) error

	// ExtendTrust pushes the expiry of an existing grant forward.
	ExtendTrust(ctx context.Context, id uuid.UUID, trustedUntil time.Time) error
}
