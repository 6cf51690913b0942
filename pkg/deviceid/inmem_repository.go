package deviceid

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemTrustedDeviceRepository implements TrustedDeviceRepository using an
// in-memory map.
type InMemTrustedDeviceRepository struct {
	records map[uuid.UUID]TrustedDeviceRecord
	mu      sync.Mutex
}

// NewInMemTrustedDeviceRepository creates a new in-memory repository.
func NewInMemTrustedDeviceRepository() *InMemTrustedDeviceRepository {
	return &InMemTrustedDeviceRepository{
		records: make(map[uuid.UUID]TrustedDeviceRecord),
	}
}

// CreateTrustedDevice stores a trust grant.
func (r *InMemTrustedDeviceRepository) CreateTrustedDevice(ctx context.Context, record TrustedDeviceRecord) (TrustedDeviceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	r.records[record.ID] = record
	slog.Debug("Trusted device created", "subject", record.SubjectUserID, "trustedUntil", record.TrustedUntil.Format(time.RFC3339))
	return record, nil
}

// FindTrustedDevicesByUser returns all grants for the subject, including
// expired ones; callers filter by expiry.
func (r *InMemTrustedDeviceRepository) FindTrustedDevicesByUser(ctx context.Context, subjectUserID string) ([]TrustedDeviceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []TrustedDeviceRecord
	for _, rec := range r.records {
		if rec.SubjectUserID == subjectUserID {
			records = append(records, rec)
		}
	}
	return records, nil
}

// UpdateDeviceRawID rewrites the stored identifier.
func (r *InMemTrustedDeviceRepository) UpdateDeviceRawID(ctx context.Context, id uuid.UUID, rawID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[id]
	if !exists {
		return ErrTrustedDeviceNotFound
	}
	rec.DeviceRawID = rawID
	r.records[id] = rec
	slog.Debug("Trusted device identifier updated", "id", id)
	return nil
}

// ExtendTrust pushes the expiry forward.
func (r *InMemTrustedDeviceRepository) ExtendTrust(ctx context.Context, id uuid.UUID, trustedUntil time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[id]
	if !exists {
		return ErrTrustedDeviceNotFound
	}
	rec.TrustedUntil = trustedUntil
	r.records[id] = rec
	return nil
}
