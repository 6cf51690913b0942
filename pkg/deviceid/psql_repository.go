package deviceid

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PsqlTrustedDeviceRepository implements TrustedDeviceRepository backed by
// PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE trusted_devices (
//	    id UUID PRIMARY KEY,
//	    subject_user_id TEXT NOT NULL,
//	    device_raw_id TEXT NOT NULL,
//	    trusted_at TIMESTAMPTZ NOT NULL,
//	    trusted_until TIMESTAMPTZ NOT NULL,
//	    first_seen_city TEXT NOT NULL DEFAULT '',
//	    first_seen_country TEXT NOT NULL DEFAULT ''
//	);
//	CREATE INDEX ON trusted_devices (subject_user_id);
type PsqlTrustedDeviceRepository struct {
	db *pgxpool.Pool
}

// NewPsqlTrustedDeviceRepository creates a PostgreSQL-backed repository.
func NewPsqlTrustedDeviceRepository(db *pgxpool.Pool) *PsqlTrustedDeviceRepository {
	return &PsqlTrustedDeviceRepository{db: db}
}

// CreateTrustedDevice stores a trust grant.
func (r *PsqlTrustedDeviceRepository) CreateTrustedDevice(ctx context.Context, record TrustedDeviceRecord) (TrustedDeviceRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	query := `
		INSERT INTO trusted_devices (id, subject_user_id, device_raw_id, trusted_at, trusted_until, first_seen_city, first_seen_country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		record.ID, record.SubjectUserID, record.DeviceRawID,
		record.TrustedAt, record.TrustedUntil,
		record.FirstSeenCity, record.FirstSeenCountry,
	)
	if err != nil {
		return TrustedDeviceRecord{}, err
	}
	return record, nil
}

// FindTrustedDevicesByUser returns all grants for the subject.
func (r *PsqlTrustedDeviceRepository) FindTrustedDevicesByUser(ctx context.Context, subjectUserID string) ([]TrustedDeviceRecord, error) {
	query := `
		SELECT id, subject_user_id, device_raw_id, trusted_at, trusted_until, first_seen_city, first_seen_country
		FROM trusted_devices
		WHERE subject_user_id = $1
		ORDER BY trusted_at DESC
	`
	rows, err := r.db.Query(ctx, query, subjectUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TrustedDeviceRecord
	for rows.Next() {
		var rec TrustedDeviceRecord
		if err := rows.Scan(&rec.ID, &rec.SubjectUserID, &rec.DeviceRawID,
			&rec.TrustedAt, &rec.TrustedUntil,
			&rec.FirstSeenCity, &rec.FirstSeenCountry); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateDeviceRawID rewrites the stored identifier.
func (r *PsqlTrustedDeviceRepository) UpdateDeviceRawID(ctx context.Context, id uuid.UUID, rawID string) error {
	query := `UPDATE trusted_devices SET device_raw_id = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, rawID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTrustedDeviceNotFound
	}
	return nil
}

// ExtendTrust pushes the expiry forward.
func (r *PsqlTrustedDeviceRepository) ExtendTrust(ctx context.Context, id uuid.UUID, trustedUntil time.Time) error {
	query := `UPDATE trusted_devices SET trusted_until = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, trustedUntil)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTrustedDeviceNotFound
	}
	return nil
}
