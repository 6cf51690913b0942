package geoip

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PsqlSampleRepository implements SampleRepository backed by PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE location_samples (
//	    id UUID PRIMARY KEY,
//	    subject_user_id TEXT NOT NULL,
//	    ip TEXT NOT NULL,
//	    latitude DOUBLE PRECISION,
//	    longitude DOUBLE PRECISION,
//	    city TEXT NOT NULL,
//	    country TEXT NOT NULL,
//	    observed_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX ON location_samples (subject_user_id, observed_at DESC);
type PsqlSampleRepository struct {
	db *pgxpool.Pool
}

// NewPsqlSampleRepository creates a PostgreSQL-backed sample repository.
func NewPsqlSampleRepository(db *pgxpool.Pool) *PsqlSampleRepository {
	return &PsqlSampleRepository{db: db}
}

// RecordSample appends a sample to the user's history.
func (r *PsqlSampleRepository) RecordSample(ctx context.Context, subjectUserID string, sample Sample) error {
	query := `
		INSERT INTO location_samples (id, subject_user_id, ip, latitude, longitude, city, country, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var lat, lon *float64
	if sample.Coordinates != nil {
		lat = &sample.Coordinates.Latitude
		lon = &sample.Coordinates.Longitude
	}
	_, err := r.db.Exec(ctx, query,
		sample.ID, subjectUserID, sample.IP, lat, lon,
		sample.City, sample.Country, sample.ObservedAt,
	)
	return err
}

// FindSamplesByUser returns the user's history, newest first.
func (r *PsqlSampleRepository) FindSamplesByUser(ctx context.Context, subjectUserID string) ([]Sample, error) {
	query := `
		SELECT id, ip, latitude, longitude, city, country, observed_at
		FROM location_samples
		WHERE subject_user_id = $1
		ORDER BY observed_at DESC
	`
	rows, err := r.db.Query(ctx, query, subjectUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var lat, lon *float64
		if err := rows.Scan(&s.ID, &s.IP, &lat, &lon, &s.City, &s.Country, &s.ObservedAt); err != nil {
			return nil, err
		}
		if lat != nil && lon != nil {
			s.Coordinates = &Coordinates{Latitude: *lat, Longitude: *lon}
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
