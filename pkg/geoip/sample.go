package geoip

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// UnknownLocation is the sentinel used when the geolocation provider cannot
// resolve an IP. Risk assessment degrades to "unknown location" rather than
// blocking the flow.
const UnknownLocation = "Unknown"

// Coordinates is an optional precise position, present when the client
// granted browser geolocation.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Sample records where a login or signup came from. It serves both as the
// record of the current attempt and as history input for scoring later
// attempts by the same user.
type Sample struct {
	ID          uuid.UUID    `json:"id"`
	IP          string       `json:"ip"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	City        string       `json:"city"`
	Country     string       `json:"country"`
	ObservedAt  time.Time    `json:"observed_at"`
}

// Unknown reports whether the sample failed to resolve to a location.
func (s Sample) Unknown() bool {
	return s.City == UnknownLocation && s.Country == UnknownLocation
}

// ErrSampleNotFound is returned when no location history exists.
var ErrSampleNotFound = errors.New("location sample not found")

// SampleRepository stores location history per user.
type SampleRepository interface {
	RecordSample(ctx context.Context, subjectUserID string, sample Sample) error

	// FindSamplesByUser returns the user's location history, newest first.
	FindSamplesByUser(ctx context.Context, subjectUserID string) ([]Sample, error)
}
