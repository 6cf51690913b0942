package geoip

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// InMemSampleRepository implements SampleRepository using an in-memory map.
type InMemSampleRepository struct {
	samples map[string][]Sample
	mu      sync.Mutex
}

// NewInMemSampleRepository creates a new in-memory sample repository.
func NewInMemSampleRepository() *InMemSampleRepository {
	return &InMemSampleRepository{
		samples: make(map[string][]Sample),
	}
}

// RecordSample appends a sample to the user's history.
func (r *InMemSampleRepository) RecordSample(ctx context.Context, subjectUserID string, sample Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[subjectUserID] = append(r.samples[subjectUserID], sample)
	slog.Debug("Location sample recorded", "subject", subjectUserID, "city", sample.City, "country", sample.Country)
	return nil
}

// FindSamplesByUser returns the user's history, newest first.
func (r *InMemSampleRepository) FindSamplesByUser(ctx context.Context, subjectUserID string) ([]Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.samples[subjectUserID]
	samples := make([]Sample, len(stored))
	copy(samples, stored)
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].ObservedAt.After(samples[j].ObservedAt)
	})
	return samples, nil
}
