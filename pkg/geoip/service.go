package geoip

import (
	"context"
	"fmt"
	"log/slog"
)

// Assessment is the result of evaluating the current attempt's location.
type Assessment struct {
	Sample               Sample `json:"sample"`
	RiskScore            int    `json:"risk_score"`
	VerificationRequired bool   `json:"verification_required"`

	// NearSignupLocation is the secondary proximity check, only meaningful
	// when both the current attempt and the signup carried coordinates.
	NearSignupLocation *bool `json:"near_signup_location,omitempty"`
}

// Service resolves the attempt location and scores it against history.
type Service struct {
	resolver Resolver
	repo     SampleRepository
	denylist []string
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithDenylist replaces the default high-risk country list.
func WithDenylist(denylist []string) ServiceOption {
	return func(s *Service) {
		s.denylist = denylist
	}
}

// NewService creates a location risk service.
func NewService(resolver Resolver, repo SampleRepository, opts ...ServiceOption) *Service {
	service := &Service{
		resolver: resolver,
		repo:     repo,
		denylist: DefaultDenylist,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Resolve maps the IP through the provider, attaching any client-granted
// coordinates. Provider failure degrades to an unknown sample.
func (s *Service) Resolve(ctx context.Context, ip string, coords *Coordinates) Sample {
	sample := s.resolver.Resolve(ctx, ip)
	if coords != nil {
		// Browser geolocation is more precise than IP lookup; prefer it.
		sample.Coordinates = coords
	}
	return sample
}

// Assess scores the current sample against the subject's history. The
// proximity check against the signup coordinates runs only when both sides
// carry coordinates; the engine never demands both signals.
func (s *Service) Assess(ctx context.Context, subjectUserID string, current Sample) (Assessment, error) {
	history, err := s.repo.FindSamplesByUser(ctx, subjectUserID)
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to load location history: %w", err)
	}

	score := ScoreRisk(current, history, s.denylist)
	assessment := Assessment{
		Sample:               current,
		RiskScore:            score,
		VerificationRequired: VerificationRequired(score),
	}

	if current.Coordinates != nil {
		if signup := oldestWithCoordinates(history); signup != nil {
			near := WithinKm(*current.Coordinates, *signup.Coordinates, ProximityRadiusKm)
			assessment.NearSignupLocation = &near
		}
	}

	slog.Info("Location assessed",
		"subject", subjectUserID,
		"city", current.City,
		"country", current.Country,
		"riskScore", score,
		"verificationRequired", assessment.VerificationRequired)
	return assessment, nil
}

// Record appends the sample to the subject's history so it feeds the next
// attempt's scoring.
func (s *Service) Record(ctx context.Context, subjectUserID string, sample Sample) error {
	if err := s.repo.RecordSample(ctx, subjectUserID, sample); err != nil {
		return fmt.Errorf("failed to record location sample: %w", err)
	}
	return nil
}

// oldestWithCoordinates finds the earliest sample carrying coordinates,
// which corresponds to the signup location. History arrives newest first.
func oldestWithCoordinates(history []Sample) *Sample {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Coordinates != nil {
			return &history[i]
		}
	}
	return nil
}
