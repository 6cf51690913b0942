package deviceid

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service resolves device identities and manages trust grants.
type Service struct {
	repo      TrustedDeviceRepository
	matcher   *Matcher
	trustDays int
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithTrustDays overrides the default 90-day trust lifetime.
func WithTrustDays(days int) ServiceOption {
	return func(s *Service) {
		s.trustDays = days
	}
}

// NewService creates a device service with the given repository and matcher.
func NewService(repo TrustedDeviceRepository, matcher *Matcher, opts ...ServiceOption) *Service {
	service := &Service{
		repo:      repo,
		matcher:   matcher,
		trustDays: DefaultTrustDays,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Matcher exposes the configured matcher for callers that compare
// identities directly.
func (s *Service) Matcher() *Matcher {
	return s.matcher
}

// Trust records a trust grant for the observed device after a successful
// verification.
func (s *Service) Trust(ctx context.Context, subjectUserID string, identity Identity, city, country string) (TrustedDeviceRecord, error) {
	record := TrustedDeviceRecord{
		ID:               uuid.New(),
		SubjectUserID:    subjectUserID,
		DeviceRawID:      identity.RawID,
		TrustedAt:        time.Now().UTC(),
		TrustedUntil:     CalculateExpiryDate(s.trustDays),
		FirstSeenCity:    city,
		FirstSeenCountry: country,
	}

	created, err := s.repo.CreateTrustedDevice(ctx, record)
	if err != nil {
		return TrustedDeviceRecord{}, fmt.Errorf("failed to create trusted device: %w", err)
	}

	slog.Info("Device trusted",
		"subject", subjectUserID,
		"scheme", identity.Scheme,
		"trustedUntil", created.TrustedUntil.Format(time.RFC3339))
	return created, nil
}

// IsTrusted reports whether the observed identity matches an unexpired
// trust grant for the subject. When the matching record holds a legacy
// identifier and the observed identity is hybrid, the stored record is
// upgraded in place so the continuity allowance is exercised once per
// record rather than forever.
func (s *Service) IsTrusted(ctx context.Context, subjectUserID string, observed Identity) (bool, error) {
	records, err := s.repo.FindTrustedDevicesByUser(ctx, subjectUserID)
	if err != nil {
		return false, fmt.Errorf("failed to find trusted devices: %w", err)
	}

	now := time.Now().UTC()
	for _, rec := range records {
		if rec.Expired(now) {
			continue
		}
		stored := Parse(rec.DeviceRawID)
		if !s.matcher.SameDevice(stored, observed) {
			continue
		}

		if migrated := s.matcher.Migrate(rec.DeviceRawID, observed.RawID); migrated != rec.DeviceRawID {
			if err := s.repo.UpdateDeviceRawID(ctx, rec.ID, migrated); err != nil {
				slog.Error("Failed to migrate trusted device identifier", "id", rec.ID, "error", err)
				// Trust decision stands; the upgrade retries next login.
			} else {
				slog.Info("Trusted device migrated to hybrid identifier", "id", rec.ID, "subject", subjectUserID)
			}
		}
		return true, nil
	}
	return false, nil
}

// ExtendTrust refreshes the expiry of every grant matching the observed
// device, mirroring how a recognized login keeps a device trusted.
func (s *Service) ExtendTrust(ctx context.Context, subjectUserID string, observed Identity) error {
	records, err := s.repo.FindTrustedDevicesByUser(ctx, subjectUserID)
	if err != nil {
		return fmt.Errorf("failed to find trusted devices: %w", err)
	}

	now := time.Now().UTC()
	for _, rec := range records {
		if rec.Expired(now) {
			continue
		}
		if s.matcher.SameDevice(Parse(rec.DeviceRawID), observed) {
			if err := s.repo.ExtendTrust(ctx, rec.ID, CalculateExpiryDate(s.trustDays)); err != nil {
				return fmt.Errorf("failed to extend trust: %w", err)
			}
		}
	}
	return nil
}
