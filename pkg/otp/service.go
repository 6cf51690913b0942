package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/verifid/verifid/pkg/notification"
	"github.com/verifid/verifid/pkg/ratelimit"
	"github.com/verifid/verifid/pkg/utils"
)

// Service owns the challenge lifecycle: issuance with supersession, delivery
// through the notification manager, and single-use validation.
type Service struct {
	repo                ChallengeRepository
	notificationManager *notification.NotificationManager
	expiry              time.Duration
	resendLimiter       *ratelimit.Limiter
	now                 func() time.Time
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithExpiry overrides the default 10-minute challenge lifetime.
func WithExpiry(expiry time.Duration) ServiceOption {
	return func(s *Service) {
		s.expiry = expiry
	}
}

// WithResendLimit bounds issuance per (purpose, subject): capacity codes in
// a burst, refilling at refillRate codes per second.
func WithResendLimit(capacity int, refillRate float64) ServiceOption {
	return func(s *Service) {
		s.resendLimiter = ratelimit.NewLimiter(capacity, refillRate, 1*time.Hour)
	}
}

// WithClock overrides the time source. Used by tests to model expiry.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an OTP service. The notification manager may be nil,
// in which case issued codes are persisted but not delivered (the caller
// delivers them through another channel).
func NewService(repo ChallengeRepository, notificationManager *notification.NotificationManager, opts ...ServiceOption) *Service {
	service := &Service{
		repo:                repo,
		notificationManager: notificationManager,
		expiry:              DefaultExpiry,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Issue supersedes any prior unconsumed challenge for (purpose, subject),
// persists a fresh one, and hands the code to the notifier. Delivery failure
// is reported as ErrDeliveryFailed without rolling back the challenge, so
// the caller can offer a resend.
func (s *Service) Issue(ctx context.Context, purpose Purpose, subject string) (string, error) {
	subject = utils.NormalizeSubject(subject)
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}

	if s.resendLimiter != nil && !s.resendLimiter.Allow(string(purpose)+":"+subject) {
		slog.Warn("Challenge resend limit exceeded", "purpose", purpose, "subject", utils.MaskEmail(subject))
		return "", ErrResendLimitExceeded
	}

	code, err := utils.RandomDigits(CodeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	if err := s.repo.InvalidateChallenges(ctx, purpose, subject); err != nil {
		return "", fmt.Errorf("failed to invalidate prior challenges: %w", err)
	}

	now := s.now().UTC()
	challenge := Challenge{
		ID:        uuid.New(),
		Purpose:   purpose,
		Subject:   subject,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.expiry),
	}
	if err := s.repo.CreateChallenge(ctx, challenge); err != nil {
		return "", fmt.Errorf("failed to create challenge: %w", err)
	}

	slog.Info("Challenge issued", "purpose", purpose, "subject", utils.MaskEmail(subject), "expiresAt", challenge.ExpiresAt.Format(time.RFC3339))

	if err := s.deliver(purpose, subject, code); err != nil {
		slog.Error("Failed to deliver challenge code", "purpose", purpose, "subject", utils.MaskEmail(subject), "error", err)
		return code, ErrDeliveryFailed
	}
	return code, nil
}

// Validate succeeds iff an unconsumed, unexpired challenge matches all three
// fields. On success the challenge is consumed atomically; under concurrent
// validation exactly one caller gets true. Mismatch is a plain false, never
// an error.
func (s *Service) Validate(ctx context.Context, purpose Purpose, subject, code string) (bool, error) {
	subject = utils.NormalizeSubject(subject)
	code = strings.TrimSpace(code)
	if subject == "" || code == "" {
		return false, nil
	}

	consumed, err := s.repo.ConsumeChallenge(ctx, purpose, subject, code, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !consumed {
		slog.Debug("Challenge validation failed", "purpose", purpose, "subject", utils.MaskEmail(subject))
		return false, nil
	}

	slog.Info("Challenge validated", "purpose", purpose, "subject", utils.MaskEmail(subject))
	return true, nil
}

// HasActiveChallenge reports whether an unconsumed, unexpired challenge is
// outstanding for the pair. Used to keep issuance idempotent across retried
// requests.
func (s *Service) HasActiveChallenge(ctx context.Context, purpose Purpose, subject string) (bool, error) {
	subject = utils.NormalizeSubject(subject)
	challenge, err := s.repo.GetActiveChallenge(ctx, purpose, subject)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get active challenge: %w", err)
	}
	return !challenge.Expired(s.now().UTC()), nil
}

func (s *Service) deliver(purpose Purpose, subject, code string) error {
	if s.notificationManager == nil {
		slog.Warn("Notification manager not configured, skipping code delivery", "purpose", purpose)
		return nil
	}

	return s.notificationManager.Send(noticeTypeForPurpose(purpose), notification.NotificationData{
		To: subject,
		Data: map[string]string{
			"Code":          code,
			"ExpiryMinutes": strconv.Itoa(int(s.expiry.Minutes())),
		},
	})
}

func noticeTypeForPurpose(purpose Purpose) notification.NoticeType {
	switch purpose {
	case PurposeDevice:
		return notification.DeviceCodeNotice
	case PurposeLocation:
		return notification.LocationCodeNotice
	default:
		return notification.SignupCodeNotice
	}
}
