// Package totp provides an authenticator-app verification factor backed by
// time-based one-time passwords.
package totp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	Issuer = "verifid"
	Skew   = 1
	Period = 30
)

// ErrSecretNotFound is returned when no enrollment exists for the subject.
var ErrSecretNotFound = errors.New("totp secret not found")

// SecretRepository stores TOTP enrollments keyed by subject.
type SecretRepository interface {
	StoreSecret(ctx context.Context, subjectUserID, secret string) error
	GetSecret(ctx context.Context, subjectUserID string) (string, error)
}

// Service manages authenticator enrollment and passcode validation.
type Service struct {
	repo SecretRepository
}

func NewService(repo SecretRepository) *Service {
	return &Service{repo: repo}
}

// Enroll generates a new secret for the subject and returns the otpauth URL
// for provisioning an authenticator app.
func (s *Service) Enroll(ctx context.Context, subjectUserID string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      Issuer,
		AccountName: subjectUserID,
	})
	if err != nil {
		slog.Error("Failed to generate totp secret", "subject", subjectUserID, "error", err)
		return "", fmt.Errorf("failed to generate totp secret: %w", err)
	}

	if err := s.repo.StoreSecret(ctx, subjectUserID, key.Secret()); err != nil {
		return "", fmt.Errorf("failed to store totp secret: %w", err)
	}
	slog.Info("Enrolled totp authenticator", "subject", subjectUserID)
	return key.URL(), nil
}

// Validate checks a passcode against the subject's enrolled secret. A wrong
// passcode is (false, nil); missing enrollment is ErrSecretNotFound.
func (s *Service) Validate(ctx context.Context, subjectUserID, passcode string) (bool, error) {
	secret, err := s.repo.GetSecret(ctx, subjectUserID)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			slog.Warn("No totp enrollment for subject", "subject", subjectUserID)
			return false, ErrSecretNotFound
		}
		return false, fmt.Errorf("failed to get totp secret: %w", err)
	}

	valid, err := totp.ValidateCustom(passcode, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		slog.Error("Failed to validate totp passcode", "error", err)
		return false, fmt.Errorf("failed to validate totp passcode: %w", err)
	}
	return valid, nil
}
