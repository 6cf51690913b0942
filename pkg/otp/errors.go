package otp

import "errors"

var (
	// ErrChallengeNotFound is returned when no active challenge exists for a
	// (purpose, subject) pair.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrDeliveryFailed is returned by Issue when the challenge was
	// persisted but the notifier could not deliver the code. The challenge
	// remains valid; the caller may request a resend.
	ErrDeliveryFailed = errors.New("challenge created but code delivery failed")

	// ErrResendLimitExceeded is returned when a subject requests codes
	// faster than the resend budget allows.
	ErrResendLimitExceeded = errors.New("too many codes requested, please try again later")
)
