// Package otp issues and validates the six-digit one-time codes used as
// device and location challenges.
//
// A challenge is keyed by (purpose, subject). Issuing supersedes any prior
// unconsumed challenge for the pair, and validation consumes the challenge
// atomically: under concurrent validation exactly one caller succeeds.
// Codes expire after ten minutes by default and issuance is rate limited
// per pair.
package otp
