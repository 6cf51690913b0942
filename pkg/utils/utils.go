package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

// NormalizeSubject lowercases and trims a contact string so that the same
// email always maps to the same challenge key.
func NormalizeSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

// MaskEmail masks the local part of an email address for display,
// e.g. "john.doe@example.com" -> "jo******@example.com".
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return email
	}
	local := email[:at]
	if len(local) <= 2 {
		return strings.Repeat("*", len(local)) + email[at:]
	}
	return local[:2] + strings.Repeat("*", len(local)-2) + email[at:]
}

// MaskPhone masks a phone number, keeping only the last two digits.
func MaskPhone(phone string) string {
	if len(phone) <= 2 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-2) + phone[len(phone)-2:]
}

// HashEmail returns the SHA-256 hex digest of a normalized email. Used to
// reference a delivery option without exposing the address itself.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(NormalizeSubject(email)))
	return hex.EncodeToString(sum[:])
}

// HashPhone returns the SHA-256 hex digest of a phone number.
func HashPhone(phone string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(phone)))
	return hex.EncodeToString(sum[:])
}

// TruncatedHash returns the first n hex characters of the SHA-256 digest of
// the input. Device identity components are truncated hashes rather than
// full digests to keep composite identifiers short.
func TruncatedHash(input string, n int) string {
	sum := sha256.Sum256([]byte(input))
	full := hex.EncodeToString(sum[:])
	if n > len(full) {
		n = len(full)
	}
	return full[:n]
}

// RandomDigits generates a string of n decimal digits using crypto/rand.
// The first digit is never zero so an n-digit code always has n digits.
func RandomDigits(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		lo, span := int64(0), int64(10)
		if i == 0 {
			lo, span = 1, 9
		}
		v, err := rand.Int(rand.Reader, big.NewInt(span))
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + lo + v.Int64()))
	}
	return sb.String(), nil
}
