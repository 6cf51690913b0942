// Package directory is the boundary to the account store. The verification
// engine reads identities and checks credentials here but never writes
// account data.
package directory

import (
	"context"
	"errors"
)

// Profile is the slice of account data the verification engine needs.
type Profile struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	FullName    string `json:"full_name,omitempty"`
}

var (
	// ErrCredentialsInvalid covers both an unknown email and a wrong
	// password. Callers must not be able to tell the two apart.
	ErrCredentialsInvalid = errors.New("invalid credentials")

	// ErrProfileNotFound is returned when no account exists for the ID.
	ErrProfileNotFound = errors.New("profile not found")
)

// Directory answers credential and profile questions about accounts.
type Directory interface {
	// VerifyCredentials checks an email/password pair and returns the
	// profile on success. Unknown email and wrong password both return
	// ErrCredentialsInvalid.
	VerifyCredentials(ctx context.Context, email, password string) (Profile, error)

	// GetProfile looks up an account by its stable user ID.
	GetProfile(ctx context.Context, userID string) (Profile, error)
}
