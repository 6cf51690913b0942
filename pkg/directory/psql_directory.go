package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/verifid/verifid/pkg/utils"
)

// PsqlDirectory reads accounts from PostgreSQL. Passwords are stored as
// bcrypt hashes.
//
// Schema:
//
//	CREATE TABLE accounts (
//	    user_id      TEXT PRIMARY KEY,
//	    email        TEXT NOT NULL UNIQUE,
//	    password     TEXT NOT NULL,
//	    phone_number TEXT,
//	    full_name    TEXT,
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PsqlDirectory struct {
	pool *pgxpool.Pool
}

func NewPsqlDirectory(pool *pgxpool.Pool) *PsqlDirectory {
	return &PsqlDirectory{pool: pool}
}

func (d *PsqlDirectory) VerifyCredentials(ctx context.Context, email, password string) (Profile, error) {
	email = utils.NormalizeSubject(email)

	var profile Profile
	var hashedPassword string
	var phone, fullName *string
	err := d.pool.QueryRow(ctx, `
		SELECT user_id, email, password, phone_number, full_name
		FROM accounts WHERE email = $1
	`, email).Scan(&profile.UserID, &profile.Email, &hashedPassword, &phone, &fullName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Warn("Credential check for unknown email", "email", utils.MaskEmail(email))
			return Profile{}, ErrCredentialsInvalid
		}
		return Profile{}, fmt.Errorf("failed to look up account: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			slog.Warn("Password mismatch", "email", utils.MaskEmail(email))
			return Profile{}, ErrCredentialsInvalid
		}
		return Profile{}, fmt.Errorf("failed to compare password: %w", err)
	}

	if phone != nil {
		profile.PhoneNumber = *phone
	}
	if fullName != nil {
		profile.FullName = *fullName
	}
	return profile, nil
}

func (d *PsqlDirectory) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var profile Profile
	var phone, fullName *string
	err := d.pool.QueryRow(ctx, `
		SELECT user_id, email, phone_number, full_name
		FROM accounts WHERE user_id = $1
	`, userID).Scan(&profile.UserID, &profile.Email, &phone, &fullName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrProfileNotFound
		}
		return Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	if phone != nil {
		profile.PhoneNumber = *phone
	}
	if fullName != nil {
		profile.FullName = *fullName
	}
	return profile, nil
}
