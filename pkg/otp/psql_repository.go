package otp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PsqlChallengeRepository implements ChallengeRepository backed by
// PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE otp_challenges (
//	    id UUID PRIMARY KEY,
//	    purpose TEXT NOT NULL,
//	    subject TEXT NOT NULL,
//	    code TEXT NOT NULL,
//	    issued_at TIMESTAMPTZ NOT NULL,
//	    expires_at TIMESTAMPTZ NOT NULL,
//	    consumed BOOLEAN NOT NULL DEFAULT FALSE,
//	    consumed_at TIMESTAMPTZ
//	);
//	CREATE INDEX ON otp_challenges (purpose, subject) WHERE NOT consumed;
type PsqlChallengeRepository struct {
	db *pgxpool.Pool
}

// NewPsqlChallengeRepository creates a PostgreSQL-backed challenge
// repository.
func NewPsqlChallengeRepository(db *pgxpool.Pool) *PsqlChallengeRepository {
	return &PsqlChallengeRepository{db: db}
}

// CreateChallenge persists a new challenge.
func (r *PsqlChallengeRepository) CreateChallenge(ctx context.Context, challenge Challenge) error {
	query := `
		INSERT INTO otp_challenges (id, purpose, subject, code, issued_at, expires_at, consumed)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
	`
	_, err := r.db.Exec(ctx, query,
		challenge.ID, string(challenge.Purpose), challenge.Subject,
		challenge.Code, challenge.IssuedAt, challenge.ExpiresAt,
	)
	return err
}

// InvalidateChallenges marks all unconsumed challenges for the pair
// consumed. Superseded challenges are kept for audit.
func (r *PsqlChallengeRepository) InvalidateChallenges(ctx context.Context, purpose Purpose, subject string) error {
	query := `
		UPDATE otp_challenges
		SET consumed = TRUE, consumed_at = $3
		WHERE purpose = $1 AND subject = $2 AND consumed = FALSE
	`
	_, err := r.db.Exec(ctx, query, string(purpose), subject, time.Now().UTC())
	return err
}

// ConsumeChallenge consumes the matching challenge with a single conditional
// update keyed on the unconsumed state. Two concurrent calls for the same
// code race on the WHERE clause; the row is updated exactly once, so exactly
// one caller observes an affected row.
func (r *PsqlChallengeRepository) ConsumeChallenge(ctx context.Context, purpose Purpose, subject, code string, now time.Time) (bool, error) {
	query := `
		UPDATE otp_challenges
		SET consumed = TRUE, consumed_at = $5
		WHERE purpose = $1 AND subject = $2 AND code = $3
		AND consumed = FALSE AND expires_at > $4
	`
	tag, err := r.db.Exec(ctx, query, string(purpose), subject, strings.TrimSpace(code), now, now.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetActiveChallenge returns the current unconsumed challenge for the pair.
func (r *PsqlChallengeRepository) GetActiveChallenge(ctx context.Context, purpose Purpose, subject string) (Challenge, error) {
	query := `
		SELECT id, purpose, subject, code, issued_at, expires_at, consumed, consumed_at
		FROM otp_challenges
		WHERE purpose = $1 AND subject = $2 AND consumed = FALSE
		ORDER BY issued_at DESC
		LIMIT 1
	`
	var c Challenge
	var p string
	err := r.db.QueryRow(ctx, query, string(purpose), subject).Scan(
		&c.ID, &p, &c.Subject, &c.Code, &c.IssuedAt, &c.ExpiresAt, &c.Consumed, &c.ConsumedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Challenge{}, ErrChallengeNotFound
		}
		return Challenge{}, err
	}
	c.Purpose = Purpose(p)
	return c, nil
}
