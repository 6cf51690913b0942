package totp

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PsqlSecretRepository stores enrollments in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE totp_secrets (
//	    subject_user_id TEXT PRIMARY KEY,
//	    secret          TEXT NOT NULL,
//	    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PsqlSecretRepository struct {
	pool *pgxpool.Pool
}

func NewPsqlSecretRepository(pool *pgxpool.Pool) *PsqlSecretRepository {
	return &PsqlSecretRepository{pool: pool}
}

func (r *PsqlSecretRepository) StoreSecret(ctx context.Context, subjectUserID, secret string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO totp_secrets (subject_user_id, secret)
		VALUES ($1, $2)
		ON CONFLICT (subject_user_id) DO UPDATE SET secret = EXCLUDED.secret
	`, subjectUserID, secret)
	if err != nil {
		return fmt.Errorf("failed to store totp secret: %w", err)
	}
	return nil
}

func (r *PsqlSecretRepository) GetSecret(ctx context.Context, subjectUserID string) (string, error) {
	var secret string
	err := r.pool.QueryRow(ctx, `
		SELECT secret FROM totp_secrets WHERE subject_user_id = $1
	`, subjectUserID).Scan(&secret)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to get totp secret: %w", err)
	}
	return secret, nil
}
