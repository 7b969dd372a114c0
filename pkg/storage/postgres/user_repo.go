package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/aceriverson/titlesv2/pkg/errs"
	"github.com/aceriverson/titlesv2/pkg/model"
)

// UserRepo stores one Strava credential row per athlete.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a credential repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// GetCredential selects the owner's credential. A missing row maps to
// ErrNoCredential so the webhook pipeline can drop the event.
func (r *UserRepo) GetCredential(ctx context.Context, owner int64) (*model.Credential, error) {
	const q = `
SELECT id, access_token, refresh_token, expires_at, ai_enabled, athlete
FROM users WHERE id = $1`
	row := r.db.Pool.QueryRow(ctx, q, owner)
	var c model.Credential
	if err := row.Scan(&c.Owner, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &c.AIEnabled, &c.Athlete); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNoCredential
		}
		return nil, err
	}
	return &c, nil
}

// Upsert inserts or replaces the owner's credential after an OAuth exchange.
// The ai_enabled opt-in survives re-authorization.
func (r *UserRepo) Upsert(ctx context.Context, c *model.Credential) error {
	const q = `
INSERT INTO users (id, access_token, refresh_token, expires_at, athlete)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    expires_at = EXCLUDED.expires_at,
    athlete = EXCLUDED.athlete`
	_, err := r.db.Pool.Exec(ctx, q, c.Owner, c.AccessToken, c.RefreshToken, c.ExpiresAt, c.Athlete)
	return err
}

// UpdateTokens persists a refreshed token pair atomically.
func (r *UserRepo) UpdateTokens(ctx context.Context, owner int64, accessToken, refreshToken string, expiresAt int64) error {
	const q = `
UPDATE users
SET access_token = $2, refresh_token = $3, expires_at = $4
WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, owner, accessToken, refreshToken, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNoCredential
	}
	return nil
}

// SetAIEnabled flips the captioning opt-in.
func (r *UserRepo) SetAIEnabled(ctx context.Context, owner int64, enabled bool) error {
	const q = `UPDATE users SET ai_enabled = $2 WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, owner, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNoCredential
	}
	return nil
}

// Delete removes the owner's credential, used when Strava reports
// de-authorization. Deleting an absent row is not an error.
func (r *UserRepo) Delete(ctx context.Context, owner int64) error {
	const q = `DELETE FROM users WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, q, owner)
	return err
}

// Count returns the number of connected athletes.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	const q = `SELECT count(*) FROM users`
	var n int64
	if err := r.db.Pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
