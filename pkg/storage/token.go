package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OAuthToken is a stored platform OAuth credential for one broadcaster/
// account, grounded on the action-pusher token manager's token table
// (broadcaster_id, access_token, refresh_token, expires_at, scopes).
type OAuthToken struct {
	AccountID    string
	Platform     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
}

// TokenRepo persists OAuth tokens per (platform, account_id).
type TokenRepo struct {
	pool *pgxpool.Pool
}

// NewTokenRepo builds a TokenRepo over pool.
func NewTokenRepo(pool *pgxpool.Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

// Get fetches the stored token for (platform, accountID).
func (r *TokenRepo) Get(ctx context.Context, platform, accountID string) (OAuthToken, error) {
	var t OAuthToken
	t.Platform, t.AccountID = platform, accountID
	err := r.pool.QueryRow(ctx, `
		SELECT access_token, refresh_token, expires_at, scopes
		FROM oauth_tokens WHERE platform = $1 AND account_id = $2
	`, platform, accountID).Scan(&t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.Scopes)
	if errors.Is(err, pgx.ErrNoRows) {
		return OAuthToken{}, fmt.Errorf("%w: token for %s/%s", ErrNotFound, platform, accountID)
	}
	if err != nil {
		return OAuthToken{}, fmt.Errorf("storage: get token for %s/%s: %w", platform, accountID, err)
	}
	return t, nil
}

// Upsert stores or replaces the token for (platform, account_id).
func (r *TokenRepo) Upsert(ctx context.Context, t OAuthToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO oauth_tokens (platform, account_id, access_token, refresh_token, expires_at, scopes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (platform, account_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scopes = EXCLUDED.scopes,
			updated_at = now()
	`, t.Platform, t.AccountID, t.AccessToken, t.RefreshToken, t.ExpiresAt, t.Scopes)
	if err != nil {
		return fmt.Errorf("storage: upsert token for %s/%s: %w", t.Platform, t.AccountID, err)
	}
	return nil
}
