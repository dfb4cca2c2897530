package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRecord mirrors a Redis-backed session into Postgres for durability
// past a Redis flush, per spec.md §6's "sessions: optional durable sessions".
type SessionRecord struct {
	SessionID         string
	EntityID          string
	UserID            string
	CorrelationID     string
	InteractionModule string
	ExpiresAt         time.Time
}

// SessionRepo stores session records in the sessions table. pkg/session
// remains the authoritative, low-latency store and does not write here;
// rows exist only where a caller calls Upsert.
type SessionRepo struct {
	pool *pgxpool.Pool
}

// Upsert mirrors a session's current state.
func (r *SessionRepo) Upsert(ctx context.Context, s SessionRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, entity_id, user_id, correlation_id, interaction_module, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET
			correlation_id = EXCLUDED.correlation_id,
			interaction_module = EXCLUDED.interaction_module,
			expires_at = EXCLUDED.expires_at
	`, s.SessionID, s.EntityID, s.UserID, s.CorrelationID, s.InteractionModule, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("storage: upsert session %q: %w", s.SessionID, err)
	}
	return nil
}

// PruneExpired deletes mirrored sessions past their expiry, intended to run
// on a periodic janitor tick.
func (r *SessionRepo) PruneExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("storage: prune expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
