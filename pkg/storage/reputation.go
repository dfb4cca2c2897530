package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MinScore and MaxScore bound a reputation score, per spec.md §3.
const (
	MinScore     = 300
	MaxScore     = 850
	DefaultScore = 600
)

// ErrDuplicateEvent is returned when RecordEvent is called with a source
// event_id already present in the reputation event log for that community,
// implementing the idempotency check in spec.md §4.3 step 1.
var ErrDuplicateEvent = errors.New("storage: duplicate reputation event")

// Reputation is one community/user score row (spec.md §3).
type Reputation struct {
	CommunityID  string
	UserID       string
	Score        int
	TotalEvents  int64
	LastActivity string // RFC3339; kept as string to avoid a timezone round-trip surprise in callers
	Banned       bool
}

// Weight is a resolved (community_id, event_name) weight override row.
type Weight struct {
	CommunityID string
	EventName   string
	Value       float64
}

// ReputationRepo provides the reputation/events/weights persistence
// described in spec.md §4.3 and §6.
type ReputationRepo struct {
	pool *pgxpool.Pool
}

// GetScore reads the current reputation row, or DefaultScore/0 if absent,
// per spec.md §4.3's GetScore contract ("if no row, return default").
func (r *ReputationRepo) GetScore(ctx context.Context, communityID, userID string) (Reputation, error) {
	var rep Reputation
	err := r.pool.QueryRow(ctx, `
		SELECT community_id, user_id, score, total_events, last_activity::text, banned
		FROM reputation WHERE community_id = $1 AND user_id = $2
	`, communityID, userID).Scan(
		&rep.CommunityID, &rep.UserID, &rep.Score, &rep.TotalEvents, &rep.LastActivity, &rep.Banned,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reputation{CommunityID: communityID, UserID: userID, Score: DefaultScore}, nil
	}
	if err != nil {
		return Reputation{}, fmt.Errorf("storage: get score for %s/%s: %w", communityID, userID, err)
	}
	return rep, nil
}

// Weight resolves the configured weight override for (communityID, eventName),
// returning ErrNotFound if none is configured (caller falls back to the
// compiled-in default, per spec.md §4.3 step 2).
func (r *ReputationRepo) Weight(ctx context.Context, communityID, eventName string) (float64, error) {
	var w float64
	err := r.pool.QueryRow(ctx, `
		SELECT weight FROM weights WHERE community_id = $1 AND event_name = $2
	`, communityID, eventName).Scan(&w)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: weight for %s/%s", ErrNotFound, communityID, eventName)
	}
	if err != nil {
		return 0, fmt.Errorf("storage: get weight for %s/%s: %w", communityID, eventName, err)
	}
	return w, nil
}

// SetWeight upserts a weight override.
func (r *ReputationRepo) SetWeight(ctx context.Context, w Weight) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO weights (community_id, event_name, weight)
		VALUES ($1, $2, $3)
		ON CONFLICT (community_id, event_name) DO UPDATE SET weight = EXCLUDED.weight
	`, w.CommunityID, w.EventName, w.Value)
	if err != nil {
		return fmt.Errorf("storage: set weight for %s/%s: %w", w.CommunityID, w.EventName, err)
	}
	return nil
}

// RecordEventResult is the outcome of an atomic RecordEvent application.
type RecordEventResult struct {
	NewScore     int
	TotalEvents  int64
	DeltaApplied float64
}

// RecordEvent atomically applies a reputation delta: idempotency-checks the
// source event_id, clamps the new score to [MinScore, MaxScore], updates the
// reputation row (creating it with DefaultScore if absent), increments the
// event counter, stamps last_activity, and appends to the audit log — all
// inside one transaction, matching spec.md §4.3 steps 1 and 4-6 ("Atomically
// persist").
func (r *ReputationRepo) RecordEvent(ctx context.Context, communityID, userID, entityID, eventID, eventName string, delta float64, eventData map[string]any) (RecordEventResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return RecordEventResult{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM events WHERE community_id = $1 AND event_id = $2)`,
		communityID, eventID,
	).Scan(&exists); err != nil {
		return RecordEventResult{}, fmt.Errorf("storage: check duplicate event: %w", err)
	}
	if exists {
		return RecordEventResult{}, fmt.Errorf("%w: %s/%s", ErrDuplicateEvent, communityID, eventID)
	}

	var currentScore int
	err = tx.QueryRow(ctx,
		`SELECT score FROM reputation WHERE community_id = $1 AND user_id = $2 FOR UPDATE`,
		communityID, userID,
	).Scan(&currentScore)
	if errors.Is(err, pgx.ErrNoRows) {
		currentScore = DefaultScore
	} else if err != nil {
		return RecordEventResult{}, fmt.Errorf("storage: lock reputation row: %w", err)
	}

	newScore := clamp(currentScore+int(delta), MinScore, MaxScore)

	var totalEvents int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO reputation (community_id, user_id, score, total_events, last_activity, updated_at)
		VALUES ($1, $2, $3, 1, now(), now())
		ON CONFLICT (community_id, user_id) DO UPDATE SET
			score = $3,
			total_events = reputation.total_events + 1,
			last_activity = now(),
			updated_at = now()
		RETURNING total_events
	`, communityID, userID, newScore).Scan(&totalEvents); err != nil {
		return RecordEventResult{}, fmt.Errorf("storage: upsert reputation: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO events (community_id, event_id, user_id, entity_id, event_name, event_score, event_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, communityID, eventID, userID, entityID, eventName, delta, eventData); err != nil {
		return RecordEventResult{}, fmt.Errorf("storage: append event log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return RecordEventResult{}, fmt.Errorf("storage: commit: %w", err)
	}

	return RecordEventResult{NewScore: newScore, TotalEvents: totalEvents, DeltaApplied: delta}, nil
}

// SetBanned flags or clears a user's banned state, used by reputation policy
// enforcement (spec.md §4.3 step 7).
func (r *ReputationRepo) SetBanned(ctx context.Context, communityID, userID string, banned bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reputation (community_id, user_id, score, banned, last_activity, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (community_id, user_id) DO UPDATE SET banned = $4, updated_at = now()
	`, communityID, userID, DefaultScore, banned)
	if err != nil {
		return fmt.Errorf("storage: set banned for %s/%s: %w", communityID, userID, err)
	}
	return nil
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
