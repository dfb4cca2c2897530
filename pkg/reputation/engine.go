package reputation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/waddlebot/core/pkg/cache"
	"github.com/waddlebot/core/pkg/storage"
)

// ErrDuplicateEvent re-exports storage.ErrDuplicateEvent so callers of this
// package never need to import pkg/storage directly for error comparison.
var ErrDuplicateEvent = storage.ErrDuplicateEvent

// weightCacheTTL is the resolved-weight cache lifetime from spec.md §4.3
// step 2 ("weight lookups are cached for 300s").
const weightCacheTTL = 300 * time.Second

// Outcome is the result of a successful RecordEvent call, returned to the
// router so it can report { new_score, tier, delta_applied } per spec.md §6.
type Outcome struct {
	Score        int
	Tier         Tier
	DeltaApplied float64
	TotalEvents  int64
	Banned       bool
}

// Engine implements the reputation scoring contract of spec.md §4.3: weight
// resolution (with a TTL cache fronting the override table), delta
// computation, atomic persistence, and ban-threshold policy enforcement.
type Engine struct {
	repo    *storage.ReputationRepo
	weights *cache.Cache[string, float64]
	log     *slog.Logger
	policy  Policy
}

// NewEngine builds an Engine backed by repo, with weight overrides cached
// for weightCacheTTL.
func NewEngine(repo *storage.ReputationRepo, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		repo:    repo,
		weights: cache.New[string, float64](weightCacheTTL),
		log:     log,
		policy:  DefaultPolicy,
	}
}

// GetScore resolves the current score, tier, and ban state for a user.
func (e *Engine) GetScore(ctx context.Context, communityID, userID string) (Outcome, error) {
	rep, err := e.repo.GetScore(ctx, communityID, userID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Score:       rep.Score,
		Tier:        DeriveTier(rep.Score),
		TotalEvents: rep.TotalEvents,
		Banned:      rep.Banned,
	}, nil
}

// RecordEvent implements spec.md §4.3's full event pipeline: resolve the
// weight (override cache, falling back to DefaultWeight), compute the delta
// from event metadata, atomically persist through repo, and run ban policy.
//
// rawEventType is the envelope event_type (or "command_usage"/
// "giveaway_entry" for synthetic scoring events the router raises itself);
// it is translated to the weight-table key via EventName before lookup.
//
// Returns ErrDuplicateEvent if this event_id was already applied for the
// community — callers should treat that as a successful no-op, not a
// failure.
func (e *Engine) RecordEvent(ctx context.Context, communityID, userID, entityID, eventID, rawEventType string, meta map[string]any) (Outcome, error) {
	eventName := EventName(rawEventType, meta)

	before, err := e.repo.GetScore(ctx, communityID, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("reputation: load current reputation: %w", err)
	}

	weight, err := e.resolveWeight(ctx, communityID, eventName)
	if err != nil {
		return Outcome{}, fmt.Errorf("reputation: resolve weight: %w", err)
	}
	delta := ComputeDelta(eventName, weight, meta)

	result, err := e.repo.RecordEvent(ctx, communityID, userID, entityID, eventID, eventName, delta, meta)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEvent) {
			return Outcome{}, ErrDuplicateEvent
		}
		return Outcome{}, fmt.Errorf("reputation: record event: %w", err)
	}

	outcome := Outcome{
		Score:        result.NewScore,
		Tier:         DeriveTier(result.NewScore),
		DeltaApplied: result.DeltaApplied,
		TotalEvents:  result.TotalEvents,
	}

	if ModerationEventNames[eventName] {
		e.log.InfoContext(ctx, "moderation event scored",
			"community_id", communityID, "user_id", userID, "event_name", eventName, "new_score", result.NewScore)
	}

	banned, err := e.policy.Evaluate(ctx, e.repo, communityID, userID, entityID, eventName, result.NewScore, before.Banned)
	if err != nil {
		e.log.WarnContext(ctx, "reputation policy evaluation failed", "error", err, "community_id", communityID, "user_id", userID)
	}
	outcome.Banned = banned

	return outcome, nil
}

// resolveWeight checks the TTL cache, then the storage override table, then
// falls back to the compiled-in default — spec.md §4.3 step 2.
func (e *Engine) resolveWeight(ctx context.Context, communityID, eventName string) (float64, error) {
	key := cache.WeightKey(communityID, eventName)
	return e.weights.GetOrLoad(key, func() (float64, error) {
		w, err := e.repo.Weight(ctx, communityID, eventName)
		if errors.Is(err, storage.ErrNotFound) {
			return DefaultWeight(eventName), nil
		}
		if err != nil {
			return 0, err
		}
		return w, nil
	})
}
