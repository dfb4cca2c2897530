package reputation

import (
	"context"
	"time"

	"github.com/waddlebot/core/pkg/storage"
)

// ModerationRequest is handed to a Notifier when a user's score crosses the
// auto-ban threshold, per spec.md §4.3 step 7 ("emit a moderation request
// to the appropriate action pusher").
type ModerationRequest struct {
	CommunityID string
	UserID      string
	EntityID    string
	EventName   string
	Score       int
}

// EscalationRequest is handed to a Scheduler when a moderation event
// (warn/timeout/kick/ban) occurs, carrying the configured escalation
// durations for the caller to step through.
type EscalationRequest struct {
	CommunityID string
	UserID      string
	EventName   string
	Steps       []time.Duration
}

// Notifier delivers a moderation request raised by policy enforcement. A nil
// Notifier makes auto-ban a no-op beyond flipping the banned flag.
type Notifier interface {
	NotifyModeration(ctx context.Context, req ModerationRequest) error
}

// Scheduler delivers an escalation request raised by a moderation event. A
// nil Scheduler makes escalation scheduling a no-op.
type Scheduler interface {
	ScheduleEscalation(ctx context.Context, req EscalationRequest) error
}

// Policy is the auto-ban and escalation configuration from spec.md §3's
// Policy record, grounded on the reputation module's REPUTATION_AUTO_BAN_THRESHOLD.
type Policy struct {
	AutoBanThreshold int
	// EscalationSteps are the timeout durations a moderation event steps
	// through (5 min, 60 min, 1440 min per spec.md §3). Which step applies
	// to a given offense is tracked by whatever consumes EscalationRequest
	// (the action pusher), not by this engine — RecordEvent has no
	// per-user offense-count storage of its own.
	EscalationSteps []time.Duration
	Notifier        Notifier
	Scheduler       Scheduler
}

// DefaultPolicy matches spec.md §3's documented defaults.
var DefaultPolicy = Policy{
	AutoBanThreshold: 450,
	EscalationSteps:  []time.Duration{5 * time.Minute, 60 * time.Minute, 1440 * time.Minute},
}

// Evaluate implements spec.md §4.3 step 7: if newScore crosses below
// AutoBanThreshold and the user wasn't already banned, ban them and notify;
// otherwise, if eventName is a moderation event, schedule escalation.
// Returns the resulting banned state.
//
// Per spec.md's Failure model, a Notifier/Scheduler error does not roll back
// the already-committed score — the caller is expected to log it and move
// on.
func (p Policy) Evaluate(ctx context.Context, repo *storage.ReputationRepo, communityID, userID, entityID, eventName string, newScore int, wasBanned bool) (bool, error) {
	if newScore < p.AutoBanThreshold && !wasBanned {
		if err := repo.SetBanned(ctx, communityID, userID, true); err != nil {
			return wasBanned, err
		}
		if p.Notifier != nil {
			if err := p.Notifier.NotifyModeration(ctx, ModerationRequest{
				CommunityID: communityID,
				UserID:      userID,
				EntityID:    entityID,
				EventName:   eventName,
				Score:       newScore,
			}); err != nil {
				return true, err
			}
		}
		return true, nil
	}

	if ModerationEventNames[eventName] && p.Scheduler != nil {
		if err := p.Scheduler.ScheduleEscalation(ctx, EscalationRequest{
			CommunityID: communityID,
			UserID:      userID,
			EventName:   eventName,
			Steps:       p.EscalationSteps,
		}); err != nil {
			return wasBanned, err
		}
	}

	return wasBanned, nil
}
