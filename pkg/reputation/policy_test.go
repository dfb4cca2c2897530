package reputation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingScheduler struct {
	calls []EscalationRequest
}

func (s *recordingScheduler) ScheduleEscalation(ctx context.Context, req EscalationRequest) error {
	s.calls = append(s.calls, req)
	return nil
}

type recordingNotifier struct {
	calls []ModerationRequest
}

func (n *recordingNotifier) NotifyModeration(ctx context.Context, req ModerationRequest) error {
	n.calls = append(n.calls, req)
	return nil
}

// Ban-crossing behavior (Evaluate calling repo.SetBanned) requires a live
// storage.ReputationRepo and is not tested in this package or in the
// storage package's integration tests; these cases cover the branches that
// never touch the repo.

func TestPolicyEvaluateNoopAboveThresholdAndNotModerationEvent(t *testing.T) {
	p := DefaultPolicy
	sched := &recordingScheduler{}
	p.Scheduler = sched

	banned, err := p.Evaluate(context.Background(), nil, "community-1", "user-1", "entity-1", "chat_message", 600, false)
	require.NoError(t, err)
	assert.False(t, banned)
	assert.Empty(t, sched.calls)
}

func TestPolicyEvaluateSkipsBanWhenAlreadyBanned(t *testing.T) {
	p := DefaultPolicy
	banned, err := p.Evaluate(context.Background(), nil, "community-1", "user-1", "entity-1", "timeout", 100, true)
	require.NoError(t, err)
	assert.True(t, banned)
}

func TestPolicyEvaluateSchedulesEscalationForModerationEvent(t *testing.T) {
	p := DefaultPolicy
	sched := &recordingScheduler{}
	p.Scheduler = sched

	banned, err := p.Evaluate(context.Background(), nil, "community-1", "user-1", "entity-1", "timeout", 600, false)
	require.NoError(t, err)
	assert.False(t, banned)
	require.Len(t, sched.calls, 1)
	assert.Equal(t, "community-1", sched.calls[0].CommunityID)
	assert.Equal(t, "timeout", sched.calls[0].EventName)
	assert.Equal(t, []time.Duration{5 * time.Minute, 60 * time.Minute, 1440 * time.Minute}, sched.calls[0].Steps)
}

func TestPolicyEvaluateIgnoresNonModerationEventWithScheduler(t *testing.T) {
	p := DefaultPolicy
	sched := &recordingScheduler{}
	p.Scheduler = sched

	_, err := p.Evaluate(context.Background(), nil, "community-1", "user-1", "entity-1", "follow", 601, false)
	require.NoError(t, err)
	assert.Empty(t, sched.calls)
}
