package reputation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultWeight(t *testing.T) {
	assert.Equal(t, 0.01, DefaultWeight("chat_message"))
	assert.Equal(t, -200.0, DefaultWeight("ban"))
	assert.Equal(t, 0.0, DefaultWeight("no_such_event"))
}

func TestModerationEventNames(t *testing.T) {
	assert.True(t, ModerationEventNames["warn"])
	assert.True(t, ModerationEventNames["timeout"])
	assert.True(t, ModerationEventNames["kick"])
	assert.True(t, ModerationEventNames["ban"])
	assert.False(t, ModerationEventNames["follow"])
}

func TestEventName(t *testing.T) {
	assert.Equal(t, "chat_message", EventName("chatMessage", nil))
	assert.Equal(t, "subscription", EventName("subscription", nil))
	assert.Equal(t, "subscription_tier2", EventName("subscription", map[string]any{"tier": 2.0}))
	assert.Equal(t, "subscription_tier3", EventName("resub", map[string]any{"tier": float64(3)}))
	assert.Equal(t, "donation_per_dollar", EventName("donation", nil))
	assert.Equal(t, "cheer_per_100bits", EventName("cheer", nil))
	assert.Equal(t, "gift_subscription", EventName("subgift", nil))
	assert.Equal(t, "follow", EventName("follow", nil))
	assert.Equal(t, "raid", EventName("raid", nil))
}
