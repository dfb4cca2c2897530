package kick

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWebhookEventFollow(t *testing.T) {
	evt := kickEvent{Type: "channel.followed", ChannelID: "123", Data: []byte(`{"user_id":"9","username":"viewer"}`)}
	env := normalizeWebhookEvent("kick:123:123", evt)
	assert.Equal(t, "follow", string(env.EventType))
	assert.Equal(t, "9", env.UserID)
	assert.Equal(t, "viewer", env.Username)
}

func TestNormalizeWebhookEventGiftedSubs(t *testing.T) {
	evt := kickEvent{Type: "channel.subscription.gifts", ChannelID: "123", Data: []byte(`{"user_id":"9","gifted_count":5}`)}
	env := normalizeWebhookEvent("kick:123:123", evt)
	assert.Equal(t, "subgift", string(env.EventType))
	count, ok := env.Metadata["gifted_count"].(int)
	assert.True(t, ok)
	assert.Equal(t, 5, count)
}

func TestNormalizeWebhookEventUnknown(t *testing.T) {
	evt := kickEvent{Type: "channel.banned", ChannelID: "123"}
	env := normalizeWebhookEvent("kick:123:123", evt)
	assert.Equal(t, "unknown", string(env.EventType))
	assert.Contains(t, env.Metadata, "raw")
}
