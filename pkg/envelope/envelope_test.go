package envelope

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityIDRoundTrip(t *testing.T) {
	id := EntityID(PlatformTwitch, "foo", "1")
	assert.Equal(t, "twitch:foo:1", id)

	platform, server, channel, err := SplitEntityID(id)
	require.NoError(t, err)
	assert.Equal(t, PlatformTwitch, platform)
	assert.Equal(t, "foo", server)
	assert.Equal(t, "1", channel)
}

func TestSplitEntityIDMalformed(t *testing.T) {
	_, _, _, err := SplitEntityID("not-an-entity-id")
	require.Error(t, err)
}

func validEnvelope() *Envelope {
	return &Envelope{
		EventID:   "evt-1",
		EventType: EventTypeChatMessage,
		Platform:  PlatformTwitch,
		EntityID:  "twitch:foo:1",
		UserID:    "u1",
		Username:  "u1",
		Message:   "hi",
		Timestamp: time.Now().UTC(),
	}
}

func TestValidateOK(t *testing.T) {
	require.NoError(t, validEnvelope().Validate())
}

func TestValidateMissingFields(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Envelope)
	}{
		{"event_id", func(e *Envelope) { e.EventID = "" }},
		{"platform", func(e *Envelope) { e.Platform = "" }},
		{"entity_id", func(e *Envelope) { e.EntityID = "" }},
		{"user_id", func(e *Envelope) { e.UserID = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validEnvelope()
			tc.mod(e)
			err := e.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestValidateMessageTooLong(t *testing.T) {
	e := validEnvelope()
	long := make([]byte, MaxMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}
	e.Message = string(long)
	require.Error(t, e.Validate())
}

func TestValidateEntityIDDisagreement(t *testing.T) {
	e := validEnvelope()
	e.ServerID = "foo"
	e.ChannelID = "2" // disagrees with entity_id's "1"
	err := e.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestValidateEntityIDAgreement(t *testing.T) {
	e := validEnvelope()
	e.ServerID = "foo"
	e.ChannelID = "1"
	require.NoError(t, e.Validate())
}

func TestMetadataAccessors(t *testing.T) {
	e := validEnvelope()
	e.Metadata = map[string]any{"amount": 5.5, "viewer_count": 10, "badge": "vip"}

	amount, ok := e.MetadataFloat("amount")
	require.True(t, ok)
	assert.Equal(t, 5.5, amount)

	vc, ok := e.MetadataFloat("viewer_count")
	require.True(t, ok)
	assert.Equal(t, float64(10), vc)

	assert.Equal(t, "vip", e.MetadataString("badge"))
	assert.Equal(t, "", e.MetadataString("missing"))

	_, ok = e.MetadataFloat("badge")
	assert.False(t, ok)
}
