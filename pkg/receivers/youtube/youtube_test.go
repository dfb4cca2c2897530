package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/youtube/v3"
)

func newTestPoller() *Poller {
	return &Poller{
		entityID:  "youtube:chan-1:chan-1",
		serverID:  "chan-1",
		channelID: "chan-1",
	}
}

func TestNormalizeTextMessage(t *testing.T) {
	p := newTestPoller()
	item := &youtube.LiveChatMessage{
		Id: "msg-1",
		Snippet: &youtube.LiveChatMessageSnippet{
			Type:               "textMessageEvent",
			TextMessageDetails: &youtube.LiveChatTextMessageDetails{MessageText: "hello"},
		},
		AuthorDetails: &youtube.LiveChatMessageAuthorDetails{ChannelId: "u1", DisplayName: "Viewer"},
	}

	env := p.normalize(item)
	assert.Equal(t, "chatMessage", string(env.EventType))
	assert.Equal(t, "hello", env.Message)
	assert.Equal(t, "u1", env.UserID)
}

func TestNormalizeSuperChat(t *testing.T) {
	p := newTestPoller()
	item := &youtube.LiveChatMessage{
		Id: "msg-2",
		Snippet: &youtube.LiveChatMessageSnippet{
			Type: "superChatEvent",
			SuperChatDetails: &youtube.LiveChatSuperChatDetails{
				AmountMicros: 5000000,
				Currency:     "USD",
				UserComment:  "nice stream",
			},
		},
	}

	env := p.normalize(item)
	assert.Equal(t, "donation", string(env.EventType))
	amount, ok := env.Metadata["amount"].(float64)
	require.True(t, ok)
	assert.Equal(t, 5.0, amount)
}

func TestNormalizeUnknownType(t *testing.T) {
	p := newTestPoller()
	item := &youtube.LiveChatMessage{Id: "msg-3", Snippet: &youtube.LiveChatMessageSnippet{Type: "somethingNew"}}

	env := p.normalize(item)
	assert.Equal(t, "unknown", string(env.EventType))
	assert.Contains(t, env.Metadata, "raw")
}

func TestVerifyChallengeMatchesAttachedChannel(t *testing.T) {
	challenge, ok := VerifyChallenge("subscribe", TopicURL("chan-1"), "abc", []string{"chan-1", "chan-2"})
	assert.True(t, ok)
	assert.Equal(t, "abc", challenge)
}

func TestVerifyChallengeRejectsUnknownChannel(t *testing.T) {
	_, ok := VerifyChallenge("subscribe", TopicURL("unknown-chan"), "abc", []string{"chan-1"})
	assert.False(t, ok)
}

func TestParseNotification(t *testing.T) {
	body := []byte(`<feed xmlns="http://www.w3.org/2005/Atom"><entry><videoId>v1</videoId><channelId>chan-1</channelId><title>Live now</title></entry></feed>`)
	videoID, channelID, title, err := ParseNotification(body)
	require.NoError(t, err)
	assert.Equal(t, "v1", videoID)
	assert.Equal(t, "chan-1", channelID)
	assert.Equal(t, "Live now", title)
}
