package twitch

import (
	"testing"

	ircmsg "github.com/ergochat/irc-go/ircmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrivmsg(t *testing.T) {
	line := "@id=msg-1;user-id=42;display-name=Viewer :viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #somechannel :hello chat"
	msg, err := ircmsg.ParseLine(line)
	require.NoError(t, err)

	env := normalizePrivmsg(msg)
	require.NotNil(t, env)
	assert.Equal(t, "chatMessage", string(env.EventType))
	assert.Equal(t, "twitch:somechannel:somechannel", env.EntityID)
	assert.Equal(t, "42", env.UserID)
	assert.Equal(t, "viewer", env.Username)
	assert.Equal(t, "Viewer", env.DisplayName)
	assert.Equal(t, "hello chat", env.Message)
	assert.Equal(t, "msg-1", env.EventID)
}

func TestNormalizePrivmsgRejectsShortParams(t *testing.T) {
	msg := ircmsg.Message{Command: "PRIVMSG", Params: []string{"#only-one"}}
	assert.Nil(t, normalizePrivmsg(msg))
}
