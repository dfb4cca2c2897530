package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"testing"
	"time"

	"github.com/slack-go/slack/slackevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret, base string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureValid(t *testing.T) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	body := `{"type":"event_callback"}`
	sig := sign("secret", "v0:"+ts+":"+body)

	assert.True(t, VerifySignature("secret", ts, body, sig))
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	body := `{"type":"event_callback"}`
	sig := sign("other-secret", "v0:"+ts+":"+body)

	assert.False(t, VerifySignature("secret", ts, body, sig))
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	ts := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	body := `{"type":"event_callback"}`
	sig := sign("secret", "v0:"+ts+":"+body)

	assert.False(t, VerifySignature("secret", ts, body, sig))
}

func TestNormalizeMessageEvent(t *testing.T) {
	inner := slackevents.EventsAPIInnerEvent{
		Data: &slackevents.MessageEvent{
			User:        "U123",
			Text:        "!help",
			Channel:     "C456",
			ClientMsgID: "cm-1",
		},
	}

	env := Normalize("slack:T1:C456", inner)
	require.NotNil(t, env)
	assert.Equal(t, "chatMessage", string(env.EventType))
	assert.Equal(t, "U123", env.UserID)
	assert.Equal(t, "!help", env.Message)
	assert.Equal(t, "cm-1", env.EventID)
}

func TestNormalizeUnknownEvent(t *testing.T) {
	inner := slackevents.EventsAPIInnerEvent{Data: struct{}{}}

	env := Normalize("slack:T1:C456", inner)
	assert.Equal(t, "unknown", string(env.EventType))
	assert.Contains(t, env.Metadata, "raw")
	assert.NotEmpty(t, env.EventID)
}
