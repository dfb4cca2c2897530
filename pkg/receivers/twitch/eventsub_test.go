package twitch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signEventSub(secret, messageID, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(messageID))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyEventSubSignatureValid(t *testing.T) {
	body := []byte(`{"subscription":{"type":"channel.follow"}}`)
	sig := signEventSub("secret", "msg-1", "2026-01-01T00:00:00Z", body)
	assert.True(t, verifyEventSubSignature("secret", "msg-1", "2026-01-01T00:00:00Z", sig, body))
}

func TestVerifyEventSubSignatureRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"subscription":{"type":"channel.follow"}}`)
	sig := signEventSub("secret", "msg-1", "2026-01-01T00:00:00Z", body)
	assert.False(t, verifyEventSubSignature("secret", "msg-1", "2026-01-01T00:00:00Z", sig, []byte(`{"tampered":true}`)))
}

func TestVerifyEventSubSignatureRejectsMissingPrefix(t *testing.T) {
	assert.False(t, verifyEventSubSignature("secret", "msg-1", "ts", "deadbeef", []byte("body")))
}

func TestNormalizeEventSubCheer(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"broadcaster_user_id":    "1",
		"broadcaster_user_login": "somechannel",
		"user_id":                "2",
		"user_login":             "viewer",
		"bits":                   500,
		"message":                "take my bits",
	})
	require.NoError(t, err)

	env, entityID := normalizeEventSub("channel.cheer", raw)
	assert.Equal(t, "twitch:somechannel:somechannel", entityID)
	assert.Equal(t, "cheer", string(env.EventType))
	bits, ok := env.Metadata["bits"].(int)
	require.True(t, ok)
	assert.Equal(t, 500, bits)
	assert.Equal(t, "take my bits", env.Message)
}

func TestNormalizeEventSubUnknownType(t *testing.T) {
	env, _ := normalizeEventSub("channel.unban_request.create", json.RawMessage(`{}`))
	assert.Equal(t, "unknown", string(env.EventType))
	assert.Contains(t, env.Metadata, "raw")
}
