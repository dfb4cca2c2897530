package aaa

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *Logger {
	h := slog.NewJSONHandler(buf, nil)
	return WithLogger(slog.New(h))
}

func TestEmitAuditFields(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)

	l.Audit(context.Background(), "router", "u1", "dispatch_command", ResultSuccess, "corr-1", map[string]any{"command": "help"})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, string(KindAudit), decoded["event_type"])
	assert.Equal(t, "router", decoded["actor"])
	assert.Equal(t, "u1", decoded["subject"])
	assert.Equal(t, "dispatch_command", decoded["action"])
	assert.Equal(t, string(ResultSuccess), decoded["result"])
	assert.Equal(t, "corr-1", decoded["correlation_id"])
	assert.Equal(t, "help", decoded["command"])
}

func TestEmitLevelsByResult(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	l := WithLogger(slog.New(h))

	l.Emit(context.Background(), Record{Kind: KindAuthz, Result: ResultDenied, Action: "authorize"})
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "WARN", decoded["level"])
}

func TestEmitRedactsSecretDetailValues(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)

	l.Audit(context.Background(), "router", "u1", "dispatch_command", ResultFailure, "corr-1",
		map[string]any{"error": `{"access_token":"super-secret","scope":"read"}`})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.NotContains(t, decoded["error"], "super-secret")
}

func TestEmitErrorKindAlwaysErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	l := WithLogger(slog.New(h))

	l.Emit(context.Background(), Record{Kind: KindError, Result: ResultSuccess, Action: "panic_recovered"})
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ERROR", decoded["level"])
}
