package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waddlebot/core/pkg/router"
	"github.com/waddlebot/core/pkg/session"
	"github.com/waddlebot/core/pkg/storage"
)

type fakeEntities struct{ communityID string }

func (f fakeEntities) CommunityID(ctx context.Context, entityID string) (string, error) {
	return f.communityID, nil
}

type fakeCommands struct{}

func (fakeCommands) Lookup(ctx context.Context, prefix, command, entityID string) (storage.Command, error) {
	return storage.Command{}, storage.ErrNotFound
}

func (fakeCommands) EventTriggered(ctx context.Context, eventType, entityID string) ([]storage.Command, error) {
	return nil, nil
}

type fakeSessions struct{}

func (fakeSessions) Resolve(ctx context.Context, entityID, userID string) (session.Session, error) {
	return session.Session{SessionID: "sess-1", EntityID: entityID, UserID: userID}, nil
}

func (fakeSessions) SetInteractionModule(ctx context.Context, entityID, userID, module string) error {
	return nil
}

type fakeSessionLookup struct {
	sessions map[string]session.Session
}

func (f fakeSessionLookup) GetByID(ctx context.Context, sessionID string) (session.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return s, nil
}

type fakeActionPusher struct {
	calls []struct{ entityID, userID, message string }
}

func (f *fakeActionPusher) PushChatReply(ctx context.Context, entityID, userID, message string) error {
	f.calls = append(f.calls, struct{ entityID, userID, message string }{entityID, userID, message})
	return nil
}

type fakeCommandLister struct{ commands []storage.Command }

func (f fakeCommandLister) ListActive(ctx context.Context) ([]storage.Command, error) {
	return f.commands, nil
}

func newTestServer() *Server {
	r := router.New(router.Config{}, router.Deps{
		Entities: fakeEntities{communityID: "comm-1"},
		Commands: fakeCommands{},
		Sessions: fakeSessions{},
	})
	return NewServer(r, fakeCommandLister{commands: []storage.Command{
		{ID: 1, Command: "help", Prefix: "!", IsActive: true},
	}}, nil, nil)
}

func TestPostEventHandlerNoCommandMatch(t *testing.T) {
	s := newTestServer()

	body, err := json.Marshal(EventRequest{
		EventID:   "evt-1",
		EventType: "chatMessage",
		Platform:  "twitch",
		EntityID:  "twitch:channel:123",
		UserID:    "user-1",
		Username:  "friend",
		Message:   "just chatting",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/router/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "none", resp.Action)
}

func TestPostEventHandlerRejectsInvalid(t *testing.T) {
	s := newTestServer()

	body, err := json.Marshal(EventRequest{EventID: "evt-1", EventType: "chatMessage", Platform: "twitch"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/router/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}

func TestPostBatchHandlerPreservesOrderAndSize(t *testing.T) {
	s := newTestServer()

	events := make([]EventRequest, 3)
	for i := range events {
		events[i] = EventRequest{
			EventID:   "evt",
			EventType: "chatMessage",
			Platform:  "twitch",
			EntityID:  "twitch:channel:123",
			UserID:    "user-1",
			Username:  "friend",
			Message:   "just chatting",
		}
	}
	body, err := json.Marshal(BatchEventRequest{Events: events})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/router/events/batch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 3)
	for _, r := range resp {
		assert.True(t, r.Success)
	}
}

func TestListCommandsHandler(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/router/commands", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []CommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "help", resp[0].Command)
}

func TestMetricsHandlerReflectsProcessedEvents(t *testing.T) {
	s := newTestServer()

	body, _ := json.Marshal(EventRequest{
		EventID: "evt-1", EventType: "chatMessage", Platform: "twitch",
		EntityID: "twitch:channel:123", UserID: "user-1", Username: "friend", Message: "hi",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/router/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.echo.ServeHTTP(httptest.NewRecorder(), req)

	mreq := httptest.NewRequest(http.MethodGet, "/api/v1/router/metrics", nil)
	mrec := httptest.NewRecorder()
	s.echo.ServeHTTP(mrec, mreq)

	var resp MetricsResponse
	require.NoError(t, json.Unmarshal(mrec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.EventsReceived)
}

func TestPostResponseHandlerSchedulesChatReply(t *testing.T) {
	s := newTestServer()
	lookup := fakeSessionLookup{sessions: map[string]session.Session{
		"sess-1": {SessionID: "sess-1", EntityID: "twitch:channel:123", UserID: "user-1", InteractionModule: "help-module"},
	}}
	pusher := &fakeActionPusher{}
	s.SetResponseCorrelation(lookup, pusher)

	body, err := json.Marshal(ResponseCallbackRequest{
		SessionID:      "sess-1",
		ExecutionID:    "exec-1",
		Success:        true,
		ResponseAction: "chat",
		ResponseData:   map[string]any{"message": "usage: !help <topic>"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/router/responses", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pusher.calls, 1)
	assert.Equal(t, "twitch:channel:123", pusher.calls[0].entityID)
	assert.Equal(t, "user-1", pusher.calls[0].userID)
	assert.Equal(t, "usage: !help <topic>", pusher.calls[0].message)
}

func TestPostResponseHandlerSkipsChatReplyWhenActionIsNotChat(t *testing.T) {
	s := newTestServer()
	lookup := fakeSessionLookup{sessions: map[string]session.Session{
		"sess-1": {SessionID: "sess-1", EntityID: "twitch:channel:123", UserID: "user-1"},
	}}
	pusher := &fakeActionPusher{}
	s.SetResponseCorrelation(lookup, pusher)

	body, err := json.Marshal(ResponseCallbackRequest{SessionID: "sess-1", Success: true, ResponseAction: "moderation"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/router/responses", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, pusher.calls)
}

func TestPostResponseHandlerUnknownSessionID(t *testing.T) {
	s := newTestServer()
	s.SetResponseCorrelation(fakeSessionLookup{sessions: map[string]session.Session{}}, &fakeActionPusher{})

	body, err := json.Marshal(ResponseCallbackRequest{SessionID: "does-not-exist", Success: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/router/responses", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
