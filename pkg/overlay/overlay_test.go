package overlay

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waddlebot/core/pkg/stream"
)

func TestBroadcastDeliversToSubscriber(t *testing.T) {
	hub := NewHub(nil)

	srv := httptest.NewServer(ServeWS(hub))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL+"?entity_id=twitch:channel:123", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// Give the server goroutine time to register before broadcasting.
	for i := 0; i < 50 && hub.ConnectionCount("twitch:channel:123") == 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 1, hub.ConnectionCount("twitch:channel:123"))

	err = hub.Broadcast(ctx, Event{EntityID: "twitch:channel:123", Kind: "action", Payload: map[string]string{"message": "hi"}})
	require.NoError(t, err)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "action", got.Kind)
}

func TestConsumerHandleBroadcastsDecodedPayload(t *testing.T) {
	hub := NewHub(nil)
	c := NewConsumer(hub, "response")

	payload, err := json.Marshal(map[string]any{"entity_id": "twitch:channel:123", "message": "done"})
	require.NoError(t, err)

	err = c.Handle(context.Background(), stream.Message{EventID: "evt-1", Payload: payload})
	assert.NoError(t, err)
}
