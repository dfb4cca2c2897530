package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/waddlebot/core/pkg/stream"
)

// ServeWS upgrades r to a WebSocket connection and subscribes it to hub's
// broadcasts for the entity_id query parameter, blocking until the client
// disconnects or ctx is cancelled.
func ServeWS(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityID := r.URL.Query().Get("entity_id")
		if entityID == "" {
			http.Error(w, "entity_id is required", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		unregister := hub.Register(entityID, conn)
		defer unregister()

		ctx := r.Context()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}
}

// Consumer adapts overlay-worthy events into Hub broadcasts. It satisfies
// the same Handle(ctx, stream.Message) shape as pkg/actionpush.Worker, so
// it can be wired onto pkg/stream.Pool consuming events:responses or
// events:actions the same way the router's inbound pipeline consumes
// events:inbound.
type Consumer struct {
	hub  *Hub
	kind string
}

// NewConsumer builds a Consumer tagging every broadcast Event with kind
// (e.g. "action", "response").
func NewConsumer(hub *Hub, kind string) *Consumer {
	return &Consumer{hub: hub, kind: kind}
}

// Handle implements stream.Handler: decode msg.Payload into a generic map
// and broadcast it to whatever entity_id field the payload carries.
func (c *Consumer) Handle(ctx context.Context, msg stream.Message) error {
	var payload map[string]any
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("overlay: decode payload: %w", err)
	}
	entityID, _ := payload["entity_id"].(string)
	return c.hub.Broadcast(ctx, Event{EntityID: entityID, Kind: c.kind, Payload: payload})
}
