// Package overlay implements the WebSocket broadcaster shown in spec.md's
// architecture diagram ("Overlay broadcaster (WebSocket)"): fan-out of
// routed events to browser-source overlay clients subscribed to one
// entity_id. Rendering the overlay itself is explicitly out of scope
// (spec.md's Non-goals name "browser-source overlay rendering" as an
// external collaborator) — this package only owns the broadcast fan-out.
//
// Grounded on github.com/coder/websocket (already in the dependency set;
// none of the teacher's own code opens websockets, so the connection
// accept/read/write shape here follows coder/websocket's own documented
// usage rather than a teacher file).
package overlay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Event is one message pushed to subscribed overlay clients for an
// entity_id.
type Event struct {
	EntityID string `json:"entity_id"`
	Kind     string `json:"kind"`
	Payload  any    `json:"payload"`
}

// Hub tracks subscribed overlay connections per entity_id and fans out
// Events to all of them.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]struct{}
	log   *slog.Logger
}

// NewHub builds an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{conns: make(map[string]map[*websocket.Conn]struct{}), log: log}
}

// Register subscribes conn to broadcasts for entityID. The returned func
// unregisters it; callers must call it once the connection closes.
func (h *Hub) Register(entityID string, conn *websocket.Conn) func() {
	h.mu.Lock()
	if h.conns[entityID] == nil {
		h.conns[entityID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[entityID][conn] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.conns[entityID], conn)
		if len(h.conns[entityID]) == 0 {
			delete(h.conns, entityID)
		}
		h.mu.Unlock()
	}
}

// Broadcast sends ev to every connection subscribed to ev.EntityID. A
// connection whose write fails is dropped from the hub — overlay clients
// reconnect on their own, so a stale socket is never worth retrying.
func (h *Hub) Broadcast(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns[ev.EntityID]))
	for c := range h.conns[ev.EntityID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.Write(ctx, websocket.MessageText, raw); err != nil {
			h.log.WarnContext(ctx, "overlay: dropping connection after write failure",
				"entity_id", ev.EntityID, "error", err)
			h.mu.Lock()
			delete(h.conns[ev.EntityID], c)
			h.mu.Unlock()
		}
	}
	return nil
}

// ConnectionCount reports how many clients are subscribed to entityID, for
// the metrics surface.
func (h *Hub) ConnectionCount(entityID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[entityID])
}
