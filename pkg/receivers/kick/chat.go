package kick

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/receivers"
)

// pusherEndpoint is Kick's public Pusher app key endpoint for chatroom
// events, grounded on Kick's documented Pusher-compatible websocket feed.
const pusherEndpoint = "wss://ws-us2.pusher.com/app/32cbd69e4b950bf97679?protocol=7&client=js&version=7.6.0&flash=false"

// pusherFrame is the generic envelope every Pusher message arrives in.
type pusherFrame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// ChatClient subscribes to one chatroom's Pusher channel and relays
// ChatMessageEvent frames as normalized envelopes.
type ChatClient struct {
	conn       *websocket.Conn
	chatroomID string
	serverID   string
	channelID  string
	publisher  receivers.Publisher
	log        *slog.Logger
}

// Dial connects to Kick's Pusher endpoint and subscribes to chatroomID's
// public channel.
func Dial(ctx context.Context, chatroomID, serverID, channelID string, publisher receivers.Publisher, log *slog.Logger) (*ChatClient, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, _, err := websocket.Dial(ctx, pusherEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("receivers/kick: dial pusher: %w", err)
	}

	c := &ChatClient{
		conn: conn, chatroomID: chatroomID, serverID: serverID,
		channelID: channelID, publisher: publisher, log: log,
	}

	sub := pusherFrame{
		Event: "pusher:subscribe",
		Data:  json.RawMessage(fmt.Sprintf(`{"channel":"chatrooms.%s.v2"}`, chatroomID)),
	}
	if err := wsjson.Write(ctx, conn, sub); err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return nil, fmt.Errorf("receivers/kick: subscribe: %w", err)
	}
	return c, nil
}

// Close closes the underlying websocket.
func (c *ChatClient) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "closing")
}

// Run reads frames until ctx is cancelled, publishing normalized chat
// message envelopes. Pusher protocol frames (pings, subscribe acks) are
// skipped; any other event type is published as an EventTypeUnknown
// envelope with the frame in metadata.raw.
func (c *ChatClient) Run(ctx context.Context) error {
	for {
		var frame pusherFrame
		if err := wsjson.Read(ctx, c.conn, &frame); err != nil {
			return fmt.Errorf("receivers/kick: read: %w", err)
		}

		var env *envelope.Envelope
		switch {
		case frame.Event == "App\\Events\\ChatMessageEvent":
			env = c.normalizeChatEvent(frame.Data)
		case strings.HasPrefix(frame.Event, "pusher"):
			continue
		default:
			env = &envelope.Envelope{
				EventID:   fmt.Sprintf("%s:%s:%d", frame.Event, c.chatroomID, time.Now().UnixNano()),
				EventType: envelope.EventTypeUnknown,
				Platform:  envelope.PlatformKick,
				EntityID:  envelope.EntityID(envelope.PlatformKick, c.serverID, c.channelID),
				ServerID:  c.serverID,
				ChannelID: c.channelID,
				Timestamp: time.Now().UTC(),
				Metadata:  map[string]any{"raw": frame},
			}
		}
		if env == nil {
			continue
		}
		if err := c.publisher.Publish(ctx, env.EntityID, env); err != nil {
			c.log.ErrorContext(ctx, "publish failed", "entity_id", env.EntityID, "error", err)
		}
	}
}

func (c *ChatClient) normalizeChatEvent(data json.RawMessage) *envelope.Envelope {
	var inner struct {
		ID      string `json:"id"`
		Content string `json:"content"`
		Sender  struct {
			ID       int    `json:"id"`
			Username string `json:"username"`
			Slug     string `json:"slug"`
		} `json:"sender"`
	}
	if err := json.Unmarshal(data, &inner); err != nil {
		return nil
	}

	entityID := envelope.EntityID(envelope.PlatformKick, c.serverID, c.channelID)
	return &envelope.Envelope{
		EventID:   inner.ID,
		EventType: envelope.EventTypeChatMessage,
		Platform:  envelope.PlatformKick,
		EntityID:  entityID,
		ServerID:  c.serverID,
		ChannelID: c.channelID,
		UserID:    fmt.Sprintf("%d", inner.Sender.ID),
		Username:  inner.Sender.Slug,
		Message:   inner.Content,
		Timestamp: time.Now().UTC(),
	}
}
