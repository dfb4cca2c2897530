// Package kick implements the Kick trigger receiver from spec.md §4.4:
// HMAC-signed webhooks for events plus a Pusher WebSocket connection for
// chat.
package kick

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/receivers"
)

// WebhookReceiver verifies and normalizes Kick's signed webhook events
// (follow, subscription, gifted subs).
type WebhookReceiver struct {
	secret    []byte
	publisher receivers.Publisher
	log       *slog.Logger
}

// NewWebhookReceiver builds a WebhookReceiver verifying against secret.
func NewWebhookReceiver(secret string, publisher receivers.Publisher, log *slog.Logger) *WebhookReceiver {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookReceiver{secret: []byte(secret), publisher: publisher, log: log}
}

// kickEvent is the envelope Kick wraps webhook payloads in.
type kickEvent struct {
	Type      string          `json:"event"`
	ChannelID string          `json:"broadcaster_user_id"`
	Data      json.RawMessage `json:"data"`
}

// HandleEvent verifies signatureHex over body and, on success, normalizes
// and publishes the event keyed by entityID.
func (r *WebhookReceiver) HandleEvent(ctx context.Context, entityID string, signatureHex string, body []byte) error {
	if !receivers.VerifyHMACSHA256(r.secret, body, signatureHex) {
		return fmt.Errorf("receivers/kick: invalid webhook signature")
	}

	var evt kickEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("receivers/kick: decode event: %w", err)
	}

	env := normalizeWebhookEvent(entityID, evt)
	return r.publisher.Publish(ctx, entityID, env)
}

func normalizeWebhookEvent(entityID string, evt kickEvent) *envelope.Envelope {
	env := &envelope.Envelope{
		EventID:   fmt.Sprintf("%s:%s:%d", evt.Type, evt.ChannelID, time.Now().UnixNano()),
		Platform:  envelope.PlatformKick,
		EntityID:  entityID,
		ServerID:  evt.ChannelID,
		ChannelID: evt.ChannelID,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]any{},
	}

	var data struct {
		UserID      string `json:"user_id"`
		Username    string `json:"username"`
		Tier        string `json:"tier"`
		GiftedCount int    `json:"gifted_count"`
	}
	_ = json.Unmarshal(evt.Data, &data)
	env.UserID = data.UserID
	env.Username = data.Username

	switch evt.Type {
	case "channel.followed":
		env.EventType = envelope.EventTypeFollow
	case "channel.subscription.new", "channel.subscription.renewal":
		env.EventType = envelope.EventTypeSubscription
		env.Metadata["tier"] = data.Tier
	case "channel.subscription.gifts":
		env.EventType = envelope.EventTypeSubgift
		env.Metadata["gifted_count"] = data.GiftedCount
	default:
		env.EventType = envelope.EventTypeUnknown
		env.Metadata["raw"] = evt
	}
	return env
}
