package twitch

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/receivers"
)

// EventSubReceiver verifies and normalizes Twitch EventSub webhook
// notifications (follow, subscribe, cheer, raid, stream online/offline),
// per spec.md §4.4.
type EventSubReceiver struct {
	secret    string
	publisher receivers.Publisher
	log       *slog.Logger
}

// NewEventSubReceiver builds an EventSubReceiver verifying against secret
// (the webhook signing secret configured for the EventSub subscription).
func NewEventSubReceiver(secret string, publisher receivers.Publisher, log *slog.Logger) *EventSubReceiver {
	if log == nil {
		log = slog.Default()
	}
	return &EventSubReceiver{secret: secret, publisher: publisher, log: log}
}

// HandleNotification verifies the Twitch-Eventsub-Message-* headers against
// body, and for a webhook_callback_verification challenge returns the
// challenge text to echo back. Otherwise it normalizes the event and
// publishes it, returning "".
func (r *EventSubReceiver) HandleNotification(ctx context.Context, messageID, timestamp, signature string, body []byte) (challenge string, err error) {
	if !verifyEventSubSignature(r.secret, messageID, timestamp, signature, body) {
		return "", fmt.Errorf("receivers/twitch: invalid eventsub signature")
	}

	var envelopeMsg struct {
		Challenge    string `json:"challenge"`
		Subscription struct {
			Type string `json:"type"`
		} `json:"subscription"`
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(body, &envelopeMsg); err != nil {
		return "", fmt.Errorf("receivers/twitch: decode eventsub body: %w", err)
	}
	if envelopeMsg.Challenge != "" {
		return envelopeMsg.Challenge, nil
	}

	env, entityID := normalizeEventSub(envelopeMsg.Subscription.Type, envelopeMsg.Event)
	if err := r.publisher.Publish(ctx, entityID, env); err != nil {
		return "", fmt.Errorf("receivers/twitch: publish: %w", err)
	}
	return "", nil
}

// verifyEventSubSignature checks Twitch's EventSub HMAC scheme: the
// signature header is "sha256=" followed by the hex HMAC-SHA256 of
// message_id + timestamp + body, keyed by the subscription's webhook secret.
func verifyEventSubSignature(secret, messageID, timestamp, signatureHeader string, body []byte) bool {
	const prefix = "sha256="
	if len(signatureHeader) <= len(prefix) || signatureHeader[:len(prefix)] != prefix {
		return false
	}
	expectedHex, err := hex.DecodeString(signatureHeader[len(prefix):])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(messageID))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return subtle.ConstantTimeCompare(mac.Sum(nil), expectedHex) == 1
}

func normalizeEventSub(subType string, raw json.RawMessage) (*envelope.Envelope, string) {
	var fields struct {
		BroadcasterUserID    string `json:"broadcaster_user_id"`
		BroadcasterUserLogin string `json:"broadcaster_user_login"`
		UserID               string `json:"user_id"`
		UserLogin            string `json:"user_login"`
		UserName             string `json:"user_name"`
		Tier                 string `json:"tier"`
		IsGift               bool   `json:"is_gift"`
		Bits                 int    `json:"bits"`
		Message              string `json:"message"`
	}
	_ = json.Unmarshal(raw, &fields)

	entityID := envelope.EntityID(envelope.PlatformTwitch, fields.BroadcasterUserLogin, fields.BroadcasterUserLogin)
	env := &envelope.Envelope{
		EventID:   fmt.Sprintf("%s:%s:%d", subType, fields.UserID, time.Now().UnixNano()),
		Platform:  envelope.PlatformTwitch,
		EntityID:  entityID,
		ServerID:  fields.BroadcasterUserLogin,
		ChannelID: fields.BroadcasterUserLogin,
		UserID:    fields.UserID,
		Username:  fields.UserLogin,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]any{},
	}

	switch subType {
	case "channel.follow":
		env.EventType = envelope.EventTypeFollow
	case "channel.subscribe":
		env.EventType = envelope.EventTypeSubscription
		env.Metadata["tier"] = fields.Tier
	case "channel.subscription.gift":
		env.EventType = envelope.EventTypeSubgift
		env.Metadata["tier"] = fields.Tier
	case "channel.subscription.message":
		env.EventType = envelope.EventTypeResub
		env.Metadata["tier"] = fields.Tier
	case "channel.cheer":
		env.EventType = envelope.EventTypeCheer
		env.Metadata["bits"] = fields.Bits
		env.Message = fields.Message
	case "channel.raid":
		env.EventType = envelope.EventTypeRaid
	case "stream.online", "stream.offline":
		env.EventType = envelope.EventTypeUnknown
		env.Metadata["raw"] = fields
	default:
		env.EventType = envelope.EventTypeUnknown
		env.Metadata["raw"] = fields
	}
	return env, entityID
}
