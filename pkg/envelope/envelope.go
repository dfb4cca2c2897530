// Package envelope defines the canonical event shape that flows through
// every stream in the pipeline: receivers produce it, the router and
// reputation engine consume it, action pushers and the overlay broadcaster
// emit responses shaped by it.
package envelope

import (
	"fmt"
	"strings"
	"time"
)

// EventType enumerates the canonical event kinds recognized by the router
// and reputation engine. Receivers MUST map unrecognized platform payloads
// to EventTypeUnknown rather than dropping them.
type EventType string

const (
	EventTypeChatMessage  EventType = "chatMessage"
	EventTypeSubscription EventType = "subscription"
	EventTypeFollow       EventType = "follow"
	EventTypeDonation     EventType = "donation"
	EventTypeCheer        EventType = "cheer"
	EventTypeRaid         EventType = "raid"
	EventTypeHost         EventType = "host"
	EventTypeSubgift      EventType = "subgift"
	EventTypeResub        EventType = "resub"
	EventTypeReaction     EventType = "reaction"
	EventTypeMemberJoin   EventType = "member_join"
	EventTypeMemberLeave  EventType = "member_leave"
	EventTypeVoiceJoin    EventType = "voice_join"
	EventTypeVoiceLeave   EventType = "voice_leave"
	EventTypeBoost        EventType = "boost"
	EventTypeBan          EventType = "ban"
	EventTypeKick         EventType = "kick"
	EventTypeTimeout      EventType = "timeout"
	EventTypeWarn         EventType = "warn"
	EventTypeFileShare    EventType = "file_share"
	EventTypeAppMention   EventType = "app_mention"
	EventTypeChannelJoin  EventType = "channel_join"
	EventTypeUnknown      EventType = "unknown"
)

// Platform enumerates the source platforms a receiver may normalize from.
type Platform string

const (
	PlatformTwitch  Platform = "twitch"
	PlatformDiscord Platform = "discord"
	PlatformSlack   Platform = "slack"
	PlatformYouTube Platform = "youtube"
	PlatformKick    Platform = "kick"
	PlatformUnknown Platform = "unknown"
)

// MaxMessageLength is the maximum allowed length of Envelope.Message, per
// the data model in spec.md §3.
const MaxMessageLength = 5000

// Envelope is the canonical, immutable event record. Once created by a
// receiver it is never mutated; every downstream stage reads it, derives
// from it, and forwards it (or a response keyed by its EventID) onward.
type Envelope struct {
	EventID     string         `json:"event_id"`
	EventType   EventType      `json:"event_type"`
	Platform    Platform       `json:"platform"`
	EntityID    string         `json:"entity_id"`
	ServerID    string         `json:"server_id,omitempty"`
	ChannelID   string         `json:"channel_id,omitempty"`
	UserID      string         `json:"user_id"`
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name,omitempty"`
	Message     string         `json:"message,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// EntityID derives the canonical entity_id from a platform/server/channel
// triple, per spec.md §3: "entity_id MUST be derivable from
// platform/server_id/channel_id".
func EntityID(platform Platform, serverID, channelID string) string {
	return fmt.Sprintf("%s:%s:%s", platform, serverID, channelID)
}

// SplitEntityID parses an entity_id back into its platform/server/channel
// parts. Returns an error if the format does not match "platform:server:channel".
func SplitEntityID(entityID string) (platform Platform, serverID, channelID string, err error) {
	parts := strings.SplitN(entityID, ":", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("envelope: malformed entity_id %q", entityID)
	}
	return Platform(parts[0]), parts[1], parts[2], nil
}

// Validate checks the envelope against the invariants in spec.md §3:
// required fields present, message length bound, and entity_id agreement
// when server_id/channel_id are also supplied.
func (e *Envelope) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("%w: event_id is required", ErrValidation)
	}
	if e.Platform == "" {
		return fmt.Errorf("%w: platform is required", ErrValidation)
	}
	if e.EntityID == "" {
		return fmt.Errorf("%w: entity_id is required", ErrValidation)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if len(e.Message) > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", ErrValidation, MaxMessageLength)
	}

	if e.ServerID != "" && e.ChannelID != "" {
		derived := EntityID(e.Platform, e.ServerID, e.ChannelID)
		if derived != e.EntityID {
			return fmt.Errorf("%w: entity_id %q disagrees with derived %q", ErrValidation, e.EntityID, derived)
		}
	}

	return nil
}

// MetadataString reads a string field from Metadata, returning "" if absent
// or of the wrong type. Metadata stays an opaque map at the envelope layer
// per spec.md §9; subsystems that need typed metadata (donation amount,
// cheer bits) convert on entry via MetadataFloat below.
func (e *Envelope) MetadataString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	if v, ok := e.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// MetadataFloat reads a numeric field from Metadata as a float64, accepting
// both float64 (typical after JSON decode) and int.
func (e *Envelope) MetadataFloat(key string) (float64, bool) {
	if e.Metadata == nil {
		return 0, false
	}
	switch v := e.Metadata[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
