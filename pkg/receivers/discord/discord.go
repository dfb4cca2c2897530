// Package discord implements the Discord trigger receiver from spec.md
// §4.4: a gateway connection recognizing prefix/slash commands, modal
// submissions, and button clicks, normalized to envelope.Envelope.
package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/receivers"
)

// SessionStateKey is the hidden custom-ID field carrying the originating
// session_id through modal submissions and button clicks, per spec.md §4.4
// ("carry the originating session_id in a hidden state field").
const SessionStateKey = "wbsid:"

// Receiver owns a discordgo session and publishes normalized envelopes.
type Receiver struct {
	session   *discordgo.Session
	publisher receivers.Publisher
	log       *slog.Logger
}

// NewReceiver builds a Receiver authenticated with a bot token.
func NewReceiver(botToken string, publisher receivers.Publisher, log *slog.Logger) (*Receiver, error) {
	if log == nil {
		log = slog.Default()
	}
	sess, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, err
	}
	sess.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent | discordgo.IntentsGuilds

	r := &Receiver{session: sess, publisher: publisher, log: log}
	sess.AddHandler(r.onMessageCreate)
	sess.AddHandler(r.onInteractionCreate)
	return r, nil
}

// Open establishes the gateway connection.
func (r *Receiver) Open() error { return r.session.Open() }

// Close tears down the gateway connection.
func (r *Receiver) Close() error { return r.session.Close() }

func (r *Receiver) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	entityID := envelope.EntityID(envelope.PlatformDiscord, m.GuildID, m.ChannelID)
	env := &envelope.Envelope{
		EventID:     m.ID,
		EventType:   envelope.EventTypeChatMessage,
		Platform:    envelope.PlatformDiscord,
		EntityID:    entityID,
		ServerID:    m.GuildID,
		ChannelID:   m.ChannelID,
		UserID:      m.Author.ID,
		Username:    m.Author.Username,
		DisplayName: m.Author.GlobalName,
		Message:     m.Content,
		Timestamp:   time.Now().UTC(),
	}
	r.publish(entityID, env)
}

func (r *Receiver) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	entityID := envelope.EntityID(envelope.PlatformDiscord, i.GuildID, i.ChannelID)
	env := &envelope.Envelope{
		Platform:  envelope.PlatformDiscord,
		EntityID:  entityID,
		ServerID:  i.GuildID,
		ChannelID: i.ChannelID,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]any{},
	}

	member := i.Member
	if member != nil && member.User != nil {
		env.UserID = member.User.ID
		env.Username = member.User.Username
	} else if i.User != nil {
		env.UserID = i.User.ID
		env.Username = i.User.Username
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		env.EventID = i.ID
		env.EventType = envelope.EventTypeChatMessage
		env.Message = "/" + data.Name
		env.Metadata["options"] = data.Options
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		env.EventID = i.ID
		env.EventType = envelope.EventTypeReaction
		env.Message = data.CustomID
		if sid, ok := sessionIDFromCustomID(data.CustomID); ok {
			env.Metadata["session_id"] = sid
		}
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		env.EventID = i.ID
		env.EventType = envelope.EventTypeReaction
		env.Message = data.CustomID
		if sid, ok := sessionIDFromCustomID(data.CustomID); ok {
			env.Metadata["session_id"] = sid
		}
		env.Metadata["raw"] = data
	default:
		env.EventID = i.ID
		env.EventType = envelope.EventTypeUnknown
		env.Metadata["raw"] = i
	}

	r.publish(entityID, env)
}

func (r *Receiver) publish(entityID string, env *envelope.Envelope) {
	if err := r.publisher.Publish(context.Background(), entityID, env); err != nil {
		r.log.Error("receivers/discord: publish failed", "entity_id", entityID, "error", err)
	}
}

// sessionIDFromCustomID extracts a session_id from a custom_id that was
// built by prefixing SessionStateKey, e.g. "wbsid:abc123:confirm".
func sessionIDFromCustomID(customID string) (string, bool) {
	if len(customID) <= len(SessionStateKey) || customID[:len(SessionStateKey)] != SessionStateKey {
		return "", false
	}
	rest := customID[len(SessionStateKey):]
	for i, c := range rest {
		if c == ':' {
			return rest[:i], true
		}
	}
	return rest, true
}
