// Package youtube implements the YouTube Live trigger receiver from
// spec.md §4.4: live-chat polling at the server-directed interval, plus
// PubSubHubbub subscription for video/stream notifications.
package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/receivers"
)

// Poller polls one live chat's messages.list endpoint at the
// server-directed interval and publishes normalized envelopes.
type Poller struct {
	svc        *youtube.Service
	liveChatID string
	entityID   string
	serverID   string
	channelID  string
	publisher  receivers.Publisher
	log        *slog.Logger
	pageToken  string
}

// NewPoller builds a Poller for one active live chat, authenticated with an
// API key (sufficient for public live-chat read access).
func NewPoller(ctx context.Context, apiKey, liveChatID, serverID, channelID string, publisher receivers.Publisher, log *slog.Logger) (*Poller, error) {
	if log == nil {
		log = slog.Default()
	}
	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("receivers/youtube: build service: %w", err)
	}
	entityID := envelope.EntityID(envelope.PlatformYouTube, serverID, channelID)
	return &Poller{
		svc: svc, liveChatID: liveChatID, entityID: entityID,
		serverID: serverID, channelID: channelID, publisher: publisher, log: log,
	}, nil
}

// Run polls in a loop, sleeping for the interval the API directs after each
// page, until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	for {
		interval, err := p.pollOnce(ctx)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// pollOnce fetches one page of new chat messages and returns how long to
// wait before polling again, per the API's pollingIntervalMillis.
func (p *Poller) pollOnce(ctx context.Context) (time.Duration, error) {
	call := p.svc.LiveChatMessages.List(p.liveChatID, []string{"snippet", "authorDetails"})
	if p.pageToken != "" {
		call = call.PageToken(p.pageToken)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("receivers/youtube: list live chat messages: %w", err)
	}
	p.pageToken = resp.NextPageToken

	for _, item := range resp.Items {
		env := p.normalize(item)
		if err := p.publisher.Publish(ctx, p.entityID, env); err != nil {
			p.log.ErrorContext(ctx, "publish failed", "entity_id", p.entityID, "error", err)
		}
	}

	interval := time.Duration(resp.PollingIntervalMillis) * time.Millisecond
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return interval, nil
}

func (p *Poller) normalize(item *youtube.LiveChatMessage) *envelope.Envelope {
	env := &envelope.Envelope{
		EventID:   item.Id,
		Platform:  envelope.PlatformYouTube,
		EntityID:  p.entityID,
		ServerID:  p.serverID,
		ChannelID: p.channelID,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]any{},
	}
	if item.AuthorDetails != nil {
		env.UserID = item.AuthorDetails.ChannelId
		env.Username = item.AuthorDetails.DisplayName
		env.DisplayName = item.AuthorDetails.DisplayName
	}

	if item.Snippet == nil {
		env.EventType = envelope.EventTypeUnknown
		env.Metadata["raw"] = item
		return env
	}

	switch item.Snippet.Type {
	case "textMessageEvent":
		env.EventType = envelope.EventTypeChatMessage
		if item.Snippet.TextMessageDetails != nil {
			env.Message = item.Snippet.TextMessageDetails.MessageText
		}
	case "superChatEvent":
		env.EventType = envelope.EventTypeDonation
		if d := item.Snippet.SuperChatDetails; d != nil {
			env.Message = d.UserComment
			env.Metadata["amount"] = float64(d.AmountMicros) / 1e6
			env.Metadata["currency"] = d.Currency
		}
	case "newSponsorEvent":
		env.EventType = envelope.EventTypeSubscription
	case "memberMilestoneChatEvent":
		env.EventType = envelope.EventTypeResub
	default:
		env.EventType = envelope.EventTypeUnknown
		env.Metadata["raw"] = item.Snippet
	}
	return env
}
