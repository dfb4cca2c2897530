// Package receivers defines the shared protocol-adapter contract from
// spec.md §4.4: channel discovery against the routing table, webhook
// signature verification, and publishing normalized envelopes onto the
// inbound stream. Platform-specific adapters live in subpackages.
package receivers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/storage"
	"github.com/waddlebot/core/pkg/stream"
)

// DefaultChannelRefreshInterval is how often a ChannelSet reloads its
// attachment set from the routing table (spec.md §4.4, default 300s).
const DefaultChannelRefreshInterval = 300 * time.Second

// Publisher is the outbound side of a receiver: publish a normalized
// envelope onto the events:inbound stream, keyed by entity_id.
type Publisher interface {
	Publish(ctx context.Context, entityID string, env *envelope.Envelope) error
}

// StreamPublisher adapts a *stream.Producer to the Publisher contract, using
// the inbound stream key prefix shared by every receiver.
type StreamPublisher struct {
	Producer  *stream.Producer
	KeyPrefix string // e.g. "events:inbound"
}

// NewStreamPublisher builds a StreamPublisher over producer using keyPrefix.
func NewStreamPublisher(producer *stream.Producer, keyPrefix string) *StreamPublisher {
	return &StreamPublisher{Producer: producer, KeyPrefix: keyPrefix}
}

func (p *StreamPublisher) Publish(ctx context.Context, entityID string, env *envelope.Envelope) error {
	key := stream.StreamKey(p.KeyPrefix, entityID)
	return p.Producer.Publish(ctx, key, env.EventID, env)
}

// Channel is one (platform, entity_id, community_id) attachment a receiver
// should be listening on.
type Channel struct {
	EntityID    string
	ServerID    string
	ChannelID   string
	CommunityID string
}

// ChannelSet tracks the attachment set for one platform and refreshes it
// periodically from the routing table, per spec.md §4.4 "Channel discovery".
type ChannelSet struct {
	platform envelope.Platform
	entities *storage.EntityRepo
	interval time.Duration
	log      *slog.Logger

	mu       sync.RWMutex
	channels []Channel
}

// NewChannelSet builds a ChannelSet for platform, refreshed from entities.
func NewChannelSet(platform envelope.Platform, entities *storage.EntityRepo, log *slog.Logger) *ChannelSet {
	if log == nil {
		log = slog.Default()
	}
	return &ChannelSet{platform: platform, entities: entities, interval: DefaultChannelRefreshInterval, log: log}
}

// Channels returns the currently loaded attachment set.
func (c *ChannelSet) Channels() []Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels
}

// Refresh reloads the attachment set once, by listing entities for the
// platform.
func (c *ChannelSet) Refresh(ctx context.Context) error {
	entities, err := c.entities.EntitiesByPlatform(ctx, string(c.platform))
	if err != nil {
		return err
	}
	channels := make([]Channel, 0, len(entities))
	for _, e := range entities {
		channels = append(channels, Channel{
			EntityID:    e.EntityID,
			ServerID:    e.ServerID,
			ChannelID:   e.ChannelID,
			CommunityID: e.CommunityID,
		})
	}
	c.mu.Lock()
	c.channels = channels
	c.mu.Unlock()
	return nil
}

// Run refreshes on c.interval until ctx is cancelled. Refresh errors are
// logged and do not stop the loop — a transient routing-table outage
// shouldn't take a receiver offline.
func (c *ChannelSet) Run(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.log.WarnContext(ctx, "initial channel discovery failed", "platform", c.platform, "error", err)
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.log.WarnContext(ctx, "channel discovery refresh failed", "platform", c.platform, "error", err)
			}
		}
	}
}
