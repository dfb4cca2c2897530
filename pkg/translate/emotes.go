package translate

import (
	"context"
	"time"

	"github.com/waddlebot/core/pkg/cache"
)

const (
	// GlobalEmoteCacheTTL is how long a platform-wide emote catalog is
	// cached before being refetched, per spec.md §4.5.
	GlobalEmoteCacheTTL = 30 * 24 * time.Hour
	// ChannelEmoteCacheTTL is how long a channel's own emote set is
	// cached, refreshed far more often than the global catalog.
	ChannelEmoteCacheTTL = 24 * time.Hour
)

// EmoteFetcher retrieves the emote codes known to a platform, and
// (optionally) a channel's own custom emotes, from that platform's emote
// service.
type EmoteFetcher interface {
	GlobalEmotes(ctx context.Context, platform string) ([]string, error)
	ChannelEmotes(ctx context.Context, platform, channelID string) ([]string, error)
}

// CachedEmoteCatalog resolves a channel's usable emote codes (global ∪
// channel-specific) through two TTL caches with different lifetimes, since
// global catalogs churn far less than a channel's own emote set.
type CachedEmoteCatalog struct {
	fetcher EmoteFetcher
	global  *cache.Cache[string, []string]
	channel *cache.Cache[string, []string]
}

// NewCachedEmoteCatalog builds a CachedEmoteCatalog over fetcher.
func NewCachedEmoteCatalog(fetcher EmoteFetcher) *CachedEmoteCatalog {
	return &CachedEmoteCatalog{
		fetcher: fetcher,
		global:  cache.New[string, []string](GlobalEmoteCacheTTL),
		channel: cache.New[string, []string](ChannelEmoteCacheTTL),
	}
}

// For resolves the combined emote set for (platform, channelID), ready to
// use as an EmoteCatalog in Preprocess.
func (c *CachedEmoteCatalog) For(ctx context.Context, platform, channelID string) ([]string, error) {
	global, err := c.global.GetOrLoad(platform, func() ([]string, error) {
		return c.fetcher.GlobalEmotes(ctx, platform)
	})
	if err != nil {
		return nil, err
	}

	channelKey := platform + ":" + channelID
	chEmotes, err := c.channel.GetOrLoad(channelKey, func() ([]string, error) {
		return c.fetcher.ChannelEmotes(ctx, platform, channelID)
	})
	if err != nil {
		return nil, err
	}

	return append(append([]string{}, global...), chEmotes...), nil
}

// codeList adapts a plain []string to the EmoteCatalog interface used by
// Preprocess.
type codeList []string

func (c codeList) Codes() []string { return c }

// CatalogFor returns an EmoteCatalog for (platform, channelID), ready to
// pass to Preprocess.
func (c *CachedEmoteCatalog) CatalogFor(ctx context.Context, platform, channelID string) (EmoteCatalog, error) {
	codes, err := c.For(ctx, platform, channelID)
	if err != nil {
		return nil, err
	}
	return codeList(codes), nil
}
