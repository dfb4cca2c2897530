package translate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	globalCalls  int
	channelCalls int
}

func (f *countingFetcher) GlobalEmotes(ctx context.Context, platform string) ([]string, error) {
	f.globalCalls++
	return []string{"Kappa", "PogChamp"}, nil
}

func (f *countingFetcher) ChannelEmotes(ctx context.Context, platform, channelID string) ([]string, error) {
	f.channelCalls++
	return []string{"channelEmote"}, nil
}

func TestCachedEmoteCatalogCombinesGlobalAndChannel(t *testing.T) {
	fetcher := &countingFetcher{}
	catalog := NewCachedEmoteCatalog(fetcher)

	codes, err := catalog.For(context.Background(), "twitch", "chan1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Kappa", "PogChamp", "channelEmote"}, codes)
}

func TestCachedEmoteCatalogCachesAcrossCalls(t *testing.T) {
	fetcher := &countingFetcher{}
	catalog := NewCachedEmoteCatalog(fetcher)

	_, err := catalog.For(context.Background(), "twitch", "chan1")
	require.NoError(t, err)
	_, err = catalog.For(context.Background(), "twitch", "chan1")
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.globalCalls)
	assert.Equal(t, 1, fetcher.channelCalls)
}

func TestCachedEmoteCatalogPerChannelIsolation(t *testing.T) {
	fetcher := &countingFetcher{}
	catalog := NewCachedEmoteCatalog(fetcher)

	_, err := catalog.For(context.Background(), "twitch", "chan1")
	require.NoError(t, err)
	_, err = catalog.For(context.Background(), "twitch", "chan2")
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.globalCalls)
	assert.Equal(t, 2, fetcher.channelCalls)
}
