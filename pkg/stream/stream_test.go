package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamKey(t *testing.T) {
	assert.Equal(t, "events:router:twitch:foo:1", StreamKey("events:router", "twitch:foo:1"))
}

func TestPublishAppendsEntry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	p := NewProducer(client)
	ctx := context.Background()
	key := StreamKey("events:router", "twitch:foo:1")

	require.NoError(t, p.Publish(ctx, key, "evt-1", map[string]any{"hello": "world"}))

	entries, err := client.XRange(ctx, key, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	msg, err := decodeEntry(entries[0])
	require.NoError(t, err)
	assert.Equal(t, "evt-1", msg.EventID)
	assert.Contains(t, string(msg.Payload), "hello")
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{StreamKey: "s", Group: "g", Consumer: "c"}.withDefaults()
	assert.Equal(t, int64(10), cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.BlockTime)
	assert.Equal(t, 8, cfg.MaxConcurrent)
	assert.Equal(t, int64(3), cfg.MaxRetries)
}

func TestConfigWithDefaultsPreservesSetValues(t *testing.T) {
	cfg := Config{BatchSize: 50, BlockTime: time.Second, MaxConcurrent: 2, MaxRetries: 5}.withDefaults()
	assert.Equal(t, int64(50), cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.BlockTime)
	assert.Equal(t, 2, cfg.MaxConcurrent)
	assert.Equal(t, int64(5), cfg.MaxRetries)
}

func TestProcessPublishesToDLQAfterMaxRetries(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	streamKey := "events:test"
	dlqKey := "events:dlq:events:test"

	require.NoError(t, EnsureGroup(ctx, client, streamKey, "g"))

	p := NewProducer(client)
	require.NoError(t, p.Publish(ctx, streamKey, "evt-1", map[string]any{"hello": "world"}))

	res, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group: "g", Consumer: "c", Streams: []string{streamKey, ">"}, Count: 10,
	}).Result()
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Len(t, res[0].Messages, 1)

	msg, err := decodeEntry(res[0].Messages[0])
	require.NoError(t, err)

	// Claiming the entry once more bumps its PEL delivery count from 1 to 2,
	// simulating a redelivered message without waiting on the real reaper.
	require.NoError(t, client.XClaim(ctx, &redis.XClaimArgs{
		Stream: streamKey, Group: "g", Consumer: "c", MinIdle: 0, Messages: []string{msg.ID},
	}).Err())

	w := NewWorker(client, Config{
		StreamKey:    streamKey,
		Group:        "g",
		Consumer:     "c",
		MaxRetries:   2,
		DLQStreamKey: dlqKey,
	}, func(ctx context.Context, m Message) error {
		return errors.New("boom")
	}, nil)

	w.process(ctx, msg)

	entries, err := client.XRange(ctx, dlqKey, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "evt-1", entries[0].Values["event_id"])
	assert.Equal(t, "boom", entries[0].Values["error"])
	assert.Equal(t, "2", entries[0].Values["retry_count"])
	assert.Equal(t, streamKey, entries[0].Values["original_stream"])
	assert.NotEmpty(t, entries[0].Values["timestamp"])
}

func TestNewPoolNamesConsumersByIndex(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	pool := NewPool(client, Config{StreamKey: "s", Group: "g", Consumer: "router"}, 3, func(ctx context.Context, m Message) error { return nil }, nil)
	health := pool.Health()
	require.Len(t, health, 3)
	assert.Equal(t, "router-0", health[0].ID)
	assert.Equal(t, "router-1", health[1].ID)
	assert.Equal(t, "router-2", health[2].ID)
}
