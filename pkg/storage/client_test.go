package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestClient(t *testing.T) *Client {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := NewClient(ctx, Config{
		DatabaseURL: connStr,
		MaxConns:    10,
		MinConns:    1,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestClientConnectsAndMigrates(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	health, err := Health(ctx, client.Pool())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestEntityRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := client.Entities.Upsert(ctx, Entity{
		EntityID:    "twitch:foo:1",
		Platform:    "twitch",
		ServerID:    "foo",
		ChannelID:   "1",
		CommunityID: "community-a",
	})
	require.NoError(t, err)

	community, err := client.Entities.CommunityID(ctx, "twitch:foo:1")
	require.NoError(t, err)
	assert.Equal(t, "community-a", community)

	_, err = client.Entities.CommunityID(ctx, "twitch:bar:2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReputationRecordEventClampsAndDedups(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	result, err := client.Reputation.RecordEvent(ctx, "community-a", "user-1", "twitch:foo:1", "evt-1", "follow", 300, nil)
	require.NoError(t, err)
	assert.Equal(t, MaxScore, result.NewScore) // 600 + 300 clamps to 850
	assert.Equal(t, int64(1), result.TotalEvents)

	_, err = client.Reputation.RecordEvent(ctx, "community-a", "user-1", "twitch:foo:1", "evt-1", "follow", 300, nil)
	require.ErrorIs(t, err, ErrDuplicateEvent)

	rep, err := client.Reputation.GetScore(ctx, "community-a", "user-1")
	require.NoError(t, err)
	assert.Equal(t, MaxScore, rep.Score)
	assert.Equal(t, int64(1), rep.TotalEvents)
}

func TestCommandLookupPrefersEntityScoped(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Commands.Upsert(ctx, Command{
		Command: "help", Prefix: "!", LocationURL: "http://global", Transport: TransportREST,
		Method: "POST", TimeoutMS: 5000, ModuleID: "core", TriggerType: TriggerCommand, IsActive: true, Version: 1,
	}))

	require.NoError(t, client.Entities.Upsert(ctx, Entity{
		EntityID: "twitch:foo:1", Platform: "twitch", ServerID: "foo", ChannelID: "1", CommunityID: "community-a",
	}))
	require.NoError(t, client.Commands.Upsert(ctx, Command{
		Command: "help", Prefix: "!", LocationURL: "http://scoped", Transport: TransportREST,
		Method: "POST", TimeoutMS: 5000, ModuleID: "core", TriggerType: TriggerCommand,
		EntityID: "twitch:foo:1", IsActive: true, Version: 1,
	}))

	cmd, err := client.Commands.Lookup(ctx, "!", "help", "twitch:foo:1")
	require.NoError(t, err)
	assert.Equal(t, "http://scoped", cmd.LocationURL)

	cmd, err = client.Commands.Lookup(ctx, "!", "help", "twitch:other:2")
	require.NoError(t, err)
	assert.Equal(t, "http://global", cmd.LocationURL)
}
