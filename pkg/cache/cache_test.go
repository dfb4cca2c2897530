package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New[string, int](time.Minute)
	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestExpiry(t *testing.T) {
	c := New[string, int](time.Millisecond)
	c.Set("a", 1)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestInvalidate(t *testing.T) {
	c := New[string, int](time.Minute)
	c.Set("a", 1)
	c.Invalidate("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestGetOrLoadCachesOnMiss(t *testing.T) {
	c := New[string, int](time.Minute)
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrLoad("a", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = c.GetOrLoad("a", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := New[string, int](time.Minute)
	boom := errors.New("boom")

	_, err := c.GetOrLoad("a", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestKeyConstructors(t *testing.T) {
	assert.Equal(t, "entity:twitch:foo:1", EntityKey("twitch:foo:1"))
	assert.Equal(t, "weight:community1:cheer", WeightKey("community1", "cheer"))
	assert.Equal(t, "command:twitch:foo:1:!help", CommandKey("twitch:foo:1", "!help"))
}
