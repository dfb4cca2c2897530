package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	prefix, cmd, args, ok := Parse("!help me please", []string{"!", "#"})
	require.True(t, ok)
	assert.Equal(t, "!", prefix)
	assert.Equal(t, "help", cmd)
	assert.Equal(t, []string{"me", "please"}, args)
}

func TestParseCommandCaseInsensitive(t *testing.T) {
	_, cmd, _, ok := Parse("!HELP", []string{"!"})
	require.True(t, ok)
	assert.Equal(t, "help", cmd)
}

func TestParseCommandNoPrefix(t *testing.T) {
	_, _, _, ok := Parse("hello there", []string{"!", "#"})
	assert.False(t, ok)
}

func TestParseCommandPrefixOnly(t *testing.T) {
	_, _, _, ok := Parse("!", []string{"!"})
	assert.False(t, ok)
}

func TestParseCommandEmptyMessage(t *testing.T) {
	_, _, _, ok := Parse("", []string{"!"})
	assert.False(t, ok)
}

func TestParseCommandPrefersLongestPrefix(t *testing.T) {
	prefix, cmd, _, ok := Parse("!!help", []string{"!", "!!"})
	require.True(t, ok)
	assert.Equal(t, "!!", prefix)
	assert.Equal(t, "help", cmd)
}

func TestLoadReservedTable(t *testing.T) {
	table, err := LoadReservedTable()
	require.NoError(t, err)

	assert.True(t, table.IsReserved("twitch", "ban"))
	assert.True(t, table.IsReserved("TWITCH", "BAN"))
	assert.True(t, table.IsReserved("discord", "kick"))
	assert.False(t, table.IsReserved("discord", "ban_this_is_not_reserved"))
	assert.False(t, table.IsReserved("unknown-platform", "ban"))
}
