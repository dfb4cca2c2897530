package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskRedactsBearerToken(t *testing.T) {
	s := NewService()
	out := s.Mask("Authorization: Bearer abc123.def456")
	assert.NotContains(t, out, "abc123.def456")
	assert.Contains(t, out, "[MASKED]")
}

func TestMaskRedactsOAuthJSONField(t *testing.T) {
	s := NewService()
	out := s.Mask(`{"access_token":"secret-value","scope":"read"}`)
	assert.NotContains(t, out, "secret-value")
	assert.Contains(t, out, `"access_token":"[MASKED]"`)
	assert.Contains(t, out, "read")
}

func TestMaskLeavesPlainTextUntouched(t *testing.T) {
	s := NewService()
	assert.Equal(t, "help dispatched", s.Mask("help dispatched"))
}

func TestMaskAppliesRegisteredCodeMasker(t *testing.T) {
	s := NewService()
	s.RegisterMasker(fakeMasker{})
	assert.Equal(t, "[MASKED_BY_FAKE]", s.Mask("trigger"))
}

type fakeMasker struct{}

func (fakeMasker) Name() string              { return "fake" }
func (fakeMasker) AppliesTo(data string) bool { return data == "trigger" }
func (fakeMasker) Mask(data string) string    { return "[MASKED_BY_FAKE]" }
