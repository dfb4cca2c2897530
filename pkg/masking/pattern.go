package masking

import (
	"log/slog"
	"regexp"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// builtinPatterns are the fixed set of secret shapes this module redacts
// before they reach an audit record, per spec.md §4.6. Unlike the
// teacher's per-MCP-server configurable pattern groups, this set is fixed
// at compile time — there is no per-deployment masking config in
// spec.md.
var builtinPatterns = []CompiledPattern{
	{
		Name:        "bearer_token",
		Regex:       regexp.MustCompile(`(?i)bearer\s+[a-z0-9._~+/-]+=*`),
		Replacement: "bearer [MASKED]",
	},
	{
		Name:        "jwt",
		Regex:       regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		Replacement: "[MASKED_JWT]",
	},
	{
		Name:        "oauth_token_field",
		Regex:       regexp.MustCompile(`(?i)("(?:access_token|refresh_token|client_secret|webhook_secret|api_key)"\s*:\s*")[^"]+(")`),
		Replacement: "${1}[MASKED]${2}",
	},
}

// compileBuiltinPatterns compiles builtinPatterns into s.patterns. Invalid
// patterns are logged and skipped — none are expected to fail since they
// are compile-time constants, but a fail-closed service never panics on a
// bad pattern.
func (s *Service) compileBuiltinPatterns() {
	for _, p := range builtinPatterns {
		if p.Regex == nil {
			slog.Error("masking: skipping pattern with nil regex", "pattern", p.Name)
			continue
		}
		s.patterns[p.Name] = &p
	}
}
