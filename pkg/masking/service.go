package masking

import "log/slog"

// Service applies fixed-pattern redaction to audit log detail values
// before pkg/aaa emits them, per spec.md §4.6. Created once at startup
// (singleton), thread-safe and stateless aside from compiled patterns.
type Service struct {
	patterns    map[string]*CompiledPattern
	codeMaskers map[string]Masker
}

// NewService builds a Service with every builtin pattern compiled eagerly.
func NewService() *Service {
	s := &Service{
		patterns:    make(map[string]*CompiledPattern),
		codeMaskers: make(map[string]Masker),
	}
	s.compileBuiltinPatterns()

	slog.Debug("masking: service initialized", "compiled_patterns", len(s.patterns))
	return s
}

// RegisterMasker adds a structural code-based masker alongside the builtin
// regex patterns, applied before them (more specific first).
func (s *Service) RegisterMasker(m Masker) {
	s.codeMaskers[m.Name()] = m
}

// Mask redacts every builtin pattern match (and any registered code
// masker) out of content. Fail-closed: a masker that cannot safely
// process content should itself return the original string rather than
// panicking — Mask does not recover panics.
func (s *Service) Mask(content string) string {
	if content == "" {
		return content
	}

	masked := content
	for _, m := range s.codeMaskers {
		if m.AppliesTo(masked) {
			masked = m.Mask(masked)
		}
	}
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}
