// Package masking redacts secret-shaped values (OAuth tokens, webhook
// HMAC secrets, bearer/API keys) out of audit log details before they
// reach pkg/aaa, per spec.md §4.6's requirement that audit records never
// leak credential material.
//
// Adapted from the teacher's pkg/masking: the teacher built a
// configurable regex/code-masker service driven by its MCP server
// registry's per-server DataMasking config, used to scrub LLM tool
// results. This module has no MCP servers or per-server masking config,
// so the registry-driven pattern-group indirection was dropped; the
// underlying idea — a set of compiled regex patterns applied
// fail-closed, with room for a structural code-based Masker alongside
// them — is kept.
package masking

// Masker is the interface for code-based maskers that need structural
// awareness beyond regex pattern matching.
type Masker interface {
	// Name returns the unique identifier for this masker.
	Name() string

	// AppliesTo performs a lightweight check on whether this masker
	// should process the data. Should be fast (string contains, not parsing).
	AppliesTo(data string) bool

	// Mask applies masking logic and returns the masked result.
	// Must be defensive: return original data on parse/processing errors.
	Mask(data string) string
}
