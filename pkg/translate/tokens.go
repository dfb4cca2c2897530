// Package translate implements the translation preprocessor from
// spec.md §4.5: a token preservation pass, a tiered language-detection
// ensemble, and an AI-verified translate/restore round trip.
package translate

import (
	"fmt"
	"regexp"
	"strings"
)

// TokenType classifies a span preserved from translation.
type TokenType string

const (
	TokenMention TokenType = "mention"
	TokenCommand TokenType = "command"
	TokenEmail   TokenType = "email"
	TokenURL     TokenType = "url"
	TokenEmote   TokenType = "emote"
)

// PreservedToken is one span replaced by a placeholder before translation.
type PreservedToken struct {
	Type        TokenType
	Original    string
	Placeholder string
}

var (
	mentionPattern = regexp.MustCompile(`@[A-Za-z0-9_]{2,32}`)
	commandPattern = regexp.MustCompile(`[!#][A-Za-z][A-Za-z0-9_]*`)
	emailPattern   = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	urlPattern     = regexp.MustCompile(`https?://[^\s]+`)
)

// PreprocessResult is the outcome of a token preservation pass.
type PreprocessResult struct {
	ProcessedText string
	Tokens        []PreservedToken
}

// EmoteCatalog resolves platform emote codes present in text, so the
// preprocessor can preserve them alongside mentions/commands/emails/URLs.
type EmoteCatalog interface {
	// Codes returns the emote codes (without surrounding whitespace) known
	// for this platform/channel pair.
	Codes() []string
}

// Preprocess extracts non-linguistic tokens from text and replaces each
// with a stable, fixed-shape placeholder, recording the mapping so
// Restore can put the originals back byte-for-byte after translation.
//
// Order of extraction matters: emails must be matched before @mentions (an
// email's local part would otherwise look like a mention). Emote codes are
// matched last, as whole words between \b boundaries. One counter numbers
// every placeholder in extraction order, whatever its type (e.g. "url1",
// "mention2").
func Preprocess(text string, emotes EmoteCatalog) PreprocessResult {
	result := PreprocessResult{ProcessedText: text}
	n := 0
	placeholder := func(t TokenType) string {
		n++
		return fmt.Sprintf("%s%d", t, n)
	}

	replace := func(pattern *regexp.Regexp, t TokenType) {
		result.ProcessedText = pattern.ReplaceAllStringFunc(result.ProcessedText, func(match string) string {
			ph := placeholder(t)
			result.Tokens = append(result.Tokens, PreservedToken{Type: t, Original: match, Placeholder: ph})
			return ph
		})
	}

	replace(emailPattern, TokenEmail)
	replace(urlPattern, TokenURL)
	replace(mentionPattern, TokenMention)
	replace(commandPattern, TokenCommand)

	if emotes != nil {
		for _, code := range emotes.Codes() {
			pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(code) + `\b`)
			result.ProcessedText = pattern.ReplaceAllStringFunc(result.ProcessedText, func(match string) string {
				ph := placeholder(TokenEmote)
				result.Tokens = append(result.Tokens, PreservedToken{Type: TokenEmote, Original: match, Placeholder: ph})
				return ph
			})
		}
	}

	return result
}

// Restore substitutes every placeholder in translatedText back to its
// original text. Emote codes are guaranteed byte-for-byte identical to the
// input since the placeholder carries no information the translator could
// corrupt other than its own literal characters.
func Restore(translatedText string, tokens []PreservedToken) string {
	out := translatedText
	for _, tok := range tokens {
		out = strings.ReplaceAll(out, tok.Placeholder, tok.Original)
	}
	return out
}
