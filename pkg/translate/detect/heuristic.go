package detect

import (
	"strings"
	"unicode"
)

// functionWords are short, high-frequency words whose presence strongly
// signals a language, standing in for the original's Lingua tier (which
// leans on function-word and script statistics rather than n-grams).
var functionWords = map[string][]string{
	"en": {"the", "is", "and", "you", "are", "this"},
	"fr": {"le", "la", "est", "et", "vous", "tres"},
	"es": {"el", "la", "es", "y", "muy", "este"},
	"de": {"der", "die", "das", "und", "ist", "sehr"},
	"it": {"il", "la", "e", "molto", "questo", "sono"},
	"pt": {"o", "a", "e", "muito", "este", "sao"},
	"ja": {"です", "ます", "これ", "それ", "ありがとう"},
	"ko": {"입니다", "이것", "그것", "감사합니다"},
}

// HeuristicDetector scores text by function-word overlap, falling back to a
// CJK script check for languages function words poorly identify.
type HeuristicDetector struct{}

func NewHeuristicDetector() *HeuristicDetector { return &HeuristicDetector{} }

func (d *HeuristicDetector) Name() string { return "heuristic" }

func (d *HeuristicDetector) Detect(text string) Result {
	if lang, conf := detectByScript(text); lang != "" {
		return Result{Language: lang, Confidence: conf}
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return Result{}
	}
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[strings.Trim(w, ".,!?;:\"'")] = true
	}

	var bestLang string
	var bestHits int
	for lang, fws := range functionWords {
		hits := 0
		for _, fw := range fws {
			if wordSet[fw] {
				hits++
			}
		}
		if hits > bestHits {
			bestLang, bestHits = lang, hits
		}
	}
	if bestLang == "" {
		return Result{}
	}
	confidence := float64(bestHits) / float64(len(words))
	if confidence > 1 {
		confidence = 1
	}
	return Result{Language: bestLang, Confidence: confidence}
}

// detectByScript recognizes Japanese/Korean scripts directly: a dominant
// non-Latin script is a far stronger signal than function-word overlap.
func detectByScript(text string) (string, float64) {
	var hiraganaKatakana, hangul, total int
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		total++
		switch {
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			hiraganaKatakana++
		case unicode.In(r, unicode.Hangul):
			hangul++
		}
	}
	if total == 0 {
		return "", 0
	}
	if ratio := float64(hiraganaKatakana) / float64(total); ratio > 0.3 {
		return "ja", ratio
	}
	if ratio := float64(hangul) / float64(total); ratio > 0.3 {
		return "ko", ratio
	}
	return "", 0
}
