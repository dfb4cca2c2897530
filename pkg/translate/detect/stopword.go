package detect

import "strings"

// stopwords are a handful of the single most common words per language,
// used as a low-confidence back-off tier standing in for the original's
// statistical detector (the tier that fires when the others find too
// little signal to be confident).
var stopwords = map[string][]string{
	"en": {"the", "a", "to", "of", "in"},
	"fr": {"le", "de", "un", "et", "a"},
	"es": {"el", "de", "un", "y", "la"},
	"de": {"der", "und", "die", "in", "zu"},
	"it": {"il", "di", "e", "la", "un"},
	"pt": {"o", "de", "e", "um", "a"},
}

// StopwordDetector scores by raw stopword count with a low confidence
// ceiling, reflecting its role as the least reliable tier.
type StopwordDetector struct{}

func NewStopwordDetector() *StopwordDetector { return &StopwordDetector{} }

func (d *StopwordDetector) Name() string { return "stopword" }

func (d *StopwordDetector) Detect(text string) Result {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return Result{}
	}

	var bestLang string
	var bestHits int
	for lang, sws := range stopwords {
		hits := 0
		for _, w := range words {
			for _, sw := range sws {
				if w == sw {
					hits++
				}
			}
		}
		if hits > bestHits {
			bestLang, bestHits = lang, hits
		}
	}
	if bestLang == "" {
		return Result{}
	}

	confidence := 0.4 + 0.1*float64(bestHits)
	if confidence > 0.65 {
		confidence = 0.65
	}
	return Result{Language: bestLang, Confidence: confidence}
}
