// Package detect implements the tiered language-detection ensemble from
// spec.md §4.5: three independent detectors combined by weighted vote.
//
// No pack repo or example file imports a language-identification library
// (no FastText binding, Lingua port, or langdetect equivalent appears
// anywhere under the retrieval pack), so the three tiers are implemented
// here as compact, dependency-free heuristics standing in for the
// originals: an n-gram frequency model for the FastText tier, a
// function-word/script heuristic for the Lingua tier, and a stopword
// back-off for the statistical tier.
package detect

// Result is one detector's opinion.
type Result struct {
	Language   string
	Confidence float64
}

// Detector identifies the most likely language of text.
type Detector interface {
	Name() string
	Detect(text string) Result
}

// defaultWeights is the vote weight assigned to each detector in the ensemble,
// reflecting the original detectors' relative reliability (FastText highest,
// statistical back-off lowest).
var defaultWeights = map[string]float64{
	"ngram":     0.5,
	"heuristic": 0.3,
	"stopword":  0.2,
}

// Ensemble runs every configured Detector and combines their results by
// weighted vote per spec.md §4.5.
type Ensemble struct {
	detectors []Detector
	weights   map[string]float64
}

// NewEnsemble builds the default three-tier ensemble.
func NewEnsemble() *Ensemble {
	return &Ensemble{
		detectors: []Detector{NewNGramDetector(), NewHeuristicDetector(), NewStopwordDetector()},
		weights:   defaultWeights,
	}
}

// Detect runs the ensemble and returns the combined (language, confidence).
func (e *Ensemble) Detect(text string) (string, float64) {
	votes := make(map[string]float64)
	var total float64

	for _, d := range e.detectors {
		r := d.Detect(text)
		if r.Language == "" {
			continue
		}
		w := e.weights[d.Name()] * r.Confidence
		votes[r.Language] += w
		total += e.weights[d.Name()]
	}

	if total == 0 || len(votes) == 0 {
		return "", 0
	}

	var bestLang string
	var bestScore float64
	for lang, score := range votes {
		if score > bestScore {
			bestLang, bestScore = lang, score
		}
	}
	return bestLang, bestScore / total
}
