package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/waddlebot/core/pkg/translate/detect"
)

const (
	// HighConfidenceThreshold accepts the ensemble result outright.
	HighConfidenceThreshold = 0.90
	// MediumConfidenceThreshold routes to AI verification.
	MediumConfidenceThreshold = 0.70
	// AIAgreeBoost is the confidence assigned when the AI verifier agrees
	// with the ensemble's medium-confidence result.
	AIAgreeBoost = 0.95
	// AIDisagreeDiscount scales the ensemble's confidence down when the AI
	// verifier disagrees but is not itself more confident.
	AIDisagreeDiscount = 0.9
	// DefaultMaxVerificationCalls bounds AI verification calls per message;
	// unbounded verification dominates latency (spec.md §4.5).
	DefaultMaxVerificationCalls = 3
	// DefaultVerificationTimeout bounds each AI verification call.
	DefaultVerificationTimeout = 2 * time.Second
)

// Tier classifies a detection result's confidence band.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// ClassifyTier buckets confidence per spec.md §4.5.
func ClassifyTier(confidence float64) Tier {
	switch {
	case confidence >= HighConfidenceThreshold:
		return TierHigh
	case confidence >= MediumConfidenceThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// Verifier asks an external provider to independently judge a message's
// language, used to arbitrate medium-confidence ensemble results.
type Verifier interface {
	Verify(ctx context.Context, text string) (language string, confidence float64, err error)
}

// Translator performs the actual text translation once a language has been
// accepted.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// DetectionOutcome is the final, possibly AI-arbitrated, detection result.
type DetectionOutcome struct {
	Language   string
	Confidence float64
	Tier       Tier
	Accepted   bool
}

// ErrRejected marks a low-confidence message as not translatable.
var ErrRejected = fmt.Errorf("translate: confidence too low to translate")

// languageDetector is the ensemble's interface from the pipeline's point of
// view, narrowed so tests can substitute a deterministic stub.
type languageDetector interface {
	Detect(text string) (language string, confidence float64)
}

// Pipeline wires the token preservation pass, detection ensemble, AI
// verifier, and translator together per spec.md §4.5.
type Pipeline struct {
	ensemble       languageDetector
	verifier       Verifier
	translator     Translator
	maxVerifyCalls int
	verifyTimeout  time.Duration
}

// NewPipeline builds a Pipeline with the default verification cap/timeout.
func NewPipeline(verifier Verifier, translator Translator) *Pipeline {
	return &Pipeline{
		ensemble:       detect.NewEnsemble(),
		verifier:       verifier,
		translator:     translator,
		maxVerifyCalls: DefaultMaxVerificationCalls,
		verifyTimeout:  DefaultVerificationTimeout,
	}
}

// DetectLanguage runs the ensemble and, for medium-confidence results,
// arbitrates with the AI verifier per spec.md §4.5's tiered rules.
func (p *Pipeline) DetectLanguage(ctx context.Context, text string, verifyCallsUsed int) (DetectionOutcome, int) {
	lang, confidence := p.ensemble.Detect(text)
	tier := ClassifyTier(confidence)

	switch tier {
	case TierHigh:
		return DetectionOutcome{Language: lang, Confidence: confidence, Tier: TierHigh, Accepted: true}, verifyCallsUsed
	case TierLow:
		return DetectionOutcome{Language: lang, Confidence: confidence, Tier: TierLow, Accepted: false}, verifyCallsUsed
	}

	if p.verifier == nil || verifyCallsUsed >= p.maxVerifyCalls {
		return DetectionOutcome{Language: lang, Confidence: confidence, Tier: TierMedium, Accepted: true}, verifyCallsUsed
	}

	verifyCtx, cancel := context.WithTimeout(ctx, p.verifyTimeout)
	defer cancel()
	aiLang, aiConfidence, err := p.verifier.Verify(verifyCtx, text)
	verifyCallsUsed++
	if err != nil {
		return DetectionOutcome{Language: lang, Confidence: confidence, Tier: TierMedium, Accepted: true}, verifyCallsUsed
	}

	if aiLang == lang {
		return DetectionOutcome{Language: lang, Confidence: AIAgreeBoost, Tier: TierMedium, Accepted: true}, verifyCallsUsed
	}
	if aiConfidence > confidence {
		return DetectionOutcome{Language: aiLang, Confidence: aiConfidence, Tier: TierMedium, Accepted: true}, verifyCallsUsed
	}
	return DetectionOutcome{Language: lang, Confidence: confidence * AIDisagreeDiscount, Tier: TierMedium, Accepted: true}, verifyCallsUsed
}

// TranslateMessage runs the full pipeline: preprocess, detect (with AI
// arbitration), translate the placeholder-substituted text, and restore
// preserved tokens byte-for-byte.
func (p *Pipeline) TranslateMessage(ctx context.Context, text, targetLang string, emotes EmoteCatalog) (string, DetectionOutcome, error) {
	pre := Preprocess(text, emotes)

	outcome, _ := p.DetectLanguage(ctx, pre.ProcessedText, 0)
	if !outcome.Accepted {
		return "", outcome, ErrRejected
	}
	if outcome.Language == targetLang {
		return text, outcome, nil
	}

	translated, err := p.translator.Translate(ctx, pre.ProcessedText, outcome.Language, targetLang)
	if err != nil {
		return "", outcome, fmt.Errorf("translate: %w", err)
	}

	return Restore(translated, pre.Tokens), outcome, nil
}
