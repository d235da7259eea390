// Package sentiment computes a polarity score and three-way label for
// normalized text using a VADER lexicon model. The model is rule-based,
// deterministic, and language-agnostic; no per-language switching.
package sentiment

import (
	"strings"

	"github.com/jonreiter/govader"
)

// Labels for the three-way classification.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// threshold separates neutral from polarized scores. Both boundaries are
// inclusive on the neutral side.
const threshold = 0.1

// Result is a polarity score in [-1, 1] plus its label. Score is nil only
// when the scorer fell back after an internal failure.
type Result struct {
	Score *float64
	Label string
}

// Scorer wraps the VADER analyzer.
type Scorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// New creates a scorer with the standard VADER lexicon.
func New() *Scorer {
	return &Scorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score computes the compound polarity of text. It never fails: empty
// input scores zero, and an internal scoring failure yields a nil score
// with a neutral label rather than a wrong-signed value.
func (s *Scorer) Score(text string) (res Result) {
	defer func() {
		if recover() != nil {
			res = Result{Score: nil, Label: LabelNeutral}
		}
	}()

	if strings.TrimSpace(text) == "" {
		zero := 0.0
		return Result{Score: &zero, Label: LabelNeutral}
	}

	compound := s.analyzer.PolarityScores(text).Compound
	return Result{Score: &compound, Label: Label(compound)}
}

// Label maps a polarity score to its classification: above 0.1 positive,
// below -0.1 negative, neutral in the closed interval between.
func Label(score float64) string {
	switch {
	case score > threshold:
		return LabelPositive
	case score < -threshold:
		return LabelNegative
	default:
		return LabelNeutral
	}
}
