package enrich

import (
	"strings"
	"time"

	"github.com/veille-labs/veille/pkg/veille/langid"
	"github.com/veille-labs/veille/pkg/veille/normalize"
	"github.com/veille-labs/veille/pkg/veille/sentiment"
	"github.com/veille-labs/veille/pkg/veille/store"
	"github.com/veille-labs/veille/pkg/veille/tokenize"
)

// Enricher derives the enrichment metadata for one document. It does no
// I/O and is safe for concurrent use.
type Enricher struct {
	tokenizer *tokenize.Tokenizer
	detector  *langid.Detector
	scorer    *sentiment.Scorer
	now       func() time.Time
}

// New bundles the text stages into an Enricher.
func New(tok *tokenize.Tokenizer, det *langid.Detector, sc *sentiment.Scorer) *Enricher {
	return &Enricher{
		tokenizer: tok,
		detector:  det,
		scorer:    sc,
		now:       time.Now,
	}
}

// Enrich computes clean text, tokens, language and sentiment for d. Title
// and body are normalized independently; detection and scoring run over
// their concatenation so short titles still benefit from body context.
func (e *Enricher) Enrich(d store.Doc) store.Enrichment {
	cleanTitle := normalize.Clean(d.Title)
	cleanBody := normalize.Clean(d.Body)
	combined := strings.TrimSpace(cleanTitle + " " + cleanBody)

	res := e.scorer.Score(combined)

	return store.Enrichment{
		CleanTitle:     cleanTitle,
		CleanBody:      cleanBody,
		Tokens:         e.tokenizer.Tokens(combined),
		Language:       e.detector.Detect(combined),
		SentimentLabel: res.Label,
		SentimentScore: res.Score,
		EnrichedAt:     e.now().UTC(),
	}
}
