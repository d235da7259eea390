package store

import (
	"context"
	"time"
)

// Store is the persistence gateway for raw and enriched documents. All
// writes are keyed by the document URL; uniqueness is enforced by the
// store itself, not by callers.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	// Raw documents
	UpsertRaw(ctx context.Context, d Doc) (int64, error)
	GetByURL(ctx context.Context, url string) (Doc, bool, error)
	Count(ctx context.Context) (int64, error)

	// Enrichment. Candidates pages by id so a caller that records the
	// last id it attempted never sees the same document twice in one
	// sweep, even when some documents keep failing.
	SaveEnriched(ctx context.Context, d Doc) error
	Candidates(ctx context.Context, afterID int64, limit int) ([]Doc, error)
	CountCandidates(ctx context.Context) (int64, error)
	MarkReprocess(ctx context.Context, urls []string) (int64, error)
	MarkAllReprocess(ctx context.Context) (int64, error)

	// Export feed
	EnrichedSince(ctx context.Context, watermark time.Time, limit int) ([]Doc, error)
	ExportWatermark(ctx context.Context) (time.Time, error)
	SetExportWatermark(ctx context.Context, mark time.Time) error
}

// Doc is the stored record for one social post: raw fields written at
// ingest plus enrichment fields filled by the pipeline.
type Doc struct {
	ID        int64
	URL       string
	Title     string
	Body      string
	Author    string
	Platform  string
	CreatedAt time.Time

	CleanTitle     string
	CleanBody      string
	Tokens         []string
	Language       string
	SentimentLabel string
	SentimentScore *float64
	EnrichedAt     *time.Time

	// Reprocess flags the document for re-enrichment on the next run even
	// though it already carries enrichment metadata.
	Reprocess bool
}

// Enriched reports whether the document carries enrichment metadata.
// Language and SentimentLabel are written atomically, so checking both is
// a consistency guard rather than a convenience.
func (d Doc) Enriched() bool {
	return d.Language != "" && d.SentimentLabel != ""
}

// Enrichment is the delta produced by one enrichment pass over a raw
// document.
type Enrichment struct {
	CleanTitle     string
	CleanBody      string
	Tokens         []string
	Language       string
	SentimentLabel string
	SentimentScore *float64
	EnrichedAt     time.Time
}

// Apply returns a copy of d carrying the enrichment delta, with the
// reprocess flag cleared. The input document is not modified.
func Apply(d Doc, e Enrichment) Doc {
	d.CleanTitle = e.CleanTitle
	d.CleanBody = e.CleanBody
	d.Tokens = append([]string(nil), e.Tokens...)
	d.Language = e.Language
	d.SentimentLabel = e.SentimentLabel
	if e.SentimentScore != nil {
		score := *e.SentimentScore
		d.SentimentScore = &score
	} else {
		d.SentimentScore = nil
	}
	at := e.EnrichedAt
	d.EnrichedAt = &at
	d.Reprocess = false
	return d
}
