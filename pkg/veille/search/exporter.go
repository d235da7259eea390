package search

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/veille-labs/veille/pkg/veille/internalerr"
	"github.com/veille-labs/veille/pkg/veille/retry"
	"github.com/veille-labs/veille/pkg/veille/store"
)

const defaultBulkSize = 500

// ExportResult summarizes one export run.
type ExportResult struct {
	Indexed int64
	Failed  int64
	Batches int64
	Elapsed time.Duration
}

// Exporter feeds enriched documents from the store into the search index
// in bounded bulk batches, resuming from a persisted watermark.
type Exporter struct {
	client *Client
	store  store.Store
	policy retry.Policy
	logger *slog.Logger

	BulkSize int
	// Limiter paces bulk requests when the index is shared; nil disables.
	Limiter *rate.Limiter
}

// NewExporter wires an Exporter with the default bulk size.
func NewExporter(client *Client, st store.Store, policy retry.Policy, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		client:   client,
		store:    st,
		policy:   policy,
		logger:   logger,
		BulkSize: defaultBulkSize,
	}
}

// EnsureIndex creates the index with its mapping when absent. An existing
// index is left exactly as it is.
func (e *Exporter) EnsureIndex(ctx context.Context) error {
	return e.policy.Do(ctx, func() error {
		exists, err := e.client.IndexExists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		return e.client.CreateIndex(ctx)
	})
}

// Export submits every document enriched since the last export. The
// watermark only advances after a batch is fully handled, so an interrupted
// export resumes without losing documents; re-submissions overwrite by url
// and are harmless.
func (e *Exporter) Export(ctx context.Context) (ExportResult, error) {
	start := time.Now()
	runID := ulid.MustNew(ulid.Timestamp(start), ulid.Monotonic(rand.Reader, 0)).String()
	log := e.logger.With("run_id", runID)

	var result ExportResult

	if err := e.EnsureIndex(ctx); err != nil {
		result.Elapsed = time.Since(start)
		return result, fmt.Errorf("ensuring index %s: %w", e.client.Index(), err)
	}

	var watermark time.Time
	err := e.policy.Do(ctx, func() error {
		var werr error
		watermark, werr = e.store.ExportWatermark(ctx)
		return werr
	})
	if err != nil {
		result.Elapsed = time.Since(start)
		return result, fmt.Errorf("reading export watermark: %w", err)
	}

	bulkSize := e.BulkSize
	if bulkSize <= 0 {
		bulkSize = defaultBulkSize
	}

	for {
		var docs []store.Doc
		err := e.policy.Do(ctx, func() error {
			var derr error
			docs, derr = e.store.EnrichedSince(ctx, watermark, bulkSize)
			return derr
		})
		if err != nil {
			result.Elapsed = time.Since(start)
			return result, fmt.Errorf("reading export feed: %w", err)
		}
		if len(docs) == 0 {
			break
		}

		if e.Limiter != nil {
			if err := e.Limiter.Wait(ctx); err != nil {
				result.Elapsed = time.Since(start)
				return result, err
			}
		}

		now := time.Now().UTC()
		batch := make([]Document, len(docs))
		for i, d := range docs {
			batch[i] = FromStoreDoc(d, now)
		}

		var bulkRes BulkResult
		err = e.policy.Do(ctx, func() error {
			var berr error
			bulkRes, berr = e.client.Bulk(ctx, batch)
			return berr
		})
		if err != nil {
			result.Elapsed = time.Since(start)
			return result, fmt.Errorf("bulk indexing: %w", err)
		}

		result.Batches++
		result.Indexed += int64(bulkRes.Indexed)

		// Items the bulk reply rejected get one more individual shot;
		// transient queue pressure often clears between attempts.
		for _, failure := range bulkRes.Failed {
			doc, ok := findByURL(batch, failure.ID)
			if !ok {
				result.Failed++
				continue
			}
			err := e.policy.Do(ctx, func() error {
				return e.client.IndexDoc(ctx, doc)
			})
			if err != nil {
				if errors.Is(err, internalerr.ErrSearchUnavailable) {
					result.Elapsed = time.Since(start)
					return result, err
				}
				log.Warn("document rejected by index",
					"url", failure.ID, "reason", failure.Reason, "err", err)
				result.Failed++
				continue
			}
			result.Indexed++
		}

		watermark = *docs[len(docs)-1].EnrichedAt
		err = e.policy.Do(ctx, func() error {
			return e.store.SetExportWatermark(ctx, watermark)
		})
		if err != nil {
			result.Elapsed = time.Since(start)
			return result, fmt.Errorf("advancing export watermark: %w", err)
		}

		log.Info("export batch done",
			"batch", result.Batches, "indexed", result.Indexed, "failed", result.Failed)
	}

	result.Elapsed = time.Since(start)
	log.Info("export finished",
		"indexed", result.Indexed, "failed", result.Failed,
		"batches", result.Batches, "elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// FromStoreDoc projects a stored document into the index schema. The clean
// text goes to the searchable fields; raw HTML never reaches the index.
func FromStoreDoc(d store.Doc, indexedAt time.Time) Document {
	doc := Document{
		Title:     d.CleanTitle,
		Content:   d.CleanBody,
		Author:    d.Author,
		URL:       d.URL,
		Language:  d.Language,
		Sentiment: d.SentimentLabel,
		Score:     d.SentimentScore,
		IndexedAt: indexedAt,
	}
	if !d.CreatedAt.IsZero() {
		created := d.CreatedAt.UTC()
		doc.Date = &created
	}
	return doc
}

func findByURL(docs []Document, url string) (Document, bool) {
	for _, d := range docs {
		if d.URL == url {
			return d, true
		}
	}
	return Document{}, false
}
