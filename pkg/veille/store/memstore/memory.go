package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/veille-labs/veille/pkg/veille/internalerr"
	"github.com/veille-labs/veille/pkg/veille/store"
)

// Store is an in-memory implementation of store.Store for tests and
// examples.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	docs      map[int64]store.Doc
	urlIndex  map[string]int64
	watermark time.Time
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		nextID:   1,
		docs:     make(map[int64]store.Doc),
		urlIndex: make(map[string]int64),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error { return nil }

// UpsertRaw inserts or refreshes the raw fields of a document, keyed by
// URL. Enrichment fields of an existing record are preserved.
func (s *Store) UpsertRaw(ctx context.Context, d store.Doc) (int64, error) {
	if d.URL == "" {
		return 0, fmt.Errorf("%w: document without url", internalerr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.urlIndex[d.URL]; ok {
		existing := s.docs[id]
		existing.Title = d.Title
		existing.Body = d.Body
		existing.Author = d.Author
		existing.Platform = d.Platform
		existing.CreatedAt = d.CreatedAt
		s.docs[id] = existing
		return id, nil
	}

	id := s.nextID
	s.nextID++
	d.ID = id
	s.docs[id] = copyDoc(d)
	s.urlIndex[d.URL] = id
	return id, nil
}

// SaveEnriched commits the merged record under its url key.
func (s *Store) SaveEnriched(ctx context.Context, d store.Doc) error {
	if d.URL == "" {
		return fmt.Errorf("%w: document without url", internalerr.ErrInvalidInput)
	}
	if !d.Enriched() {
		return fmt.Errorf("%w: enrichment requires both language and sentiment", internalerr.ErrInvalidInput)
	}
	if d.EnrichedAt == nil {
		return fmt.Errorf("%w: enriched document without enriched_at", internalerr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.urlIndex[d.URL]
	if !ok {
		id = s.nextID
		s.nextID++
		s.urlIndex[d.URL] = id
	}
	d.ID = id
	d.Reprocess = false
	s.docs[id] = copyDoc(d)
	return nil
}

// GetByURL returns a document by URL.
func (s *Store) GetByURL(ctx context.Context, url string) (store.Doc, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.urlIndex[url]; ok {
		if doc, exists := s.docs[id]; exists {
			return copyDoc(doc), true, nil
		}
	}
	return store.Doc{}, false, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.docs)), nil
}

// Candidates returns un-enriched or reprocess-flagged documents with ID
// greater than afterID, in ID order.
func (s *Store) Candidates(ctx context.Context, afterID int64, limit int) ([]store.Doc, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Doc
	for _, doc := range s.docs {
		if doc.ID > afterID && (!doc.Enriched() || doc.Reprocess) {
			out = append(out, copyDoc(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountCandidates returns the number of documents awaiting enrichment.
func (s *Store) CountCandidates(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, doc := range s.docs {
		if !doc.Enriched() || doc.Reprocess {
			n++
		}
	}
	return n, nil
}

// MarkReprocess flags the given urls for re-enrichment.
func (s *Store) MarkReprocess(ctx context.Context, urls []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, u := range urls {
		if id, ok := s.urlIndex[u]; ok {
			doc := s.docs[id]
			doc.Reprocess = true
			s.docs[id] = doc
			n++
		}
	}
	return n, nil
}

// MarkAllReprocess flags every document for re-enrichment.
func (s *Store) MarkAllReprocess(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, doc := range s.docs {
		doc.Reprocess = true
		s.docs[id] = doc
	}
	return int64(len(s.docs)), nil
}

// EnrichedSince returns enriched documents newer than the watermark,
// oldest first.
func (s *Store) EnrichedSince(ctx context.Context, watermark time.Time, limit int) ([]store.Doc, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Doc
	for _, doc := range s.docs {
		if doc.EnrichedAt != nil && doc.EnrichedAt.After(watermark) {
			out = append(out, copyDoc(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnrichedAt.Equal(*out[j].EnrichedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].EnrichedAt.Before(*out[j].EnrichedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ExportWatermark returns the last recorded export watermark.
func (s *Store) ExportWatermark(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watermark, nil
}

// SetExportWatermark records the export watermark.
func (s *Store) SetExportWatermark(ctx context.Context, mark time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermark = mark
	return nil
}

func copyDoc(d store.Doc) store.Doc {
	out := d
	out.Tokens = append([]string(nil), d.Tokens...)
	if d.SentimentScore != nil {
		score := *d.SentimentScore
		out.SentimentScore = &score
	}
	if d.EnrichedAt != nil {
		at := *d.EnrichedAt
		out.EnrichedAt = &at
	}
	return out
}
