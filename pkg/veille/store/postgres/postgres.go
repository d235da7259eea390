package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veille-labs/veille/pkg/veille/internalerr"
	"github.com/veille-labs/veille/pkg/veille/store"
)

// pgStore implements store.Store on a PostgreSQL pool. Timestamps are kept
// as TIMESTAMPTZ, which rounds to microseconds; all comparisons go through
// the same column so watermark ordering stays consistent.
type pgStore struct {
	pool *pgxpool.Pool
}

var sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var docColumns = []string{
	"id", "url", "title", "body", "author", "platform", "created_at",
	"clean_title", "clean_body", "tokens", "language", "sentiment_label",
	"sentiment_score", "enriched_at", "reprocess",
}

// Open connects to PostgreSQL and ensures the schema exists.
func Open(ctx context.Context, dsn string) (store.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty postgres dsn", internalerr.ErrInvalidConfig)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &pgStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
CREATE TABLE IF NOT EXISTS docs (
	id BIGSERIAL PRIMARY KEY,
	url TEXT UNIQUE NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	platform TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ,
	clean_title TEXT NOT NULL DEFAULT '',
	clean_body TEXT NOT NULL DEFAULT '',
	tokens TEXT[] NOT NULL DEFAULT '{}',
	language TEXT NOT NULL DEFAULT '',
	sentiment_label TEXT NOT NULL DEFAULT '',
	sentiment_score DOUBLE PRECISION,
	enriched_at TIMESTAMPTZ,
	reprocess BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_docs_enriched_at ON docs(enriched_at);

CREATE TABLE IF NOT EXISTS export_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	last_enriched_at TIMESTAMPTZ
);
`
	_, err := pool.Exec(ctx, schema)
	return err
}

// Close releases the connection pool.
func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping reports whether the store is reachable.
func (s *pgStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	return nil
}

// pendingFilter selects documents that still need enrichment: nothing
// detected yet, or explicitly flagged for another pass.
func pendingFilter() sq.Sqlizer {
	return sq.Or{
		sq.And{sq.Eq{"language": ""}, sq.Eq{"sentiment_label": ""}},
		sq.Eq{"reprocess": true},
	}
}

// UpsertRaw inserts or refreshes the raw fields of a document, leaving any
// existing enrichment untouched.
func (s *pgStore) UpsertRaw(ctx context.Context, d store.Doc) (int64, error) {
	if d.URL == "" {
		return 0, fmt.Errorf("%w: document without url", internalerr.ErrInvalidInput)
	}

	query, args, err := sb.Insert("docs").
		Columns("url", "title", "body", "author", "platform", "created_at").
		Values(d.URL, d.Title, d.Body, d.Author, d.Platform, nullableTime(d.CreatedAt)).
		Suffix(`ON CONFLICT (url) DO UPDATE SET
			title=EXCLUDED.title,
			body=EXCLUDED.body,
			author=EXCLUDED.author,
			platform=EXCLUDED.platform,
			created_at=EXCLUDED.created_at
		RETURNING id`).
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// SaveEnriched commits the merged record (raw + enrichment) under its url
// key and clears the reprocess flag.
func (s *pgStore) SaveEnriched(ctx context.Context, d store.Doc) error {
	if d.URL == "" {
		return fmt.Errorf("%w: document without url", internalerr.ErrInvalidInput)
	}
	if !d.Enriched() {
		return fmt.Errorf("%w: enrichment requires both language and sentiment", internalerr.ErrInvalidInput)
	}
	if d.EnrichedAt == nil {
		return fmt.Errorf("%w: enriched document without enriched_at", internalerr.ErrInvalidInput)
	}

	tokens := d.Tokens
	if tokens == nil {
		tokens = []string{}
	}

	query, args, err := sb.Insert("docs").
		Columns("url", "title", "body", "author", "platform", "created_at",
			"clean_title", "clean_body", "tokens", "language", "sentiment_label",
			"sentiment_score", "enriched_at", "reprocess").
		Values(d.URL, d.Title, d.Body, d.Author, d.Platform, nullableTime(d.CreatedAt),
			d.CleanTitle, d.CleanBody, tokens, d.Language, d.SentimentLabel,
			d.SentimentScore, d.EnrichedAt.UTC(), false).
		Suffix(`ON CONFLICT (url) DO UPDATE SET
			title=EXCLUDED.title,
			body=EXCLUDED.body,
			author=EXCLUDED.author,
			platform=EXCLUDED.platform,
			created_at=EXCLUDED.created_at,
			clean_title=EXCLUDED.clean_title,
			clean_body=EXCLUDED.clean_body,
			tokens=EXCLUDED.tokens,
			language=EXCLUDED.language,
			sentiment_label=EXCLUDED.sentiment_label,
			sentiment_score=EXCLUDED.sentiment_score,
			enriched_at=EXCLUDED.enriched_at,
			reprocess=FALSE`).
		ToSql()
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, query, args...)
	return err
}

// GetByURL retrieves a document by URL.
func (s *pgStore) GetByURL(ctx context.Context, url string) (store.Doc, bool, error) {
	query, args, err := sb.Select(docColumns...).
		From("docs").
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return store.Doc{}, false, err
	}

	doc, err := scanDoc(s.pool.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return store.Doc{}, false, nil
	}
	if err != nil {
		return store.Doc{}, false, err
	}
	return doc, true, nil
}

// Count returns the number of stored documents.
func (s *pgStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM docs`).Scan(&n)
	return n, err
}

// Candidates returns documents awaiting enrichment with id greater than
// afterID, in id order.
func (s *pgStore) Candidates(ctx context.Context, afterID int64, limit int) ([]store.Doc, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := sb.Select(docColumns...).
		From("docs").
		Where(sq.Gt{"id": afterID}).
		Where(pendingFilter()).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDocs(rows)
}

// CountCandidates returns how many documents still need enrichment.
func (s *pgStore) CountCandidates(ctx context.Context) (int64, error) {
	query, args, err := sb.Select("COUNT(*)").
		From("docs").
		Where(pendingFilter()).
		ToSql()
	if err != nil {
		return 0, err
	}

	var n int64
	err = s.pool.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

// MarkReprocess flags the given urls for re-enrichment.
func (s *pgStore) MarkReprocess(ctx context.Context, urls []string) (int64, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	query, args, err := sb.Update("docs").
		Set("reprocess", true).
		Where(sq.Eq{"url": urls}).
		ToSql()
	if err != nil {
		return 0, err
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkAllReprocess flags every stored document for re-enrichment.
func (s *pgStore) MarkAllReprocess(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE docs SET reprocess = TRUE`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// EnrichedSince returns enriched documents with enriched_at strictly after
// the watermark, oldest first.
func (s *pgStore) EnrichedSince(ctx context.Context, watermark time.Time, limit int) ([]store.Doc, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := sb.Select(docColumns...).
		From("docs").
		Where(sq.Gt{"enriched_at": watermark.UTC()}).
		OrderBy("enriched_at ASC", "id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDocs(rows)
}

// ExportWatermark returns the enriched_at of the last document known to be
// indexed, or the zero time when nothing was exported yet.
func (s *pgStore) ExportWatermark(ctx context.Context) (time.Time, error) {
	var mark *time.Time
	err := s.pool.QueryRow(ctx, `SELECT last_enriched_at FROM export_state WHERE id = 1`).Scan(&mark)
	if err == pgx.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if mark == nil {
		return time.Time{}, nil
	}
	return mark.UTC(), nil
}

// SetExportWatermark records the enriched_at of the newest exported
// document.
func (s *pgStore) SetExportWatermark(ctx context.Context, mark time.Time) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO export_state (id, last_enriched_at) VALUES (1, $1)
ON CONFLICT (id) DO UPDATE SET last_enriched_at=EXCLUDED.last_enriched_at
`, mark.UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDoc(row rowScanner) (store.Doc, error) {
	var (
		doc        store.Doc
		createdAt  *time.Time
		enrichedAt *time.Time
	)

	err := row.Scan(
		&doc.ID,
		&doc.URL,
		&doc.Title,
		&doc.Body,
		&doc.Author,
		&doc.Platform,
		&createdAt,
		&doc.CleanTitle,
		&doc.CleanBody,
		&doc.Tokens,
		&doc.Language,
		&doc.SentimentLabel,
		&doc.SentimentScore,
		&enrichedAt,
		&doc.Reprocess,
	)
	if err != nil {
		return store.Doc{}, err
	}

	if createdAt != nil {
		doc.CreatedAt = createdAt.UTC()
	}
	if enrichedAt != nil {
		at := enrichedAt.UTC()
		doc.EnrichedAt = &at
	}
	return doc, nil
}

func collectDocs(rows pgx.Rows) ([]store.Doc, error) {
	var docs []store.Doc
	for rows.Next() {
		doc, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
