package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/veille-labs/veille/pkg/veille/internalerr"
	"github.com/veille-labs/veille/pkg/veille/store"
)

// sqliteStore implements store.Store on a single-file SQLite database.
type sqliteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite database with WAL mode and a
// busy timeout suitable for concurrent enrichment workers.
func Open(ctx context.Context, path string) (store.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty sqlite path", internalerr.ErrInvalidConfig)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL keeps readers unblocked while enrichment workers write.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the store is reachable.
func (s *sqliteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	return nil
}

// initSchema creates tables if they don't exist. enriched_at is stored as
// unix nanoseconds so watermark comparisons keep full precision.
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS docs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT UNIQUE NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	platform TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT '',
	clean_title TEXT NOT NULL DEFAULT '',
	clean_body TEXT NOT NULL DEFAULT '',
	tokens TEXT NOT NULL DEFAULT '[]',
	language TEXT NOT NULL DEFAULT '',
	sentiment_label TEXT NOT NULL DEFAULT '',
	sentiment_score REAL,
	enriched_at INTEGER,
	reprocess INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_docs_enriched_at ON docs(enriched_at);

CREATE TABLE IF NOT EXISTS export_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	last_enriched_at INTEGER NOT NULL DEFAULT 0
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

const docColumns = `id, url, title, body, author, platform, created_at,
clean_title, clean_body, tokens, language, sentiment_label,
sentiment_score, enriched_at, reprocess`

// UpsertRaw inserts or refreshes the raw fields of a document, leaving any
// existing enrichment untouched.
func (s *sqliteStore) UpsertRaw(ctx context.Context, d store.Doc) (int64, error) {
	if d.URL == "" {
		return 0, fmt.Errorf("%w: document without url", internalerr.ErrInvalidInput)
	}

	const stmt = `
INSERT INTO docs (url, title, body, author, platform, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
	title=excluded.title,
	body=excluded.body,
	author=excluded.author,
	platform=excluded.platform,
	created_at=excluded.created_at
RETURNING id;
`

	var id int64
	err := s.db.QueryRowContext(
		ctx,
		stmt,
		d.URL,
		d.Title,
		d.Body,
		d.Author,
		d.Platform,
		formatTime(d.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SaveEnriched commits the merged record (raw + enrichment) under its url
// key and clears the reprocess flag.
func (s *sqliteStore) SaveEnriched(ctx context.Context, d store.Doc) error {
	if d.URL == "" {
		return fmt.Errorf("%w: document without url", internalerr.ErrInvalidInput)
	}
	if !d.Enriched() {
		return fmt.Errorf("%w: enrichment requires both language and sentiment", internalerr.ErrInvalidInput)
	}
	if d.EnrichedAt == nil {
		return fmt.Errorf("%w: enriched document without enriched_at", internalerr.ErrInvalidInput)
	}

	tokensJSON, err := json.Marshal(d.Tokens)
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO docs (url, title, body, author, platform, created_at,
	clean_title, clean_body, tokens, language, sentiment_label,
	sentiment_score, enriched_at, reprocess)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
ON CONFLICT(url) DO UPDATE SET
	title=excluded.title,
	body=excluded.body,
	author=excluded.author,
	platform=excluded.platform,
	created_at=excluded.created_at,
	clean_title=excluded.clean_title,
	clean_body=excluded.clean_body,
	tokens=excluded.tokens,
	language=excluded.language,
	sentiment_label=excluded.sentiment_label,
	sentiment_score=excluded.sentiment_score,
	enriched_at=excluded.enriched_at,
	reprocess=0;
`

	_, err = s.db.ExecContext(
		ctx,
		stmt,
		d.URL,
		d.Title,
		d.Body,
		d.Author,
		d.Platform,
		formatTime(d.CreatedAt),
		d.CleanTitle,
		d.CleanBody,
		string(tokensJSON),
		d.Language,
		d.SentimentLabel,
		nullableScore(d.SentimentScore),
		d.EnrichedAt.UTC().UnixNano(),
	)
	return err
}

// GetByURL retrieves a document by URL.
func (s *sqliteStore) GetByURL(ctx context.Context, url string) (store.Doc, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+docColumns+`
FROM docs
WHERE url = ?;
`, url)

	doc, err := scanDoc(row)
	if err == sql.ErrNoRows {
		return store.Doc{}, false, nil
	}
	if err != nil {
		return store.Doc{}, false, err
	}
	return doc, true, nil
}

// Count returns the number of stored documents.
func (s *sqliteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docs`).Scan(&n)
	return n, err
}

// Candidates returns documents awaiting enrichment: those with no
// language/sentiment yet, and those flagged for reprocessing. Only
// documents with id greater than afterID are returned, in id order.
func (s *sqliteStore) Candidates(ctx context.Context, afterID int64, limit int) ([]store.Doc, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT `+docColumns+`
FROM docs
WHERE id > ? AND ((language = '' AND sentiment_label = '') OR reprocess = 1)
ORDER BY id ASC
LIMIT ?;
`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDocs(rows)
}

// CountCandidates returns how many documents Candidates would eventually
// yield.
func (s *sqliteStore) CountCandidates(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM docs
WHERE (language = '' AND sentiment_label = '') OR reprocess = 1;
`).Scan(&n)
	return n, err
}

// MarkReprocess flags the given urls for re-enrichment.
func (s *sqliteStore) MarkReprocess(ctx context.Context, urls []string) (int64, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(urls)), ",")
	args := make([]interface{}, len(urls))
	for i, u := range urls {
		args[i] = u
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
UPDATE docs SET reprocess = 1 WHERE url IN (%s);
`, placeholders), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkAllReprocess flags every stored document for re-enrichment.
func (s *sqliteStore) MarkAllReprocess(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE docs SET reprocess = 1;`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EnrichedSince returns enriched documents with enriched_at strictly after
// the watermark, oldest first.
func (s *sqliteStore) EnrichedSince(ctx context.Context, watermark time.Time, limit int) ([]store.Doc, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT `+docColumns+`
FROM docs
WHERE enriched_at IS NOT NULL AND enriched_at > ?
ORDER BY enriched_at ASC, id ASC
LIMIT ?;
`, watermark.UTC().UnixNano(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDocs(rows)
}

// ExportWatermark returns the enriched_at of the last document known to be
// indexed, or the zero time when nothing was exported yet.
func (s *sqliteStore) ExportWatermark(ctx context.Context) (time.Time, error) {
	var nanos int64
	err := s.db.QueryRowContext(ctx, `SELECT last_enriched_at FROM export_state WHERE id = 1`).Scan(&nanos)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if nanos == 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, nanos).UTC(), nil
}

// SetExportWatermark records the enriched_at of the newest exported
// document.
func (s *sqliteStore) SetExportWatermark(ctx context.Context, mark time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO export_state (id, last_enriched_at) VALUES (1, ?)
ON CONFLICT(id) DO UPDATE SET last_enriched_at=excluded.last_enriched_at;
`, mark.UTC().UnixNano())
	return err
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDoc(row scanner) (store.Doc, error) {
	var (
		doc        store.Doc
		createdAt  string
		tokensJSON string
		score      sql.NullFloat64
		enrichedAt sql.NullInt64
		reprocess  int64
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
		&tokensJSON,
		&doc.Language,
		&doc.SentimentLabel,
		&score,
		&enrichedAt,
		&reprocess,
	)
	if err != nil {
		return store.Doc{}, err
	}

	if createdAt != "" {
		if parsed, perr := time.Parse(time.RFC3339, createdAt); perr == nil {
			doc.CreatedAt = parsed
		}
	}
	if tokensJSON != "" {
		if err := json.Unmarshal([]byte(tokensJSON), &doc.Tokens); err != nil {
			return store.Doc{}, err
		}
	}
	if score.Valid {
		v := score.Float64
		doc.SentimentScore = &v
	}
	if enrichedAt.Valid {
		at := time.Unix(0, enrichedAt.Int64).UTC()
		doc.EnrichedAt = &at
	}
	doc.Reprocess = reprocess != 0

	return doc, nil
}

func collectDocs(rows *sql.Rows) ([]store.Doc, error) {
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

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func nullableScore(score *float64) interface{} {
	if score == nil {
		return nil
	}
	return *score
}
