// Package veille bundles the enrichment pipeline behind one facade:
// ingest raw social posts, enrich them (normalize, tokenize, detect
// language, score sentiment), and export the result to a search index.
// The subpackages stay usable on their own; this package only wires them.
package veille

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/veille-labs/veille/pkg/veille/config"
	"github.com/veille-labs/veille/pkg/veille/enrich"
	"github.com/veille-labs/veille/pkg/veille/internalerr"
	"github.com/veille-labs/veille/pkg/veille/langid"
	"github.com/veille-labs/veille/pkg/veille/retry"
	"github.com/veille-labs/veille/pkg/veille/search"
	"github.com/veille-labs/veille/pkg/veille/sentiment"
	"github.com/veille-labs/veille/pkg/veille/store"
	"github.com/veille-labs/veille/pkg/veille/store/memstore"
	"github.com/veille-labs/veille/pkg/veille/store/postgres"
	"github.com/veille-labs/veille/pkg/veille/store/sqlite"
	"github.com/veille-labs/veille/pkg/veille/tokenize"
)

// Pipeline is the main enrichment engine facade
type Pipeline struct {
	store        store.Store
	enricher     *enrich.Enricher
	orchestrator *enrich.Orchestrator
	exporter     *search.Exporter
	policy       retry.Policy
	logger       *slog.Logger
}

// Options configures a Pipeline instance
type Options struct {
	Store    store.Store
	Enricher *enrich.Enricher
	Search   *search.Client
	Policy   retry.Policy
	Logger   *slog.Logger

	// Enrichment run tuning; zero values keep the package defaults.
	Workers       int
	BatchSize     int
	ProgressEvery int

	// Export tuning; a nil Limiter leaves bulk requests unpaced.
	BulkSize int
	Limiter  *rate.Limiter
}

// New creates a Pipeline with the given dependencies
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	orc := enrich.NewOrchestrator(opts.Store, opts.Enricher, opts.Policy, logger)
	if opts.Workers > 0 {
		orc.Workers = opts.Workers
	}
	if opts.BatchSize > 0 {
		orc.BatchSize = opts.BatchSize
	}
	if opts.ProgressEvery > 0 {
		orc.ProgressEvery = opts.ProgressEvery
	}

	exp := search.NewExporter(opts.Search, opts.Store, opts.Policy, logger)
	if opts.BulkSize > 0 {
		exp.BulkSize = opts.BulkSize
	}
	exp.Limiter = opts.Limiter

	return &Pipeline{
		store:        opts.Store,
		enricher:     opts.Enricher,
		orchestrator: orc,
		exporter:     exp,
		policy:       opts.Policy,
		logger:       logger,
	}
}

// Open assembles a Pipeline from configuration: it loads the stopword
// lists, builds the enricher, opens the configured store and connects
// the search client.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	var stopwords *config.Stopwords
	if cfg.Resources.Stopwords != "" {
		sw, err := config.LoadStopwords(cfg.Resources.Stopwords)
		if err != nil {
			return nil, fmt.Errorf("load stopwords: %w", err)
		}
		stopwords = sw
	} else {
		stopwords = config.DefaultStopwords()
	}

	lem, err := tokenize.NewLemmatizer()
	if err != nil {
		return nil, fmt.Errorf("load lemmatizer: %w", err)
	}

	enricher := enrich.New(
		tokenize.New(stopwords.All(), lem),
		langid.New(),
		sentiment.New(),
	)

	var st store.Store
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		st, err = sqlite.Open(ctx, cfg.Store.DSN)
	case config.DriverPostgres:
		st, err = postgres.Open(ctx, cfg.Store.DSN)
	case config.DriverMemory:
		st = memstore.New()
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", internalerr.ErrInvalidConfig, cfg.Store.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client, err := search.NewClient(cfg.Search.Endpoint, cfg.Search.Index)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("search client: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.Search.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Search.RequestsPerSecond), 1)
	}

	return New(Options{
		Store:         st,
		Enricher:      enricher,
		Search:        client,
		Policy:        cfg.RetryPolicy(),
		Logger:        logger,
		Workers:       cfg.Enrich.Workers,
		BatchSize:     cfg.Enrich.BatchSize,
		ProgressEvery: cfg.Enrich.ProgressEvery,
		BulkSize:      cfg.Search.BulkSize,
		Limiter:       limiter,
	}), nil
}

// Close cleanly shuts down the Pipeline
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// RawPost represents a social post to be ingested
type RawPost struct {
	URL       string
	Title     string
	Body      string
	Author    string
	Platform  string
	CreatedAt time.Time
}

// IngestResult reports what an ingest pass did.
type IngestResult struct {
	Inserted int
	Updated  int
}

// Total returns the number of documents the pass stored.
func (r IngestResult) Total() int { return r.Inserted + r.Updated }

// Ingest upserts raw posts by URL. Enrichment columns of posts already in
// the store are preserved; the documents are picked up again by the next
// Enrich run only if they are still pending or flagged for reprocessing.
func (p *Pipeline) Ingest(ctx context.Context, posts []RawPost) (IngestResult, error) {
	var res IngestResult

	for _, post := range posts {
		if post.URL == "" {
			return res, fmt.Errorf("%w: post without url", internalerr.ErrInvalidInput)
		}

		doc := store.Doc{
			URL:       post.URL,
			Title:     post.Title,
			Body:      post.Body,
			Author:    post.Author,
			Platform:  post.Platform,
			CreatedAt: post.CreatedAt,
		}

		var found bool
		err := p.policy.Do(ctx, func() error {
			_, ok, err := p.store.GetByURL(ctx, post.URL)
			if err != nil {
				return err
			}
			found = ok
			_, err = p.store.UpsertRaw(ctx, doc)
			return err
		})
		if err != nil {
			return res, fmt.Errorf("ingesting %s: %w", post.URL, err)
		}

		if found {
			res.Updated++
		} else {
			res.Inserted++
		}
	}

	p.logger.Info("ingest finished", "inserted", res.Inserted, "updated", res.Updated)
	return res, nil
}

// Enrich processes every pending document once.
func (p *Pipeline) Enrich(ctx context.Context) (enrich.RunResult, error) {
	return p.orchestrator.Run(ctx)
}

// Export pushes enriched documents to the search index, resuming from the
// persisted watermark.
func (p *Pipeline) Export(ctx context.Context) (search.ExportResult, error) {
	return p.exporter.Export(ctx)
}

// Reprocess flags the given URLs so the next Enrich run redoes them. It
// returns how many documents were actually flagged; when none of the URLs
// is stored the error wraps internalerr.ErrNotFound.
func (p *Pipeline) Reprocess(ctx context.Context, urls []string) (int64, error) {
	var n int64
	err := p.policy.Do(ctx, func() error {
		var merr error
		n, merr = p.store.MarkReprocess(ctx, urls)
		return merr
	})
	if err != nil {
		return n, err
	}
	if n == 0 && len(urls) > 0 {
		return 0, fmt.Errorf("%w: none of the urls are stored", internalerr.ErrNotFound)
	}
	return n, nil
}

// ReprocessAll flags every stored document for re-enrichment.
func (p *Pipeline) ReprocessAll(ctx context.Context) (int64, error) {
	var n int64
	err := p.policy.Do(ctx, func() error {
		var merr error
		n, merr = p.store.MarkAllReprocess(ctx)
		return merr
	})
	return n, err
}

// RunSummary aggregates the stage results of a full pipeline pass.
type RunSummary struct {
	Ingested IngestResult
	Enrich   enrich.RunResult
	Export   search.ExportResult
}

// Run executes the full pass: ingest the given posts (when any), enrich
// all pending documents, then export to the search index. It stops at the
// first stage that fails and returns the summary of what did complete.
func (p *Pipeline) Run(ctx context.Context, posts []RawPost) (RunSummary, error) {
	var sum RunSummary

	if len(posts) > 0 {
		ing, err := p.Ingest(ctx, posts)
		sum.Ingested = ing
		if err != nil {
			return sum, err
		}
	}

	enr, err := p.Enrich(ctx)
	sum.Enrich = enr
	if err != nil {
		return sum, err
	}

	exp, err := p.Export(ctx)
	sum.Export = exp
	if err != nil {
		return sum, err
	}

	return sum, nil
}

// csvHeader is the column layout of ExportCSV.
var csvHeader = []string{
	"url", "platform", "author", "created_at",
	"language", "sentiment_label", "sentiment_score",
	"enriched_at", "clean_title", "clean_body", "tokens",
}

// ExportCSV writes every enriched document to w as CSV, ordered by
// enrichment time. It returns the number of rows written.
func (p *Pipeline) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}

	rows := 0
	var watermark time.Time
	for {
		var docs []store.Doc
		err := p.policy.Do(ctx, func() error {
			var lerr error
			docs, lerr = p.store.EnrichedSince(ctx, watermark, 500)
			return lerr
		})
		if err != nil {
			return rows, fmt.Errorf("loading enriched documents: %w", err)
		}
		if len(docs) == 0 {
			break
		}

		for _, d := range docs {
			score := ""
			if d.SentimentScore != nil {
				score = strconv.FormatFloat(*d.SentimentScore, 'f', -1, 64)
			}
			record := []string{
				d.URL,
				d.Platform,
				d.Author,
				d.CreatedAt.UTC().Format(time.RFC3339),
				d.Language,
				d.SentimentLabel,
				score,
				d.EnrichedAt.UTC().Format(time.RFC3339Nano),
				d.CleanTitle,
				d.CleanBody,
				strings.Join(d.Tokens, " "),
			}
			if err := cw.Write(record); err != nil {
				return rows, err
			}
			rows++
		}

		watermark = *docs[len(docs)-1].EnrichedAt
	}

	cw.Flush()
	return rows, cw.Error()
}
