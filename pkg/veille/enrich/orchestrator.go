package enrich

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/veille-labs/veille/pkg/veille/internalerr"
	"github.com/veille-labs/veille/pkg/veille/retry"
	"github.com/veille-labs/veille/pkg/veille/store"
)

const (
	defaultWorkers       = 4
	defaultBatchSize     = 100
	defaultProgressEvery = 100
)

// RunResult summarizes one enrichment run.
type RunResult struct {
	RunID     string
	Total     int64
	Processed int64
	Enriched  int64
	Failed    int64
	Skipped   int64
	Elapsed   time.Duration
}

// Orchestrator sweeps the store for documents that still need enrichment
// and processes them on a bounded worker pool.
type Orchestrator struct {
	store    store.Store
	enricher *Enricher
	policy   retry.Policy
	logger   *slog.Logger

	Workers       int
	BatchSize     int
	ProgressEvery int
}

// NewOrchestrator wires an Orchestrator with default worker, batch and
// progress settings.
func NewOrchestrator(st store.Store, e *Enricher, policy retry.Policy, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:         st,
		enricher:      e,
		policy:        policy,
		logger:        logger,
		Workers:       defaultWorkers,
		BatchSize:     defaultBatchSize,
		ProgressEvery: defaultProgressEvery,
	}
}

// Run enriches every candidate document once. A document that fails is
// logged and left un-enriched for a later run; the run itself only fails
// when the store stops answering.
func (o *Orchestrator) Run(ctx context.Context) (RunResult, error) {
	start := time.Now()
	runID := ulid.MustNew(ulid.Timestamp(start), ulid.Monotonic(rand.Reader, 0)).String()
	log := o.logger.With("run_id", runID)

	result := RunResult{RunID: runID}

	var total, pending int64
	err := o.policy.Do(ctx, func() error {
		var cerr error
		total, cerr = o.store.Count(ctx)
		if cerr != nil {
			return cerr
		}
		pending, cerr = o.store.CountCandidates(ctx)
		return cerr
	})
	if err != nil {
		result.Elapsed = time.Since(start)
		return result, fmt.Errorf("counting candidates: %w", err)
	}

	result.Total = total
	result.Skipped = total - pending

	if pending == 0 {
		result.Elapsed = time.Since(start)
		log.Info("nothing to enrich", "total", total)
		return result, nil
	}

	workers := o.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	batchSize := o.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	progressEvery := int64(o.ProgressEvery)
	if progressEvery <= 0 {
		progressEvery = defaultProgressEvery
	}

	log.Info("enrichment run started",
		"total", total, "pending", pending, "workers", workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		processed atomic.Int64
		enriched  atomic.Int64
		failed    atomic.Int64

		fatalMu  sync.Mutex
		fatalErr error
	)
	setFatal := func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
			cancel()
		}
		fatalMu.Unlock()
	}

	jobs := make(chan store.Doc)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				if ctx.Err() != nil {
					continue
				}
				o.processDoc(ctx, log, doc, &enriched, &failed, setFatal)

				n := processed.Add(1)
				if n%progressEvery == 0 {
					log.Info("enrichment progress", "processed", n, "pending", pending)
				}
			}
		}()
	}

	var afterID int64
feed:
	for {
		var batch []store.Doc
		err := o.policy.Do(ctx, func() error {
			var cerr error
			batch, cerr = o.store.Candidates(ctx, afterID, batchSize)
			return cerr
		})
		if err != nil {
			if ctx.Err() == nil {
				setFatal(fmt.Errorf("loading candidates: %w", err))
			}
			break
		}
		if len(batch) == 0 {
			break
		}

		for _, doc := range batch {
			select {
			case jobs <- doc:
			case <-ctx.Done():
				break feed
			}
		}
		afterID = batch[len(batch)-1].ID
	}

	close(jobs)
	wg.Wait()

	result.Processed = processed.Load()
	result.Enriched = enriched.Load()
	result.Failed = failed.Load()
	result.Elapsed = time.Since(start)

	fatalMu.Lock()
	err = fatalErr
	fatalMu.Unlock()

	if err != nil {
		log.Error("enrichment run aborted",
			"processed", result.Processed, "enriched", result.Enriched,
			"failed", result.Failed, "err", err)
		return result, err
	}

	log.Info("enrichment run finished",
		"processed", result.Processed, "enriched", result.Enriched,
		"failed", result.Failed, "skipped", result.Skipped,
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// processDoc enriches one document and saves it under the retry policy.
// Save failures count against the document unless the store itself has
// gone away, which aborts the whole run.
func (o *Orchestrator) processDoc(ctx context.Context, log *slog.Logger, doc store.Doc, enriched, failed *atomic.Int64, setFatal func(error)) {
	merged := store.Apply(doc, o.enricher.Enrich(doc))

	err := o.policy.Do(ctx, func() error {
		return o.store.SaveEnriched(ctx, merged)
	})
	if err == nil {
		enriched.Add(1)
		return
	}
	if ctx.Err() != nil {
		failed.Add(1)
		return
	}

	failed.Add(1)
	if pingErr := o.store.Ping(ctx); pingErr != nil {
		setFatal(fmt.Errorf("%w: saving %s: %v", internalerr.ErrStoreUnavailable, doc.URL, err))
		return
	}
	log.Warn("document failed, will retry next run", "url", doc.URL, "err", err)
}
