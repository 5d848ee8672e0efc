// Package pipeline drives a session run: a sequential browser phase that scrapes
// bill pages, handed over a channel to a bounded worker phase that downloads
// documents, stores bills, and generates embeddings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperjump/molegis/internal/indexer"
	"github.com/hyperjump/molegis/internal/legislators"
	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/scraper"
	"github.com/hyperjump/molegis/internal/storage"
	"github.com/hyperjump/molegis/pkg/utils"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// DefaultConcurrency is the number of bills processed at once in the worker phase.
const DefaultConcurrency = 5

// ErrSessionSetup is returned when a session cannot be resolved or its bill
// list cannot be read. It is the only error that aborts a run.
var ErrSessionSetup = errors.New("session setup failed")

// Options select what a run processes.
type Options struct {
	// Year 0 targets the current session.
	Year  int
	Code  models.SessionCode
	Force bool
	// Limit caps the number of bills taken from the list. 0 means all.
	Limit int
	// SyncRoster loads the session's member roster before scraping bills.
	SyncRoster bool
}

func (o Options) sessionYear() int {
	if o.Year == 0 {
		return models.CurrentSessionYear()
	}
	return o.Year
}

func (o Options) code() models.SessionCode {
	if o.Code == "" {
		return models.SessionRegular
	}
	return o.Code
}

// TextSource returns the raw text of a document URL.
type TextSource interface {
	Acquire(ctx context.Context, url string) (string, error)
}

// RosterSyncer loads a session's members so sponsors can be resolved.
type RosterSyncer interface {
	Sync(ctx context.Context, sessionID string, year int, code models.SessionCode) (legislators.SyncResult, error)
}

// Recorder receives run instrumentation. metrics.Pipeline implements it.
type Recorder interface {
	BillFinished(status models.BillStatus)
	EmbeddingsCreated(n int)
	TaskStarted()
	TaskFinished()
	SessionFinished(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) BillFinished(models.BillStatus) {}
func (nopRecorder) EmbeddingsCreated(int)          {}
func (nopRecorder) TaskStarted()                   {}
func (nopRecorder) TaskFinished()                  {}
func (nopRecorder) SessionFinished(bool)           {}

// Orchestrator runs sessions end to end.
type Orchestrator struct {
	store       storage.Storage
	source      scraper.BillSource
	texts       TextSource
	indexer     *indexer.Indexer
	roster      RosterSyncer
	recorder    Recorder
	browser     io.Closer
	concurrency int
	logger      *zap.Logger

	releaseOnce sync.Once
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithConcurrency sets how many bills the worker phase processes at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.concurrency = n }
}

// WithBrowser hands the orchestrator the browser behind the bill source so it
// can be closed as soon as no more pages will be read.
func WithBrowser(b io.Closer) Option {
	return func(o *Orchestrator) { o.browser = b }
}

// WithRosterSync enables Options.SyncRoster.
func WithRosterSync(r RosterSyncer) Option {
	return func(o *Orchestrator) { o.roster = r }
}

// WithRecorder sets the instrumentation sink.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New creates an orchestrator. source may be nil when only Regenerate is used.
func New(store storage.Storage, source scraper.BillSource, texts TextSource, idx *indexer.Indexer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		source:      source,
		texts:       texts,
		indexer:     idx,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.concurrency <= 0 {
		o.concurrency = DefaultConcurrency
	}
	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}
	o.logger = utils.OrNop(o.logger)
	return o
}

// Run processes one session and releases the browser once its bill pages are read.
// Bill failures are counted in the summary; only ErrSessionSetup is returned.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*models.RunSummary, error) {
	defer o.releaseBrowser()
	return o.run(ctx, opts, true)
}

func (o *Orchestrator) releaseBrowser() {
	if o.browser == nil {
		return
	}
	o.releaseOnce.Do(func() {
		if err := o.browser.Close(); err != nil {
			o.logger.Warn("failed to close browser", zap.Error(err))
		}
	})
}

func (o *Orchestrator) run(ctx context.Context, opts Options, releaseAfterScrape bool) (*models.RunSummary, error) {
	start := time.Now()
	code := opts.code()
	r := newSessionRun(o, opts)
	if o.source == nil {
		return o.setupFailed(r, fmt.Errorf("%w: no bill source configured", ErrSessionSetup))
	}
	logger := o.logger.With(zap.Int("year", r.summary.Year), zap.String("session_code", string(code)))

	sessionID, err := o.store.UpsertSession(ctx, r.summary.Year, code)
	if err != nil {
		return o.setupFailed(r, fmt.Errorf("%w: failed to resolve session: %v", ErrSessionSetup, err))
	}
	r.sessionID = sessionID
	r.resolver = legislators.NewResolver(o.store, sessionID, logger)

	if opts.SyncRoster && o.roster != nil {
		if _, err := o.roster.Sync(ctx, sessionID, opts.Year, code); err != nil {
			logger.Warn("roster sync failed, sponsors may not resolve", zap.Error(err))
		}
	}

	listings, err := o.source.ListBills(ctx, opts.Year, code)
	if err != nil {
		return o.setupFailed(r, fmt.Errorf("%w: failed to list bills: %v", ErrSessionSetup, err))
	}
	if opts.Limit > 0 && len(listings) > opts.Limit {
		listings = listings[:opts.Limit]
	}
	logger.Info("session run started",
		zap.String("chamber", o.source.Chamber()),
		zap.Int("bills", len(listings)),
		zap.Bool("force", opts.Force))

	pool, err := ants.NewPool(o.concurrency)
	if err != nil {
		return o.setupFailed(r, fmt.Errorf("%w: failed to create worker pool: %v", ErrSessionSetup, err))
	}
	defer pool.Release()

	records := make(chan *models.BillRecord, o.concurrency)
	go func() {
		defer close(records)
		r.scrape(ctx, listings, records)
		if releaseAfterScrape {
			o.releaseBrowser()
		}
	}()

	runBatches(ctx, pool, o.concurrency, records, r.processRecord)

	r.summary.Duration = time.Since(start)
	r.summary.MaxInFlight = int(r.maxInFlight.Load())
	o.recorder.SessionFinished(r.summary.Succeeded())
	logger.Info("session run finished",
		zap.Int("processed", r.summary.Processed),
		zap.Int("skipped", r.summary.Skipped),
		zap.Int("failed", r.summary.Failed),
		zap.Int("embeddings", r.summary.Embeddings),
		zap.Duration("duration", r.summary.Duration))
	return r.summary, nil
}

func (o *Orchestrator) setupFailed(r *sessionRun, err error) (*models.RunSummary, error) {
	r.summary.Err = err.Error()
	o.recorder.SessionFinished(false)
	o.logger.Error("session setup failed",
		zap.Int("year", r.summary.Year),
		zap.String("session_code", string(r.summary.Code)),
		zap.Error(err))
	return r.summary, err
}

// runBatches reads up to size items at a time, submits them all to the pool,
// and waits for the whole batch before reading more.
func runBatches[T any](ctx context.Context, pool *ants.Pool, size int, items <-chan T, handle func(context.Context, T)) {
	batch := make([]T, 0, size)
	flush := func() {
		var wg sync.WaitGroup
		for _, item := range batch {
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				handle(ctx, item)
			}); err != nil {
				wg.Done()
				handle(ctx, item)
			}
		}
		wg.Wait()
		batch = batch[:0]
	}
	for item := range items {
		batch = append(batch, item)
		if len(batch) == size {
			flush()
		}
	}
	if len(batch) > 0 {
		flush()
	}
}

// sessionRun is the state of one session run shared by both phases.
type sessionRun struct {
	o         *Orchestrator
	opts      Options
	sessionID string
	resolver  *legislators.Resolver

	inFlight    atomic.Int64
	maxInFlight atomic.Int64

	mu      sync.Mutex
	summary *models.RunSummary
}

func newSessionRun(o *Orchestrator, opts Options) *sessionRun {
	return &sessionRun{
		o:    o,
		opts: opts,
		summary: &models.RunSummary{
			Year: opts.sessionYear(),
			Code: opts.code(),
		},
	}
}

func (r *sessionRun) skip(billNumber, reason string) {
	r.mu.Lock()
	r.summary.Skipped++
	r.mu.Unlock()
	r.o.recorder.BillFinished(models.BillSkipped)
	r.o.logger.Debug("skipping bill", zap.String("bill_number", billNumber), zap.String("reason", reason))
}

func (r *sessionRun) fail(billNumber, stage string, err error) {
	r.mu.Lock()
	r.summary.Failed++
	r.summary.Failures = append(r.summary.Failures, models.BillFailure{
		BillNumber: billNumber,
		Stage:      stage,
		Error:      err.Error(),
	})
	r.mu.Unlock()
	r.o.recorder.BillFinished(models.BillFailed)
	r.o.logger.Error("bill failed",
		zap.String("bill_number", billNumber),
		zap.String("stage", stage),
		zap.Error(err))
}

func (r *sessionRun) processed(billNumber string, embeddings int) {
	r.mu.Lock()
	r.summary.Processed++
	r.summary.Embeddings += embeddings
	r.mu.Unlock()
	r.o.recorder.BillFinished(models.BillProcessed)
	r.o.recorder.EmbeddingsCreated(embeddings)
	r.o.logger.Info("bill processed", zap.String("bill_number", billNumber), zap.Int("embeddings", embeddings))
}

func (r *sessionRun) enter() {
	n := r.inFlight.Add(1)
	for {
		peak := r.maxInFlight.Load()
		if n <= peak || r.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	r.o.recorder.TaskStarted()
}

func (r *sessionRun) leave() {
	r.inFlight.Add(-1)
	r.o.recorder.TaskFinished()
}

// guard runs one bill task, converting a panic into a failed bill.
func (r *sessionRun) guard(billNumber string, task func() (int, error)) {
	r.enter()
	defer r.leave()
	defer func() {
		if p := recover(); p != nil {
			r.fail(billNumber, "panic", fmt.Errorf("panic: %v", p))
		}
	}()

	n, err := task()
	if err != nil {
		stage := "process"
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		r.fail(billNumber, stage, err)
		return
	}
	r.processed(billNumber, n)
}

// StageError tags a bill failure with the step that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
