package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/storage"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Regenerate re-embeds the stored bills of a session from their extracted text
// without touching the sources. Bills that already have embeddings are skipped
// unless forced; under force their embeddings are deleted first.
func (o *Orchestrator) Regenerate(ctx context.Context, opts Options) (*models.RunSummary, error) {
	start := time.Now()
	r := newSessionRun(o, opts)

	session, err := o.store.GetSession(ctx, r.summary.Year, r.summary.Code)
	if errors.Is(err, storage.ErrNotFound) {
		return o.setupFailed(r, fmt.Errorf("%w: session %d %s has not been scraped", ErrSessionSetup, r.summary.Year, r.summary.Code))
	}
	if err != nil {
		return o.setupFailed(r, fmt.Errorf("%w: failed to resolve session: %v", ErrSessionSetup, err))
	}
	r.sessionID = session.ID

	bills, err := o.store.ListBills(ctx, session.ID, opts.Limit)
	if err != nil {
		return o.setupFailed(r, fmt.Errorf("%w: failed to list stored bills: %v", ErrSessionSetup, err))
	}

	pool, err := ants.NewPool(o.concurrency)
	if err != nil {
		return o.setupFailed(r, fmt.Errorf("%w: failed to create worker pool: %v", ErrSessionSetup, err))
	}
	defer pool.Release()

	queue := make(chan *models.Bill, o.concurrency)
	go func() {
		defer close(queue)
		for _, b := range bills {
			if !opts.Force {
				has, err := o.store.HasEmbeddings(ctx, b.ID)
				if err != nil {
					o.logger.Warn("failed to check embeddings", zap.String("bill_number", b.BillNumber), zap.Error(err))
				} else if has {
					r.skip(b.BillNumber, "already has embeddings")
					continue
				}
			}
			select {
			case queue <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	runBatches(ctx, pool, o.concurrency, queue, func(ctx context.Context, b *models.Bill) {
		r.guard(b.BillNumber, func() (int, error) {
			return r.reembed(ctx, b)
		})
	})

	r.summary.Duration = time.Since(start)
	r.summary.MaxInFlight = int(r.maxInFlight.Load())
	o.recorder.SessionFinished(r.summary.Succeeded())
	o.logger.Info("embedding regeneration finished",
		zap.Int("year", r.summary.Year),
		zap.String("session_code", string(r.summary.Code)),
		zap.Int("processed", r.summary.Processed),
		zap.Int("skipped", r.summary.Skipped),
		zap.Int("failed", r.summary.Failed),
		zap.Int("embeddings", r.summary.Embeddings))
	return r.summary, nil
}

func (r *sessionRun) reembed(ctx context.Context, b *models.Bill) (int, error) {
	if r.opts.Force {
		if _, err := r.o.indexer.DeleteBillEmbeddings(ctx, b.ID); err != nil {
			return 0, stageErr("delete_embeddings", err)
		}
	}
	docs, err := r.o.store.GetBillDocuments(ctx, b.ID)
	if err != nil {
		return 0, stageErr("load", err)
	}
	b.Documents = docs

	meta, err := r.o.store.BillMetadata(ctx, b.ID)
	if err != nil {
		return 0, stageErr("metadata", err)
	}
	n, err := r.o.indexer.EmbedBill(ctx, b, meta)
	if err != nil {
		return 0, stageErr("embed", err)
	}
	return n, nil
}
