package pipeline

import (
	"context"
	"errors"

	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/scraper"
	"github.com/hyperjump/molegis/internal/storage"
	"go.uber.org/zap"
)

// scrape is the browser phase: one bill at a time through the shared page.
// Bills that already have extracted text are skipped unless forced. Each
// scraped record is handed to the worker phase on out.
func (r *sessionRun) scrape(ctx context.Context, listings []models.BillListing, out chan<- *models.BillRecord) {
	seen := make(map[string]bool, len(listings))
	for _, listing := range listings {
		if ctx.Err() != nil {
			return
		}
		number := models.NormalizeBillNumber(listing.BillNumber)
		if number == "" || seen[number] {
			continue
		}
		seen[number] = true

		if !r.opts.Force && r.hasText(ctx, number) {
			r.skip(number, "already has extracted text")
			continue
		}

		rec, err := scraper.ScrapeBill(ctx, r.o.source, r.opts.Year, r.opts.code(), listing)
		if err != nil {
			r.fail(number, "scrape", err)
			continue
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			return
		}
	}
}

func (r *sessionRun) hasText(ctx context.Context, billNumber string) bool {
	billID, err := r.o.store.GetBillID(ctx, r.sessionID, billNumber)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		r.o.logger.Warn("failed to look up bill", zap.String("bill_number", billNumber), zap.Error(err))
		return false
	}
	ok, err := r.o.store.HasExtractedText(ctx, billID)
	if err != nil {
		r.o.logger.Warn("failed to check extracted text", zap.String("bill_number", billNumber), zap.Error(err))
		return false
	}
	return ok
}
