package pipeline

import (
	"context"
	"fmt"

	"github.com/hyperjump/molegis/internal/docversion"
	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/scraper"
	"github.com/hyperjump/molegis/pkg/utils"
	"go.uber.org/zap"
)

func (r *sessionRun) processRecord(ctx context.Context, rec *models.BillRecord) {
	number := models.NormalizeBillNumber(rec.Number())
	r.guard(number, func() (int, error) {
		return r.processBill(ctx, rec)
	})
}

// processBill downloads the bill's documents, replaces the stored bill, and
// embeds its selected document versions. A document that cannot be downloaded
// is stored without text and fails the bill at stage download.
func (r *sessionRun) processBill(ctx context.Context, rec *models.BillRecord) (int, error) {
	bill := r.buildBill(ctx, rec)
	acquireErr := r.acquireTexts(ctx, bill)

	billID, _, err := r.o.store.UpsertBill(ctx, r.sessionID, bill)
	if err != nil {
		return 0, stageErr("store", err)
	}
	if acquireErr != nil {
		return 0, stageErr("download", acquireErr)
	}

	if r.opts.Force {
		removed, err := r.o.indexer.DeleteBillEmbeddings(ctx, billID)
		if err != nil {
			return 0, stageErr("delete_embeddings", err)
		}
		if removed > 0 {
			r.o.logger.Debug("removed stale embeddings", zap.String("bill_number", bill.BillNumber), zap.Int("count", removed))
		}
	}

	meta, err := r.o.store.BillMetadata(ctx, billID)
	if err != nil {
		return 0, stageErr("metadata", err)
	}
	n, err := r.o.indexer.EmbedBill(ctx, bill, meta)
	if err != nil {
		return 0, stageErr("embed", err)
	}
	return n, nil
}

// acquireTexts fills ExtractedText for every non-fiscal document. It keeps
// going after a failure and returns the first error.
func (r *sessionRun) acquireTexts(ctx context.Context, bill *models.Bill) error {
	var firstErr error
	for i := range bill.Documents {
		doc := &bill.Documents[i]
		if docversion.IsFiscalNote(doc) {
			continue
		}
		text, err := r.o.texts.Acquire(ctx, doc.URL)
		if err != nil {
			r.o.logger.Warn("failed to acquire document text",
				zap.String("bill_number", bill.BillNumber),
				zap.String("document", doc.Title),
				zap.String("url", doc.URL),
				zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to download %s: %w", doc.URL, err)
			}
			continue
		}
		doc.ExtractedText = text
	}
	return firstErr
}

// buildBill converts a scraped record into a bill row with typed children.
// Sponsors that cannot be resolved are left out.
func (r *sessionRun) buildBill(ctx context.Context, rec *models.BillRecord) *models.Bill {
	d := rec.Detail
	bill := &models.Bill{
		BillNumber:            models.NormalizeBillNumber(rec.Number()),
		Title:                 rec.Title(),
		Description:           rec.Listing.Description,
		LRNumber:              d.LRNumber,
		BillString:            d.BillString,
		LastAction:            d.LastAction,
		ProposedEffectiveDate: d.ProposedEffectiveDate,
		CalendarStatus:        d.CalendarStatus,
		HearingStatus:         d.HearingStatus,
		BillURL:               rec.Listing.BillURL,
		Documents:             scraper.DocumentsFromRefs(d.Documents),
	}
	bill.Sponsors = r.sponsors(ctx, rec)

	for i, a := range rec.Actions {
		bill.Actions = append(bill.Actions, models.Action{
			Date:          scraper.ParseActionDate(a.Date),
			DateText:      a.Date,
			Description:   a.Description,
			SequenceOrder: i + 1,
		})
	}
	for _, h := range rec.Hearings {
		bill.Hearings = append(bill.Hearings, models.Hearing{
			CommitteeName: h.Committee,
			Date:          scraper.ParseActionDate(h.Date),
			Time:          scraper.ParseHearingTime(h.Time),
			TimeText:      h.Time,
			Location:      h.Location,
		})
	}
	return bill
}

func (r *sessionRun) sponsors(ctx context.Context, rec *models.BillRecord) []models.Sponsor {
	role := models.RoleRepresentative
	if rec.Chamber == scraper.ChamberSenate {
		role = models.RoleSenator
	}

	var out []models.Sponsor
	seen := make(map[string]bool)
	add := func(id string, primary bool) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, models.Sponsor{SessionLegislatorID: id, IsPrimary: primary})
	}

	primary := utils.FirstNonEmpty(rec.Detail.Sponsor, rec.Listing.Sponsor)
	primaryURL := utils.FirstNonEmpty(rec.Detail.SponsorURL, rec.Listing.SponsorURL)
	if primary != "" || primaryURL != "" {
		add(r.resolveSponsor(ctx, primary, primaryURL, role), true)
	}
	for _, co := range rec.Cosponsors {
		add(r.resolveSponsor(ctx, co, "", role), false)
	}
	return out
}

// resolveSponsor tries the district in the sponsor text, then the profile
// link, then the bare name.
func (r *sessionRun) resolveSponsor(ctx context.Context, sponsor, profileURL, role string) string {
	if district := scraper.ParseSponsorDistrict(sponsor); district != "" {
		if id, ok := r.resolver.ByDistrict(ctx, district); ok {
			return id
		}
	}
	if profileURL != "" {
		if id, ok := r.resolver.ByProfileURL(ctx, profileURL); ok {
			return id
		}
	}
	if name := scraper.SponsorName(sponsor); name != "" {
		if id, ok := r.resolver.ByName(ctx, name, role); ok {
			return id
		}
	}
	return ""
}
