package scraper

import (
	"context"
	"fmt"

	"github.com/hyperjump/molegis/internal/models"
)

// Chamber names.
const (
	ChamberHouse  = "house"
	ChamberSenate = "senate"
)

// BillSource reads one chamber's bill pages for a session. A year of 0 means
// the current session.
type BillSource interface {
	Chamber() string
	ListBills(ctx context.Context, year int, code models.SessionCode) ([]models.BillListing, error)
	BillDetail(ctx context.Context, year int, code models.SessionCode, billNumber string) (*models.BillDetail, error)
	Cosponsors(ctx context.Context, year int, code models.SessionCode, billNumber string) ([]string, error)
	Actions(ctx context.Context, year int, code models.SessionCode, billNumber string) ([]models.ScrapedAction, error)
	Hearings(ctx context.Context, year int, code models.SessionCode, billNumber string) ([]models.ScrapedHearing, error)
}

// ScrapeBill reads every page of one bill in order and returns the combined record.
func ScrapeBill(ctx context.Context, src BillSource, year int, code models.SessionCode, listing models.BillListing) (*models.BillRecord, error) {
	number := models.NormalizeBillNumber(listing.BillNumber)
	detail, err := src.BillDetail(ctx, year, code, number)
	if err != nil {
		return nil, fmt.Errorf("detail: %w", err)
	}
	cosponsors, err := src.Cosponsors(ctx, year, code, number)
	if err != nil {
		return nil, fmt.Errorf("cosponsors: %w", err)
	}
	actions, err := src.Actions(ctx, year, code, number)
	if err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}
	hearings, err := src.Hearings(ctx, year, code, number)
	if err != nil {
		return nil, fmt.Errorf("hearings: %w", err)
	}
	return &models.BillRecord{
		Chamber:    src.Chamber(),
		Listing:    listing,
		Detail:     *detail,
		Cosponsors: cosponsors,
		Actions:    actions,
		Hearings:   hearings,
	}, nil
}
