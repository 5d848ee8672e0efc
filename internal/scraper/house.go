package scraper

import (
	"context"
	"fmt"

	"github.com/hyperjump/molegis/internal/models"
)

// HouseSource reads bills and members from the Missouri House site.
type HouseSource struct {
	eval Evaluator
	urls HouseURLs
}

// NewHouseSource creates a House source rooted at baseURL ("https://house.mo.gov").
func NewHouseSource(eval Evaluator, baseURL string) *HouseSource {
	return &HouseSource{eval: eval, urls: NewHouseURLs(baseURL)}
}

// Chamber returns "house".
func (h *HouseSource) Chamber() string { return ChamberHouse }

// ListBills reads the session bill list.
func (h *HouseSource) ListBills(ctx context.Context, year int, code models.SessionCode) ([]models.BillListing, error) {
	var bills []models.BillListing
	if err := h.eval.Evaluate(ctx, h.urls.BillList(year, code), "table", houseBillListJS, &bills); err != nil {
		return nil, err
	}
	return bills, nil
}

// BillDetail reads the bill detail page. Roll calls, witness lists, and repeated links are dropped from Documents.
func (h *HouseSource) BillDetail(ctx context.Context, year int, code models.SessionCode, billNumber string) (*models.BillDetail, error) {
	var d models.BillDetail
	if err := h.eval.Evaluate(ctx, h.urls.BillContent(billNumber, year, code), "main", houseBillDetailJS, &d); err != nil {
		return nil, err
	}
	d.Documents = filterRefs(d.Documents)
	return &d, nil
}

// Cosponsors reads co-sponsor names.
func (h *HouseSource) Cosponsors(ctx context.Context, year int, code models.SessionCode, billNumber string) ([]string, error) {
	var names []string
	if err := h.eval.Evaluate(ctx, h.urls.CoSponsors(billNumber, year, code), "body", houseCosponsorsJS, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Actions reads the action history in posted order.
func (h *HouseSource) Actions(ctx context.Context, year int, code models.SessionCode, billNumber string) ([]models.ScrapedAction, error) {
	var actions []models.ScrapedAction
	if err := h.eval.Evaluate(ctx, h.urls.BillActions(billNumber, year, code), "body", houseActionsJS, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// Hearings reads committee hearing blocks.
func (h *HouseSource) Hearings(ctx context.Context, year int, code models.SessionCode, billNumber string) ([]models.ScrapedHearing, error) {
	var hearings []models.ScrapedHearing
	if err := h.eval.Evaluate(ctx, h.urls.BillHearings(billNumber, year, code), "body", houseHearingsJS, &hearings); err != nil {
		return nil, err
	}
	return hearings, nil
}

// ListMembers reads the session member roster.
func (h *HouseSource) ListMembers(ctx context.Context, year int, code models.SessionCode) ([]models.RosterEntry, error) {
	var members []models.RosterEntry
	if err := h.eval.Evaluate(ctx, h.urls.MemberRoster(year, code), "main", houseRosterJS, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// MemberProfile reads one member's profile page.
func (h *HouseSource) MemberProfile(ctx context.Context, profileURL string) (*models.MemberProfile, error) {
	var p models.MemberProfile
	if err := h.eval.Evaluate(ctx, profileURL, "main", memberProfileJS, &p); err != nil {
		return nil, err
	}
	role, name := SplitRoleName(p.Name)
	if name == "" {
		return nil, fmt.Errorf("profile %s has no member name", profileURL)
	}
	p.Name = name
	if p.Role == "" {
		p.Role = role
	}
	if p.ProfileURL == "" {
		p.ProfileURL = profileURL
	}
	return &p, nil
}

// filterRefs drops roll calls, witness lists, blanks, and repeated URLs, keeping order.
func filterRefs(refs []models.DocumentRef) []models.DocumentRef {
	docs := DocumentsFromRefs(refs)
	out := make([]models.DocumentRef, len(docs))
	for i, d := range docs {
		out[i] = models.DocumentRef{Title: d.Title, URL: d.URL}
	}
	return out
}
