package scraper

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/hyperjump/molegis/internal/models"
)

// senateDetail is the Senate detail page, which also carries co-sponsors and hearings.
type senateDetail struct {
	models.BillDetail
	Cosponsors []string                `json:"cosponsors"`
	Hearings   []models.ScrapedHearing `json:"hearings"`
}

// SenateSource reads bills from the Missouri Senate site. Senate pages are
// addressed by an internal BillID, learned from the bill list.
type SenateSource struct {
	eval Evaluator
	urls SenateURLs

	mu      sync.Mutex
	ids     map[string]string
	details map[string]*senateDetail
}

// NewSenateSource creates a Senate source rooted at baseURL ("https://www.senate.mo.gov").
func NewSenateSource(eval Evaluator, baseURL string) *SenateSource {
	return &SenateSource{
		eval:    eval,
		urls:    SenateURLs{Base: baseURL},
		ids:     make(map[string]string),
		details: make(map[string]*senateDetail),
	}
}

// Chamber returns "senate".
func (s *SenateSource) Chamber() string { return ChamberSenate }

// ListBills reads the session bill list and remembers each bill's BillID.
func (s *SenateSource) ListBills(ctx context.Context, year int, code models.SessionCode) ([]models.BillListing, error) {
	var bills []models.BillListing
	if err := s.eval.Evaluate(ctx, s.urls.BillList(year, code), "body", senateBillListJS, &bills); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := bills[:0]
	seen := make(map[string]bool, len(bills))
	for _, b := range bills {
		number := models.NormalizeBillNumber(b.BillNumber)
		if number == "" || seen[number] {
			continue
		}
		seen[number] = true
		if u, err := url.Parse(b.BillURL); err == nil {
			if id := u.Query().Get("BillID"); id != "" {
				s.ids[number] = id
			}
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *SenateSource) detail(ctx context.Context, year int, code models.SessionCode, billNumber string) (*senateDetail, error) {
	s.mu.Lock()
	id, ok := s.ids[billNumber]
	cached := s.details[billNumber]
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	if !ok {
		return nil, fmt.Errorf("bill %s is not on the Senate bill list", billNumber)
	}
	var d senateDetail
	if err := s.eval.Evaluate(ctx, s.urls.Bill(id, year, code), "body", senateBillDetailJS, &d); err != nil {
		return nil, err
	}
	d.Documents = filterRefs(d.Documents)
	s.mu.Lock()
	s.details[billNumber] = &d
	s.mu.Unlock()
	return &d, nil
}

// BillDetail reads the bill detail page.
func (s *SenateSource) BillDetail(ctx context.Context, year int, code models.SessionCode, billNumber string) (*models.BillDetail, error) {
	d, err := s.detail(ctx, year, code, billNumber)
	if err != nil {
		return nil, err
	}
	out := d.BillDetail
	return &out, nil
}

// Cosponsors returns the co-sponsors listed on the detail page.
func (s *SenateSource) Cosponsors(ctx context.Context, year int, code models.SessionCode, billNumber string) ([]string, error) {
	d, err := s.detail(ctx, year, code, billNumber)
	if err != nil {
		return nil, err
	}
	return d.Cosponsors, nil
}

// Actions reads the action history page.
func (s *SenateSource) Actions(ctx context.Context, year int, code models.SessionCode, billNumber string) ([]models.ScrapedAction, error) {
	s.mu.Lock()
	id, ok := s.ids[billNumber]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("bill %s is not on the Senate bill list", billNumber)
	}
	var actions []models.ScrapedAction
	if err := s.eval.Evaluate(ctx, s.urls.Actions(id, year, code), "body", senateActionsJS, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// Hearings returns the hearing listed on the detail page. The cached detail
// is released afterwards since ScrapeBill reads hearings last.
func (s *SenateSource) Hearings(ctx context.Context, year int, code models.SessionCode, billNumber string) ([]models.ScrapedHearing, error) {
	d, err := s.detail(ctx, year, code, billNumber)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	delete(s.details, billNumber)
	s.mu.Unlock()
	out := d.Hearings[:0]
	for _, h := range d.Hearings {
		if h.Committee != "" {
			out = append(out, h)
		}
	}
	return out, nil
}
