package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/molegis/internal/legislators"
	"github.com/hyperjump/molegis/internal/models"
)

var (
	_ BillSource               = (*HouseSource)(nil)
	_ BillSource               = (*SenateSource)(nil)
	_ legislators.RosterSource = (*HouseSource)(nil)
)

// fakeEvaluator answers by the first URL substring that matches.
type fakeEvaluator struct {
	pages map[string]string
	calls []string
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, url, waitSelector, js string, out any) error {
	f.calls = append(f.calls, url)
	for key, body := range f.pages {
		if strings.Contains(url, key) {
			return json.Unmarshal([]byte(body), out)
		}
	}
	return errors.New("no page for " + url)
}

func TestHouseURLs(t *testing.T) {
	h := NewHouseURLs("https://house.mo.gov/")
	if h.Archive != "https://archive.house.mo.gov" {
		t.Errorf("archive = %s", h.Archive)
	}
	tests := []struct{ got, want string }{
		{h.BillList(0, models.SessionRegular), "https://house.mo.gov/billlist.aspx"},
		{h.BillList(2024, models.SessionSpecial1), "https://archive.house.mo.gov/billlist.aspx?year=2024&code=S1"},
		{h.BillContent("HB1", 2025, models.SessionRegular), "https://archive.house.mo.gov/BillContent.aspx?bill=HB1&year=2025&code=R&style=new"},
		{h.BillHearings("HB1", 2025, models.SessionRegular), "https://archive.house.mo.gov/BillHearings.aspx?Bill=HB1&year=2025&code=R"},
		{h.CoSponsors("HB1", 0, models.SessionRegular), "https://house.mo.gov/CoSponsors.aspx?bill=HB1"},
		{h.MemberRoster(2023, models.SessionRegular), "https://archive.house.mo.gov/MemberGridCluster.aspx?year=2023&code=R"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
	}

	s := SenateURLs{Base: "https://www.senate.mo.gov"}
	if got := s.BillList(2025, models.SessionRegular); got != "https://www.senate.mo.gov/25info/BTS_Web/BillList.aspx?SessionType=R" {
		t.Errorf("senate list = %s", got)
	}
	if got := s.Bill("123", 2005, models.SessionSpecial1); got != "https://www.senate.mo.gov/05info/BTS_Web/Bill.aspx?SessionType=S1&BillID=123" {
		t.Errorf("senate bill = %s", got)
	}
}

func TestHouseSource_ScrapeBill(t *testing.T) {
	eval := &fakeEvaluator{pages: map[string]string{
		"BillContent.aspx": `{"bill_number":"HB 1","title":"Modifies income tax","sponsor":"Smith, John (151)",
			"documents":[{"title":"Introduced","url":"https://d/0001H.01I.pdf"},{"title":"Roll Call","url":"https://d/rc.pdf"}]}`,
		"CoSponsors.aspx":   `["Doe, Jane","Roe, Rick"]`,
		"BillActions.aspx":  `[{"date":"01/08/2025","description":"Introduced and Read First Time (H)"},{"date":"","description":"Referred"}]`,
		"BillHearings.aspx": `[{"committee":"Ways and Means","date":"Tuesday, January 14, 2025","time":"Upon Adjournment","location":"HR 6"}]`,
	}}
	src := NewHouseSource(eval, "https://house.mo.gov")
	rec, err := ScrapeBill(context.Background(), src, 2025, models.SessionRegular, models.BillListing{BillNumber: "HB 1", Description: "Income tax"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Chamber != ChamberHouse || rec.Number() != "HB 1" || rec.Title() != "Modifies income tax" {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Detail.Documents) != 1 {
		t.Errorf("roll call should be dropped: %+v", rec.Detail.Documents)
	}
	if len(rec.Cosponsors) != 2 || len(rec.Actions) != 2 || len(rec.Hearings) != 1 {
		t.Errorf("children = %d/%d/%d", len(rec.Cosponsors), len(rec.Actions), len(rec.Hearings))
	}
	if !strings.Contains(eval.calls[0], "bill=HB1") {
		t.Errorf("bill number should be normalized in URLs: %s", eval.calls[0])
	}
}

func TestHouseSource_ScrapeBillFailsOnPageError(t *testing.T) {
	eval := &fakeEvaluator{pages: map[string]string{
		"BillContent.aspx": `{"bill_number":"HB 2"}`,
	}}
	_, err := ScrapeBill(context.Background(), NewHouseSource(eval, "https://house.mo.gov"), 2025, models.SessionRegular, models.BillListing{BillNumber: "HB2"})
	if err == nil || !strings.Contains(err.Error(), "cosponsors") {
		t.Errorf("expected cosponsors error, got %v", err)
	}
}

func TestHouseSource_MemberProfile(t *testing.T) {
	eval := &fakeEvaluator{pages: map[string]string{
		"MemberDetails": `{"name":"RepresentativeJane Doe","district":"12","party_affiliation":"Democrat","is_active":false}`,
	}}
	p, err := NewHouseSource(eval, "https://house.mo.gov").MemberProfile(context.Background(), "https://house.mo.gov/MemberDetails.aspx?district=012")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Jane Doe" || p.Role != models.RoleRepresentative || p.IsActive {
		t.Errorf("profile = %+v", p)
	}
	if p.ProfileURL == "" {
		t.Error("profile URL should default to the requested URL")
	}
}

func TestSenateSource(t *testing.T) {
	eval := &fakeEvaluator{pages: map[string]string{
		"BillList.aspx": `[{"bill_number":"SB 7","bill_url":"https://www.senate.mo.gov/25info/BTS_Web/Bill.aspx?SessionType=R&BillID=4455"},
			{"bill_number":"SB 7","bill_url":"https://www.senate.mo.gov/25info/BTS_Web/Bill.aspx?SessionType=R&BillID=4455"}]`,
		"Bill.aspx": `{"bill_number":"SB 7","title":"Property tax","cosponsors":["Roe, Rick"],
			"hearings":[{"committee":"Ways and Means","date":"1/15/2025","time":"10:00 AM","location":"SCR 1"},{"committee":""}]}`,
		"Actions.aspx": `[{"date":"1/8/2025","description":"Prefiled"}]`,
	}}
	src := NewSenateSource(eval, "https://www.senate.mo.gov")
	ctx := context.Background()
	bills, err := src.ListBills(ctx, 2025, models.SessionRegular)
	if err != nil {
		t.Fatal(err)
	}
	if len(bills) != 1 {
		t.Fatalf("duplicates should be dropped: %+v", bills)
	}
	rec, err := ScrapeBill(ctx, src, 2025, models.SessionRegular, bills[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Cosponsors) != 1 || len(rec.Actions) != 1 || len(rec.Hearings) != 1 {
		t.Errorf("record = %+v", rec)
	}
	detailLoads := 0
	for _, c := range eval.calls {
		if strings.Contains(c, "/Bill.aspx") {
			detailLoads++
		}
	}
	if detailLoads != 1 {
		t.Errorf("detail page should load once per bill, loaded %d times", detailLoads)
	}

	if _, err := src.BillDetail(ctx, 2025, models.SessionRegular, "SB99"); err == nil {
		t.Error("unknown bill should fail")
	}
}
