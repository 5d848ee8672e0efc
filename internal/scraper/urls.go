package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hyperjump/molegis/internal/models"
)

// HouseURLs builds House page addresses. A year of 0 means the current
// session, served from Current; any other year is served from Archive.
type HouseURLs struct {
	Current string
	Archive string
}

// NewHouseURLs derives the archive host from the current host
// ("https://house.mo.gov" -> "https://archive.house.mo.gov").
func NewHouseURLs(base string) HouseURLs {
	base = strings.TrimRight(base, "/")
	archive := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		u.Host = "archive." + strings.TrimPrefix(u.Host, "www.")
		archive = u.String()
	}
	return HouseURLs{Current: base, Archive: archive}
}

func (h HouseURLs) host(year int) string {
	if year > 0 {
		return h.Archive
	}
	return h.Current
}

// query renders the year/code parameters; the current site takes none on list pages.
func sessionQuery(year int, code models.SessionCode) string {
	if year <= 0 {
		return ""
	}
	return fmt.Sprintf("year=%d&code=%s", year, url.QueryEscape(string(code)))
}

// BillList is the session's bill list page.
func (h HouseURLs) BillList(year int, code models.SessionCode) string {
	if q := sessionQuery(year, code); q != "" {
		return h.host(year) + "/billlist.aspx?" + q
	}
	return h.host(year) + "/billlist.aspx"
}

func (h HouseURLs) billPage(page, param, bill string, year int, code models.SessionCode) string {
	u := fmt.Sprintf("%s/%s?%s=%s", h.host(year), page, param, url.QueryEscape(bill))
	if year > 0 {
		u += "&" + sessionQuery(year, code)
	}
	return u
}

// BillContent is the bill detail page.
func (h HouseURLs) BillContent(bill string, year int, code models.SessionCode) string {
	return h.billPage("BillContent.aspx", "bill", bill, year, code) + "&style=new"
}

// CoSponsors is the co-sponsor list page.
func (h HouseURLs) CoSponsors(bill string, year int, code models.SessionCode) string {
	return h.billPage("CoSponsors.aspx", "bill", bill, year, code)
}

// BillActions is the action history page.
func (h HouseURLs) BillActions(bill string, year int, code models.SessionCode) string {
	return h.billPage("BillActions.aspx", "bill", bill, year, code)
}

// BillHearings is the hearings page. The site spells this parameter "Bill".
func (h HouseURLs) BillHearings(bill string, year int, code models.SessionCode) string {
	return h.billPage("BillHearings.aspx", "Bill", bill, year, code)
}

// MemberRoster is the member grid page.
func (h HouseURLs) MemberRoster(year int, code models.SessionCode) string {
	if q := sessionQuery(year, code); q != "" {
		return h.host(year) + "/MemberGridCluster.aspx?" + q
	}
	return h.host(year) + "/MemberGridCluster.aspx"
}

// SenateURLs builds Senate page addresses. Senate pages live under a per-year
// directory ("/25info/BTS_Web/").
type SenateURLs struct {
	Base string
}

func (s SenateURLs) dir(year int) string {
	if year <= 0 {
		year = models.CurrentSessionYear()
	}
	return fmt.Sprintf("%s/%02dinfo/BTS_Web", strings.TrimRight(s.Base, "/"), year%100)
}

// BillList is the session's bill list page.
func (s SenateURLs) BillList(year int, code models.SessionCode) string {
	return fmt.Sprintf("%s/BillList.aspx?SessionType=%s", s.dir(year), url.QueryEscape(string(code)))
}

// Bill is the detail page for a Senate bill id (the site's internal id, not the bill number).
func (s SenateURLs) Bill(billID string, year int, code models.SessionCode) string {
	return fmt.Sprintf("%s/Bill.aspx?SessionType=%s&BillID=%s", s.dir(year), url.QueryEscape(string(code)), url.QueryEscape(billID))
}

// Actions is the action history page for a Senate bill id.
func (s SenateURLs) Actions(billID string, year int, code models.SessionCode) string {
	return fmt.Sprintf("%s/Actions.aspx?SessionType=%s&BillID=%s", s.dir(year), url.QueryEscape(string(code)), url.QueryEscape(billID))
}
