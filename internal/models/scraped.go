package models

// BillListing is one row of a session's bill list page.
type BillListing struct {
	BillNumber  string `json:"bill_number"`
	BillURL     string `json:"bill_url"`
	Sponsor     string `json:"sponsor"`
	SponsorURL  string `json:"sponsor_url"`
	Description string `json:"description"`
}

// BillDetail holds the fields of a bill's detail page.
type BillDetail struct {
	BillNumber            string        `json:"bill_number"`
	Title                 string        `json:"title"`
	Sponsor               string        `json:"sponsor"`
	SponsorURL            string        `json:"sponsor_url"`
	LRNumber              string        `json:"lr_number"`
	LastAction            string        `json:"last_action"`
	ProposedEffectiveDate string        `json:"proposed_effective_date"`
	BillString            string        `json:"bill_string"`
	CalendarStatus        string        `json:"calendar_status"`
	HearingStatus         string        `json:"hearing_status"`
	Documents             []DocumentRef `json:"documents"`
}

// DocumentRef points at a published document of a bill.
type DocumentRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ScrapedAction is one row of a bill's action history, as posted.
type ScrapedAction struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

// ScrapedHearing is one committee hearing block, as posted.
type ScrapedHearing struct {
	Committee string `json:"committee"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Location  string `json:"location"`
}

// BillRecord is everything scraped for one bill. It is the unit handed from
// the browser phase to the processing phase.
type BillRecord struct {
	Chamber    string           `json:"chamber"`
	Listing    BillListing      `json:"listing"`
	Detail     BillDetail       `json:"detail"`
	Cosponsors []string         `json:"cosponsors"`
	Actions    []ScrapedAction  `json:"actions"`
	Hearings   []ScrapedHearing `json:"hearings"`
}

// Number returns the bill number from the list page, or from the detail page when the list lacks it.
func (r *BillRecord) Number() string {
	if r.Listing.BillNumber != "" {
		return r.Listing.BillNumber
	}
	return r.Detail.BillNumber
}

// Title returns the detail-page title, falling back to the list-page description.
func (r *BillRecord) Title() string {
	if r.Detail.Title != "" {
		return r.Detail.Title
	}
	return r.Listing.Description
}
