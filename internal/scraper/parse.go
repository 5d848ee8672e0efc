package scraper

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/molegis/internal/models"
)

var (
	sponsorDistrictRe = regexp.MustCompile(`\((\d+)\)$`)
	clockTimeRe       = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*(?:([AaPp])\.?\s*[Mm]\.?)?$`)
	roleNameRe        = regexp.MustCompile(`^(Representative|Senator)\s*`)
)

// dateLayouts are the date formats the sites post, tried in order.
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"Monday, January 2, 2006",
	"Mon, January 2, 2006",
	"January 2, 2006",
	"2006-01-02",
}

// ParseSponsorDistrict extracts the district from "Smith, John (151)".
// It returns "" when the text carries no trailing district.
func ParseSponsorDistrict(sponsor string) string {
	m := sponsorDistrictRe.FindStringSubmatch(strings.TrimSpace(sponsor))
	if m == nil {
		return ""
	}
	return m[1]
}

// SponsorName strips a trailing "(151)" district from sponsor text.
func SponsorName(sponsor string) string {
	return strings.TrimSpace(sponsorDistrictRe.ReplaceAllString(strings.TrimSpace(sponsor), ""))
}

// ParseHearingTime converts a posted clock time ("10:00 AM", "1:30 p.m.",
// "14:00") to "HH:MM:SS". Anything else, such as "Upon Adjournment" or "TBA",
// returns nil; the caller keeps the raw text.
func ParseHearingTime(s string) *string {
	m := clockTimeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if minute > 59 {
		return nil
	}
	switch strings.ToUpper(m[3]) {
	case "A":
		if hour < 1 || hour > 12 {
			return nil
		}
		if hour == 12 {
			hour = 0
		}
	case "P":
		if hour < 1 || hour > 12 {
			return nil
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return nil
		}
	}
	out := fmt.Sprintf("%02d:%02d:00", hour, minute)
	return &out
}

// ParseActionDate parses the date formats used on action and hearing pages.
// Unparseable or blank text returns nil.
func ParseActionDate(s string) *time.Time {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// SplitRoleName separates a "Representative" or "Senator" prefix from a
// profile heading, including when the site omits the space ("RepresentativeJane Doe").
func SplitRoleName(heading string) (role, name string) {
	heading = strings.TrimSpace(heading)
	if m := roleNameRe.FindStringSubmatch(heading); m != nil {
		return m[1], strings.TrimSpace(heading[len(m[0]):])
	}
	return "", heading
}

// DocumentsFromRefs converts scraped document links into document rows: the
// external id is the file name without extension, "Summary" in the title makes
// a Bill Summary, and *.ORG files are fiscal notes. Roll calls, witness lists,
// blank entries, and repeated URLs are dropped.
func DocumentsFromRefs(refs []models.DocumentRef) []models.Document {
	seen := make(map[string]bool, len(refs))
	docs := make([]models.Document, 0, len(refs))
	for _, ref := range refs {
		title := strings.TrimSpace(ref.Title)
		u := strings.TrimSpace(ref.URL)
		if title == "" || u == "" || seen[u] {
			continue
		}
		if strings.Contains(title, "Roll Call") || strings.Contains(title, "Witnesses") {
			continue
		}
		seen[u] = true
		docType := models.DocTypeBillText
		if strings.Contains(title, "Summary") {
			docType = models.DocTypeBillSummary
		}
		docs = append(docs, models.Document{
			ExternalID:   externalID(u),
			Title:        title,
			DocType:      docType,
			URL:          u,
			IsFiscalNote: strings.Contains(strings.ToUpper(u), ".ORG"),
		})
	}
	return docs
}

func externalID(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
