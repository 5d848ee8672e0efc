package search

import (
	"strings"

	"github.com/hyperjump/molegis/internal/keyword"
	"github.com/hyperjump/molegis/internal/models"
)

// hasFilters reports whether any filter field is set.
func hasFilters(f models.SearchFilters) bool {
	return f != models.SearchFilters{}
}

// MatchesFilters reports whether a chunk's metadata satisfies every set filter.
// Names compare case-insensitively; a sponsor matches the primary sponsor or any co-sponsor.
func MatchesFilters(m models.ChunkMetadata, f models.SearchFilters) bool {
	if f.SessionYear > 0 && m.SessionYear != f.SessionYear {
		return false
	}
	if f.SessionCode != "" && !strings.EqualFold(m.SessionCode, f.SessionCode) {
		return false
	}
	if f.BillNumber != "" && models.NormalizeBillNumber(m.BillNumber) != models.NormalizeBillNumber(f.BillNumber) {
		return false
	}
	if f.DocType != "" && m.DocType != f.DocType {
		return false
	}
	if f.Sponsor != "" {
		names := append([]string{m.PrimarySponsorName}, m.CosponsorNames...)
		if !containsName(names, f.Sponsor) {
			return false
		}
	}
	if f.Committee != "" && !containsName(m.CommitteeNames, f.Committee) {
		return false
	}
	return true
}

func containsName(names []string, want string) bool {
	want = keyword.NormalizeName(want)
	for _, n := range names {
		if n != "" && keyword.NormalizeName(n) == want {
			return true
		}
	}
	return false
}
