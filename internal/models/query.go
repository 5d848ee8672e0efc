package models

import "fmt"

// SearchFilters restrict results by the denormalized chunk metadata. Zero values mean "any".
type SearchFilters struct {
	SessionYear int    `json:"session_year,omitempty"`
	SessionCode string `json:"session_code,omitempty"`
	BillNumber  string `json:"bill_number,omitempty"`
	Sponsor     string `json:"sponsor,omitempty"`
	Committee   string `json:"committee,omitempty"`
	DocType     string `json:"doc_type,omitempty"`
}

// SearchQuery represents a search request over embedded chunks.
type SearchQuery struct {
	Query           string        `json:"query"`
	Limit           int           `json:"limit,omitempty"`
	Offset          int           `json:"offset,omitempty"`
	KeywordEnabled  bool          `json:"keyword_enabled,omitempty"`
	SemanticEnabled bool          `json:"semantic_enabled,omitempty"`
	FuzzyEnabled    bool          `json:"fuzzy_enabled,omitempty"`
	MinScore        float64       `json:"min_score,omitempty"`
	Filters         SearchFilters `json:"filters,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns an error if the query is empty; otherwise normalizes limit and enables at least one search type.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Offset < 0 {
		return fmt.Errorf("offset cannot be negative")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if !q.KeywordEnabled && !q.SemanticEnabled {
		q.KeywordEnabled = true
		q.SemanticEnabled = true
	}
	return nil
}
