// Package keyword provides full-text (BM25) indexing and search over embedded chunks.
package keyword

import (
	"context"

	"github.com/hyperjump/molegis/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// Filters restrict hits by chunk metadata. Zero fields match anything.
	Filters models.SearchFilters
	// BillNumberBoost multiplies the score of a query that names a bill number exactly (e.g. "HB 1").
	// Use 1.0 or less to disable the bill number clause.
	BillNumberBoost float64
	// PhraseBoost multiplies the score when query terms appear close together (phrase match).
	// Values > 1 boost chunks with adjacent query terms (e.g. 1.5). Use 1.0 for no boost.
	PhraseBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// KeywordIndex defines keyword search operations over chunks.
type KeywordIndex interface {
	Index(ctx context.Context, chunks []*models.EmbeddingChunk) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Delete(ctx context.Context, ids []string) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit. ID is the chunk id.
type KeywordResult struct {
	ID    string
	Score float64
}
