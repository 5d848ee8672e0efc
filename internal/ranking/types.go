// Package ranking reranks fused search candidates by how well their chunk
// text and bill metadata match the analyzed query.
package ranking

// MatchType represents the type of query match found.
type MatchType int

const (
	// MatchTypeNone indicates no match was found.
	MatchTypeNone MatchType = iota
	// MatchTypePartial indicates a partial match (some query terms matched).
	MatchTypePartial
	// MatchTypeAllWords indicates all query words matched but not as a phrase.
	MatchTypeAllWords
	// MatchTypePhrase indicates an exact phrase match.
	MatchTypePhrase
)

// String returns a string representation of the match type.
func (m MatchType) String() string {
	switch m {
	case MatchTypeNone:
		return "none"
	case MatchTypePartial:
		return "partial"
	case MatchTypeAllWords:
		return "all_words"
	case MatchTypePhrase:
		return "phrase"
	default:
		return "unknown"
	}
}

// AnalyzedQuery holds the parsed form of a search query.
type AnalyzedQuery struct {
	// Original is the original query string.
	Original string
	// Terms are the individual normalized tokens from the query.
	Terms []string
	// Phrases are exact phrase matches extracted from quoted strings.
	Phrases []string
	// NegatedTerms are terms that should be excluded (-term).
	NegatedTerms []string
	// BillNumbers are bill references named in the query, normalized ("HB1366").
	BillNumbers []string
}

// Candidate is one fused search hit with the chunk fields the ranker reads.
type Candidate struct {
	ChunkID    string
	Score      float64
	Content    string
	BillNumber string
	DocType    string
}

// Multiplier adjusts a candidate's score. A result of 0 drops the candidate.
type Multiplier interface {
	Name() string
	Multiply(q *AnalyzedQuery, c *Candidate, score float64) float64
}
