package ranking

import "strings"

// BillNumberMultiplier boosts chunks of a bill the query names.
type BillNumberMultiplier struct {
	config *Config
}

// Name returns the multiplier name.
func (m *BillNumberMultiplier) Name() string { return "bill_number" }

// Multiply applies the boost when the candidate's bill appears in the query.
func (m *BillNumberMultiplier) Multiply(q *AnalyzedQuery, c *Candidate, score float64) float64 {
	if c.BillNumber == "" {
		return score
	}
	for _, n := range q.BillNumbers {
		if n == c.BillNumber {
			return score * m.config.BillNumberMultiplier
		}
	}
	return score
}

// MatchQualityMultiplier rewards phrase and all-word matches in the chunk text.
type MatchQualityMultiplier struct {
	config *Config
}

// Name returns the multiplier name.
func (m *MatchQualityMultiplier) Name() string { return "match_quality" }

// Multiply scales score by the best match type found in the content.
func (m *MatchQualityMultiplier) Multiply(q *AnalyzedQuery, c *Candidate, score float64) float64 {
	switch DetermineMatchType(q, c.Content) {
	case MatchTypePhrase:
		return score * m.config.PhraseMatchMultiplier
	case MatchTypeAllWords:
		return score * m.config.AllWordsMultiplier
	default:
		return score
	}
}

// DetermineMatchType returns the best match of the query against content.
func DetermineMatchType(q *AnalyzedQuery, content string) MatchType {
	if content == "" {
		return MatchTypeNone
	}
	lower := strings.ToLower(content)
	for _, phrase := range q.Phrases {
		if strings.Contains(lower, phrase) {
			return MatchTypePhrase
		}
	}
	tokens := TokenizeForMatching(q)
	if len(tokens) == 0 {
		return MatchTypeNone
	}
	if AllTermsMatch(tokens, content) {
		if len(tokens) > 1 && TermsInOrder(tokens, content) {
			return MatchTypePhrase
		}
		return MatchTypeAllWords
	}
	if CountMatchingTerms(tokens, content) > 0 {
		return MatchTypePartial
	}
	return MatchTypeNone
}

// ExclusionMultiplier drops chunks containing a negated term.
type ExclusionMultiplier struct{}

// Name returns the multiplier name.
func (ExclusionMultiplier) Name() string { return "exclusion" }

// Multiply returns 0 when the content contains any negated term.
func (ExclusionMultiplier) Multiply(q *AnalyzedQuery, c *Candidate, score float64) float64 {
	if len(q.NegatedTerms) > 0 && CountMatchingTerms(q.NegatedTerms, c.Content) > 0 {
		return 0
	}
	return score
}

// DefaultMultipliers returns the standard multiplier chain.
func DefaultMultipliers(config *Config) []Multiplier {
	return []Multiplier{
		ExclusionMultiplier{},
		&BillNumberMultiplier{config: config},
		&MatchQualityMultiplier{config: config},
	}
}
