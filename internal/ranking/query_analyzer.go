package ranking

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hyperjump/molegis/internal/models"
)

var (
	phraseRegex = regexp.MustCompile(`["']([^"']+)["']`)
	// House and Senate bills, joint and concurrent resolutions.
	billNumberRegex = regexp.MustCompile(`(?i)\b(HB|SB|HJR|SJR|HCR|SCR|HR|SR)\s*(\d{1,4})\b`)
)

// Analyze parses a query string into terms, phrases, negations, and bill numbers.
func Analyze(query string) *AnalyzedQuery {
	result := &AnalyzedQuery{
		Original:     query,
		Terms:        []string{},
		Phrases:      []string{},
		NegatedTerms: []string{},
		BillNumbers:  []string{},
	}
	remaining := extractBillNumbers(query, result)
	remaining = extractPhrases(remaining, result)
	extractTerms(remaining, result)
	return result
}

func extractBillNumbers(query string, result *AnalyzedQuery) string {
	seen := make(map[string]bool)
	for _, m := range billNumberRegex.FindAllStringSubmatch(query, -1) {
		number := models.NormalizeBillNumber(m[1] + m[2])
		if !seen[number] {
			seen[number] = true
			result.BillNumbers = append(result.BillNumbers, number)
		}
	}
	return billNumberRegex.ReplaceAllString(query, " ")
}

// extractPhrases returns the query with quoted phrases removed.
func extractPhrases(query string, result *AnalyzedQuery) string {
	for _, match := range phraseRegex.FindAllStringSubmatch(query, -1) {
		phrase := strings.TrimSpace(match[1])
		if phrase != "" {
			result.Phrases = append(result.Phrases, strings.ToLower(phrase))
		}
	}
	return phraseRegex.ReplaceAllString(query, " ")
}

func extractTerms(query string, result *AnalyzedQuery) {
	for _, word := range strings.Fields(query) {
		if strings.HasPrefix(word, "-") {
			if negated := normalizeToken(strings.TrimPrefix(word, "-")); negated != "" {
				result.NegatedTerms = append(result.NegatedTerms, negated)
			}
			continue
		}
		// Skip boolean operators
		if strings.EqualFold(word, "AND") || strings.EqualFold(word, "OR") || strings.EqualFold(word, "NOT") {
			continue
		}
		if normalized := normalizeToken(word); normalized != "" {
			result.Terms = append(result.Terms, normalized)
		}
	}
}

// normalizeToken lowercases and trims edge punctuation, keeping internal hyphens.
func normalizeToken(token string) string {
	token = strings.ToLower(token)
	return strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsPunct(r) && r != '-' && r != '_'
	})
}

// TokenizeForMatching returns terms plus the words of every phrase, deduplicated.
func TokenizeForMatching(analyzed *AnalyzedQuery) []string {
	seen := make(map[string]bool)
	tokens := make([]string, 0, len(analyzed.Terms)+len(analyzed.Phrases)*3)
	for _, term := range analyzed.Terms {
		if !seen[term] {
			tokens = append(tokens, term)
			seen[term] = true
		}
	}
	for _, phrase := range analyzed.Phrases {
		for _, word := range strings.Fields(phrase) {
			normalized := normalizeToken(word)
			if normalized != "" && !seen[normalized] {
				tokens = append(tokens, normalized)
				seen[normalized] = true
			}
		}
	}
	return tokens
}

// AllTermsMatch checks if all query terms are found in the given text.
func AllTermsMatch(terms []string, text string) bool {
	if len(terms) == 0 {
		return false
	}
	textLower := strings.ToLower(text)
	for _, term := range terms {
		if !strings.Contains(textLower, term) {
			return false
		}
	}
	return true
}

// CountMatchingTerms counts how many query terms are found in the text.
func CountMatchingTerms(terms []string, text string) int {
	count := 0
	textLower := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(textLower, term) {
			count++
		}
	}
	return count
}

// TermsInOrder checks if terms appear in order in the text.
func TermsInOrder(terms []string, text string) bool {
	if len(terms) == 0 {
		return false
	}
	textLower := strings.ToLower(text)
	lastPos := -1
	for _, term := range terms {
		pos := strings.Index(textLower[lastPos+1:], term)
		if pos == -1 {
			return false
		}
		lastPos = lastPos + 1 + pos
	}
	return true
}
