// Package cli formats pipeline summaries and search results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/search"
	"github.com/hyperjump/molegis/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json"; anything else is an error.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (use text or json)", s)
}

const snippetLen = 240

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Total, response.QueryTime)
	for _, result := range response.Results {
		writeOneResult(w, result, response.Query)
	}
	return nil
}

func writeOneResult(w io.Writer, result *models.SearchResult, query string) {
	meta := result.Chunk.Metadata
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f (Keyword: %.4f, Semantic: %.4f)\n",
		result.Rank, result.Score, result.KeywordScore, result.SemanticScore)
	fmt.Fprintf(w, "%s  %d %s  [%s, chunk %d]\n",
		meta.BillNumber, meta.SessionYear, meta.SessionCode, meta.DocType, meta.ChunkIndex)
	if meta.PrimarySponsorName != "" {
		fmt.Fprintf(w, "Sponsor: %s\n", meta.PrimarySponsorName)
	}
	if len(meta.CommitteeNames) > 0 {
		fmt.Fprintf(w, "Committees: %s\n", utils.Truncate(strings.Join(meta.CommitteeNames, ", "), 120))
	}
	fmt.Fprintf(w, "\n%s\n\n", search.Highlight(result.Chunk.Content, query, snippetLen))
}

// WriteRunSummary writes the terminal report of one session run.
func WriteRunSummary(w io.Writer, s *models.RunSummary, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, s)
	}
	fmt.Fprintf(w, "Session %d %s: %d processed, %d skipped, %d failed, %d embeddings in %s\n",
		s.Year, s.Code, s.Processed, s.Skipped, s.Failed, s.Embeddings, s.Duration.Round(time.Millisecond))
	if s.Err != "" {
		fmt.Fprintf(w, "  error: %s\n", s.Err)
	}
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  %s failed at %s: %s\n", f.BillNumber, f.Stage, TruncateWords(f.Error, 30))
	}
	return nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
