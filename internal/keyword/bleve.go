package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/molegis/internal/models"
)

// Field names in the bleve document.
const (
	fieldContent     = "content"
	fieldBillID      = "bill_id"
	fieldBillNumber  = "bill_number"
	fieldSessionYear = "session_year"
	fieldSessionCode = "session_code"
	fieldDocType     = "doc_type"
	fieldSponsors    = "sponsors"
	fieldCommittees  = "committees"
)

// chunkDoc is what gets indexed for one chunk. Keyword fields hold normalized
// values so filters can use exact term queries.
type chunkDoc struct {
	Content     string   `json:"content"`
	BillID      string   `json:"bill_id"`
	BillNumber  string   `json:"bill_number"`
	SessionYear string   `json:"session_year"`
	SessionCode string   `json:"session_code"`
	DocType     string   `json:"doc_type"`
	Sponsors    []string `json:"sponsors"`
	Committees  []string `json:"committees"`
}

func newChunkDoc(c *models.EmbeddingChunk) chunkDoc {
	m := c.Metadata
	sponsors := make([]string, 0, 1+len(m.CosponsorNames))
	if m.PrimarySponsorName != "" {
		sponsors = append(sponsors, NormalizeName(m.PrimarySponsorName))
	}
	for _, n := range m.CosponsorNames {
		sponsors = append(sponsors, NormalizeName(n))
	}
	committees := make([]string, 0, len(m.CommitteeNames))
	for _, n := range m.CommitteeNames {
		committees = append(committees, NormalizeName(n))
	}
	return chunkDoc{
		Content:     c.Content,
		BillID:      m.BillID,
		BillNumber:  models.NormalizeBillNumber(m.BillNumber),
		SessionYear: strconv.Itoa(m.SessionYear),
		SessionCode: strings.ToUpper(m.SessionCode),
		DocType:     m.DocType,
		Sponsors:    sponsors,
		Committees:  committees,
	}
}

// NormalizeName lowercases and collapses whitespace so sponsor and committee
// filters compare names the same way everywhere.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func newIndexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so statute words match as written.
	textFieldMapping.Analyzer = standard.Name
	textFieldMapping.Store = false
	docMapping.AddFieldMappingsAt(fieldContent, textFieldMapping)

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	for _, f := range []string{fieldBillID, fieldBillNumber, fieldSessionYear, fieldSessionCode, fieldDocType, fieldSponsors, fieldCommittees} {
		docMapping.AddFieldMappingsAt(f, keywordFieldMapping)
	}
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates
// an in-memory index.
// If you change the index mapping in code, remove the index directory and re-run embed --force.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := newIndexMapping()
	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index adds or replaces chunks in one batch.
func (b *BleveIndex) Index(ctx context.Context, chunks []*models.EmbeddingChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, newChunkDoc(c)); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index batch: %w", err)
	}
	return nil
}

// Search runs the query against chunk content and returns up to limit results.
// When the query names a bill number, an exact bill number clause is added with
// BillNumberBoost. Multi-term queries are penalized for partial coverage and
// boosted by PhraseBoost when the terms appear as a phrase.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	fuzziness := 2
	if opts.Fuzziness > 0 {
		fuzziness = opts.Fuzziness
	}
	if limit <= 0 {
		return nil, nil
	}

	terms := tokenizeQuery(query)
	textQuery := b.buildTextQuery(query, terms, opts.FuzzyEnabled, fuzziness)
	if opts.BillNumberBoost > 1 {
		if num := models.NormalizeBillNumber(query); looksLikeBillNumber(num) {
			tq := bleve.NewTermQuery(num)
			tq.SetField(fieldBillNumber)
			tq.SetBoost(opts.BillNumberBoost)
			textQuery = bleve.NewDisjunctionQuery(textQuery, tq)
		}
	}

	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}
	req := bleve.NewSearchRequest(withFilters(textQuery, opts.Filters))
	req.Size = reqSize
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	scores := make(map[string]float64, len(results.Hits))
	for _, hit := range results.Hits {
		scores[hit.ID] = hit.Score
	}

	if len(terms) > 1 {
		coverage := b.termCoverage(ctx, terms, reqSize, opts, fuzziness)
		var phrases map[string]bool
		if opts.PhraseBoost > 1 {
			phrases = b.phraseMatches(ctx, query, reqSize, opts.Filters)
		}
		for id, score := range scores {
			// (matched/total)^2 ranks chunks containing every term above partial matches.
			matched := coverage[id]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			score *= c * c
			if phrases[id] {
				score *= opts.PhraseBoost
			}
			scores[id] = score
		}
	}

	out := make([]*KeywordResult, 0, len(scores))
	for id, score := range scores {
		out = append(out, &KeywordResult{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// looksLikeBillNumber reports whether s is letters followed by digits, like "HB1" or "SJR12".
func looksLikeBillNumber(s string) bool {
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(s) {
		return false
	}
	for _, r := range s[i:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// withFilters conjoins q with exact term queries for every set filter.
func withFilters(q blevequery.Query, f models.SearchFilters) blevequery.Query {
	clauses := []blevequery.Query{q}
	add := func(field, value string) {
		if value == "" {
			return
		}
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		clauses = append(clauses, tq)
	}
	if f.SessionYear > 0 {
		add(fieldSessionYear, strconv.Itoa(f.SessionYear))
	}
	add(fieldSessionCode, strings.ToUpper(f.SessionCode))
	add(fieldBillNumber, models.NormalizeBillNumber(f.BillNumber))
	add(fieldSponsors, NormalizeName(f.Sponsor))
	add(fieldCommittees, NormalizeName(f.Committee))
	add(fieldDocType, f.DocType)
	if len(clauses) == 1 {
		return q
	}
	return bleve.NewConjunctionQuery(clauses...)
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildTextQuery builds a match query over content, or a disjunction of fuzzy
// term queries when fuzzy matching is on.
func (b *BleveIndex) buildTextQuery(query string, terms []string, fuzzy bool, fuzziness int) blevequery.Query {
	if !fuzzy || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(fieldContent)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		queries = append(queries, fuzzyTerm(term, fuzziness))
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

func fuzzyTerm(term string, fuzziness int) blevequery.Query {
	fq := bleve.NewFuzzyQuery(term)
	fq.SetFuzziness(fuzziness)
	fq.SetField(fieldContent)
	return fq
}

// termCoverage counts how many query terms each chunk matches.
func (b *BleveIndex) termCoverage(ctx context.Context, terms []string, reqSize int, opts *SearchOptions, fuzziness int) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		var q blevequery.Query
		if opts.FuzzyEnabled {
			q = fuzzyTerm(term, fuzziness)
		} else {
			mq := bleve.NewMatchQuery(term)
			mq.SetField(fieldContent)
			q = mq
		}
		req := bleve.NewSearchRequest(withFilters(q, opts.Filters))
		req.Size = reqSize
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			continue
		}
		for _, hit := range results.Hits {
			coverage[hit.ID]++
		}
	}
	return coverage
}

// phraseMatches finds chunks where the query appears as a phrase.
func (b *BleveIndex) phraseMatches(ctx context.Context, query string, reqSize int, filters models.SearchFilters) map[string]bool {
	matches := make(map[string]bool)
	pq := bleve.NewMatchPhraseQuery(query)
	pq.SetField(fieldContent)
	req := bleve.NewSearchRequest(withFilters(pq, filters))
	req.Size = reqSize
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return matches
	}
	for _, hit := range results.Hits {
		matches[hit.ID] = true
	}
	return matches
}

// Delete removes chunks from the index.
func (b *BleveIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// DocCount returns the total number of chunks in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
