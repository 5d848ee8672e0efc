// Package search provides hybrid keyword and semantic search over embedded bill chunks.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperjump/molegis/internal/config"
	"github.com/hyperjump/molegis/internal/embedding"
	"github.com/hyperjump/molegis/internal/keyword"
	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/ranking"
	"github.com/hyperjump/molegis/internal/storage"
	"github.com/hyperjump/molegis/internal/vector"
	"github.com/hyperjump/molegis/pkg/utils"
	"go.uber.org/zap"
)

// filteredOverfetch widens the semantic candidate pool when metadata filters
// will discard part of it.
const filteredOverfetch = 4

// Engine runs hybrid (keyword + semantic) search.
type Engine struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	config       atomic.Pointer[config.SearchConfig]
	ranker       *ranking.Ranker
	logger       *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRanker reranks fused candidates before min-score filtering and paging.
func WithRanker(r *ranking.Ranker) EngineOption {
	return func(e *Engine) { e.ranker = r }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	storage storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	keywordIndex keyword.KeywordIndex,
	cfg *config.SearchConfig,
	logger *zap.Logger,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		storage:      storage,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		logger:       utils.OrNop(logger),
	}
	e.UpdateConfig(cfg)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs keyword and semantic search in parallel, filters hits by chunk
// metadata, fuses the normalized scores, and returns one page of chunks.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	cfg := e.config.Load()
	if err := ProcessQuery(query, cfg); err != nil {
		return nil, err
	}
	topK := cfg.TopKCandidates
	if need := query.Offset + query.Limit; topK < need {
		topK = need
	}

	var (
		keywordResults  []*keyword.KeywordResult
		semanticResults []*vector.VectorResult
		chunks          sync.Map
		errChan         = make(chan error, 2)
		wg              sync.WaitGroup
	)

	if query.KeywordEnabled && e.keywordIndex != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := e.keywordIndex.Search(ctx, query.Query, topK, &keyword.SearchOptions{
				Filters:         query.Filters,
				BillNumberBoost: 3.0,
				PhraseBoost:     1.5,
				FuzzyEnabled:    query.FuzzyEnabled,
			})
			if err != nil {
				errChan <- fmt.Errorf("keyword search failed: %w", err)
				return
			}
			keywordResults = results
		}()
	}

	if query.SemanticEnabled && e.vectorIndex != nil && e.embedder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queryEmbedding, err := e.embedder.Embed(ctx, query.Query)
			if err != nil {
				errChan <- fmt.Errorf("embedding failed: %w", err)
				return
			}
			k := topK
			if hasFilters(query.Filters) {
				k *= filteredOverfetch
			}
			results, err := e.vectorIndex.Search(ctx, queryEmbedding, k)
			if err != nil {
				errChan <- fmt.Errorf("vector search failed: %w", err)
				return
			}
			kept := make([]*vector.VectorResult, 0, len(results))
			for _, r := range results {
				chunk, err := e.storage.GetEmbedding(ctx, r.ID)
				if err != nil {
					if !errors.Is(err, storage.ErrNotFound) {
						e.logger.Warn("failed to load chunk", zap.String("chunk_id", r.ID), zap.Error(err))
					}
					continue
				}
				if !MatchesFilters(chunk.Metadata, query.Filters) {
					continue
				}
				chunks.Store(r.ID, chunk)
				kept = append(kept, r)
			}
			if len(kept) > topK {
				kept = kept[:topK]
			}
			semanticResults = kept
		}()
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	fusedResults := Fuse(
		NormalizeKeywordScores(keywordResults),
		NormalizeSemanticScores(semanticResults),
		keywordWeight(cfg, query), semanticWeight(cfg, query),
	)
	if e.ranker != nil {
		fusedResults = e.rerank(ctx, query.Query, fusedResults, &chunks)
	}

	if query.MinScore > 0 {
		filtered := fusedResults[:0]
		for _, r := range fusedResults {
			if r.Score >= query.MinScore {
				filtered = append(filtered, r)
			}
		}
		fusedResults = filtered
	}

	start := query.Offset
	end := query.Offset + query.Limit
	if start > len(fusedResults) {
		start = len(fusedResults)
	}
	if end > len(fusedResults) {
		end = len(fusedResults)
	}
	pagedResults := fusedResults[start:end]

	response := &models.SearchResponse{
		Results:   make([]*models.SearchResult, 0, len(pagedResults)),
		Total:     len(fusedResults),
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     query.Query,
	}

	for i, fused := range pagedResults {
		chunk := e.loadChunk(ctx, fused.ChunkID, &chunks)
		if chunk == nil {
			continue
		}
		response.Results = append(response.Results, &models.SearchResult{
			Chunk:         chunk,
			Score:         fused.Score,
			KeywordScore:  fused.KeywordScore,
			SemanticScore: fused.SemanticScore,
			Rank:          start + i + 1,
		})
	}
	return response, nil
}

func (e *Engine) loadChunk(ctx context.Context, id string, chunks *sync.Map) *models.EmbeddingChunk {
	if v, ok := chunks.Load(id); ok {
		return v.(*models.EmbeddingChunk)
	}
	chunk, err := e.storage.GetEmbedding(ctx, id)
	if err != nil {
		return nil
	}
	chunks.Store(id, chunk)
	return chunk
}

// rerank applies the ranker to every fused candidate. Candidates whose chunk
// can no longer be loaded are dropped.
func (e *Engine) rerank(ctx context.Context, text string, fused []*FusedResult, chunks *sync.Map) []*FusedResult {
	byID := make(map[string]*FusedResult, len(fused))
	candidates := make([]ranking.Candidate, 0, len(fused))
	for _, f := range fused {
		chunk := e.loadChunk(ctx, f.ChunkID, chunks)
		if chunk == nil {
			continue
		}
		byID[f.ChunkID] = f
		candidates = append(candidates, ranking.Candidate{
			ChunkID:    f.ChunkID,
			Score:      f.Score,
			Content:    chunk.Content,
			BillNumber: chunk.Metadata.BillNumber,
			DocType:    chunk.Metadata.DocType,
		})
	}
	ranked := e.ranker.Rerank(ranking.Analyze(text), candidates)
	out := make([]*FusedResult, 0, len(ranked))
	for _, c := range ranked {
		f := byID[c.ChunkID]
		f.Score = c.Score
		out = append(out, f)
	}
	return out
}

// UpdateConfig swaps the search settings used by subsequent searches.
// A nil cfg uses zero settings.
func (e *Engine) UpdateConfig(cfg *config.SearchConfig) {
	if cfg == nil {
		cfg = &config.SearchConfig{}
	}
	e.config.Store(cfg)
}

// Config returns the current search settings.
func (e *Engine) Config() *config.SearchConfig {
	return e.config.Load()
}

// VectorIndexSize returns the number of vectors in the semantic index.
func (e *Engine) VectorIndexSize() int {
	if e.vectorIndex == nil {
		return 0
	}
	return e.vectorIndex.Size()
}

// keywordWeight is the configured weight, or 1 when semantic search is off.
func keywordWeight(cfg *config.SearchConfig, q *models.SearchQuery) float64 {
	if !q.SemanticEnabled {
		return 1
	}
	if !q.KeywordEnabled {
		return 0
	}
	return cfg.KeywordWeight
}

func semanticWeight(cfg *config.SearchConfig, q *models.SearchQuery) float64 {
	if !q.KeywordEnabled {
		return 1
	}
	if !q.SemanticEnabled {
		return 0
	}
	return cfg.SemanticWeight
}
