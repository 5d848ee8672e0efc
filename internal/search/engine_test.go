package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/molegis/internal/config"
	"github.com/hyperjump/molegis/internal/embedding"
	"github.com/hyperjump/molegis/internal/keyword"
	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/ranking"
	"github.com/hyperjump/molegis/internal/storage"
	"github.com/hyperjump/molegis/internal/vector"
)

type testEnv struct {
	engine *Engine
	emb    *embedding.MockEmbedder
}

func newTestEnv(t *testing.T, chunks []*models.EmbeddingChunk, opts ...EngineOption) *testEnv {
	t.Helper()
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	emb := embedding.NewMockEmbedder(8)
	vecIndex, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	kwIndex, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kwIndex.Close() })

	ids := make([]string, len(chunks))
	vecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		c.Embedding, err = emb.Embed(ctx, c.Content)
		if err != nil {
			t.Fatal(err)
		}
		ids[i], vecs[i] = c.ID, c.Embedding
	}
	if err := store.StoreEmbeddings(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	if err := vecIndex.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	if err := kwIndex.Index(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	cfg := &config.SearchConfig{
		DefaultLimit: 10, MaxLimit: 50, TopKCandidates: 20,
		KeywordWeight: 0.4, SemanticWeight: 0.6,
	}
	return &testEnv{engine: NewEngine(store, emb, vecIndex, kwIndex, cfg, nil, opts...), emb: emb}
}

func chunk(id, bill, content string, year int, sponsor string) *models.EmbeddingChunk {
	return &models.EmbeddingChunk{
		ID:      id,
		Content: content,
		Metadata: models.ChunkMetadata{
			BillID: "bill-" + bill, BillNumber: bill, DocumentID: "doc-" + bill,
			ContentType: "bill_text", DocType: "legislative_text",
			SessionYear: year, SessionCode: "R", PrimarySponsorName: sponsor,
		},
	}
}

func testChunks() []*models.EmbeddingChunk {
	return []*models.EmbeddingChunk{
		chunk("c1", "HB 1", "Modifies provisions relating to income tax deductions", 2025, "Smith, John"),
		chunk("c2", "HB 2", "Establishes the school bus safety program", 2025, "Doe, Jane"),
		chunk("c3", "SB 3", "Modifies provisions relating to property tax credits", 2024, "Roe, Rick"),
	}
}

func TestEngine_Search(t *testing.T) {
	env := newTestEnv(t, testChunks())
	resp, err := env.engine.Search(context.Background(), &models.SearchQuery{Query: "school bus", KeywordEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total < 1 || len(resp.Results) < 1 {
		t.Fatalf("expected results, got %+v", resp)
	}
	top := resp.Results[0]
	if top.Chunk.ID != "c2" || top.Rank != 1 {
		t.Errorf("top result = %s rank %d, want c2 rank 1", top.Chunk.ID, top.Rank)
	}
	if top.Chunk.Metadata.BillNumber != "HB 2" {
		t.Errorf("chunk metadata not returned: %+v", top.Chunk.Metadata)
	}
}

func TestEngine_SemanticOnlyExactContent(t *testing.T) {
	chunks := testChunks()
	env := newTestEnv(t, chunks)
	resp, err := env.engine.Search(context.Background(), &models.SearchQuery{
		Query: chunks[2].Content, SemanticEnabled: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) == 0 || resp.Results[0].Chunk.ID != "c3" {
		t.Fatalf("identical text should rank its chunk first: %+v", resp.Results)
	}
	if resp.Results[0].KeywordScore != 0 {
		t.Errorf("keyword disabled but scored: %f", resp.Results[0].KeywordScore)
	}
}

func TestEngine_RerankDropsNegatedTerms(t *testing.T) {
	query := func() *models.SearchQuery {
		return &models.SearchQuery{Query: "tax -income", KeywordEnabled: true}
	}

	plain := newTestEnv(t, testChunks())
	resp, err := plain.engine.Search(context.Background(), query())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 {
		t.Fatalf("without reranking both tax chunks match, got %d", resp.Total)
	}

	reranked := newTestEnv(t, testChunks(), WithRanker(ranking.NewRanker(nil)))
	resp, err = reranked.engine.Search(context.Background(), query())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Chunk.ID != "c3" {
		t.Errorf("expected only c3 after reranking, got %+v", resp.Results)
	}
}

func TestEngine_UpdateConfig(t *testing.T) {
	env := newTestEnv(t, testChunks())
	ctx := context.Background()
	resp, err := env.engine.Search(ctx, &models.SearchQuery{Query: "tax", KeywordEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}

	cfg := *env.engine.Config()
	cfg.MaxLimit = 1
	env.engine.UpdateConfig(&cfg)
	resp, err = env.engine.Search(ctx, &models.SearchQuery{Query: "tax", KeywordEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Total != 2 {
		t.Errorf("after lowering max_limit: %d results of %d", len(resp.Results), resp.Total)
	}
}

func TestEngine_Filters(t *testing.T) {
	env := newTestEnv(t, testChunks())
	ctx := context.Background()

	resp, err := env.engine.Search(ctx, &models.SearchQuery{
		Query:   "modifies provisions tax",
		Filters: models.SearchFilters{SessionYear: 2024},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range resp.Results {
		if r.Chunk.Metadata.SessionYear != 2024 {
			t.Errorf("filter leaked chunk %s from %d", r.Chunk.ID, r.Chunk.Metadata.SessionYear)
		}
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected the 2024 chunk")
	}

	resp, err = env.engine.Search(ctx, &models.SearchQuery{
		Query:   "program",
		Filters: models.SearchFilters{Sponsor: "doe, jane"},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range resp.Results {
		if r.Chunk.ID != "c2" {
			t.Errorf("sponsor filter leaked %s", r.Chunk.ID)
		}
	}
}

func TestEngine_PagingAndMinScore(t *testing.T) {
	env := newTestEnv(t, testChunks())
	ctx := context.Background()

	all, err := env.engine.Search(ctx, &models.SearchQuery{Query: "modifies provisions relating"})
	if err != nil {
		t.Fatal(err)
	}
	if all.Total < 2 {
		t.Fatalf("expected at least 2 hits, got %d", all.Total)
	}

	page, err := env.engine.Search(ctx, &models.SearchQuery{Query: "modifies provisions relating", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Results) != 1 || page.Results[0].Rank != 2 {
		t.Fatalf("second page = %+v", page.Results)
	}
	if page.Results[0].Chunk.ID != all.Results[1].Chunk.ID {
		t.Errorf("paging not stable: %s vs %s", page.Results[0].Chunk.ID, all.Results[1].Chunk.ID)
	}

	strict, err := env.engine.Search(ctx, &models.SearchQuery{Query: "modifies provisions relating", MinScore: 2})
	if err != nil {
		t.Fatal(err)
	}
	if strict.Total != 0 {
		t.Errorf("no fused score can reach 2, got %d", strict.Total)
	}
}

func TestEngine_EmptyQuery(t *testing.T) {
	env := newTestEnv(t, testChunks())
	if _, err := env.engine.Search(context.Background(), &models.SearchQuery{Query: "   "}); err == nil {
		t.Error("expected error for blank query")
	}
}

func TestMatchesFilters(t *testing.T) {
	m := models.ChunkMetadata{
		BillNumber: "HB 12", SessionYear: 2025, SessionCode: "R", DocType: "summary",
		PrimarySponsorName: "Smith, John", CosponsorNames: []string{"Doe, Jane"},
		CommitteeNames: []string{"Ways and Means"},
	}
	tests := []struct {
		name string
		f    models.SearchFilters
		want bool
	}{
		{"empty", models.SearchFilters{}, true},
		{"bill spacing", models.SearchFilters{BillNumber: "hb12"}, true},
		{"cosponsor", models.SearchFilters{Sponsor: "DOE, JANE"}, true},
		{"committee", models.SearchFilters{Committee: "ways and means"}, true},
		{"wrong code", models.SearchFilters{SessionCode: "S1"}, false},
		{"wrong doc type", models.SearchFilters{DocType: "legislative_text"}, false},
		{"unknown sponsor", models.SearchFilters{Sponsor: "Nobody"}, false},
	}
	for _, tt := range tests {
		if got := MatchesFilters(m, tt.f); got != tt.want {
			t.Errorf("%s: MatchesFilters = %v, want %v", tt.name, got, tt.want)
		}
	}
}
