package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/molegis/internal/config"
	"github.com/hyperjump/molegis/internal/embedding"
	"github.com/hyperjump/molegis/internal/keyword"
	"github.com/hyperjump/molegis/internal/metrics"
	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/search"
	"github.com/hyperjump/molegis/internal/storage"
	"github.com/hyperjump/molegis/internal/vector"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *storage.SQLiteStorage) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(dir + "/db.sqlite")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	embedder := embedding.NewMockEmbedder(4)
	vecIdx, _ := vector.NewMemoryIndex(4)
	kwIdx, err := keyword.NewBleveIndex(dir + "/bleve")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kwIdx.Close() })

	sessionID, err := store.UpsertSession(ctx, 2024, models.SessionRegular)
	if err != nil {
		t.Fatal(err)
	}
	bill := &models.Bill{
		BillNumber: "HB1",
		Title:      "Modifies provisions relating to elections",
		Actions: []models.Action{
			{Description: "Prefiled (H)", SequenceOrder: 1},
			{Description: "Read First Time (H)", SequenceOrder: 2},
		},
		Documents: []models.Document{
			{Title: "Introduced", DocType: models.DocTypeBillText, URL: "https://example.test/0001I.pdf"},
		},
	}
	billID, _, err := store.UpsertBill(ctx, sessionID, bill)
	if err != nil {
		t.Fatal(err)
	}

	chunk := &models.EmbeddingChunk{
		ID:      "c1",
		Content: "This act modifies provisions relating to absentee ballots.",
		Metadata: models.ChunkMetadata{
			BillID: billID, BillNumber: "HB1", SessionYear: 2024, SessionCode: "R", DocType: "summary",
		},
	}
	chunk.Embedding, _ = embedder.Embed(ctx, chunk.Content)
	if err := store.StoreEmbeddings(ctx, []*models.EmbeddingChunk{chunk}); err != nil {
		t.Fatal(err)
	}
	_ = vecIdx.Add(ctx, []string{chunk.ID}, [][]float32{chunk.Embedding})
	_ = kwIdx.Index(ctx, []*models.EmbeddingChunk{chunk})

	cfg := config.Default()
	cfg.Storage.DatabasePath = dir + "/db.sqlite"
	cfg.Storage.BleveIndexPath = dir + "/bleve"
	engine := search.NewEngine(store, embedder, vecIdx, kwIdx, &cfg.Search, nil)
	return NewServer(engine, store, cfg, metrics.NewPipeline().Handler(), zap.NewNop()), store
}

func do(t *testing.T, srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	return w
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]interface{}{"query": "absentee ballots", "keyword_enabled": true})
	w := do(t, srv, http.MethodPost, "/api/v1/search", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Chunk.Metadata.BillNumber != "HB1" {
		t.Errorf("results: got %+v", resp)
	}
}

func TestHandleSearch_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	tests := []struct {
		name string
		body []byte
	}{
		{"malformed json", []byte("{")},
		{"empty query", []byte(`{"query": "   "}`)},
		{"negative offset", []byte(`{"query": "ballots", "offset": -1}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/v1/search", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", w.Code)
			}
		})
	}
}

func TestHandleListSessions(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/v1/sessions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Sessions []models.Session `json:"sessions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Sessions) != 1 || out.Sessions[0].Year != 2024 {
		t.Errorf("sessions: got %+v", out.Sessions)
	}
}

func TestHandleListBills(t *testing.T) {
	srv, _ := newTestServer(t)
	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/sessions/2024/R/bills", http.StatusOK},
		{"/api/v1/sessions/2024/r/bills?limit=5", http.StatusOK},
		{"/api/v1/sessions/2024/R/bills?limit=x", http.StatusBadRequest},
		{"/api/v1/sessions/abcd/R/bills", http.StatusBadRequest},
		{"/api/v1/sessions/2024/S9/bills", http.StatusBadRequest},
		{"/api/v1/sessions/2019/R/bills", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := do(t, srv, http.MethodGet, tt.path, nil)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandleGetBill(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/v1/sessions/2024/R/bills/hb1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var bill models.Bill
	if err := json.NewDecoder(w.Body).Decode(&bill); err != nil {
		t.Fatal(err)
	}
	if bill.BillNumber != "HB1" || len(bill.Actions) != 2 || len(bill.Documents) != 1 {
		t.Errorf("bill: got %+v", bill)
	}
	if bill.Actions[0].SequenceOrder != 1 || bill.Actions[1].SequenceOrder != 2 {
		t.Errorf("action order: got %+v", bill.Actions)
	}

	w = do(t, srv, http.MethodGet, "/api/v1/sessions/2024/R/bills/HB999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing bill status: got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["bills"].(float64) != 1 || out["embeddings"].(float64) != 1 || out["vector_index_size"].(float64) != 1 {
		t.Errorf("status: got %v", out)
	}
	if _, ok := out["disk_usage_bytes"]; !ok {
		t.Error("status: missing disk_usage_bytes")
	}
}

func TestHandleMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("metrics output missing go collector")
	}
}
