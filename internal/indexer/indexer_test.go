package indexer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/molegis/internal/chunking"
	"github.com/hyperjump/molegis/internal/embedding"
	"github.com/hyperjump/molegis/internal/keyword"
	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/vector"
)

// memStore is an in-memory Store.
type memStore struct {
	mu        sync.Mutex
	chunks    []*models.EmbeddingChunk
	marked    map[string]bool
	failStore bool
}

func newMemStore() *memStore {
	return &memStore{marked: make(map[string]bool)}
}

func (s *memStore) StoreEmbeddings(ctx context.Context, chunks []*models.EmbeddingChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStore {
		return errors.New("disk full")
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *memStore) DeleteEmbeddings(ctx context.Context, billID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.Metadata.BillID == billID {
			ids = append(ids, c.ID)
			continue
		}
		kept = append(kept, c)
	}
	s.chunks = kept
	return ids, nil
}

func (s *memStore) MarkEmbeddingsGenerated(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked[documentID] = true
	return nil
}

func (s *memStore) ListEmbeddings(ctx context.Context, offset, limit int) ([]*models.EmbeddingChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.chunks) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.chunks) {
		end = len(s.chunks)
	}
	return append([]*models.EmbeddingChunk(nil), s.chunks[offset:end]...), nil
}

// failingEmbedder fails any batch containing failOn.
type failingEmbedder struct {
	*embedding.MockEmbedder
	failOn string
}

func (e *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if strings.Contains(t, e.failOn) {
			return nil, errors.New("embedding backend unavailable")
		}
	}
	return e.MockEmbedder.EmbedBatch(ctx, texts)
}

func testMeta() *models.BillMetadata {
	return &models.BillMetadata{
		BillID: "bill-1", BillNumber: "HB 1", SessionYear: 2025, SessionCode: "R",
		PrimarySponsor: &models.NamedRef{ID: "sl-1", Name: "Smith, John"},
		Cosponsors:     []models.NamedRef{{ID: "sl-2", Name: "Doe, Jane"}},
		Committees:     []models.NamedRef{{ID: "cm-1", Name: "Judiciary"}},
	}
}

func newTestIndexer(t *testing.T, store Store, emb embedding.Embedder) (*Indexer, *vector.MemoryIndex, *keyword.BleveIndex) {
	t.Helper()
	vec, err := vector.NewMemoryIndex(emb.Dimensions())
	if err != nil {
		t.Fatal(err)
	}
	kw, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kw.Close() })
	chunker := chunking.NewChunker(20, 5, chunking.WordCounter{})
	return NewIndexer(store, emb, vec, chunker, WithKeywordIndex(kw)), vec, kw
}

const sectionText = "Section A. Enactment clause.\n\nSection 1. The director shall publish the permit fee schedule.\n\nSection 2. This act takes effect on August twenty-eighth."

func TestEmbedDocument_MetadataAndIndexes(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	idx, vec, kw := newTestIndexer(t, store, embedding.NewMockEmbedder(8))

	doc := &models.Document{ID: "doc-1", Title: "Introduced", DocType: models.DocTypeBillText, ExtractedText: sectionText}
	n, err := idx.EmbedDocument(ctx, doc, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 || n != len(store.chunks) {
		t.Fatalf("created %d, stored %d", n, len(store.chunks))
	}
	if vec.Size() != n {
		t.Errorf("vector index size = %d, want %d", vec.Size(), n)
	}
	if count, _ := kw.DocCount(); int(count) != n {
		t.Errorf("keyword index count = %d, want %d", count, n)
	}

	for i, c := range store.chunks {
		m := c.Metadata
		if m.ChunkIndex != i || m.DocumentID != "doc-1" || m.BillNumber != "HB 1" {
			t.Errorf("chunk %d metadata = %+v", i, m)
		}
		if m.DocType != string(chunking.DocTypeLegislative) || m.ContentType != ContentBillText {
			t.Errorf("chunk %d types = %s/%s", i, m.DocType, m.ContentType)
		}
		if m.PrimarySponsorName != "Smith, John" || len(m.CosponsorIDs) != 1 || m.CommitteeNames[0] != "Judiciary" {
			t.Errorf("chunk %d sponsor/committee metadata = %+v", i, m)
		}
		if m.TokenCount == 0 || m.SessionYear != 2025 || m.SessionCode != "R" {
			t.Errorf("chunk %d counts/session = %+v", i, m)
		}
	}
}

func TestEmbedDocument_EmptyText(t *testing.T) {
	idx, _, _ := newTestIndexer(t, newMemStore(), embedding.NewMockEmbedder(4))
	n, err := idx.EmbedDocument(context.Background(), &models.Document{ExtractedText: " \n\n "}, testMeta())
	if err != nil || n != 0 {
		t.Errorf("EmbedDocument(empty) = %d, %v", n, err)
	}
}

func TestEmbedDocument_StorageFailure(t *testing.T) {
	store := newMemStore()
	store.failStore = true
	idx, vec, _ := newTestIndexer(t, store, embedding.NewMockEmbedder(4))
	n, err := idx.EmbedDocument(context.Background(), &models.Document{ExtractedText: "Short summary."}, testMeta())
	if err == nil || n != 0 {
		t.Fatalf("expected error and zero, got %d, %v", n, err)
	}
	if vec.Size() != 0 {
		t.Error("nothing should reach the vector index when storage fails")
	}
}

func TestEmbedBill_SiblingIsolation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	emb := &failingEmbedder{MockEmbedder: embedding.NewMockEmbedder(4), failOn: "POISON"}
	idx, _, _ := newTestIndexer(t, store, emb)

	bill := &models.Bill{
		ID: "bill-1", BillNumber: "HB 1",
		Documents: []models.Document{
			{ID: "d-intro", Title: "Introduced", ExtractedText: "POISON text that the backend rejects."},
			{ID: "d-final", Title: "Truly Agreed", ExtractedText: "The final version of the act."},
			{ID: "d-fiscal", Title: "Fiscal Note", URL: "https://x/0001H.01I.ORG.pdf", ExtractedText: "costs"},
		},
	}
	n, err := idx.EmbedBill(ctx, bill, testMeta())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 chunk from the surviving document, got %d", n)
	}
	if !store.marked["d-final"] || store.marked["d-intro"] || store.marked["d-fiscal"] {
		t.Errorf("marked = %v", store.marked)
	}
}

func TestEmbedBill_AllFail(t *testing.T) {
	emb := &failingEmbedder{MockEmbedder: embedding.NewMockEmbedder(4), failOn: "text"}
	idx, _, _ := newTestIndexer(t, newMemStore(), emb)
	bill := &models.Bill{BillNumber: "HB 9", Documents: []models.Document{{Title: "Introduced", ExtractedText: "text"}}}
	if _, err := idx.EmbedBill(context.Background(), bill, testMeta()); !errors.Is(err, ErrNoEmbeddings) {
		t.Errorf("expected ErrNoEmbeddings, got %v", err)
	}

	none := &models.Bill{BillNumber: "HB 10"}
	if n, err := idx.EmbedBill(context.Background(), none, testMeta()); err != nil || n != 0 {
		t.Errorf("bill without documents = %d, %v", n, err)
	}
}

func TestDeleteAndRebuild(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	idx, vec, kw := newTestIndexer(t, store, embedding.NewMockEmbedder(8))
	doc := &models.Document{ID: "doc-1", Title: "Introduced", ExtractedText: sectionText}
	n, err := idx.EmbedDocument(ctx, doc, testMeta())
	if err != nil {
		t.Fatal(err)
	}

	fresh, _ := vector.NewMemoryIndex(8)
	rebuilt := NewIndexer(store, embedding.NewMockEmbedder(8), fresh, chunking.NewChunker(20, 5, chunking.WordCounter{}))
	loaded, err := rebuilt.RebuildIndexes(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if loaded != n || fresh.Size() != n {
		t.Errorf("rebuild loaded %d (index %d), want %d", loaded, fresh.Size(), n)
	}

	removed, err := idx.DeleteBillEmbeddings(ctx, "bill-1")
	if err != nil {
		t.Fatal(err)
	}
	if removed != n || vec.Size() != 0 || len(store.chunks) != 0 {
		t.Errorf("removed %d, vector %d, stored %d", removed, vec.Size(), len(store.chunks))
	}
	if count, _ := kw.DocCount(); count != 0 {
		t.Errorf("keyword index still has %d chunks", count)
	}
}

func TestContentType(t *testing.T) {
	if contentType(&models.Document{Title: "Bill Summary (Perfected)"}) != ContentBillSummary {
		t.Error("summary title should be a summary")
	}
	if contentType(&models.Document{DocType: models.DocTypeBillText, Title: "Introduced"}) != ContentBillText {
		t.Error("introduced text should be bill text")
	}
}
