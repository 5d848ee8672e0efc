// Package indexer turns bill documents into embedded chunks and keeps the
// relational store, vector index, and keyword index in step.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/molegis/internal/chunking"
	"github.com/hyperjump/molegis/internal/docversion"
	"github.com/hyperjump/molegis/internal/embedding"
	"github.com/hyperjump/molegis/internal/keyword"
	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/vector"
	"github.com/hyperjump/molegis/pkg/utils"
	"go.uber.org/zap"
)

// rebuildPageSize is how many stored chunks are read per page when rebuilding indexes.
const rebuildPageSize = 500

// Content types recorded on chunk metadata.
const (
	ContentBillText    = "bill_text"
	ContentBillSummary = "bill_summary"
)

// ErrNoEmbeddings is returned by EmbedBill when no selected document produced a chunk.
var ErrNoEmbeddings = errors.New("no embeddings created")

// Store is the subset of storage the indexer writes to.
type Store interface {
	StoreEmbeddings(ctx context.Context, chunks []*models.EmbeddingChunk) error
	DeleteEmbeddings(ctx context.Context, billID string) ([]string, error)
	MarkEmbeddingsGenerated(ctx context.Context, documentID string) error
	ListEmbeddings(ctx context.Context, offset, limit int) ([]*models.EmbeddingChunk, error)
}

// Indexer embeds documents and writes the chunks to storage and both indexes.
// The relational store is the source of truth; the indexes can be rebuilt from it.
type Indexer struct {
	store        Store
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	chunker      *chunking.Chunker
	logger       *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithKeywordIndex also writes chunks to a keyword index.
func WithKeywordIndex(k keyword.KeywordIndex) IndexerOption {
	return func(idx *Indexer) { idx.keywordIndex = k }
}

// NewIndexer creates an indexer. vectorIndex may be nil when only the relational
// store should receive chunks.
func NewIndexer(
	store Store,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	chunker *chunking.Chunker,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		store:       store,
		embedder:    embedder,
		vectorIndex: vectorIndex,
		chunker:     chunker,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// EmbedDocument cleans, chunks, and embeds one document's extracted text and
// stores every chunk with the bill's metadata in one batch. It always inserts
// new rows; callers delete stale embeddings first when reprocessing.
// An empty document creates nothing and is not an error.
func (idx *Indexer) EmbedDocument(ctx context.Context, doc *models.Document, meta *models.BillMetadata) (int, error) {
	texts, docType := idx.chunker.Chunk(chunking.Clean(doc.ExtractedText))
	if len(texts) == 0 {
		idx.logger.Debug("document has no text to embed",
			zap.String("bill_number", meta.BillNumber), zap.String("document", doc.Title))
		return 0, nil
	}

	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts))
	}

	chunks := make([]*models.EmbeddingChunk, len(texts))
	ids := make([]string, len(texts))
	for i, text := range texts {
		chunks[i] = &models.EmbeddingChunk{
			ID:        uuid.NewString(),
			Content:   text,
			Embedding: vectors[i],
			Metadata:  chunkMetadata(meta, doc, i, string(docType), idx.chunker.CountTokens(text)),
		}
		ids[i] = chunks[i].ID
	}

	if err := idx.store.StoreEmbeddings(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to store embeddings: %w", err)
	}
	if idx.vectorIndex != nil {
		if err := idx.vectorIndex.Add(ctx, ids, vectors); err != nil {
			idx.logger.Warn("failed to add chunks to vector index",
				zap.String("bill_number", meta.BillNumber), zap.Error(err))
		}
	}
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.Index(ctx, chunks); err != nil {
			idx.logger.Warn("failed to add chunks to keyword index",
				zap.String("bill_number", meta.BillNumber), zap.Error(err))
		}
	}
	idx.logger.Debug("document embedded",
		zap.String("bill_number", meta.BillNumber),
		zap.String("document", doc.Title),
		zap.String("doc_type", string(docType)),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// EmbedBill embeds the bill's selected document versions. A document that fails
// is logged and counts as zero; it does not stop its siblings. Documents that
// produced chunks are marked embeddings_generated. Returns ErrNoEmbeddings when
// there was something to embed and nothing was created.
func (idx *Indexer) EmbedBill(ctx context.Context, bill *models.Bill, meta *models.BillMetadata) (int, error) {
	selected := docversion.Select(bill.Documents)
	if len(selected) == 0 {
		idx.logger.Info("no embeddable documents", zap.String("bill_number", bill.BillNumber))
		return 0, nil
	}

	total := 0
	for i := range selected {
		doc := &selected[i]
		n, err := idx.EmbedDocument(ctx, doc, meta)
		if err != nil {
			idx.logger.Error("failed to embed document",
				zap.String("bill_number", bill.BillNumber),
				zap.String("document", doc.Title),
				zap.Error(err))
			continue
		}
		if n == 0 {
			continue
		}
		total += n
		if doc.ID != "" {
			if err := idx.store.MarkEmbeddingsGenerated(ctx, doc.ID); err != nil {
				idx.logger.Warn("failed to mark document embedded",
					zap.String("bill_number", bill.BillNumber), zap.Error(err))
			}
		}
	}
	if total == 0 {
		return 0, fmt.Errorf("%s: %w", bill.BillNumber, ErrNoEmbeddings)
	}
	idx.logger.Info("bill embedded",
		zap.String("bill_number", bill.BillNumber),
		zap.Int("documents", len(selected)),
		zap.Int("embeddings", total))
	return total, nil
}

// DeleteBillEmbeddings removes a bill's chunks from storage and both indexes.
// Returns the number of chunks removed.
func (idx *Indexer) DeleteBillEmbeddings(ctx context.Context, billID string) (int, error) {
	ids, err := idx.store.DeleteEmbeddings(ctx, billID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if idx.vectorIndex != nil {
		if err := idx.vectorIndex.Remove(ctx, ids); err != nil {
			return len(ids), fmt.Errorf("failed to delete from vector index: %w", err)
		}
	}
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.Delete(ctx, ids); err != nil {
			return len(ids), fmt.Errorf("failed to delete from keyword index: %w", err)
		}
	}
	idx.logger.Debug("bill embeddings deleted", zap.String("bill_id", billID), zap.Int("chunks", len(ids)))
	return len(ids), nil
}

// RebuildIndexes reloads every stored chunk into the vector index and, when
// withKeyword is set, the keyword index. Returns the number of chunks loaded.
func (idx *Indexer) RebuildIndexes(ctx context.Context, withKeyword bool) (int, error) {
	total := 0
	for offset := 0; ; offset += rebuildPageSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		page, err := idx.store.ListEmbeddings(ctx, offset, rebuildPageSize)
		if err != nil {
			return total, fmt.Errorf("failed to list embeddings: %w", err)
		}
		if len(page) == 0 {
			break
		}
		if idx.vectorIndex != nil {
			ids := make([]string, len(page))
			vecs := make([][]float32, len(page))
			for i, c := range page {
				ids[i], vecs[i] = c.ID, c.Embedding
			}
			if err := idx.vectorIndex.Add(ctx, ids, vecs); err != nil {
				return total, fmt.Errorf("failed to rebuild vector index: %w", err)
			}
		}
		if withKeyword && idx.keywordIndex != nil {
			if err := idx.keywordIndex.Index(ctx, page); err != nil {
				return total, fmt.Errorf("failed to rebuild keyword index: %w", err)
			}
		}
		total += len(page)
		if len(page) < rebuildPageSize {
			break
		}
	}
	idx.logger.Info("indexes rebuilt", zap.Int("chunks", total), zap.Bool("keyword", withKeyword))
	return total, nil
}

func chunkMetadata(meta *models.BillMetadata, doc *models.Document, index int, docType string, tokens int) models.ChunkMetadata {
	m := models.ChunkMetadata{
		BillID:      meta.BillID,
		BillNumber:  meta.BillNumber,
		DocumentID:  doc.ID,
		ContentType: contentType(doc),
		ChunkIndex:  index,
		DocType:     docType,
		TokenCount:  tokens,
		SessionYear: meta.SessionYear,
		SessionCode: meta.SessionCode,
	}
	if meta.PrimarySponsor != nil {
		m.PrimarySponsorID = meta.PrimarySponsor.ID
		m.PrimarySponsorName = meta.PrimarySponsor.Name
	}
	for _, c := range meta.Cosponsors {
		m.CosponsorIDs = append(m.CosponsorIDs, c.ID)
		m.CosponsorNames = append(m.CosponsorNames, c.Name)
	}
	for _, c := range meta.Committees {
		m.CommitteeIDs = append(m.CommitteeIDs, c.ID)
		m.CommitteeNames = append(m.CommitteeNames, c.Name)
	}
	return m
}

func contentType(doc *models.Document) string {
	if doc.DocType == models.DocTypeBillSummary || strings.Contains(strings.ToLower(doc.Title), "summary") {
		return ContentBillSummary
	}
	return ContentBillText
}
