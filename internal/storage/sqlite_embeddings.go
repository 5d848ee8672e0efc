package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/pkg/utils"
)

// StoreEmbeddings inserts chunks in one transaction. Chunks without an ID get one.
func (s *SQLiteStorage) StoreEmbeddings(ctx context.Context, chunks []*models.EmbeddingChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO bill_embeddings (id, bill_id, document_id, content, embedding, metadata,
			session_year, session_code, doc_type, chunk_index, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %d of document %s has no embedding", c.Metadata.ChunkIndex, c.Metadata.DocumentID)
		}
		if c.ID == "" {
			c.ID = newID()
		}
		c.CreatedAt = now
		metadataJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		m := c.Metadata
		if _, err := stmt.ExecContext(ctx,
			c.ID, m.BillID, m.DocumentID, c.Content, utils.Float32sToBytes(c.Embedding), string(metadataJSON),
			m.SessionYear, m.SessionCode, m.DocType, m.ChunkIndex, now,
		); err != nil {
			return fmt.Errorf("failed to insert embedding: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteEmbeddings removes every embedding of the bill and returns the removed ids.
func (s *SQLiteStorage) DeleteEmbeddings(ctx context.Context, billID string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM bill_embeddings WHERE bill_id = ?`, billID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bill_embeddings WHERE bill_id = ?`, billID); err != nil {
		return nil, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE bill_documents SET embeddings_generated = 0 WHERE bill_id = ?`, billID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

const embeddingColumns = `id, content, embedding, metadata, created_at`

func scanEmbedding(row scanner) (*models.EmbeddingChunk, error) {
	var c models.EmbeddingChunk
	var blob []byte
	var metadataJSON string
	if err := row.Scan(&c.ID, &c.Content, &blob, &metadataJSON, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Embedding = utils.BytesToFloat32s(blob)
	if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &c, nil
}

// GetEmbedding returns an embedding chunk by id.
func (s *SQLiteStorage) GetEmbedding(ctx context.Context, id string) (*models.EmbeddingChunk, error) {
	c, err := scanEmbedding(s.db.QueryRowContext(ctx,
		`SELECT `+embeddingColumns+` FROM bill_embeddings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("embedding %s: %w", id, ErrNotFound)
	}
	return c, err
}

// ListEmbeddings pages through all embeddings in insertion order.
func (s *SQLiteStorage) ListEmbeddings(ctx context.Context, offset, limit int) ([]*models.EmbeddingChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+embeddingColumns+` FROM bill_embeddings ORDER BY rowid LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.EmbeddingChunk
	for rows.Next() {
		c, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountEmbeddings returns the total number of embedding rows.
func (s *SQLiteStorage) CountEmbeddings(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bill_embeddings`).Scan(&count)
	return count, err
}
