// Package vector holds chunk embeddings in memory for similarity search.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector or a saved index does not
// match the index's dimensions.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// VectorIndex defines vector storage and similarity search over chunk ids.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Close() error
}

// VectorResult is a single vector search hit. ID is the chunk id.
type VectorResult struct {
	ID    string
	Score float64 // inner product; cosine similarity for normalized vectors
}
