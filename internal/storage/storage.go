// Package storage defines the persistence interface for sessions, legislators, bills, and embeddings.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/molegis/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the relational store behind the pipeline and the read API.
// Each method is atomic on its own; callers never span transactions across calls.
type Storage interface {
	// Sessions
	UpsertSession(ctx context.Context, year int, code models.SessionCode) (string, error)
	GetSession(ctx context.Context, year int, code models.SessionCode) (*models.Session, error)
	ListSessions(ctx context.Context) ([]*models.Session, error)

	// Legislators
	UpsertLegislator(ctx context.Context, l *models.Legislator) (id string, updated bool, err error)
	LinkLegislatorToSession(ctx context.Context, sessionID, legislatorID, district, profileURL string) (string, error)
	LookupSessionLegislator(ctx context.Context, sessionID string, q models.LegislatorLookup) (string, error)
	CountSessionLegislators(ctx context.Context, sessionID string) (int64, error)

	// Committees
	GetOrCreateCommittee(ctx context.Context, name string) (string, error)

	// Bills
	UpsertBill(ctx context.Context, sessionID string, bill *models.Bill) (id string, updated bool, err error)
	GetBillID(ctx context.Context, sessionID, billNumber string) (string, error)
	GetBill(ctx context.Context, sessionID, billNumber string) (*models.Bill, error)
	ListBills(ctx context.Context, sessionID string, limit int) ([]*models.Bill, error)
	GetBillDocuments(ctx context.Context, billID string) ([]models.Document, error)
	SetDocumentText(ctx context.Context, documentID, text string) error
	MarkEmbeddingsGenerated(ctx context.Context, documentID string) error
	HasExtractedText(ctx context.Context, billID string) (bool, error)
	HasEmbeddings(ctx context.Context, billID string) (bool, error)
	BillMetadata(ctx context.Context, billID string) (*models.BillMetadata, error)

	// Embeddings
	StoreEmbeddings(ctx context.Context, chunks []*models.EmbeddingChunk) error
	DeleteEmbeddings(ctx context.Context, billID string) ([]string, error)
	GetEmbedding(ctx context.Context, id string) (*models.EmbeddingChunk, error)
	ListEmbeddings(ctx context.Context, offset, limit int) ([]*models.EmbeddingChunk, error)

	// Stats
	CountBills(ctx context.Context) (int64, error)
	CountEmbeddings(ctx context.Context) (int64, error)

	Close() error
}
