package models

import "time"

// ChunkMetadata is denormalized bill, session, sponsor, and committee context
// stored with every embedded chunk so similarity search needs no joins.
type ChunkMetadata struct {
	BillID             string   `json:"bill_id"`
	BillNumber         string   `json:"bill_number"`
	DocumentID         string   `json:"document_id"`
	ContentType        string   `json:"content_type"`
	ChunkIndex         int      `json:"chunk_index"`
	DocType            string   `json:"doc_type"`
	TokenCount         int      `json:"token_count"`
	SessionYear        int      `json:"session_year"`
	SessionCode        string   `json:"session_code"`
	PrimarySponsorID   string   `json:"primary_sponsor_id,omitempty"`
	PrimarySponsorName string   `json:"primary_sponsor_name,omitempty"`
	CosponsorIDs       []string `json:"cosponsor_ids,omitempty"`
	CosponsorNames     []string `json:"cosponsor_names,omitempty"`
	CommitteeIDs       []string `json:"committee_ids,omitempty"`
	CommitteeNames     []string `json:"committee_names,omitempty"`
}

// EmbeddingChunk is one embedded slice of a document's cleaned text.
type EmbeddingChunk struct {
	ID        string        `json:"id" db:"id"`
	Content   string        `json:"content" db:"content"`
	Embedding []float32     `json:"-" db:"embedding"`
	Metadata  ChunkMetadata `json:"metadata" db:"metadata"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// NamedRef is an id/name pair used for sponsors and committees in metadata.
type NamedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BillMetadata is the per-bill context copied into every chunk's metadata.
type BillMetadata struct {
	BillID         string     `json:"bill_id"`
	BillNumber     string     `json:"bill_number"`
	SessionYear    int        `json:"session_year"`
	SessionCode    string     `json:"session_code"`
	PrimarySponsor *NamedRef  `json:"primary_sponsor,omitempty"`
	Cosponsors     []NamedRef `json:"cosponsors,omitempty"`
	Committees     []NamedRef `json:"committees,omitempty"`
}
