package models

import (
	"strings"
	"time"
)

// Document types stored on bill_documents.doc_type.
const (
	DocTypeBillText    = "Bill Text"
	DocTypeBillSummary = "Bill Summary"
)

// Bill is identified by (BillNumber, SessionID). Child collections are replaced
// wholesale on every upsert.
type Bill struct {
	ID                    string    `json:"id" db:"id"`
	SessionID             string    `json:"session_id" db:"session_id"`
	BillNumber            string    `json:"bill_number" db:"bill_number"`
	Title                 string    `json:"title" db:"title"`
	Description           string    `json:"description,omitempty" db:"description"`
	LRNumber              string    `json:"lr_number,omitempty" db:"lr_number"`
	BillString            string    `json:"bill_string,omitempty" db:"bill_string"`
	LastAction            string    `json:"last_action,omitempty" db:"last_action"`
	ProposedEffectiveDate string    `json:"proposed_effective_date,omitempty" db:"proposed_effective_date"`
	CalendarStatus        string    `json:"calendar_status,omitempty" db:"calendar_status"`
	HearingStatus         string    `json:"hearing_status,omitempty" db:"hearing_status"`
	BillURL               string    `json:"bill_url,omitempty" db:"bill_url"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`

	Sponsors  []Sponsor  `json:"sponsors,omitempty" db:"-"`
	Actions   []Action   `json:"actions,omitempty" db:"-"`
	Hearings  []Hearing  `json:"hearings,omitempty" db:"-"`
	Documents []Document `json:"documents,omitempty" db:"-"`
}

// Sponsor attaches a session legislator to a bill.
type Sponsor struct {
	SessionLegislatorID string `json:"session_legislator_id" db:"session_legislator_id"`
	IsPrimary           bool   `json:"is_primary" db:"is_primary"`
	// Populated on reads.
	LegislatorID string `json:"legislator_id,omitempty" db:"-"`
	Name         string `json:"name,omitempty" db:"-"`
	District     string `json:"district,omitempty" db:"-"`
}

// Action is one step of a bill's procedural timeline. SequenceOrder is authoritative.
type Action struct {
	Date          *time.Time `json:"action_date,omitempty" db:"action_date"`
	DateText      string     `json:"action_date_text,omitempty" db:"action_date_text"`
	Description   string     `json:"description" db:"description"`
	SequenceOrder int        `json:"sequence_order" db:"sequence_order"`
}

// Hearing is a committee hearing. Time is nil when the posted time is not a
// clock time; TimeText always carries what was posted.
type Hearing struct {
	CommitteeID   string     `json:"committee_id,omitempty" db:"committee_id"`
	CommitteeName string     `json:"committee_name" db:"-"`
	Date          *time.Time `json:"hearing_date,omitempty" db:"hearing_date"`
	Time          *string    `json:"hearing_time,omitempty" db:"hearing_time"`
	TimeText      string     `json:"hearing_time_text,omitempty" db:"hearing_time_text"`
	Location      string     `json:"location,omitempty" db:"location"`
}

// Document is one published version of a bill's text or summary.
type Document struct {
	ID                  string `json:"id" db:"id"`
	BillID              string `json:"bill_id" db:"bill_id"`
	ExternalID          string `json:"document_id" db:"document_id"`
	Title               string `json:"title" db:"title"`
	DocType             string `json:"doc_type" db:"doc_type"`
	URL                 string `json:"url" db:"url"`
	ExtractedText       string `json:"extracted_text,omitempty" db:"extracted_text"`
	EmbeddingsGenerated bool   `json:"embeddings_generated" db:"embeddings_generated"`
	IsFiscalNote        bool   `json:"is_fiscal_note" db:"is_fiscal_note"`
}

// Committee is upserted by name.
type Committee struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// NormalizeBillNumber removes whitespace and uppercases ("hb 1" -> "HB1").
func NormalizeBillNumber(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
