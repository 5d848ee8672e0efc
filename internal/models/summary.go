package models

import "time"

// BillStatus is the outcome of one bill within a run.
type BillStatus string

const (
	BillSkipped   BillStatus = "skipped"
	BillFailed    BillStatus = "failed"
	BillProcessed BillStatus = "processed"
)

// BillFailure records why one bill failed.
type BillFailure struct {
	BillNumber string `json:"bill_number"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

// RunSummary is the terminal report of one session run.
type RunSummary struct {
	Year        int           `json:"year"`
	Code        SessionCode   `json:"session_code"`
	Processed   int           `json:"processed"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Embeddings  int           `json:"embeddings_created"`
	MaxInFlight int           `json:"max_in_flight"`
	Duration    time.Duration `json:"duration_ns"`
	Failures    []BillFailure `json:"failures,omitempty"`
	// Err is set when the session could not be set up at all.
	Err string `json:"error,omitempty"`
}

// Succeeded reports whether the run was not a hard failure: either some bill
// succeeded or nothing failed.
func (s *RunSummary) Succeeded() bool {
	if s.Err != "" {
		return false
	}
	return s.Processed > 0 || s.Failed == 0
}
