package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/pkg/utils"
)

const dateLayout = "2006-01-02"

// UpsertBill inserts or updates the bill identified by (sessionID, bill.BillNumber)
// and replaces its sponsors, actions, hearings, and documents with the ones on bill,
// in order. Document ids are kept for URLs the bill already had. On return bill.ID
// and each document's ID and BillID are set.
func (s *SQLiteStorage) UpsertBill(ctx context.Context, sessionID string, bill *models.Bill) (string, bool, error) {
	if bill.BillNumber == "" {
		return "", false, fmt.Errorf("bill number is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM bills WHERE session_id = ? AND bill_number = ?`, sessionID, bill.BillNumber,
	).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("failed to look up bill: %w", err)
	}

	now := time.Now()
	title := utils.FirstNonEmpty(bill.Title, bill.Description)
	bill.SessionID = sessionID
	bill.UpdatedAt = now
	updated := existing != ""

	if updated {
		bill.ID = existing
		_, err = tx.ExecContext(ctx,
			`UPDATE bills SET title = ?, description = ?, lr_number = ?, bill_string = ?, last_action = ?,
				proposed_effective_date = ?, calendar_status = ?, hearing_status = ?, bill_url = ?, updated_at = ?
			 WHERE id = ?`,
			title, bill.Description, bill.LRNumber, bill.BillString, bill.LastAction,
			bill.ProposedEffectiveDate, bill.CalendarStatus, bill.HearingStatus, bill.BillURL, now, bill.ID,
		)
	} else {
		bill.ID = newID()
		bill.CreatedAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bills (id, session_id, bill_number, title, description, lr_number, bill_string, last_action,
				proposed_effective_date, calendar_status, hearing_status, bill_url, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			bill.ID, sessionID, bill.BillNumber, title, bill.Description, bill.LRNumber, bill.BillString, bill.LastAction,
			bill.ProposedEffectiveDate, bill.CalendarStatus, bill.HearingStatus, bill.BillURL, now, now,
		)
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to write bill: %w", err)
	}
	bill.Title = title

	docIDs, err := documentIDsByURL(ctx, tx, bill.ID)
	if err != nil {
		return "", false, err
	}

	for _, table := range []string{"bill_sponsors", "bill_actions", "bill_hearings", "bill_documents"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE bill_id = ?`, bill.ID); err != nil {
			return "", false, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for i, sp := range bill.Sponsors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bill_sponsors (bill_id, session_legislator_id, is_primary, position) VALUES (?, ?, ?, ?)`,
			bill.ID, sp.SessionLegislatorID, sp.IsPrimary, i,
		); err != nil {
			return "", false, fmt.Errorf("failed to insert sponsor: %w", err)
		}
	}

	for i, a := range bill.Actions {
		order := a.SequenceOrder
		if order == 0 {
			order = i + 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bill_actions (bill_id, action_date, action_date_text, description, sequence_order)
			 VALUES (?, ?, ?, ?, ?)`,
			bill.ID, nullDate(a.Date), a.DateText, a.Description, order,
		); err != nil {
			return "", false, fmt.Errorf("failed to insert action: %w", err)
		}
	}

	for i := range bill.Hearings {
		h := &bill.Hearings[i]
		if h.CommitteeID == "" && h.CommitteeName != "" {
			if h.CommitteeID, err = getOrCreateCommittee(ctx, tx, h.CommitteeName); err != nil {
				return "", false, err
			}
		}
		var hearingTime any
		if h.Time != nil {
			hearingTime = *h.Time
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bill_hearings (bill_id, committee_id, hearing_date, hearing_time, hearing_time_text, location, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			bill.ID, nullString(h.CommitteeID), nullDate(h.Date), hearingTime, h.TimeText, h.Location, i,
		); err != nil {
			return "", false, fmt.Errorf("failed to insert hearing: %w", err)
		}
	}

	for i := range bill.Documents {
		d := &bill.Documents[i]
		d.BillID = bill.ID
		if id, ok := docIDs[d.URL]; ok && d.URL != "" {
			d.ID = id
		} else if d.ID == "" {
			d.ID = newID()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bill_documents (id, bill_id, document_id, title, doc_type, url, extracted_text,
				embeddings_generated, is_fiscal_note, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, bill.ID, d.ExternalID, d.Title, d.DocType, d.URL, nullString(d.ExtractedText),
			d.EmbeddingsGenerated, d.IsFiscalNote, i,
		); err != nil {
			return "", false, fmt.Errorf("failed to insert document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("failed to commit bill: %w", err)
	}
	return bill.ID, updated, nil
}

func documentIDsByURL(ctx context.Context, q querier, billID string) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, url FROM bill_documents WHERE bill_id = ?`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]string)
	for rows.Next() {
		var id string
		var url sql.NullString
		if err := rows.Scan(&id, &url); err != nil {
			return nil, err
		}
		if url.Valid {
			ids[url.String] = id
		}
	}
	return ids, rows.Err()
}

// GetBillID returns the id of the bill, or ErrNotFound.
func (s *SQLiteStorage) GetBillID(ctx context.Context, sessionID, billNumber string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM bills WHERE session_id = ? AND bill_number = ?`, sessionID, billNumber,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("bill %s: %w", billNumber, ErrNotFound)
	}
	return id, err
}

const billColumns = `id, session_id, bill_number, title, description, lr_number, bill_string, last_action,
	proposed_effective_date, calendar_status, hearing_status, bill_url, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBill(row scanner) (*models.Bill, error) {
	var b models.Bill
	var title, desc, lr, bs, last, eff, cal, hearing, url sql.NullString
	if err := row.Scan(&b.ID, &b.SessionID, &b.BillNumber, &title, &desc, &lr, &bs, &last,
		&eff, &cal, &hearing, &url, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Title, b.Description, b.LRNumber, b.BillString = title.String, desc.String, lr.String, bs.String
	b.LastAction, b.ProposedEffectiveDate = last.String, eff.String
	b.CalendarStatus, b.HearingStatus, b.BillURL = cal.String, hearing.String, url.String
	return &b, nil
}

// GetBill returns the bill with its sponsors, actions (by sequence_order), hearings, and documents.
func (s *SQLiteStorage) GetBill(ctx context.Context, sessionID, billNumber string) (*models.Bill, error) {
	b, err := scanBill(s.db.QueryRowContext(ctx,
		`SELECT `+billColumns+` FROM bills WHERE session_id = ? AND bill_number = ?`, sessionID, billNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bill %s: %w", billNumber, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if b.Sponsors, err = s.billSponsors(ctx, b.ID); err != nil {
		return nil, err
	}
	if b.Actions, err = s.billActions(ctx, b.ID); err != nil {
		return nil, err
	}
	if b.Hearings, err = s.billHearings(ctx, b.ID); err != nil {
		return nil, err
	}
	if b.Documents, err = s.GetBillDocuments(ctx, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBills returns a session's bills ordered by number, without children. limit <= 0 means all.
func (s *SQLiteStorage) ListBills(ctx context.Context, sessionID string, limit int) ([]*models.Bill, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+billColumns+` FROM bills WHERE session_id = ? ORDER BY bill_number LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) billSponsors(ctx context.Context, billID string) ([]models.Sponsor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bs.session_legislator_id, bs.is_primary, l.id, l.name, sl.district
		 FROM bill_sponsors bs
		 JOIN session_legislators sl ON sl.id = bs.session_legislator_id
		 JOIN legislators l ON l.id = sl.legislator_id
		 WHERE bs.bill_id = ? ORDER BY bs.position`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Sponsor
	for rows.Next() {
		var sp models.Sponsor
		if err := rows.Scan(&sp.SessionLegislatorID, &sp.IsPrimary, &sp.LegislatorID, &sp.Name, &sp.District); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) billActions(ctx context.Context, billID string) ([]models.Action, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT action_date, action_date_text, description, sequence_order
		 FROM bill_actions WHERE bill_id = ? ORDER BY sequence_order`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Action
	for rows.Next() {
		var a models.Action
		var date, text sql.NullString
		if err := rows.Scan(&date, &text, &a.Description, &a.SequenceOrder); err != nil {
			return nil, err
		}
		a.Date = parseDate(date)
		a.DateText = text.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) billHearings(ctx context.Context, billID string) ([]models.Hearing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT h.committee_id, c.name, h.hearing_date, h.hearing_time, h.hearing_time_text, h.location
		 FROM bill_hearings h LEFT JOIN committees c ON c.id = h.committee_id
		 WHERE h.bill_id = ? ORDER BY h.position`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Hearing
	for rows.Next() {
		var h models.Hearing
		var committeeID, name, date, clock, text, location sql.NullString
		if err := rows.Scan(&committeeID, &name, &date, &clock, &text, &location); err != nil {
			return nil, err
		}
		h.CommitteeID, h.CommitteeName = committeeID.String, name.String
		h.Date = parseDate(date)
		if clock.Valid {
			v := clock.String
			h.Time = &v
		}
		h.TimeText, h.Location = text.String, location.String
		out = append(out, h)
	}
	return out, rows.Err()
}

// GetBillDocuments returns a bill's documents in scraped order.
func (s *SQLiteStorage) GetBillDocuments(ctx context.Context, billID string) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bill_id, document_id, title, doc_type, url, extracted_text, embeddings_generated, is_fiscal_note
		 FROM bill_documents WHERE bill_id = ? ORDER BY position`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		var ext, title, docType, url, text sql.NullString
		if err := rows.Scan(&d.ID, &d.BillID, &ext, &title, &docType, &url, &text, &d.EmbeddingsGenerated, &d.IsFiscalNote); err != nil {
			return nil, err
		}
		d.ExternalID, d.Title, d.DocType, d.URL, d.ExtractedText = ext.String, title.String, docType.String, url.String, text.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetDocumentText stores extracted text for a document.
func (s *SQLiteStorage) SetDocumentText(ctx context.Context, documentID, text string) error {
	return s.updateDocument(ctx, `UPDATE bill_documents SET extracted_text = ? WHERE id = ?`, nullString(text), documentID)
}

// MarkEmbeddingsGenerated flags a document as embedded.
func (s *SQLiteStorage) MarkEmbeddingsGenerated(ctx context.Context, documentID string) error {
	return s.updateDocument(ctx, `UPDATE bill_documents SET embeddings_generated = 1 WHERE id = ?`, documentID)
}

func (s *SQLiteStorage) updateDocument(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("document %v: %w", args[len(args)-1], ErrNotFound)
	}
	return nil
}

// HasExtractedText reports whether any document of the bill has non-blank extracted text.
func (s *SQLiteStorage) HasExtractedText(ctx context.Context, billID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bill_documents
			WHERE bill_id = ? AND extracted_text IS NOT NULL AND trim(extracted_text) != '')`, billID,
	).Scan(&ok)
	return ok, err
}

// HasEmbeddings reports whether any embedding row exists for the bill.
func (s *SQLiteStorage) HasEmbeddings(ctx context.Context, billID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bill_embeddings WHERE bill_id = ?)`, billID,
	).Scan(&ok)
	return ok, err
}

// BillMetadata collects the session, sponsors, and committees copied into every chunk of the bill.
// Committees come from the bill's hearings, deduplicated in hearing order.
func (s *SQLiteStorage) BillMetadata(ctx context.Context, billID string) (*models.BillMetadata, error) {
	meta := &models.BillMetadata{BillID: billID}
	err := s.db.QueryRowContext(ctx,
		`SELECT b.bill_number, s.year, s.session_code
		 FROM bills b JOIN sessions s ON s.id = b.session_id WHERE b.id = ?`, billID,
	).Scan(&meta.BillNumber, &meta.SessionYear, &meta.SessionCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bill %s: %w", billID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	sponsors, err := s.billSponsors(ctx, billID)
	if err != nil {
		return nil, err
	}
	for _, sp := range sponsors {
		ref := models.NamedRef{ID: sp.LegislatorID, Name: sp.Name}
		if sp.IsPrimary && meta.PrimarySponsor == nil {
			meta.PrimarySponsor = &ref
			continue
		}
		meta.Cosponsors = append(meta.Cosponsors, ref)
	}

	hearings, err := s.billHearings(ctx, billID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, h := range hearings {
		if h.CommitteeID == "" || seen[h.CommitteeID] {
			continue
		}
		seen[h.CommitteeID] = true
		meta.Committees = append(meta.Committees, models.NamedRef{ID: h.CommitteeID, Name: h.CommitteeName})
	}
	return meta, nil
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}
