package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/molegis/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; all access goes through one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		session_code TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (year, session_code)
	);

	CREATE TABLE IF NOT EXISTS legislators (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		legislator_type TEXT NOT NULL DEFAULT '',
		party_affiliation TEXT,
		year_elected INTEGER,
		years_served INTEGER,
		picture_url TEXT,
		profile_url TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_legislators_name ON legislators(name, legislator_type);

	CREATE TABLE IF NOT EXISTS session_legislators (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		legislator_id TEXT NOT NULL REFERENCES legislators(id) ON DELETE CASCADE,
		district TEXT NOT NULL,
		profile_url TEXT,
		UNIQUE (session_id, district)
	);

	CREATE INDEX IF NOT EXISTS idx_session_legislators_profile ON session_legislators(session_id, profile_url);

	CREATE TABLE IF NOT EXISTS committees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS bills (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		bill_number TEXT NOT NULL,
		title TEXT,
		description TEXT,
		lr_number TEXT,
		bill_string TEXT,
		last_action TEXT,
		proposed_effective_date TEXT,
		calendar_status TEXT,
		hearing_status TEXT,
		bill_url TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (session_id, bill_number)
	);

	CREATE TABLE IF NOT EXISTS bill_sponsors (
		bill_id TEXT NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
		session_legislator_id TEXT NOT NULL REFERENCES session_legislators(id) ON DELETE CASCADE,
		is_primary BOOLEAN NOT NULL DEFAULT 0,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bill_sponsors_bill ON bill_sponsors(bill_id);

	CREATE TABLE IF NOT EXISTS bill_actions (
		bill_id TEXT NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
		action_date TEXT,
		action_date_text TEXT,
		description TEXT NOT NULL,
		sequence_order INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bill_actions_bill ON bill_actions(bill_id, sequence_order);

	CREATE TABLE IF NOT EXISTS bill_hearings (
		bill_id TEXT NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
		committee_id TEXT REFERENCES committees(id),
		hearing_date TEXT,
		hearing_time TEXT,
		hearing_time_text TEXT,
		location TEXT,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bill_hearings_bill ON bill_hearings(bill_id);

	CREATE TABLE IF NOT EXISTS bill_documents (
		id TEXT PRIMARY KEY,
		bill_id TEXT NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
		document_id TEXT,
		title TEXT,
		doc_type TEXT,
		url TEXT,
		extracted_text TEXT,
		embeddings_generated BOOLEAN NOT NULL DEFAULT 0,
		is_fiscal_note BOOLEAN NOT NULL DEFAULT 0,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bill_documents_bill ON bill_documents(bill_id);

	CREATE TABLE IF NOT EXISTS bill_embeddings (
		id TEXT PRIMARY KEY,
		bill_id TEXT NOT NULL,
		document_id TEXT,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT NOT NULL,
		session_year INTEGER,
		session_code TEXT,
		doc_type TEXT,
		chunk_index INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bill_embeddings_bill ON bill_embeddings(bill_id);
	CREATE INDEX IF NOT EXISTS idx_bill_embeddings_session ON bill_embeddings(session_year, session_code);
	`
	_, err := db.Exec(schema)
	return err
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func newID() string {
	return uuid.NewString()
}

// UpsertSession returns the id of the (year, code) session, creating it if needed.
func (s *SQLiteStorage) UpsertSession(ctx context.Context, year int, code models.SessionCode) (string, error) {
	if year <= 0 || code == "" {
		return "", fmt.Errorf("invalid session %d %q", year, code)
	}
	id := newID()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, year, session_code, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (year, session_code) DO NOTHING`,
		id, year, string(code), time.Now(),
	); err != nil {
		return "", fmt.Errorf("failed to upsert session: %w", err)
	}
	sess, err := s.GetSession(ctx, year, code)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// GetSession returns the session for year and code.
func (s *SQLiteStorage) GetSession(ctx context.Context, year int, code models.SessionCode) (*models.Session, error) {
	var sess models.Session
	var codeStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, year, session_code, created_at FROM sessions WHERE year = ? AND session_code = ?`,
		year, string(code),
	).Scan(&sess.ID, &sess.Year, &codeStr, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d %s: %w", year, code, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	sess.Code = models.SessionCode(codeStr)
	return &sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *SQLiteStorage) ListSessions(ctx context.Context) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, year, session_code, created_at FROM sessions ORDER BY year DESC, session_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		var sess models.Session
		var codeStr string
		if err := rows.Scan(&sess.ID, &sess.Year, &codeStr, &sess.CreatedAt); err != nil {
			return nil, err
		}
		sess.Code = models.SessionCode(codeStr)
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// UpsertLegislator matches an existing legislator by name and role (an empty role
// matches any) and updates it, or inserts a new one. updated reports whether a row existed.
func (s *SQLiteStorage) UpsertLegislator(ctx context.Context, l *models.Legislator) (string, bool, error) {
	if strings.TrimSpace(l.Name) == "" {
		return "", false, fmt.Errorf("legislator name is required")
	}

	var existing string
	var err error
	if l.Role == "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT id FROM legislators WHERE name = ? ORDER BY created_at LIMIT 1`, l.Name,
		).Scan(&existing)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT id FROM legislators WHERE name = ? AND (legislator_type = ? OR legislator_type = '') ORDER BY created_at LIMIT 1`,
			l.Name, l.Role,
		).Scan(&existing)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("failed to look up legislator: %w", err)
	}

	now := time.Now()
	l.UpdatedAt = now
	if existing != "" {
		l.ID = existing
		_, err := s.db.ExecContext(ctx,
			`UPDATE legislators SET
				legislator_type = COALESCE(NULLIF(?, ''), legislator_type),
				party_affiliation = COALESCE(NULLIF(?, ''), party_affiliation),
				year_elected = COALESCE(?, year_elected),
				years_served = COALESCE(?, years_served),
				picture_url = COALESCE(NULLIF(?, ''), picture_url),
				profile_url = COALESCE(NULLIF(?, ''), profile_url),
				is_active = ?,
				updated_at = ?
			 WHERE id = ?`,
			l.Role, l.Party, nullInt(l.YearElected), nullInt(l.YearsServed),
			l.PictureURL, l.ProfileURL, l.IsActive, now, existing,
		)
		if err != nil {
			return "", false, fmt.Errorf("failed to update legislator: %w", err)
		}
		return existing, true, nil
	}

	if l.ID == "" {
		l.ID = newID()
	}
	l.CreatedAt = now
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO legislators (id, name, legislator_type, party_affiliation, year_elected, years_served,
			picture_url, profile_url, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.Role, l.Party, nullInt(l.YearElected), nullInt(l.YearsServed),
		l.PictureURL, l.ProfileURL, l.IsActive, now, now,
	)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert legislator: %w", err)
	}
	return l.ID, false, nil
}

// LinkLegislatorToSession records that legislatorID held district in the session.
// A district already linked in the session is re-pointed at legislatorID.
func (s *SQLiteStorage) LinkLegislatorToSession(ctx context.Context, sessionID, legislatorID, district, profileURL string) (string, error) {
	if district == "" {
		return "", fmt.Errorf("district is required")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO session_legislators (id, session_id, legislator_id, district, profile_url)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, district) DO UPDATE SET
			legislator_id = excluded.legislator_id,
			profile_url = COALESCE(NULLIF(excluded.profile_url, ''), session_legislators.profile_url)`,
		newID(), sessionID, legislatorID, district, profileURL,
	); err != nil {
		return "", fmt.Errorf("failed to link legislator: %w", err)
	}
	var id string
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM session_legislators WHERE session_id = ? AND district = ?`, sessionID, district,
	).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// LookupSessionLegislator resolves a sponsor to its session_legislators id.
// Name lookups are case-insensitive and narrowed by q.Role when set.
func (s *SQLiteStorage) LookupSessionLegislator(ctx context.Context, sessionID string, q models.LegislatorLookup) (string, error) {
	var (
		row  *sql.Row
		desc string
	)
	switch {
	case q.District != "":
		desc = "district " + q.District
		row = s.db.QueryRowContext(ctx,
			`SELECT id FROM session_legislators WHERE session_id = ? AND district = ?`,
			sessionID, q.District)
	case q.ProfileURL != "":
		desc = "profile " + q.ProfileURL
		row = s.db.QueryRowContext(ctx,
			`SELECT sl.id FROM session_legislators sl
			 JOIN legislators l ON l.id = sl.legislator_id
			 WHERE sl.session_id = ? AND (sl.profile_url = ? OR l.profile_url = ?)
			 LIMIT 1`,
			sessionID, q.ProfileURL, q.ProfileURL)
	case q.Name != "":
		desc = "name " + q.Name
		row = s.db.QueryRowContext(ctx,
			`SELECT sl.id FROM session_legislators sl
			 JOIN legislators l ON l.id = sl.legislator_id
			 WHERE sl.session_id = ? AND lower(l.name) = lower(?) AND (? = '' OR l.legislator_type = ?)
			 ORDER BY sl.district
			 LIMIT 1`,
			sessionID, q.Name, q.Role, q.Role)
	default:
		return "", fmt.Errorf("empty legislator lookup")
	}

	var id string
	err := row.Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("session legislator by %s: %w", desc, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// CountSessionLegislators returns how many legislators are linked to the session.
func (s *SQLiteStorage) CountSessionLegislators(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_legislators WHERE session_id = ?`, sessionID).Scan(&count)
	return count, err
}

// GetOrCreateCommittee returns the id of the named committee, creating it if needed.
func (s *SQLiteStorage) GetOrCreateCommittee(ctx context.Context, name string) (string, error) {
	return getOrCreateCommittee(ctx, s.db, name)
}

func getOrCreateCommittee(ctx context.Context, q querier, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("committee name is required")
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO committees (id, name) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
		newID(), name,
	); err != nil {
		return "", fmt.Errorf("failed to upsert committee: %w", err)
	}
	var id string
	if err := q.QueryRowContext(ctx, `SELECT id FROM committees WHERE name = ?`, name).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// CountBills returns the total number of bills.
func (s *SQLiteStorage) CountBills(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bills`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
