// Package models defines core data structures for sessions, legislators, bills, embeddings, and search.
package models

import (
	"fmt"
	"strings"
	"time"
)

// SessionCode identifies the kind of legislative sitting within a year.
type SessionCode string

const (
	// SessionRegular is the regular session.
	SessionRegular SessionCode = "R"
	// SessionSpecial1 is the first extraordinary (special) session.
	SessionSpecial1 SessionCode = "S1"
	// SessionSpecial2 is the second extraordinary session.
	SessionSpecial2 SessionCode = "S2"
)

// ParseSessionCode accepts R, S1, or S2 (case-insensitive).
func ParseSessionCode(s string) (SessionCode, error) {
	switch SessionCode(strings.ToUpper(strings.TrimSpace(s))) {
	case SessionRegular:
		return SessionRegular, nil
	case SessionSpecial1:
		return SessionSpecial1, nil
	case SessionSpecial2:
		return SessionSpecial2, nil
	}
	return "", fmt.Errorf("unknown session code %q (use R, S1, or S2)", s)
}

// Session is one legislative sitting, unique per (year, code).
type Session struct {
	ID        string      `json:"id" db:"id"`
	Year      int         `json:"year" db:"year"`
	Code      SessionCode `json:"session_code" db:"session_code"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// SessionRef names a session to process without requiring a stored row.
type SessionRef struct {
	Year        int
	Code        SessionCode
	Description string
}

func (s SessionRef) String() string {
	if s.Description != "" {
		return s.Description
	}
	return fmt.Sprintf("%d %s", s.Year, s.Code)
}

// KnownSessions is every session published by the House archive, newest first.
var KnownSessions = []SessionRef{
	{2026, SessionRegular, "2026 Regular Session"},
	{2025, SessionSpecial2, "2025 2nd Extraordinary Session"},
	{2025, SessionSpecial1, "2025 1st Extraordinary Session"},
	{2025, SessionRegular, "2025 Regular Session"},
	{2024, SessionRegular, "2024 Regular Session"},
	{2023, SessionRegular, "2023 Regular Session"},
	{2022, SessionSpecial1, "2022 1st Extraordinary Session"},
	{2022, SessionRegular, "2022 Regular Session"},
	{2021, SessionSpecial1, "2021 1st Extraordinary Session"},
	{2021, SessionRegular, "2021 Regular Session"},
	{2020, SessionSpecial2, "2020 2nd Extraordinary Session"},
	{2020, SessionSpecial1, "2020 1st Extraordinary Session"},
	{2020, SessionRegular, "2020 Regular Session"},
	{2019, SessionSpecial1, "2019 1st Extraordinary Session"},
	{2019, SessionRegular, "2019 Regular Session"},
	{2018, SessionSpecial2, "2018 1st Extraordinary Session"},
	{2018, SessionSpecial1, "2018 Special Session"},
	{2018, SessionRegular, "2018 Regular Session"},
	{2017, SessionSpecial2, "2017 2nd Extraordinary Session"},
	{2017, SessionSpecial1, "2017 Extraordinary Session"},
	{2017, SessionRegular, "2017 Regular Session"},
	{2016, SessionRegular, "2016 Regular Session"},
	{2015, SessionRegular, "2015 Regular Session"},
	{2014, SessionRegular, "2014 Regular Session"},
	{2013, SessionSpecial1, "2013 Extraordinary Session"},
	{2013, SessionRegular, "2013 Regular Session"},
	{2012, SessionRegular, "2012 Regular Session"},
	{2011, SessionSpecial1, "2011 Extraordinary Session"},
	{2011, SessionRegular, "2011 Regular Session"},
	{2010, SessionSpecial1, "2010 Extraordinary Session"},
	{2010, SessionRegular, "2010 Regular Session"},
	{2009, SessionRegular, "2009 Regular Session"},
	{2008, SessionRegular, "2008 Regular Session"},
	{2007, SessionSpecial1, "2007 Extraordinary Session"},
	{2007, SessionRegular, "2007 Regular Session"},
	{2006, SessionRegular, "2006 Regular Session"},
	{2005, SessionSpecial1, "2005 Extraordinary Session"},
	{2005, SessionRegular, "2005 Regular Session"},
	{2004, SessionRegular, "2004 Regular Session"},
	{2003, SessionSpecial2, "2003 2nd Extraordinary Session"},
	{2003, SessionSpecial1, "2003 1st Extraordinary Session"},
	{2003, SessionRegular, "2003 Regular Session"},
	{2002, SessionRegular, "2002 Regular Session"},
	{2001, SessionSpecial1, "2001 Extraordinary Session"},
	{2001, SessionRegular, "2001 Regular Session"},
	{2000, SessionRegular, "2000 Regular Session"},
}

// CurrentSessionYear is the year of the newest known session. It is used when
// a run targets the current session without naming a year.
func CurrentSessionYear() int {
	return KnownSessions[0].Year
}
