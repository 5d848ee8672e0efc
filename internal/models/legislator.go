package models

import "time"

// Chamber roles as they appear on member profile pages.
const (
	RoleRepresentative = "Representative"
	RoleSenator        = "Senator"
)

// Legislator is a person who served in either chamber. Identity is name plus role.
type Legislator struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Role        string    `json:"legislator_type" db:"legislator_type"`
	Party       string    `json:"party_affiliation,omitempty" db:"party_affiliation"`
	YearElected *int      `json:"year_elected,omitempty" db:"year_elected"`
	YearsServed *int      `json:"years_served,omitempty" db:"years_served"`
	PictureURL  string    `json:"picture_url,omitempty" db:"picture_url"`
	ProfileURL  string    `json:"profile_url,omitempty" db:"profile_url"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// SessionLegislator links a legislator to one session with the district they held.
// Its ID is the foreign key used by bill sponsorships.
type SessionLegislator struct {
	ID           string `json:"id" db:"id"`
	SessionID    string `json:"session_id" db:"session_id"`
	LegislatorID string `json:"legislator_id" db:"legislator_id"`
	District     string `json:"district" db:"district"`
	ProfileURL   string `json:"profile_url,omitempty" db:"profile_url"`
}

// LegislatorLookup is one session-scoped query for a sponsor. Exactly one of
// District, ProfileURL, or Name is set; Role optionally narrows a name match.
type LegislatorLookup struct {
	District   string
	ProfileURL string
	Name       string
	Role       string
}

// RosterEntry is one row of a chamber's member roster page.
type RosterEntry struct {
	Name       string `json:"name"`
	District   string `json:"district"`
	Party      string `json:"party_abbrev"`
	ProfileURL string `json:"profile_url"`
}

// MemberProfile holds the fields scraped from a member's profile page.
type MemberProfile struct {
	Name        string `json:"name"`
	Role        string `json:"legislator_type"`
	District    string `json:"district"`
	Party       string `json:"party_affiliation"`
	YearElected string `json:"year_elected"`
	YearsServed string `json:"years_served"`
	PictureURL  string `json:"picture_url"`
	IsActive    bool   `json:"is_active"`
	ProfileURL  string `json:"profile_url"`
}
