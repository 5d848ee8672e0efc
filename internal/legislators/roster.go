package legislators

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/pkg/utils"
	"go.uber.org/zap"
)

// RosterSource lists a chamber's members for a session and reads member profiles.
type RosterSource interface {
	ListMembers(ctx context.Context, year int, code models.SessionCode) ([]models.RosterEntry, error)
	MemberProfile(ctx context.Context, profileURL string) (*models.MemberProfile, error)
}

// Store is the storage capability the roster sync needs.
type Store interface {
	UpsertLegislator(ctx context.Context, l *models.Legislator) (string, bool, error)
	LinkLegislatorToSession(ctx context.Context, sessionID, legislatorID, district, profileURL string) (string, error)
}

// SyncResult counts what a roster sync did.
type SyncResult struct {
	Members  int `json:"members"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// Syncer loads a session roster into storage so sponsors can be resolved.
type Syncer struct {
	source       RosterSource
	store        Store
	logger       *zap.Logger
	retries      int
	retryBackoff time.Duration
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) SyncerOption {
	return func(s *Syncer) { s.logger = l }
}

// WithRetry sets how many times a profile page is attempted and the first backoff delay.
func WithRetry(attempts int, baseDelay time.Duration) SyncerOption {
	return func(s *Syncer) {
		s.retries = attempts
		s.retryBackoff = baseDelay
	}
}

// NewSyncer creates a roster syncer.
func NewSyncer(source RosterSource, store Store, opts ...SyncerOption) *Syncer {
	s := &Syncer{source: source, store: store, retries: 3, retryBackoff: time.Second}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Sync scrapes every member of the session roster, upserts the legislator, and
// links them to sessionID by district. A member whose profile cannot be read is
// stored from the roster row alone. Only a failure to list the roster is returned.
func (s *Syncer) Sync(ctx context.Context, sessionID string, year int, code models.SessionCode) (SyncResult, error) {
	var res SyncResult
	members, err := s.source.ListMembers(ctx, year, code)
	if err != nil {
		return res, fmt.Errorf("failed to list roster: %w", err)
	}
	res.Members = len(members)
	s.logger.Info("syncing roster", zap.Int("year", year), zap.String("session_code", string(code)), zap.Int("members", len(members)))

	for _, entry := range members {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		profile := s.profile(ctx, entry)
		leg := ToLegislator(profile)

		id, updated, err := s.store.UpsertLegislator(ctx, leg)
		if err != nil {
			res.Failed++
			s.logger.Error("failed to upsert legislator", zap.String("name", leg.Name), zap.Error(err))
			continue
		}
		district := utils.FirstNonEmpty(profile.District, entry.District)
		if _, err := s.store.LinkLegislatorToSession(ctx, sessionID, id, district, leg.ProfileURL); err != nil {
			res.Failed++
			s.logger.Error("failed to link legislator", zap.String("name", leg.Name), zap.String("district", district), zap.Error(err))
			continue
		}
		if updated {
			res.Updated++
		} else {
			res.Inserted++
		}
	}
	s.logger.Info("roster synced",
		zap.Int("inserted", res.Inserted), zap.Int("updated", res.Updated), zap.Int("failed", res.Failed))
	return res, nil
}

func (s *Syncer) profile(ctx context.Context, entry models.RosterEntry) *models.MemberProfile {
	var profile *models.MemberProfile
	if entry.ProfileURL != "" {
		err := utils.RetryWithBackoff(ctx, func() error {
			p, err := s.source.MemberProfile(ctx, entry.ProfileURL)
			if err != nil {
				return err
			}
			profile = p
			return nil
		}, s.retries, s.retryBackoff)
		if err != nil {
			s.logger.Warn("profile unavailable, using roster row",
				zap.String("profile_url", entry.ProfileURL), zap.Error(err))
		}
	}
	if profile == nil {
		profile = &models.MemberProfile{IsActive: true}
	}
	if profile.Name == "" {
		profile.Name = entry.Name
	}
	if profile.District == "" {
		profile.District = entry.District
	}
	if profile.Party == "" {
		profile.Party = expandParty(entry.Party)
	}
	if profile.ProfileURL == "" {
		profile.ProfileURL = entry.ProfileURL
	}
	if profile.Role == "" {
		profile.Role = models.RoleRepresentative
	}
	return profile
}

// ToLegislator converts a scraped profile into a legislator row. Year fields
// that are not plain integers are left unset.
func ToLegislator(p *models.MemberProfile) *models.Legislator {
	return &models.Legislator{
		Name:        strings.TrimSpace(p.Name),
		Role:        p.Role,
		Party:       p.Party,
		YearElected: parseYear(p.YearElected),
		YearsServed: parseYear(p.YearsServed),
		PictureURL:  p.PictureURL,
		ProfileURL:  p.ProfileURL,
		IsActive:    p.IsActive,
	}
}

func parseYear(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

func expandParty(abbrev string) string {
	switch abbrev {
	case "R":
		return "Republican"
	case "D":
		return "Democrat"
	case "I":
		return "Independent"
	}
	return abbrev
}
