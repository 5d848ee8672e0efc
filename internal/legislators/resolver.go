// Package legislators resolves bill sponsors to session legislators and syncs chamber rosters.
package legislators

import (
	"context"
	"errors"
	"sync"

	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/storage"
	"github.com/hyperjump/molegis/pkg/utils"
	"go.uber.org/zap"
)

// Lookuper is the storage capability the resolver needs.
type Lookuper interface {
	LookupSessionLegislator(ctx context.Context, sessionID string, q models.LegislatorLookup) (string, error)
}

// Resolver caches session-legislator lookups for one session and one run.
// It is safe for concurrent use.
type Resolver struct {
	store     Lookuper
	sessionID string
	logger    *zap.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewResolver returns an empty cache scoped to sessionID.
func NewResolver(store Lookuper, sessionID string, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:     store,
		sessionID: sessionID,
		logger:    utils.OrNop(logger),
		cache:     make(map[string]string),
	}
}

// ByDistrict resolves a sponsor by district number.
func (r *Resolver) ByDistrict(ctx context.Context, district string) (string, bool) {
	return r.resolve(ctx, "district:"+district, models.LegislatorLookup{District: district})
}

// ByProfileURL resolves a sponsor by member profile link.
func (r *Resolver) ByProfileURL(ctx context.Context, profileURL string) (string, bool) {
	return r.resolve(ctx, "profile:"+profileURL, models.LegislatorLookup{ProfileURL: profileURL})
}

// ByName resolves a sponsor by name. role narrows the match when the same name
// appears in both chambers; empty matches either.
func (r *Resolver) ByName(ctx context.Context, name, role string) (string, bool) {
	key := "name:" + name
	if role != "" {
		key += ":" + role
	}
	return r.resolve(ctx, key, models.LegislatorLookup{Name: name, Role: role})
}

// Len returns the number of cached hits.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// resolve returns the cached id or asks the store. Misses are not cached so a
// legislator linked later in the run can still be found.
func (r *Resolver) resolve(ctx context.Context, key string, q models.LegislatorLookup) (string, bool) {
	r.mu.RLock()
	id, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return id, true
	}

	id, err := r.store.LookupSessionLegislator(ctx, r.sessionID, q)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("sponsor not found", zap.String("lookup", key), zap.String("session_id", r.sessionID))
		} else {
			r.logger.Warn("sponsor lookup failed", zap.String("lookup", key), zap.String("session_id", r.sessionID), zap.Error(err))
		}
		return "", false
	}

	r.mu.Lock()
	r.cache[key] = id
	r.mu.Unlock()
	return id, true
}
