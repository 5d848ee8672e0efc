package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/molegis/internal/config"
	"github.com/hyperjump/molegis/internal/models"
)

// ErrInvalidQuery wraps query validation failures.
var ErrInvalidQuery = errors.New("invalid query")

// ProcessQuery trims the query, applies configured limits and min score, then validates.
func ProcessQuery(query *models.SearchQuery, cfg *config.SearchConfig) error {
	query.Query = strings.TrimSpace(query.Query)
	query.Filters.SessionCode = strings.ToUpper(strings.TrimSpace(query.Filters.SessionCode))
	if cfg != nil {
		if query.Limit <= 0 && cfg.DefaultLimit > 0 {
			query.Limit = cfg.DefaultLimit
		}
		if cfg.MaxLimit > 0 && query.Limit > cfg.MaxLimit {
			query.Limit = cfg.MaxLimit
		}
		if query.MinScore == 0 {
			query.MinScore = cfg.MinScore
		}
	}
	if err := query.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return nil
}
