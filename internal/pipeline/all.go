package pipeline

import (
	"context"

	"github.com/hyperjump/molegis/internal/models"
	"go.uber.org/zap"
)

// Totals adds up the summaries of a multi-session run.
type Totals struct {
	Sessions       int `json:"sessions"`
	FailedSessions int `json:"failed_sessions"`
	Processed      int `json:"processed"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
	Embeddings     int `json:"embeddings_created"`
}

// Total sums summaries.
func Total(summaries []*models.RunSummary) Totals {
	var t Totals
	for _, s := range summaries {
		t.Sessions++
		if !s.Succeeded() {
			t.FailedSessions++
		}
		t.Processed += s.Processed
		t.Skipped += s.Skipped
		t.Failed += s.Failed
		t.Embeddings += s.Embeddings
	}
	return t
}

// RunAll runs every session in order with the same force, limit, and roster
// settings. A session that fails to set up is recorded and the next one runs.
// The browser is released after the last session. Only cancellation stops early.
func (o *Orchestrator) RunAll(ctx context.Context, sessions []models.SessionRef, opts Options) ([]*models.RunSummary, error) {
	defer o.releaseBrowser()

	summaries := make([]*models.RunSummary, 0, len(sessions))
	for i, ref := range sessions {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		o.logger.Info("starting session",
			zap.String("session", ref.String()),
			zap.Int("index", i+1),
			zap.Int("total", len(sessions)))

		sessionOpts := opts
		sessionOpts.Year = ref.Year
		sessionOpts.Code = ref.Code
		summary, err := o.run(ctx, sessionOpts, false)
		if err != nil {
			o.logger.Error("session failed, continuing", zap.String("session", ref.String()), zap.Error(err))
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
