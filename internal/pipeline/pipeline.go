package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/covid-award-summary/internal/backfill"
	"github.com/dvloznov/covid-award-summary/internal/logger"
	"github.com/dvloznov/covid-award-summary/internal/store"
)

const (
	RefreshPipelineName  = "refresh_summary"
	BackfillPipelineName = "backfill_lookup"
)

// RunResult describes one finished pipeline run.
type RunResult struct {
	RunID       string           `json:"run_id"`
	Pipeline    string           `json:"pipeline"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	AsOf        *time.Time       `json:"as_of,omitempty"`
	Rows        int              `json:"rows"`
	Fingerprint string           `json:"fingerprint,omitempty"`
	Published   bool             `json:"published"`
	Backfill    *backfill.Result `json:"backfill,omitempty"`
}

// RunRefresh rebuilds and publishes the summary table from st.
func RunRefresh(ctx context.Context, st store.Store) (*RunResult, error) {
	return Run(ctx, NewRefreshPipeline(st, st))
}

// RunBackfill seeds the recipient lookup staging table from st.
func RunBackfill(ctx context.Context, st store.Store) (*RunResult, error) {
	return Run(ctx, NewBackfillPipeline(st, st))
}

// Run executes p under a fresh run id. The result is returned even when the
// run fails, so callers can report how far it got.
func Run(ctx context.Context, p *Pipeline) (*RunResult, error) {
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, p.Name(), runID)
	log := logger.FromContext(ctx)

	res := &RunResult{
		RunID:     runID,
		Pipeline:  p.Name(),
		StartedAt: time.Now().UTC(),
	}
	state := &PipelineState{RunID: runID}

	log.Info().Msg("Pipeline started")
	err := p.Execute(ctx, state)
	res.FinishedAt = time.Now().UTC()

	if state.Snapshot != nil {
		asOf := state.Snapshot.AsOf
		res.AsOf = &asOf
	}
	res.Rows = len(state.Rows)
	res.Fingerprint = state.Fingerprint
	res.Published = state.Published
	if p.Name() == BackfillPipelineName {
		b := state.Backfill
		res.Backfill = &b
	}

	if err != nil {
		log.Error().Err(err).Dur("elapsed", res.FinishedAt.Sub(res.StartedAt)).Msg("Pipeline failed")
		return res, err
	}

	log.Info().
		Int("rows", res.Rows).
		Str("fingerprint", res.Fingerprint).
		Dur("elapsed", res.FinishedAt.Sub(res.StartedAt)).
		Msg("Pipeline finished")
	return res, nil
}
