package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/covid-award-summary/internal/backfill"
	"github.com/dvloznov/covid-award-summary/internal/domain"
	"github.com/dvloznov/covid-award-summary/internal/logger"
	"github.com/dvloznov/covid-award-summary/internal/store"
	"github.com/dvloznov/covid-award-summary/internal/summary"
)

// PipelineStep represents a single step in a pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID       string
	Snapshot    *domain.Snapshot
	Rows        []domain.AwardFinancialSummary
	Fingerprint string
	Published   bool
	Backfill    backfill.Result
}

// ReadSnapshotStep reads one consistent snapshot of the source tables.
type ReadSnapshotStep struct {
	Reader store.SourceReader
}

func (s *ReadSnapshotStep) Name() string { return "read_snapshot" }

func (s *ReadSnapshotStep) Execute(ctx context.Context, state *PipelineState) error {
	snap, err := s.Reader.ReadSnapshot(ctx)
	if err != nil {
		return err
	}
	state.Snapshot = snap
	return nil
}

// BuildSummaryStep aggregates and joins the snapshot into summary rows.
type BuildSummaryStep struct{}

func (s *BuildSummaryStep) Name() string { return "build_summary" }

func (s *BuildSummaryStep) Execute(ctx context.Context, state *PipelineState) error {
	rows, err := summary.Build(state.Snapshot)
	if err != nil {
		return err
	}
	state.Rows = rows
	return nil
}

// VerifySummaryStep refuses row sets that would break the one-row-per-award
// guarantee, and records their fingerprint.
type VerifySummaryStep struct{}

func (s *VerifySummaryStep) Name() string { return "verify_summary" }

func (s *VerifySummaryStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := summary.Verify(state.Rows); err != nil {
		return err
	}
	fp, err := summary.Fingerprint(state.Rows)
	if err != nil {
		return err
	}
	state.Fingerprint = fp
	return nil
}

// PublishSummaryStep swaps the new rows in as the summary table.
type PublishSummaryStep struct {
	Publisher store.SummaryPublisher
}

func (s *PublishSummaryStep) Name() string { return "publish_summary" }

func (s *PublishSummaryStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Publisher.ReplaceSummary(ctx, state.Rows); err != nil {
		return err
	}
	state.Published = true
	return nil
}

// BackfillLookupsStep seeds the recipient lookup staging table.
type BackfillLookupsStep struct {
	Source store.BackfillSource
	Writer store.LookupWriter
}

func (s *BackfillLookupsStep) Name() string { return "backfill_lookups" }

func (s *BackfillLookupsStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := backfill.Run(ctx, s.Source, s.Writer)
	if err != nil {
		return err
	}
	state.Backfill = res
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	name  string
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(name string, steps ...PipelineStep) *Pipeline {
	return &Pipeline{name: name, steps: steps}
}

// Name returns the pipeline name used in logs and run results.
func (p *Pipeline) Name() string { return p.name }

// Execute runs all steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	for i, step := range p.steps {
		log.Debug().Str("step", step.Name()).Msg("Running pipeline step")
		if err := step.Execute(ctx, state); err != nil {
			log.Error().Err(err).Str("step", step.Name()).Msg("Pipeline step failed")
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

// NewRefreshPipeline creates the four-step summary refresh: read, build,
// verify, publish. Nothing is published unless every earlier step succeeds.
func NewRefreshPipeline(reader store.SourceReader, publisher store.SummaryPublisher) *Pipeline {
	return NewPipeline(RefreshPipelineName,
		&ReadSnapshotStep{Reader: reader},
		&BuildSummaryStep{},
		&VerifySummaryStep{},
		&PublishSummaryStep{Publisher: publisher},
	)
}

// NewBackfillPipeline creates the single-step lookup backfill.
func NewBackfillPipeline(source store.BackfillSource, writer store.LookupWriter) *Pipeline {
	return NewPipeline(BackfillPipelineName,
		&BackfillLookupsStep{Source: source, Writer: writer},
	)
}
