package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/covid-award-summary/internal/logger"
	"github.com/dvloznov/covid-award-summary/internal/pipeline"
	"github.com/dvloznov/covid-award-summary/internal/store"
)

// NewPipelineHandler returns a JobHandler that runs the pipeline named by
// the job type against st and records the run result on the job.
func NewPipelineHandler(st store.Store) JobHandler {
	return func(ctx context.Context, job Job) error {
		sj, ok := job.(*SummaryJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log := logger.FromContext(ctx).With().Str("job_id", sj.JobID).Str("type", string(sj.Type)).Logger()
		ctx = logger.WithContext(ctx, log)
		log.Info().Int("retry", sj.RetryCount).Msg("Processing job")

		var (
			res *pipeline.RunResult
			err error
		)
		switch sj.Type {
		case JobTypeRefreshSummary:
			res, err = pipeline.RunRefresh(ctx, st)
		case JobTypeBackfillLookup:
			res, err = pipeline.RunBackfill(ctx, st)
		default:
			return fmt.Errorf("unknown job type: %q", sj.Type)
		}

		sj.Result = res
		if err != nil {
			log.Error().Err(err).Msg("Pipeline execution failed")
			return err
		}
		log.Info().Msg("Pipeline execution completed successfully")
		return nil
	}
}
