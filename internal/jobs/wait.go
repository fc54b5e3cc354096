package jobs

import (
	"context"
	"fmt"
	"time"
)

// WaitForJob polls store until the job reaches a terminal status and returns
// its final state.
func WaitForJob(ctx context.Context, store JobStore, jobID string, interval time.Duration) (*SummaryJob, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := store.GetJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("WaitForJob: %w", err)
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, fmt.Errorf("WaitForJob: job %s still %s: %w", jobID, job.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

// LatestCompleted returns the most recently completed job of type t, or nil
// when none has completed yet.
func LatestCompleted(ctx context.Context, store JobStore, t JobType) (*SummaryJob, error) {
	list, err := store.ListJobs(ctx, JobFilter{Type: t, Status: JobStatusCompleted})
	if err != nil {
		return nil, fmt.Errorf("LatestCompleted: %w", err)
	}
	var latest *SummaryJob
	for _, j := range list {
		if j.CompletedAt == nil {
			continue
		}
		if latest == nil || j.CompletedAt.After(*latest.CompletedAt) {
			latest = j
		}
	}
	return latest, nil
}
