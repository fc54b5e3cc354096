// Command worker runs summary jobs once and exits. It is meant for schedulers
// such as cron or Cloud Run jobs: the exit status is non-zero when any job
// ends in the failed state.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/covid-award-summary/internal/backend"
	"github.com/dvloznov/covid-award-summary/internal/config"
	"github.com/dvloznov/covid-award-summary/internal/jobs"
	"github.com/dvloznov/covid-award-summary/internal/jobs/inmemory"
	"github.com/dvloznov/covid-award-summary/internal/logger"
)

func main() {
	var (
		envFile    = flag.String("env", ".env", "Optional dotenv file")
		jobList    = flag.String("jobs", string(jobs.JobTypeRefreshSummary), "Comma-separated job types to run in order")
		maxRetries = flag.Int("max-retries", jobs.DefaultMaxRetries, "Retries per job")
		timeout    = flag.Duration("timeout", time.Hour, "Overall deadline")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)

	types, err := parseJobTypes(*jobList)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -jobs")
	}

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open backend")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(types), jobStore)
	if err := jobQueue.Start(ctx, jobs.NewPipelineHandler(st)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Str("jobs", *jobList).Str("backend", string(cfg.Backend)).Msg("Worker started")

	failed := 0
	for _, t := range types {
		job := jobs.NewSummaryJob(t)
		job.MaxRetries = *maxRetries
		if err := jobQueue.Publish(ctx, job); err != nil {
			log.Error().Err(err).Str("type", string(t)).Msg("Failed to enqueue job")
			failed++
			break
		}

		final, err := jobs.WaitForJob(ctx, jobStore, job.JobID, 500*time.Millisecond)
		if err != nil {
			log.Error().Err(err).Str("job_id", job.JobID).Msg("Gave up waiting for job")
			failed++
			break
		}

		ev := log.Info()
		if final.Status == jobs.JobStatusFailed {
			ev = log.Error().Str("error", final.Error)
			failed++
		}
		ev.Str("job_id", final.JobID).
			Str("type", string(final.Type)).
			Str("status", string(final.Status)).
			Int("retries", final.RetryCount).
			Interface("result", final.Result).
			Msg("Job finished")
		if failed > 0 {
			// Later jobs may depend on earlier ones
			break
		}
	}

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	if err := st.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close backend")
	}

	if failed > 0 {
		os.Exit(1)
	}
	log.Info().Msg("Worker exited")
}
