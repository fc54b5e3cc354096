package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/dvloznov/covid-award-summary/internal/api/middleware"
	"github.com/dvloznov/covid-award-summary/internal/jobs"
)

// SummaryHandler enqueues refresh and backfill runs and reports the last
// published refresh.
type SummaryHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *SummaryHandler {
	return &SummaryHandler{
		publisher: publisher,
		store:     store,
		log:       log,
	}
}

// enqueueRequest is the optional body of the enqueue endpoints. An omitted
// max_retries keeps jobs.DefaultMaxRetries; 0 runs the job once.
type enqueueRequest struct {
	MaxRetries *int `json:"max_retries"`
}

// EnqueueRefresh handles POST /api/refresh
func (h *SummaryHandler) EnqueueRefresh(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, jobs.JobTypeRefreshSummary)
}

// EnqueueBackfill handles POST /api/backfill
func (h *SummaryHandler) EnqueueBackfill(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, jobs.JobTypeBackfillLookup)
}

func (h *SummaryHandler) enqueue(w http.ResponseWriter, r *http.Request, jobType jobs.JobType) {
	var req enqueueRequest
	// An empty body is allowed
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job := jobs.NewSummaryJob(jobType)
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "max_retries must not be negative")
			return
		}
		job.MaxRetries = *req.MaxRetries
	}

	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("type", string(jobType)).Msg("Failed to enqueue job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("type", string(jobType)).Msg("Job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"type":   string(jobType),
		"status": string(job.Status),
	})
}

// LastRun handles GET /api/summary/last-run
func (h *SummaryHandler) LastRun(w http.ResponseWriter, r *http.Request) {
	job, err := jobs.LatestCompleted(r.Context(), h.store, jobs.JobTypeRefreshSummary)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to look up last refresh")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to look up last refresh")
		return
	}
	if job == nil {
		middleware.WriteError(w, http.StatusNotFound, "No refresh has completed yet")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":       job.JobID,
		"completed_at": job.CompletedAt,
		"result":       job.Result,
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Type:   jobs.JobType(query.Get("type")),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
