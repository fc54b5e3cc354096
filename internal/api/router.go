// Package api assembles the HTTP surface: routes, handlers and middleware.
package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/covid-award-summary/internal/api/handlers"
	"github.com/dvloznov/covid-award-summary/internal/api/middleware"
	"github.com/dvloznov/covid-award-summary/internal/jobs"
)

// RouterConfig carries what the routes need.
type RouterConfig struct {
	Publisher jobs.Publisher
	JobStore  jobs.JobStore
	Log       zerolog.Logger
	// Backend is reported by /health.
	Backend string
	// APIToken enables bearer authentication when non-empty.
	APIToken string
}

// NewRouter returns the full handler chain.
func NewRouter(cfg RouterConfig) http.Handler {
	summaryHandler := handlers.NewSummaryHandler(cfg.Publisher, cfg.JobStore, cfg.Log)
	jobsHandler := handlers.NewJobsHandler(cfg.JobStore, cfg.Log)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/refresh", summaryHandler.EnqueueRefresh)
	mux.HandleFunc("POST /api/backfill", summaryHandler.EnqueueBackfill)
	mux.HandleFunc("GET /api/summary/last-run", summaryHandler.LastRun)
	mux.HandleFunc("GET /api/jobs", jobsHandler.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		jobsHandler.GetJob(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"backend": cfg.Backend,
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(cfg.Log)(
		middleware.RequestID(
			middleware.Logger(cfg.Log)(
				middleware.CORS(
					middleware.Auth(cfg.APIToken)(mux),
				),
			),
		),
	)
}
