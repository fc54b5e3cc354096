package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/covid-award-summary/internal/pipeline"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeRefreshSummary rebuilds and publishes the summary table.
	JobTypeRefreshSummary JobType = pipeline.RefreshPipelineName
	// JobTypeBackfillLookup seeds the recipient lookup staging table.
	JobTypeBackfillLookup JobType = pipeline.BackfillPipelineName
)

// Valid reports whether t names a known job type.
func (t JobType) Valid() bool {
	return t == JobTypeRefreshSummary || t == JobTypeBackfillLookup
}

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// Terminal reports whether no further transitions will happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// SummaryJob is one requested run of the refresh or backfill pipeline.
// Retries re-run the whole pipeline.
type SummaryJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Type selects the pipeline.
	Type JobType `json:"type"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed. Zero disables
	// retries.
	MaxRetries int `json:"max_retries"`

	// Result is the outcome of the last attempt.
	Result *pipeline.RunResult `json:"result,omitempty"`
}

// DefaultMaxRetries is the retry budget NewSummaryJob assigns.
const DefaultMaxRetries = 3

// NewSummaryJob returns a job of type t with the default retry budget.
// Callers may lower MaxRetries to 0 to run the job exactly once.
func NewSummaryJob(t JobType) *SummaryJob {
	return &SummaryJob{Type: t, MaxRetries: DefaultMaxRetries}
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *SummaryJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *SummaryJob) GetType() JobType {
	return j.Type
}

// GetStatus implements the Job interface.
func (j *SummaryJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
type Publisher interface {
	// Publish enqueues a summary job.
	Publish(ctx context.Context, job *SummaryJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *SummaryJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*SummaryJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*SummaryJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Type filters jobs by pipeline.
	Type JobType

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
