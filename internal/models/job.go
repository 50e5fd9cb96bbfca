package models

import "time"

// JobStatus is the lifecycle state of an import job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Finished reports whether the job has reached a terminal state
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ResourceArticles is the only importable resource
const ResourceArticles = "articles"

// Job is an NDJSON article import. Every non-blank line ends up in exactly
// one of SuccessfulCount, SkippedCount or FailedCount.
type Job struct {
	ID              string     `json:"job_id" db:"id"`
	Resource        string     `json:"resource" db:"resource"`
	Status          JobStatus  `json:"status" db:"status"`
	IdempotencyKey  string     `json:"idempotency_key,omitempty" db:"idempotency_key"`
	TotalRecords    int        `json:"total_records" db:"total_records"`
	ProcessedCount  int        `json:"processed" db:"processed_count"`
	SuccessfulCount int        `json:"successful" db:"successful_count"`
	SkippedCount    int        `json:"skipped" db:"skipped_count"`
	FailedCount     int        `json:"failed" db:"failed_count"`
	DurationMs      int64      `json:"duration_ms,omitempty" db:"duration_ms"`
	RowsPerSec      float64    `json:"rows_per_sec,omitempty" db:"rows_per_sec"`
	FilePath        string     `json:"-" db:"file_path"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Finish stamps the completion time, duration and throughput
func (j *Job) Finish(status JobStatus, at time.Time) {
	j.Status = status
	j.CompletedAt = &at
	if j.StartedAt == nil {
		return
	}
	elapsed := at.Sub(*j.StartedAt)
	j.DurationMs = elapsed.Milliseconds()
	if j.ProcessedCount > 0 && elapsed > 0 {
		j.RowsPerSec = float64(j.ProcessedCount) / elapsed.Seconds()
	}
}

// ValidationError is one rejected field of an import line or admin payload
type ValidationError struct {
	Line    int         `json:"line,omitempty"`
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// JobResponse is a job with the first errors inlined
type JobResponse struct {
	Job
	Errors      []ValidationError `json:"errors,omitempty"`
	ErrorCount  int               `json:"error_count,omitempty"`
	ErrorReport string            `json:"error_report_url,omitempty"`
}

// ImportRequest describes an uploaded import
type ImportRequest struct {
	Resource       string `json:"resource" form:"resource"`
	IdempotencyKey string `json:"-"`
}
