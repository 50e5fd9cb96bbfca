package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/restaurant-cms-api/internal/database"
	"github.com/restaurant-cms-api/internal/models"
)

const jobColumns = `id, resource, status, idempotency_key, total_records, processed_count,
	successful_count, skipped_count, failed_count, duration_ms, rows_per_sec, file_path,
	created_at, started_at, completed_at`

// jobRepo is the concrete implementation of JobRepository
type jobRepo struct {
	db *database.DB
}

// NewJobRepo creates a new job repository
func NewJobRepo(db *database.DB) JobRepository {
	return &jobRepo{db: db}
}

// Create inserts a new job
func (r *jobRepo) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, resource, status, idempotency_key, file_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.Resource, job.Status, nullString(job.IdempotencyKey),
		nullString(job.FilePath), job.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateIdempotencyKey
	}
	return err
}

// Update stores the job's status, counters and timings
func (r *jobRepo) Update(ctx context.Context, job *models.Job) error {
	query := `
		UPDATE jobs SET
			status = $1, total_records = $2, processed_count = $3, successful_count = $4,
			skipped_count = $5, failed_count = $6, duration_ms = $7, rows_per_sec = $8,
			started_at = $9, completed_at = $10
		WHERE id = $11
	`
	_, err := r.db.ExecContext(ctx, query,
		job.Status, job.TotalRecords, job.ProcessedCount, job.SuccessfulCount,
		job.SkippedCount, job.FailedCount, job.DurationMs, job.RowsPerSec,
		nullTime(job.StartedAt), nullTime(job.CompletedAt), job.ID,
	)
	return err
}

// GetByID retrieves a job by ID
func (r *jobRepo) GetByID(ctx context.Context, id string) (*models.Job, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByIdempotencyKey retrieves a job by idempotency key
func (r *jobRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	return r.getOne(ctx, "idempotency_key = $1", key)
}

func (r *jobRepo) getOne(ctx context.Context, where string, arg interface{}) (*models.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE " + where

	var job models.Job
	var idempotencyKey, filePath sql.NullString
	var startedAt, completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&job.ID, &job.Resource, &job.Status, &idempotencyKey,
		&job.TotalRecords, &job.ProcessedCount, &job.SuccessfulCount, &job.SkippedCount,
		&job.FailedCount, &job.DurationMs, &job.RowsPerSec, &filePath,
		&job.CreatedAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.IdempotencyKey = idempotencyKey.String
	job.FilePath = filePath.String
	job.StartedAt = timePtr(startedAt)
	job.CompletedAt = timePtr(completedAt)
	return &job, nil
}

// GetPendingJobs retrieves all pending jobs, oldest first
func (r *jobRepo) GetPendingJobs(ctx context.Context) ([]*models.Job, error) {
	query := `
		SELECT id, resource, file_path, created_at
		FROM jobs WHERE status = 'pending'
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		var job models.Job
		var filePath sql.NullString
		if err := rows.Scan(&job.ID, &job.Resource, &filePath, &job.CreatedAt); err != nil {
			return nil, err
		}
		job.FilePath = filePath.String
		job.Status = models.JobStatusPending
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

// MarkJobAsProcessing atomically claims a pending job. Only one caller wins.
func (r *jobRepo) MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE jobs SET status = 'processing', started_at = $1
		WHERE id = $2 AND status = 'pending'
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), jobID)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// AddError adds a validation error to the job
func (r *jobRepo) AddError(ctx context.Context, jobID string, err *models.ValidationError) error {
	query := `INSERT INTO job_errors (job_id, line_number, field, message, value) VALUES ($1, $2, $3, $4, $5)`
	_, dbErr := r.db.ExecContext(ctx, query, jobID, err.Line, err.Field, err.Message, errorValue(err.Value))
	return dbErr
}

// AddErrors stores validation errors through the COPY protocol
func (r *jobRepo) AddErrors(ctx context.Context, jobID string, errors []models.ValidationError) error {
	if len(errors) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("job_errors",
			"job_id", "line_number", "field", "message", "value",
		))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range errors {
			if _, err := stmt.ExecContext(ctx, jobID, e.Line, e.Field, e.Message, errorValue(e.Value)); err != nil {
				return fmt.Errorf("failed to buffer job error: %w", err)
			}
		}

		// Flush the COPY buffer
		_, err = stmt.ExecContext(ctx)
		return err
	})
}

// GetErrors retrieves validation errors for a job; limit <= 0 means all
func (r *jobRepo) GetErrors(ctx context.Context, jobID string, limit int) ([]models.ValidationError, error) {
	query := `SELECT line_number, field, message, value FROM job_errors WHERE job_id = $1 ORDER BY line_number, id`
	args := []interface{}{jobID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errors []models.ValidationError
	for rows.Next() {
		var e models.ValidationError
		var value sql.NullString
		if err := rows.Scan(&e.Line, &e.Field, &e.Message, &value); err != nil {
			return nil, err
		}
		if value.Valid && value.String != "" {
			e.Value = value.String
		}
		errors = append(errors, e)
	}

	return errors, rows.Err()
}

func errorValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
