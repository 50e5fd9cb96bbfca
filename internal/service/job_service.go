package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/restaurant-cms-api/internal/models"
	"github.com/restaurant-cms-api/internal/repository"
	"github.com/rs/zerolog"
)

const (
	jobPollInterval = 2 * time.Second

	// jobErrorPreview is how many errors GetJob inlines in its response
	jobErrorPreview = 100

	minImportWorkers = 4
	maxImportWorkers = 32
)

// importWorkers returns the configured pool size, or one derived from the
// CPU count. Imports spend most of their time waiting on postgres.
func importWorkers(configured int) int {
	if configured > 0 {
		return configured
	}
	n := runtime.NumCPU() * 4
	if n < minImportWorkers {
		return minImportWorkers
	}
	if n > maxImportWorkers {
		return maxImportWorkers
	}
	return n
}

// workerPool runs at most cap(slots) functions at once
type workerPool struct {
	slots chan struct{}
	wg    sync.WaitGroup
}

func newWorkerPool(size int) *workerPool {
	return &workerPool{slots: make(chan struct{}, size)}
}

// acquire blocks for a free slot and reports false if ctx ends first
func (p *workerPool) acquire(ctx context.Context) bool {
	select {
	case p.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *workerPool) release() { <-p.slots }

// run executes fn on its own goroutine in an acquired slot
func (p *workerPool) run(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.release()
		fn()
	}()
}

func (p *workerPool) wait() { p.wg.Wait() }

// jobService claims pending import jobs and runs them on a worker pool
type jobService struct {
	jobs    repository.JobRepository
	imports ImportService
	pool    *workerPool
	log     zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newJobService(jobs repository.JobRepository, workers int, log zerolog.Logger) *jobService {
	size := importWorkers(workers)
	log = log.With().Str("service", "job").Logger()
	log.Info().Int("workers", size).Msg("Import worker pool ready")

	return &jobService{
		jobs: jobs,
		pool: newWorkerPool(size),
		log:  log,
	}
}

// SetImportService sets the service that runs claimed jobs
func (s *jobService) SetImportService(importService ImportService) {
	s.imports = importService
}

// StartProcessor polls for pending import jobs until ctx is cancelled or
// StopProcessor is called. It blocks; run it in its own goroutine.
func (s *jobService) StartProcessor(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	defer close(s.done)

	s.log.Info().Dur("poll_interval", jobPollInterval).Msg("Job processor started")

	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Job processor stopping")
			return
		case <-ticker.C:
			s.claimPending(ctx)
		}
	}
}

// StopProcessor stops polling and waits for running imports to return
func (s *jobService) StopProcessor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done
	s.pool.wait()
	s.cancel = nil
	s.log.Info().Msg("Job processor stopped")
}

// claimPending hands every pending job this instance can claim to the pool
func (s *jobService) claimPending(ctx context.Context) {
	pending, err := s.jobs.GetPendingJobs(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get pending jobs")
		return
	}

	for _, job := range pending {
		if !s.pool.acquire(ctx) {
			return
		}

		claimed, err := s.jobs.MarkJobAsProcessing(ctx, job.ID)
		if err != nil || !claimed {
			// another instance got there first
			s.pool.release()
			continue
		}

		job := job
		s.pool.run(func() { s.runImport(ctx, job) })
	}
}

// runImport processes one claimed job. A panic fails the job instead of
// the process.
func (s *jobService) runImport(ctx context.Context, job *models.Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("job_id", job.ID).Msg("Import panicked")
			job.Finish(models.JobStatusFailed, time.Now())
			if err := s.jobs.Update(context.Background(), job); err != nil {
				s.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to store failed job")
			}
		}
	}()

	if s.imports == nil {
		s.log.Error().Str("job_id", job.ID).Msg("No import service configured")
		return
	}

	s.log.Info().Str("job_id", job.ID).Msg("Processing import job")
	if err := s.imports.ProcessImport(ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Import processing failed")
	}
}

// GetJob returns a job with the first validation errors inlined, or nil if
// there is no such job
func (s *jobService) GetJob(ctx context.Context, id string) (*models.JobResponse, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}

	response := &models.JobResponse{Job: *job, ErrorCount: job.FailedCount}
	if job.FailedCount == 0 {
		return response, nil
	}

	response.Errors, err = s.jobs.GetErrors(ctx, id, jobErrorPreview)
	if err != nil {
		s.log.Error().Err(err).Str("job_id", id).Msg("Failed to get job errors")
	}
	response.ErrorReport = "/v1/admin/imports/" + job.ID + "/errors"
	return response, nil
}

// GetJobByIdempotencyKey returns the job created with key, or nil
func (s *jobService) GetJobByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	return s.jobs.GetByIdempotencyKey(ctx, key)
}

// GetJobErrors returns every validation error recorded for a job
func (s *jobService) GetJobErrors(ctx context.Context, id string) ([]models.ValidationError, error) {
	return s.jobs.GetErrors(ctx, id, 0)
}
