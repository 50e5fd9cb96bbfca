package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/restaurant-cms-api/internal/cache"
	"github.com/restaurant-cms-api/internal/config"
	"github.com/restaurant-cms-api/internal/models"
	"github.com/restaurant-cms-api/internal/repository"
	"github.com/restaurant-cms-api/internal/validation"
	"github.com/rs/zerolog"
)

// errorFlushThreshold bounds how many validation errors are held in memory
// before they are written to the job's error log
const errorFlushThreshold = 1000

// maxLineSize is the longest NDJSON line accepted; article bodies can be long
const maxLineSize = 4 * 1024 * 1024

// importService is the concrete implementation of ImportService
type importService struct {
	repos      *repository.Repositories
	jobService JobService
	labels     labelResolver
	cache      *cache.ListingCache
	cfg        *config.Config
	log        zerolog.Logger
}

// newImportService creates a new ImportService
func newImportService(
	repos *repository.Repositories,
	jobService JobService,
	labels labelResolver,
	cache *cache.ListingCache,
	cfg *config.Config,
	log zerolog.Logger,
) *importService {
	return &importService{
		repos:      repos,
		jobService: jobService,
		labels:     labels,
		cache:      cache,
		cfg:        cfg,
		log:        log.With().Str("service", "import").Logger(),
	}
}

// CreateImportJob creates a new pending import job for an uploaded file.
// When another request created a job with the same idempotency key first,
// that job is returned instead.
func (s *importService) CreateImportJob(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error) {
	job := &models.Job{
		ID:             uuid.New().String(),
		Resource:       req.Resource,
		Status:         models.JobStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		FilePath:       filePath,
		CreatedAt:      time.Now(),
	}

	err := s.repos.Job.Create(ctx, job)
	if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
		existing, getErr := s.repos.Job.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if getErr != nil {
			return nil, getErr
		}
		if existing != nil {
			s.log.Info().Str("job_id", existing.ID).Msg("Idempotency key already used, returning existing job")
			if rmErr := os.Remove(filePath); rmErr != nil && !os.IsNotExist(rmErr) {
				s.log.Warn().Err(rmErr).Str("file", filePath).Msg("Failed to remove duplicate upload")
			}
			return existing, nil
		}
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("resource", job.Resource).
		Str("file", filePath).
		Msg("Import job created")

	return job, nil
}

// ProcessImport runs an import job to completion and records its counters
func (s *importService) ProcessImport(ctx context.Context, job *models.Job) error {
	startTime := time.Now()
	job.Status = models.JobStatusProcessing
	job.StartedAt = &startTime
	if err := s.repos.Job.Update(ctx, job); err != nil {
		s.log.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to mark job as processing")
	}

	s.log.Info().Str("job_id", job.ID).Str("resource", job.Resource).Msg("Starting import processing")

	var err error
	if job.Resource == models.ResourceArticles {
		err = s.processArticlesNDJSON(ctx, job)
	} else {
		err = fmt.Errorf("unknown resource type: %s", job.Resource)
	}

	if err != nil {
		job.Finish(models.JobStatusFailed, time.Now())
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Import failed")
	} else {
		job.Finish(models.JobStatusCompleted, time.Now())
		s.log.Info().
			Str("job_id", job.ID).
			Int("total", job.TotalRecords).
			Int("successful", job.SuccessfulCount).
			Int("skipped", job.SkippedCount).
			Int("failed", job.FailedCount).
			Int64("duration_ms", job.DurationMs).
			Float64("rows_per_sec", job.RowsPerSec).
			Msg("Import completed")
	}

	if job.SuccessfulCount > 0 {
		if cacheErr := s.cache.Invalidate(ctx); cacheErr != nil {
			s.log.Warn().Err(cacheErr).Msg("Failed to invalidate listing cache after import")
		}
	}

	if updateErr := s.repos.Job.Update(ctx, job); updateErr != nil {
		s.log.Error().Err(updateErr).Str("job_id", job.ID).Msg("Failed to store job result")
	}

	return err
}

// importBatch accumulates valid articles and writes them in batches
type importBatch struct {
	s        *importService
	job      *models.Job
	articles []*models.Article
	size     int
}

func (b *importBatch) add(ctx context.Context, article *models.Article) {
	b.articles = append(b.articles, article)
	if len(b.articles) >= b.size {
		b.flush(ctx)
	}
}

// flush inserts the pending articles. Rows whose id or slug already exist
// in the store are left untouched and counted as skipped.
func (b *importBatch) flush(ctx context.Context) {
	if len(b.articles) == 0 {
		return
	}

	inserted, err := b.s.repos.Article.BatchInsert(ctx, b.articles)
	if err != nil {
		b.s.log.Error().Err(err).Int("batch_size", len(b.articles)).Msg("Batch insert failed")
		b.job.FailedCount += len(b.articles)
	} else {
		b.job.SuccessfulCount += inserted
		b.job.SkippedCount += len(b.articles) - inserted
	}
	b.job.ProcessedCount += len(b.articles)
	b.articles = b.articles[:0]

	b.s.log.Debug().
		Str("job_id", b.job.ID).
		Int("processed", b.job.ProcessedCount).
		Float64("rows_per_sec", float64(b.job.ProcessedCount)/time.Since(*b.job.StartedAt).Seconds()).
		Msg("Batch processed")
}

// processArticlesNDJSON imports one article per line. Invalid lines are
// recorded as job errors and do not stop the import.
func (s *importService) processArticlesNDJSON(ctx context.Context, job *models.Job) error {
	file, err := os.Open(job.FilePath)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	validator := validation.NewValidator()
	batch := &importBatch{s: s, job: job, size: s.batchSize()}

	var validationErrors []models.ValidationError
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		job.TotalRecords++

		if lineNum%10000 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		var record models.ArticleNDJSON
		if err := json.Unmarshal(line, &record); err != nil {
			job.FailedCount++
			job.ProcessedCount++
			validationErrors = append(validationErrors, models.ValidationError{
				Line:    lineNum,
				Field:   "json",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			s.maybeFlushErrors(ctx, job.ID, &validationErrors)
			continue
		}

		if errs := validator.ValidateArticle(&record, lineNum); len(errs) > 0 {
			job.FailedCount++
			job.ProcessedCount++
			validationErrors = append(validationErrors, errs...)
			s.maybeFlushErrors(ctx, job.ID, &validationErrors)
			continue
		}

		validator.AddArticleSlug(record.Slug)
		if record.ID != "" {
			validator.AddArticleID(record.ID)
		}
		batch.add(ctx, s.toArticle(&record))
	}

	batch.flush(ctx)

	if len(validationErrors) > 0 {
		if err := s.repos.Job.AddErrors(ctx, job.ID, validationErrors); err != nil {
			s.log.Error().Err(err).Int("count", len(validationErrors)).Msg("Failed to store validation errors")
		}
	}

	return scanner.Err()
}

func (s *importService) batchSize() int {
	if s.cfg == nil || s.cfg.Import.BatchSize <= 0 {
		return 500
	}
	return s.cfg.Import.BatchSize
}

func (s *importService) maybeFlushErrors(ctx context.Context, jobID string, pending *[]models.ValidationError) {
	if len(*pending) < errorFlushThreshold {
		return
	}
	if err := s.repos.Job.AddErrors(ctx, jobID, *pending); err != nil {
		s.log.Error().Err(err).Int("count", len(*pending)).Msg("Failed to flush validation errors")
	}
	*pending = (*pending)[:0]
}

// toArticle converts a validated import line with the same status rules as
// the admin API
func (s *importService) toArticle(record *models.ArticleNDJSON) *models.Article {
	now := time.Now().UTC()

	status := models.StatusDraft
	if record.Status != "" {
		status, _ = models.ParseStatus(record.Status)
	}

	id := record.ID
	if id == "" {
		id = uuid.New().String()
	}

	publishedAt, _ := validation.ParseTimestamp(record.PublishedAt)
	scheduledAt, _ := validation.ParseTimestamp(record.ScheduledAt)

	article := &models.Article{
		ID:             strings.ToLower(id),
		Slug:           record.Slug,
		Title:          strings.TrimSpace(record.Title),
		Excerpt:        strings.TrimSpace(record.Excerpt),
		Body:           record.Body,
		CoverImageURL:  record.CoverImageURL,
		SEOTitle:       record.SEOTitle,
		SEODescription: record.SEODescription,
		Status:         status,
		PublishedAt:    utcPtr(publishedAt),
		ScheduledAt:    utcPtr(scheduledAt),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	applyStatusRules(article, now)

	article.Categories, article.Tags = s.labels.labels(
		article.Title, article.Excerpt, article.Body, record.Categories, record.Tags,
	)
	return article
}
