package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/restaurant-cms-api/internal/cache"
	"github.com/restaurant-cms-api/internal/config"
	"github.com/restaurant-cms-api/internal/metrics"
	"github.com/restaurant-cms-api/internal/models"
	"github.com/restaurant-cms-api/internal/repository"
	"github.com/rs/zerolog"
)

// DefaultPublishBatchSize caps how many articles one sweep publishes
const DefaultPublishBatchSize = 200

// PublishOption configures a publish service
type PublishOption func(*publishService)

// WithClock replaces the wall clock used when PublishDue gets a zero time
func WithClock(now func() time.Time) PublishOption {
	return func(s *publishService) {
		if now != nil {
			s.now = now
		}
	}
}

// publishService is the concrete implementation of PublishService
type publishService struct {
	articles  repository.ArticleRepository
	cache     *cache.ListingCache
	metrics   *metrics.Metrics
	batchSize int
	interval  time.Duration
	now       func() time.Time
	log       zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	mu      sync.Mutex
}

// NewPublishService creates the sweep over articles. cache and m may be nil.
func NewPublishService(
	articles repository.ArticleRepository,
	cache *cache.ListingCache,
	m *metrics.Metrics,
	cfg config.PublishConfig,
	log zerolog.Logger,
	opts ...PublishOption,
) PublishService {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultPublishBatchSize
	}

	s := &publishService{
		articles:  articles,
		cache:     cache,
		metrics:   m,
		batchSize: batchSize,
		interval:  cfg.Interval,
		now:       time.Now,
		log:       log.With().Str("service", "publish").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PublishDue selects up to batchSize due articles and publishes them in one
// transaction. Either every selected article is published or none is.
func (s *publishService) PublishDue(ctx context.Context, now time.Time) (*models.PublishResult, error) {
	if now.IsZero() {
		now = s.now()
	}
	started := time.Now()

	result := &models.PublishResult{CheckedAt: now, PublishedIDs: []string{}}
	err := s.articles.WithTransaction(ctx, func(tx repository.ArticleRepository) error {
		due, err := tx.FindDue(ctx, now, s.batchSize)
		if err != nil {
			return fmt.Errorf("failed to select due articles: %w", err)
		}
		if len(due) == 0 {
			return nil
		}

		updates := make([]models.PublishUpdate, len(due))
		ids := make([]string, len(due))
		for i, d := range due {
			updates[i] = models.PublishUpdate{ID: d.ID, PublishedAt: publishTime(d, now)}
			ids[i] = d.ID
		}

		published, err := tx.PublishBatch(ctx, updates, now)
		if err != nil {
			return err
		}

		result.DueCount = len(due)
		result.PublishedCount = published
		result.PublishedIDs = ids
		return nil
	})

	s.metrics.RecordSweep(result.PublishedCount, err, time.Since(started))

	if err != nil {
		s.log.Error().Err(err).Time("now", now).Msg("Publish sweep failed")
		return nil, err
	}

	if result.PublishedCount > 0 {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Failed to invalidate listing cache after publish")
		}
		s.log.Info().
			Int("due", result.DueCount).
			Int("published", result.PublishedCount).
			Strs("article_ids", result.PublishedIDs).
			Msg("Scheduled articles published")
	}

	return result, nil
}

// publishTime keeps an existing publish date and otherwise uses the
// scheduled time, so a backlog published late still shows when it was due.
func publishTime(d models.DueArticle, now time.Time) time.Time {
	switch {
	case d.PublishedAt != nil:
		return *d.PublishedAt
	case d.ScheduledAt != nil:
		return *d.ScheduledAt
	default:
		return now
	}
}

// StartScheduler runs a sweep every interval until ctx is cancelled or
// StopScheduler is called. It blocks; run it in its own goroutine.
func (s *publishService) StartScheduler(ctx context.Context) {
	s.mu.Lock()
	if s.running || s.interval <= 0 {
		s.mu.Unlock()
		if s.interval <= 0 {
			s.log.Info().Msg("Publish scheduler disabled")
		}
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	defer close(s.done)

	s.log.Info().Dur("interval", s.interval).Int("batch_size", s.batchSize).Msg("Publish scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("Publish scheduler stopping")
			return
		case <-ticker.C:
			// Errors are logged inside PublishDue; the next tick retries.
			s.PublishDue(s.ctx, time.Time{})
		}
	}
}

// StopScheduler stops the background sweep and waits for a running sweep
// to finish
func (s *publishService) StopScheduler() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	<-s.done
	s.running = false
	s.log.Info().Msg("Publish scheduler stopped")
}
