package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/restaurant-cms-api/internal/cache"
	"github.com/restaurant-cms-api/internal/models"
	"github.com/restaurant-cms-api/internal/repository"
	"github.com/restaurant-cms-api/internal/taxonomy"
	"github.com/restaurant-cms-api/internal/validation"
	"github.com/rs/zerolog"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// maxSlugAttempts bounds the -2, -3, ... suffix search for derived slugs
	maxSlugAttempts = 50
)

// articleService is the concrete implementation of ArticleService
type articleService struct {
	repos     *repository.Repositories
	publisher PublishService
	labels    labelResolver
	cache     *cache.ListingCache
	now       func() time.Time
	log       zerolog.Logger
}

func newArticleService(
	repos *repository.Repositories,
	publisher PublishService,
	labels labelResolver,
	cache *cache.ListingCache,
	now func() time.Time,
	log zerolog.Logger,
) *articleService {
	return &articleService{
		repos:     repos,
		publisher: publisher,
		labels:    labels,
		cache:     cache,
		now:       now,
		log:       log.With().Str("service", "article").Logger(),
	}
}

// Create validates input, fills missing labels by inference and stores a new
// article
func (s *articleService) Create(ctx context.Context, input *models.ArticleInput) (*models.Article, error) {
	if errs := validation.NewValidator().ValidateInput(input); len(errs) > 0 {
		return nil, &ValidationErrors{Errors: errs}
	}

	now := s.now()
	article := &models.Article{
		ID:        uuid.New().String(),
		CreatedAt: now,
	}

	slug, err := s.resolveSlug(ctx, input.Slug, input.Title, article.ID, "")
	if err != nil {
		return nil, err
	}
	article.Slug = slug

	s.apply(article, input, now)

	if err := s.repos.Article.Create(ctx, article); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("failed to create article: %w", err)
	}

	s.invalidate(ctx)
	s.log.Info().
		Str("article_id", article.ID).
		Str("slug", article.Slug).
		Str("status", string(article.Status)).
		Msg("Article created")
	return article, nil
}

// Update replaces an article's editable fields. An empty slug keeps the
// current one.
func (s *articleService) Update(ctx context.Context, id string, input *models.ArticleInput) (*models.Article, error) {
	if errs := validation.NewValidator().ValidateInput(input); len(errs) > 0 {
		return nil, &ValidationErrors{Errors: errs}
	}

	existing, err := s.repos.Article.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	in := *input
	input = &in

	article := existing.Clone()
	if input.Slug != "" && input.Slug != existing.Slug {
		slug, err := s.resolveSlug(ctx, input.Slug, input.Title, id, id)
		if err != nil {
			return nil, err
		}
		article.Slug = slug
	}

	// Keep the original publish date when a published article is re-saved
	// without one.
	if input.PublishedAt == nil && existing.PublishedAt != nil {
		if status, _ := models.ParseStatus(input.Status); status == models.StatusPublished {
			kept := *existing.PublishedAt
			input.PublishedAt = &kept
		}
	}

	s.apply(article, input, s.now())

	if err := s.repos.Article.Update(ctx, article); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repository.ErrDuplicateSlug):
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("failed to update article: %w", err)
	}

	s.invalidate(ctx)
	s.log.Info().Str("article_id", article.ID).Str("status", string(article.Status)).Msg("Article updated")
	return article, nil
}

// apply copies input onto article, applies the status rules and resolves
// labels
func (s *articleService) apply(article *models.Article, input *models.ArticleInput, now time.Time) {
	status := models.StatusDraft
	if input.Status != "" {
		status, _ = models.ParseStatus(input.Status)
	}

	article.Title = strings.TrimSpace(input.Title)
	article.Excerpt = strings.TrimSpace(input.Excerpt)
	article.Body = input.Body
	article.CoverImageURL = strings.TrimSpace(input.CoverImageURL)
	article.SEOTitle = strings.TrimSpace(input.SEOTitle)
	article.SEODescription = strings.TrimSpace(input.SEODescription)
	article.Status = status
	article.PublishedAt = utcPtr(input.PublishedAt)
	article.ScheduledAt = utcPtr(input.ScheduledAt)
	article.UpdatedAt = now
	applyStatusRules(article, now)

	article.Categories, article.Tags = s.labels.labels(
		article.Title, article.Excerpt, article.Body, input.Categories, input.Tags,
	)
}

// resolveSlug returns the slug to store. An explicit slug must be free; a
// slug derived from the title gets a numeric suffix until it is.
func (s *articleService) resolveSlug(ctx context.Context, explicit, title, id, excludeID string) (string, error) {
	if explicit != "" {
		taken, err := s.repos.Article.SlugExists(ctx, explicit, excludeID)
		if err != nil {
			return "", err
		}
		if taken {
			return "", ErrSlugTaken
		}
		return explicit, nil
	}

	base := taxonomy.Slugify(title)
	if base == "" {
		base = "artikel-" + id[:8]
	}
	if len(base) > validation.MaxSlugLength-4 {
		base = strings.TrimRight(base[:validation.MaxSlugLength-4], "-")
	}

	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		taken, err := s.repos.Article.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return base + "-" + id[:8], nil
}

// Delete removes an article
func (s *articleService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repos.Article.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	s.invalidate(ctx)
	s.log.Info().Str("article_id", id).Msg("Article deleted")
	return nil
}

// Get returns any article by id, whatever its status
func (s *articleService) Get(ctx context.Context, id string) (*models.Article, error) {
	article, err := s.repos.Article.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, ErrNotFound
	}
	return article, nil
}

// List returns articles for the admin overview
func (s *articleService) List(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error) {
	filter.Limit = ClampLimit(filter.Limit)
	return s.repos.Article.List(ctx, filter)
}

// GetPublished returns a published article by slug. Drafts and scheduled
// articles are reported as not found.
func (s *articleService) GetPublished(ctx context.Context, slug string) (*models.Article, error) {
	s.sweep(ctx)

	if article, ok := s.cache.GetArticle(ctx, slug); ok {
		return article, nil
	}

	article, err := s.repos.Article.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if article == nil || !article.IsPublished() {
		return nil, ErrNotFound
	}

	s.cache.SetArticle(ctx, article)
	return article, nil
}

// ListPublished returns a page of published articles, newest first
func (s *articleService) ListPublished(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error) {
	s.sweep(ctx)

	filter.Status = models.StatusPublished
	filter.Limit = ClampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	if articles, ok := s.cache.GetArticles(ctx, filter); ok {
		return articles, nil
	}

	articles, err := s.repos.Article.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if articles == nil {
		articles = []*models.Article{}
	}

	s.cache.SetArticles(ctx, filter, articles)
	return articles, nil
}

// ListLabels returns categories or tags that have published articles
func (s *articleService) ListLabels(ctx context.Context, kind models.LabelKind) ([]models.Label, error) {
	s.sweep(ctx)

	labels, err := s.repos.Label.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	if labels == nil {
		labels = []models.Label{}
	}
	return labels, nil
}

// PreviewTaxonomy shows which labels a payload would be saved with
func (s *articleService) PreviewTaxonomy(input *models.ArticleInput) models.TaxonomyPreview {
	return s.labels.resolve(input.Title, input.Excerpt, input.Body, input.Categories, input.Tags)
}

// sweep publishes due articles before a public read. Failures must not
// break the read, so they are only logged.
func (s *articleService) sweep(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PublishDue(ctx, time.Time{}); err != nil {
		s.log.Warn().Err(err).Msg("Opportunistic publish sweep failed")
	}
}

func (s *articleService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate listing cache")
	}
}

// applyStatusRules stamps a PUBLISHED article without a date with now and
// clears the schedule of anything that is not SCHEDULED
func applyStatusRules(article *models.Article, now time.Time) {
	switch article.Status {
	case models.StatusPublished:
		if article.PublishedAt == nil {
			published := now
			article.PublishedAt = &published
		}
		article.ScheduledAt = nil
	case models.StatusDraft:
		article.ScheduledAt = nil
	}
}

// ClampLimit returns the page size a listing applies: DefaultPageSize when
// unset, at most MaxPageSize
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
