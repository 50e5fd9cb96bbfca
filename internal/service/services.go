package service

import (
	"context"
	"net/http"
	"time"

	"github.com/restaurant-cms-api/internal/cache"
	"github.com/restaurant-cms-api/internal/config"
	"github.com/restaurant-cms-api/internal/metrics"
	"github.com/restaurant-cms-api/internal/models"
	"github.com/restaurant-cms-api/internal/repository"
	"github.com/restaurant-cms-api/internal/taxonomy"
	"github.com/rs/zerolog"
)

// PublishService promotes due scheduled articles to PUBLISHED
type PublishService interface {
	// PublishDue runs one sweep. A zero now means the service clock.
	PublishDue(ctx context.Context, now time.Time) (*models.PublishResult, error)
	StartScheduler(ctx context.Context)
	StopScheduler()
}

// ArticleService defines admin and public article operations
type ArticleService interface {
	Create(ctx context.Context, input *models.ArticleInput) (*models.Article, error)
	Update(ctx context.Context, id string, input *models.ArticleInput) (*models.Article, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Article, error)
	List(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error)

	GetPublished(ctx context.Context, slug string) (*models.Article, error)
	ListPublished(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error)
	ListLabels(ctx context.Context, kind models.LabelKind) ([]models.Label, error)

	PreviewTaxonomy(input *models.ArticleInput) models.TaxonomyPreview
}

// ImportService defines the interface for import operations
type ImportService interface {
	CreateImportJob(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error)
	ProcessImport(ctx context.Context, job *models.Job) error
}

// ExportService defines the interface for export operations
type ExportService interface {
	StreamArticles(ctx context.Context, w http.ResponseWriter, format string) error
	// GetCount counts articles with status, or all articles for ""
	GetCount(ctx context.Context, status models.ArticleStatus) (int, error)
}

// JobService defines the interface for job management
type JobService interface {
	StartProcessor(ctx context.Context)
	StopProcessor()
	GetJob(ctx context.Context, id string) (*models.JobResponse, error)
	GetJobByIdempotencyKey(ctx context.Context, key string) (*models.Job, error)
	GetJobErrors(ctx context.Context, id string) ([]models.ValidationError, error)
	SetImportService(importService ImportService)
}

// Services holds all service interfaces
type Services struct {
	Publish PublishService
	Article ArticleService
	Import  ImportService
	Export  ExportService
	Job     JobService
}

// Deps bundles the shared infrastructure services are built on. Cache,
// Metrics and Clock may be nil; Inferrer defaults to the built-in rules.
type Deps struct {
	Cache    *cache.ListingCache
	Metrics  *metrics.Metrics
	Inferrer *taxonomy.Inferrer
	Clock    func() time.Time
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, deps Deps, cfg *config.Config, log zerolog.Logger) *Services {
	if deps.Inferrer == nil {
		deps.Inferrer = taxonomy.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	labels := labelResolver{inferrer: deps.Inferrer, metrics: deps.Metrics}

	publishSvc := NewPublishService(repos.Article, deps.Cache, deps.Metrics, cfg.Publish, log, WithClock(deps.Clock))
	articleSvc := newArticleService(repos, publishSvc, labels, deps.Cache, deps.Clock, log)
	jobSvc := newJobService(repos.Job, cfg.Import.Workers, log)
	importSvc := newImportService(repos, jobSvc, labels, deps.Cache, cfg, log)
	exportSvc := newExportService(repos, log)

	// Wire up job processor to import service
	jobSvc.SetImportService(importSvc)

	return &Services{
		Publish: publishSvc,
		Article: articleSvc,
		Import:  importSvc,
		Export:  exportSvc,
		Job:     jobSvc,
	}
}
