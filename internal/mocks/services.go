package mocks

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/restaurant-cms-api/internal/models"
	"github.com/restaurant-cms-api/internal/service"
)

// Verify interface compliance
var (
	_ service.PublishService = (*MockPublishService)(nil)
	_ service.ArticleService = (*MockArticleService)(nil)
	_ service.ImportService  = (*MockImportService)(nil)
	_ service.ExportService  = (*MockExportService)(nil)
	_ service.JobService     = (*MockJobService)(nil)
)

// MockPublishService records sweep calls and returns Result or Err
type MockPublishService struct {
	mu     sync.Mutex
	Result *models.PublishResult
	Err    error
	Calls  []time.Time
}

func NewMockPublishService() *MockPublishService {
	return &MockPublishService{}
}

func (m *MockPublishService) PublishDue(ctx context.Context, now time.Time) (*models.PublishResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, now)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &models.PublishResult{CheckedAt: now, PublishedIDs: []string{}}, nil
}

func (m *MockPublishService) StartScheduler(ctx context.Context) {}

func (m *MockPublishService) StopScheduler() {}

// CallCount returns how many sweeps were requested
func (m *MockPublishService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockArticleService is a function-field mock of ArticleService. Unset
// functions return zero values.
type MockArticleService struct {
	CreateFunc        func(ctx context.Context, input *models.ArticleInput) (*models.Article, error)
	UpdateFunc        func(ctx context.Context, id string, input *models.ArticleInput) (*models.Article, error)
	DeleteFunc        func(ctx context.Context, id string) error
	GetFunc           func(ctx context.Context, id string) (*models.Article, error)
	ListFunc          func(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error)
	GetPublishedFunc  func(ctx context.Context, slug string) (*models.Article, error)
	ListPublishedFunc func(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error)
	ListLabelsFunc    func(ctx context.Context, kind models.LabelKind) ([]models.Label, error)
	PreviewFunc       func(input *models.ArticleInput) models.TaxonomyPreview

	LastFilter models.ArticleFilter
}

func NewMockArticleService() *MockArticleService {
	return &MockArticleService{}
}

func (m *MockArticleService) Create(ctx context.Context, input *models.ArticleInput) (*models.Article, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, input)
	}
	return &models.Article{ID: "new-article", Title: input.Title, Status: models.StatusDraft}, nil
}

func (m *MockArticleService) Update(ctx context.Context, id string, input *models.ArticleInput) (*models.Article, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, input)
	}
	return &models.Article{ID: id, Title: input.Title}, nil
}

func (m *MockArticleService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockArticleService) Get(ctx context.Context, id string) (*models.Article, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, service.ErrNotFound
}

func (m *MockArticleService) List(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error) {
	m.LastFilter = filter
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return []*models.Article{}, nil
}

func (m *MockArticleService) GetPublished(ctx context.Context, slug string) (*models.Article, error) {
	if m.GetPublishedFunc != nil {
		return m.GetPublishedFunc(ctx, slug)
	}
	return nil, service.ErrNotFound
}

func (m *MockArticleService) ListPublished(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error) {
	m.LastFilter = filter
	if m.ListPublishedFunc != nil {
		return m.ListPublishedFunc(ctx, filter)
	}
	return []*models.Article{}, nil
}

func (m *MockArticleService) ListLabels(ctx context.Context, kind models.LabelKind) ([]models.Label, error) {
	if m.ListLabelsFunc != nil {
		return m.ListLabelsFunc(ctx, kind)
	}
	return []models.Label{}, nil
}

func (m *MockArticleService) PreviewTaxonomy(input *models.ArticleInput) models.TaxonomyPreview {
	if m.PreviewFunc != nil {
		return m.PreviewFunc(input)
	}
	return models.TaxonomyPreview{Categories: input.Categories, Tags: input.Tags}
}

// MockImportService is a mock implementation of ImportService
type MockImportService struct {
	CreateJobFunc func(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error)
	ProcessFunc   func(ctx context.Context, job *models.Job) error
	ProcessedJobs []*models.Job
	CreatedJobs   []*models.Job
}

func NewMockImportService() *MockImportService {
	return &MockImportService{
		ProcessedJobs: make([]*models.Job, 0),
		CreatedJobs:   make([]*models.Job, 0),
	}
}

func (m *MockImportService) CreateImportJob(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error) {
	if m.CreateJobFunc != nil {
		return m.CreateJobFunc(ctx, req, filePath)
	}
	job := &models.Job{
		ID:             "test-job-id",
		Resource:       req.Resource,
		Status:         models.JobStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		FilePath:       filePath,
	}
	m.CreatedJobs = append(m.CreatedJobs, job)
	return job, nil
}

func (m *MockImportService) ProcessImport(ctx context.Context, job *models.Job) error {
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, job)
	}
	m.ProcessedJobs = append(m.ProcessedJobs, job)
	job.Status = models.JobStatusCompleted
	return nil
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	StreamArticlesFunc func(ctx context.Context, w http.ResponseWriter, format string) error
	// Counts is keyed by status; "" holds the total
	Counts map[models.ArticleStatus]int
}

func NewMockExportService() *MockExportService {
	return &MockExportService{
		Counts: make(map[models.ArticleStatus]int),
	}
}

func (m *MockExportService) StreamArticles(ctx context.Context, w http.ResponseWriter, format string) error {
	if m.StreamArticlesFunc != nil {
		return m.StreamArticlesFunc(ctx, w, format)
	}
	return nil
}

func (m *MockExportService) GetCount(ctx context.Context, status models.ArticleStatus) (int, error) {
	return m.Counts[status], nil
}

// MockJobService is a mock implementation of JobService
type MockJobService struct {
	Jobs          map[string]*models.JobResponse
	Errors        map[string][]models.ValidationError
	ImportService service.ImportService
}

func NewMockJobService() *MockJobService {
	return &MockJobService{
		Jobs:   make(map[string]*models.JobResponse),
		Errors: make(map[string][]models.ValidationError),
	}
}

func (m *MockJobService) StartProcessor(ctx context.Context) {}

func (m *MockJobService) StopProcessor() {}

func (m *MockJobService) GetJob(ctx context.Context, id string) (*models.JobResponse, error) {
	return m.Jobs[id], nil
}

func (m *MockJobService) GetJobByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	for _, job := range m.Jobs {
		if job.IdempotencyKey == key {
			return &job.Job, nil
		}
	}
	return nil, nil
}

func (m *MockJobService) GetJobErrors(ctx context.Context, id string) ([]models.ValidationError, error) {
	return m.Errors[id], nil
}

func (m *MockJobService) SetImportService(importService service.ImportService) {
	m.ImportService = importService
}
