package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/restaurant-cms-api/internal/models"
	"github.com/restaurant-cms-api/internal/repository"
)

// Verify interface compliance
var (
	_ repository.ArticleRepository = (*MockArticleRepository)(nil)
	_ repository.LabelRepository   = (*MockLabelRepository)(nil)
	_ repository.JobRepository     = (*MockJobRepository)(nil)
)

// MockArticleRepository is an in-memory ArticleRepository. WithTransaction
// snapshots the article map and restores it when fn fails, so callers see
// the same all-or-nothing behaviour as the postgres implementation.
type MockArticleRepository struct {
	mu sync.Mutex

	Articles map[string]*models.Article

	// LabelNames holds display names by kind and slug. Every write upserts
	// into it, so the latest name for a slug wins.
	LabelNames map[models.LabelKind]map[string]string

	InsertError       error
	PublishBatchError error
	FindDueError      error
	BatchInsertFunc   func(ctx context.Context, articles []*models.Article) (int, error)

	BatchInsertCalls  int
	FindDueCalls      int
	PublishBatchCalls int
	TxCalls           int
	Rollbacks         int

	inTx bool
}

func NewMockArticleRepository() *MockArticleRepository {
	return &MockArticleRepository{
		Articles:   make(map[string]*models.Article),
		LabelNames: map[models.LabelKind]map[string]string{
			models.LabelCategory: {},
			models.LabelTag:      {},
		},
	}
}

// Seed stores copies of the given articles
func (m *MockArticleRepository) Seed(articles ...*models.Article) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range articles {
		m.Articles[a.ID] = a.Clone()
		m.upsertLabels(a)
	}
}

// LabelName returns the stored display name for a label slug
func (m *MockArticleRepository) LabelName(kind models.LabelKind, slug string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.LabelNames[kind][slug]
	return name, ok
}

// upsertLabels records the article's label names. Callers hold mu.
func (m *MockArticleRepository) upsertLabels(a *models.Article) {
	for _, l := range a.Categories {
		m.LabelNames[models.LabelCategory][l.Slug] = l.Name
	}
	for _, l := range a.Tags {
		m.LabelNames[models.LabelTag][l.Slug] = l.Name
	}
}

func (m *MockArticleRepository) copyLabelNames() map[models.LabelKind]map[string]string {
	out := make(map[models.LabelKind]map[string]string, len(m.LabelNames))
	for kind, names := range m.LabelNames {
		c := make(map[string]string, len(names))
		for slug, name := range names {
			c[slug] = name
		}
		out[kind] = c
	}
	return out
}

// Get returns a copy of the stored article, or nil
func (m *MockArticleRepository) Get(id string) *models.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.Articles[id]; ok {
		return a.Clone()
	}
	return nil
}

func (m *MockArticleRepository) WithTransaction(ctx context.Context, fn func(tx repository.ArticleRepository) error) error {
	m.mu.Lock()
	if m.inTx {
		m.mu.Unlock()
		return fn(m)
	}
	m.TxCalls++
	m.inTx = true
	snapshot := make(map[string]*models.Article, len(m.Articles))
	for id, a := range m.Articles {
		snapshot[id] = a.Clone()
	}
	labelSnapshot := m.copyLabelNames()
	m.mu.Unlock()

	err := fn(m)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inTx = false
	if err != nil {
		m.Articles = snapshot
		m.LabelNames = labelSnapshot
		m.Rollbacks++
	}
	return err
}

func (m *MockArticleRepository) Create(ctx context.Context, article *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	if _, exists := m.Articles[article.ID]; exists {
		return repository.ErrDuplicateSlug
	}
	if m.slugTaken(article.Slug, "") {
		return repository.ErrDuplicateSlug
	}
	m.Articles[article.ID] = article.Clone()
	m.upsertLabels(article)
	return nil
}

func (m *MockArticleRepository) Update(ctx context.Context, article *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Articles[article.ID]; !exists {
		return repository.ErrNotFound
	}
	if m.slugTaken(article.Slug, article.ID) {
		return repository.ErrDuplicateSlug
	}
	m.Articles[article.ID] = article.Clone()
	m.upsertLabels(article)
	return nil
}

func (m *MockArticleRepository) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Articles[id]; !exists {
		return false, nil
	}
	delete(m.Articles, id)
	return true, nil
}

func (m *MockArticleRepository) BatchInsert(ctx context.Context, articles []*models.Article) (int, error) {
	m.mu.Lock()
	m.BatchInsertCalls++
	fn := m.BatchInsertFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, articles)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return 0, m.InsertError
	}
	inserted := 0
	for _, a := range articles {
		if _, exists := m.Articles[a.ID]; exists || m.slugTaken(a.Slug, "") {
			continue
		}
		m.Articles[a.ID] = a.Clone()
		m.upsertLabels(a)
		inserted++
	}
	return inserted, nil
}

func (m *MockArticleRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	return m.Get(id), nil
}

func (m *MockArticleRepository) GetBySlug(ctx context.Context, slug string) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.Articles {
		if a.Slug == slug {
			return a.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MockArticleRepository) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slugTaken(slug, excludeID), nil
}

func (m *MockArticleRepository) slugTaken(slug, excludeID string) bool {
	for id, a := range m.Articles {
		if a.Slug == slug && id != excludeID {
			return true
		}
	}
	return false
}

func (m *MockArticleRepository) List(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.Article
	for _, a := range m.Articles {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Category != "" && !hasLabel(a.Categories, filter.Category) {
			continue
		}
		if filter.Tag != "" && !hasLabel(a.Tags, filter.Tag) {
			continue
		}
		matched = append(matched, a.Clone())
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if filter.Status == models.StatusPublished {
			ta, tb := timeOrZero(a.PublishedAt), timeOrZero(b.PublishedAt)
			if !ta.Equal(tb) {
				return ta.After(tb)
			}
			return a.ID < b.ID
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *MockArticleRepository) Count(ctx context.Context, status models.ArticleStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == "" {
		return len(m.Articles), nil
	}
	count := 0
	for _, a := range m.Articles {
		if a.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *MockArticleRepository) StreamAll(ctx context.Context, callback func(*models.Article) error) error {
	m.mu.Lock()
	all := make([]*models.Article, 0, len(m.Articles))
	for _, a := range m.Articles {
		all = append(all, a.Clone())
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	for _, a := range all {
		if err := callback(a); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockArticleRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]models.DueArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindDueCalls++
	if m.FindDueError != nil {
		return nil, m.FindDueError
	}

	var due []models.DueArticle
	for _, a := range m.Articles {
		if !a.IsDue(now) {
			continue
		}
		d := a.Clone()
		due = append(due, models.DueArticle{
			ID:          d.ID,
			PublishedAt: d.PublishedAt,
			ScheduledAt: d.ScheduledAt,
			CreatedAt:   d.CreatedAt,
		})
	}

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if c := compareNullable(a.ScheduledAt, b.ScheduledAt); c != 0 {
			return c < 0
		}
		if c := compareNullable(a.PublishedAt, b.PublishedAt); c != 0 {
			return c < 0
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// PublishBatch applies updates one by one and returns PublishBatchError
// after the writes, so a failing batch leaves partial state for
// WithTransaction to roll back.
func (m *MockArticleRepository) PublishBatch(ctx context.Context, updates []models.PublishUpdate, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishBatchCalls++

	changed := 0
	for _, u := range updates {
		a, ok := m.Articles[u.ID]
		if !ok || a.Status != models.StatusScheduled {
			continue
		}
		publishedAt := u.PublishedAt
		a.Status = models.StatusPublished
		a.PublishedAt = &publishedAt
		a.ScheduledAt = nil
		a.UpdatedAt = now
		changed++
	}
	if m.PublishBatchError != nil {
		return 0, m.PublishBatchError
	}
	return changed, nil
}

func hasLabel(labels []models.Label, slug string) bool {
	for _, l := range labels {
		if l.Slug == slug {
			return true
		}
	}
	return false
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// compareNullable orders times ascending with nil last, like NULLS LAST
func compareNullable(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.Before(*b):
		return -1
	case a.After(*b):
		return 1
	}
	return 0
}

// MockLabelRepository counts published articles per label and takes each
// label's name from the MockArticleRepository label store
type MockLabelRepository struct {
	Articles  *MockArticleRepository
	ListError error
}

func NewMockLabelRepository(articles *MockArticleRepository) *MockLabelRepository {
	return &MockLabelRepository{Articles: articles}
}

func (m *MockLabelRepository) List(ctx context.Context, kind models.LabelKind) ([]models.Label, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	published, err := m.Articles.List(ctx, models.ArticleFilter{Status: models.StatusPublished})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]*models.Label)
	for _, a := range published {
		labels := a.Categories
		if kind == models.LabelTag {
			labels = a.Tags
		}
		for _, l := range labels {
			if existing, ok := counts[l.Slug]; ok {
				existing.ArticleCount++
				continue
			}
			l.Kind = kind
			l.ArticleCount = 1
			if name, ok := m.Articles.LabelName(kind, l.Slug); ok {
				l.Name = name
			}
			counts[l.Slug] = &l
		}
	}

	labels := make([]models.Label, 0, len(counts))
	for _, l := range counts {
		labels = append(labels, *l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })
	return labels, nil
}

// MockJobRepository is a mock implementation of JobRepository
type MockJobRepository struct {
	mu              sync.Mutex
	Jobs            map[string]*models.Job
	IdempotencyJobs map[string]*models.Job
	Errors          map[string][]models.ValidationError
	CreateError     error
	UpdateError     error
}

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		Jobs:            make(map[string]*models.Job),
		IdempotencyJobs: make(map[string]*models.Job),
		Errors:          make(map[string][]models.ValidationError),
	}
}

func (m *MockJobRepository) Create(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	if _, taken := m.IdempotencyJobs[job.IdempotencyKey]; taken && job.IdempotencyKey != "" {
		return repository.ErrDuplicateIdempotencyKey
	}
	m.Jobs[job.ID] = job
	if job.IdempotencyKey != "" {
		m.IdempotencyJobs[job.IdempotencyKey] = job
	}
	return nil
}

func (m *MockJobRepository) Update(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.Jobs[job.ID] = job
	return nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Jobs[id], nil
}

func (m *MockJobRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.IdempotencyJobs[key], nil
}

func (m *MockJobRepository) GetPendingJobs(ctx context.Context) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*models.Job
	for _, job := range m.Jobs {
		if job.Status == models.JobStatusPending {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	return pending, nil
}

func (m *MockJobRepository) MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, exists := m.Jobs[jobID]
	if !exists || job.Status != models.JobStatusPending {
		return false, nil
	}
	job.Status = models.JobStatusProcessing
	return true, nil
}

func (m *MockJobRepository) AddError(ctx context.Context, jobID string, err *models.ValidationError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[jobID] = append(m.Errors[jobID], *err)
	return nil
}

func (m *MockJobRepository) AddErrors(ctx context.Context, jobID string, errors []models.ValidationError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[jobID] = append(m.Errors[jobID], errors...)
	return nil
}

func (m *MockJobRepository) GetErrors(ctx context.Context, jobID string, limit int) ([]models.ValidationError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	errors := m.Errors[jobID]
	if limit > 0 && len(errors) > limit {
		return errors[:limit], nil
	}
	return errors, nil
}
