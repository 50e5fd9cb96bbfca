package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/restaurant-cms-api/internal/database"
	"github.com/restaurant-cms-api/internal/models"
)

var (
	// ErrNotFound is returned by writes that target a missing row
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateSlug is returned when a slug is already taken
	ErrDuplicateSlug = errors.New("slug already exists")
	// ErrDuplicateIdempotencyKey is returned when a job with the same
	// idempotency key was created first
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

// ArticleRepository defines the interface for article data operations
type ArticleRepository interface {
	// WithTransaction runs fn against a repository bound to one transaction.
	// fn's writes commit together or not at all. Nested calls reuse the
	// outer transaction.
	WithTransaction(ctx context.Context, fn func(tx ArticleRepository) error) error

	Create(ctx context.Context, article *models.Article) error
	Update(ctx context.Context, article *models.Article) error
	Delete(ctx context.Context, id string) (bool, error)
	BatchInsert(ctx context.Context, articles []*models.Article) (int, error)
	GetByID(ctx context.Context, id string) (*models.Article, error)
	GetBySlug(ctx context.Context, slug string) (*models.Article, error)
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
	List(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error)
	Count(ctx context.Context, status models.ArticleStatus) (int, error)
	StreamAll(ctx context.Context, callback func(*models.Article) error) error

	// FindDue returns scheduled articles whose due time is at or before now,
	// oldest due first, at most limit rows.
	FindDue(ctx context.Context, now time.Time, limit int) ([]models.DueArticle, error)
	// PublishBatch moves the given scheduled articles to PUBLISHED in one
	// statement and returns the number of rows changed.
	PublishBatch(ctx context.Context, updates []models.PublishUpdate, now time.Time) (int, error)
}

// LabelRepository defines read access to categories and tags
type LabelRepository interface {
	List(ctx context.Context, kind models.LabelKind) ([]models.Label, error)
}

// JobRepository defines the interface for job data operations
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Update(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error)
	GetPendingJobs(ctx context.Context) ([]*models.Job, error)
	MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error)
	AddError(ctx context.Context, jobID string, err *models.ValidationError) error
	AddErrors(ctx context.Context, jobID string, errors []models.ValidationError) error
	GetErrors(ctx context.Context, jobID string, limit int) ([]models.ValidationError, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Article ArticleRepository
	Label   LabelRepository
	Job     JobRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Article: NewArticleRepo(db),
		Label:   NewLabelRepo(db),
		Job:     NewJobRepo(db),
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// isUniqueViolation reports a postgres unique_violation (23505)
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// helper to convert empty string to NULL
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
