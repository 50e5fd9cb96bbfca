package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/restaurant-cms-api/internal/database"
	"github.com/restaurant-cms-api/internal/models"
)

const articleColumns = `a.id, a.slug, a.title, a.excerpt, a.body, a.cover_image_url, a.seo_title,
	a.seo_description, a.status, a.published_at, a.scheduled_at, a.created_at, a.updated_at`

// streamPageSize bounds how many articles StreamAll holds in memory at once
const streamPageSize = 500

// articleRepo is the concrete implementation of ArticleRepository.
// tx is set when the repo is bound to a running transaction.
type articleRepo struct {
	db *database.DB
	tx *sql.Tx
}

// NewArticleRepo creates a new article repository
func NewArticleRepo(db *database.DB) ArticleRepository {
	return &articleRepo{db: db}
}

func (r *articleRepo) q() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// inTx runs fn on the current transaction, or opens one
func (r *articleRepo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.db.WithTx(ctx, fn)
}

// WithTransaction binds a copy of the repository to a single transaction
func (r *articleRepo) WithTransaction(ctx context.Context, fn func(tx ArticleRepository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&articleRepo{db: r.db, tx: tx})
	})
}

// Create inserts a new article together with its categories and tags
func (r *articleRepo) Create(ctx context.Context, article *models.Article) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := insertArticle(ctx, tx, article, false); err != nil {
			return err
		}
		return saveArticleLabels(ctx, tx, article)
	})
}

// Update overwrites an article's fields and replaces its labels
func (r *articleRepo) Update(ctx context.Context, article *models.Article) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE articles SET
				slug = $1, title = $2, excerpt = $3, body = $4, cover_image_url = $5, seo_title = $6,
				seo_description = $7, status = $8, published_at = $9, scheduled_at = $10, updated_at = $11
			WHERE id = $12
		`
		result, err := tx.ExecContext(ctx, query,
			article.Slug, article.Title, nullString(article.Excerpt), article.Body,
			nullString(article.CoverImageURL), nullString(article.SEOTitle), nullString(article.SEODescription),
			article.Status, nullTime(article.PublishedAt), nullTime(article.ScheduledAt), article.UpdatedAt,
			article.ID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateSlug
			}
			return fmt.Errorf("failed to update article: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return ErrNotFound
		}
		return saveArticleLabels(ctx, tx, article)
	})
}

// Delete removes an article; join rows cascade
func (r *articleRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.q().ExecContext(ctx, "DELETE FROM articles WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// BatchInsert inserts articles in one transaction, skipping rows whose id or
// slug already exists. Returns the number actually inserted.
func (r *articleRepo) BatchInsert(ctx context.Context, articles []*models.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		for _, article := range articles {
			ok, err := insertArticle(ctx, tx, article, true)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := saveArticleLabels(ctx, tx, article); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetByID retrieves an article by ID
func (r *articleRepo) GetByID(ctx context.Context, id string) (*models.Article, error) {
	return r.getOne(ctx, "a.id = $1", id)
}

// GetBySlug retrieves an article by slug
func (r *articleRepo) GetBySlug(ctx context.Context, slug string) (*models.Article, error) {
	return r.getOne(ctx, "a.slug = $1", slug)
}

func (r *articleRepo) getOne(ctx context.Context, where string, arg interface{}) (*models.Article, error) {
	query := "SELECT " + articleColumns + " FROM articles a WHERE " + where

	article, err := scanArticle(r.q().QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.attachLabels(ctx, []*models.Article{article}); err != nil {
		return nil, err
	}
	return article, nil
}

// SlugExists checks if a slug is taken by any article other than excludeID
func (r *articleRepo) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	var exists bool
	var err error
	if excludeID == "" {
		err = r.q().QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM articles WHERE slug = $1)", slug).Scan(&exists)
	} else {
		err = r.q().QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM articles WHERE slug = $1 AND id <> $2)", slug, excludeID).Scan(&exists)
	}
	return exists, err
}

// List returns articles matching filter. Published listings are ordered by
// publish time, everything else by last update.
func (r *articleRepo) List(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error) {
	var where []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM article_categories ac JOIN categories c ON c.id = ac.category_id
			WHERE ac.article_id = a.id AND c.slug = $%d)`, len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		where = append(where, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM article_tags atg JOIN tags t ON t.id = atg.tag_id
			WHERE atg.article_id = a.id AND t.slug = $%d)`, len(args)))
	}

	query := "SELECT " + articleColumns + " FROM articles a"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.Status == models.StatusPublished {
		query += " ORDER BY a.published_at DESC NULLS LAST, a.created_at DESC, a.id"
	} else {
		query += " ORDER BY a.updated_at DESC, a.id"
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []*models.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachLabels(ctx, articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// Count returns the number of articles with the given status, or all
// articles when status is empty
func (r *articleRepo) Count(ctx context.Context, status models.ArticleStatus) (int, error) {
	var count int
	var err error
	if status == "" {
		err = r.q().QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&count)
	} else {
		err = r.q().QueryRowContext(ctx, "SELECT COUNT(*) FROM articles WHERE status = $1", status).Scan(&count)
	}
	return count, err
}

// StreamAll streams all articles for export in creation order, one page at
// a time
func (r *articleRepo) StreamAll(ctx context.Context, callback func(*models.Article) error) error {
	query := "SELECT " + articleColumns + ` FROM articles a
		WHERE (a.created_at, a.id) > ($1, $2)
		ORDER BY a.created_at, a.id
		LIMIT $3`

	cursorTime := time.Time{}
	cursorID := "00000000-0000-0000-0000-000000000000"

	for {
		page, err := r.streamPage(ctx, query, cursorTime, cursorID)
		if err != nil {
			return err
		}
		for _, article := range page {
			if err := callback(article); err != nil {
				return err
			}
		}
		if len(page) < streamPageSize {
			return nil
		}
		last := page[len(page)-1]
		cursorTime, cursorID = last.CreatedAt, last.ID
	}
}

func (r *articleRepo) streamPage(ctx context.Context, query string, cursorTime time.Time, cursorID string) ([]*models.Article, error) {
	rows, err := r.q().QueryContext(ctx, query, cursorTime, cursorID, streamPageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := make([]*models.Article, 0, streamPageSize)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		page = append(page, article)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachLabels(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

// FindDue selects due scheduled articles and locks them for the rest of the
// transaction. SKIP LOCKED lets concurrent sweeps split the work instead of
// publishing the same rows twice.
func (r *articleRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]models.DueArticle, error) {
	query := `
		SELECT id, published_at, scheduled_at, created_at
		FROM articles
		WHERE status = 'SCHEDULED'
		  AND ((scheduled_at IS NOT NULL AND scheduled_at <= $1)
		    OR (scheduled_at IS NULL AND published_at IS NOT NULL AND published_at <= $1))
		ORDER BY scheduled_at ASC NULLS LAST, published_at ASC NULLS LAST, created_at ASC, id ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := r.q().QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []models.DueArticle
	for rows.Next() {
		var d models.DueArticle
		var publishedAt, scheduledAt sql.NullTime
		if err := rows.Scan(&d.ID, &publishedAt, &scheduledAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.PublishedAt = timePtr(publishedAt)
		d.ScheduledAt = timePtr(scheduledAt)
		due = append(due, d)
	}
	return due, rows.Err()
}

// PublishBatch applies all updates with a single UPDATE ... FROM unnest.
// Rows that are no longer SCHEDULED are left alone.
func (r *articleRepo) PublishBatch(ctx context.Context, updates []models.PublishUpdate, now time.Time) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	ids := make([]string, len(updates))
	publishedAt := make([]string, len(updates))
	for i, u := range updates {
		ids[i] = u.ID
		publishedAt[i] = u.PublishedAt.UTC().Format(time.RFC3339Nano)
	}

	query := `
		UPDATE articles AS a
		SET status = 'PUBLISHED', published_at = u.published_at, scheduled_at = NULL, updated_at = $3
		FROM unnest($1::uuid[], $2::timestamptz[]) AS u(id, published_at)
		WHERE a.id = u.id AND a.status = 'SCHEDULED'
	`
	result, err := r.q().ExecContext(ctx, query, pq.Array(ids), pq.Array(publishedAt), now)
	if err != nil {
		return 0, fmt.Errorf("failed to publish batch: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

// attachLabels loads categories and tags for all articles with two queries
func (r *articleRepo) attachLabels(ctx context.Context, articles []*models.Article) error {
	if len(articles) == 0 {
		return nil
	}
	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}

	categories, err := loadArticleLabels(ctx, r.q(), models.LabelCategory, ids)
	if err != nil {
		return err
	}
	tags, err := loadArticleLabels(ctx, r.q(), models.LabelTag, ids)
	if err != nil {
		return err
	}

	for _, a := range articles {
		a.Categories = categories[a.ID]
		a.Tags = tags[a.ID]
	}
	return nil
}

// insertArticle writes the article row. With skipConflicts an existing id or
// slug is not an error; the returned bool reports whether a row was written.
func insertArticle(ctx context.Context, q querier, article *models.Article, skipConflicts bool) (bool, error) {
	query := `
		INSERT INTO articles (id, slug, title, excerpt, body, cover_image_url, seo_title, seo_description,
			status, published_at, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if skipConflicts {
		query += " ON CONFLICT DO NOTHING"
	}

	result, err := q.ExecContext(ctx, query,
		article.ID, article.Slug, article.Title, nullString(article.Excerpt), article.Body,
		nullString(article.CoverImageURL), nullString(article.SEOTitle), nullString(article.SEODescription),
		article.Status, nullTime(article.PublishedAt), nullTime(article.ScheduledAt),
		article.CreatedAt, article.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, ErrDuplicateSlug
		}
		return false, fmt.Errorf("failed to insert article: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var article models.Article
	var excerpt, coverImageURL, seoTitle, seoDescription sql.NullString
	var publishedAt, scheduledAt sql.NullTime

	err := row.Scan(
		&article.ID, &article.Slug, &article.Title, &excerpt, &article.Body, &coverImageURL, &seoTitle,
		&seoDescription, &article.Status, &publishedAt, &scheduledAt, &article.CreatedAt, &article.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	article.Excerpt = excerpt.String
	article.CoverImageURL = coverImageURL.String
	article.SEOTitle = seoTitle.String
	article.SEODescription = seoDescription.String
	article.PublishedAt = timePtr(publishedAt)
	article.ScheduledAt = timePtr(scheduledAt)
	return &article, nil
}
