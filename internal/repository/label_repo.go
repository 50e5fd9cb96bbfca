package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/restaurant-cms-api/internal/database"
	"github.com/restaurant-cms-api/internal/models"
)

// labelTables maps a label kind to its table, join table and join column
type labelTables struct {
	table  string
	join   string
	column string
}

func tablesFor(kind models.LabelKind) labelTables {
	if kind == models.LabelTag {
		return labelTables{table: "tags", join: "article_tags", column: "tag_id"}
	}
	return labelTables{table: "categories", join: "article_categories", column: "category_id"}
}

// labelRepo is the concrete implementation of LabelRepository
type labelRepo struct {
	db *database.DB
}

// NewLabelRepo creates a new label repository
func NewLabelRepo(db *database.DB) LabelRepository {
	return &labelRepo{db: db}
}

// List returns the labels of a kind that are attached to at least one
// published article, with the number of such articles.
func (r *labelRepo) List(ctx context.Context, kind models.LabelKind) ([]models.Label, error) {
	t := tablesFor(kind)
	query := fmt.Sprintf(`
		SELECT l.id, l.name, l.slug, COUNT(a.id)
		FROM %[1]s l
		JOIN %[2]s j ON j.%[3]s = l.id
		JOIN articles a ON a.id = j.article_id AND a.status = 'PUBLISHED'
		GROUP BY l.id, l.name, l.slug
		ORDER BY l.name
	`, t.table, t.join, t.column)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []models.Label
	for rows.Next() {
		l := models.Label{Kind: kind}
		if err := rows.Scan(&l.ID, &l.Name, &l.Slug, &l.ArticleCount); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// upsertLabel inserts a label or, when the slug exists, renames it to name
func upsertLabel(ctx context.Context, q querier, kind models.LabelKind, name, slug string) (models.Label, error) {
	t := tablesFor(kind)
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, slug) VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, slug
	`, t.table)

	l := models.Label{Kind: kind}
	err := q.QueryRowContext(ctx, query, uuid.New().String(), name, slug).Scan(&l.ID, &l.Name, &l.Slug)
	if err != nil {
		return l, fmt.Errorf("failed to upsert %s %q: %w", kind, slug, err)
	}
	return l, nil
}

// replaceArticleLabels upserts labels and makes them the article's complete
// set of that kind, keeping their order
func replaceArticleLabels(ctx context.Context, q querier, articleID string, kind models.LabelKind, labels []models.Label) ([]models.Label, error) {
	t := tablesFor(kind)
	if _, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE article_id = $1", t.join), articleID); err != nil {
		return nil, err
	}

	saved := make([]models.Label, 0, len(labels))
	link := fmt.Sprintf(
		"INSERT INTO %s (article_id, %s, position) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
		t.join, t.column,
	)
	for i, l := range labels {
		stored, err := upsertLabel(ctx, q, kind, l.Name, l.Slug)
		if err != nil {
			return nil, err
		}
		if _, err := q.ExecContext(ctx, link, articleID, stored.ID, i); err != nil {
			return nil, err
		}
		saved = append(saved, stored)
	}
	return saved, nil
}

func saveArticleLabels(ctx context.Context, q querier, article *models.Article) error {
	categories, err := replaceArticleLabels(ctx, q, article.ID, models.LabelCategory, article.Categories)
	if err != nil {
		return err
	}
	tags, err := replaceArticleLabels(ctx, q, article.ID, models.LabelTag, article.Tags)
	if err != nil {
		return err
	}
	article.Categories = categories
	article.Tags = tags
	return nil
}

// loadArticleLabels returns labels keyed by article id, in stored order
func loadArticleLabels(ctx context.Context, q querier, kind models.LabelKind, articleIDs []string) (map[string][]models.Label, error) {
	t := tablesFor(kind)
	query := fmt.Sprintf(`
		SELECT j.article_id, l.id, l.name, l.slug
		FROM %[2]s j
		JOIN %[1]s l ON l.id = j.%[3]s
		WHERE j.article_id = ANY($1::uuid[])
		ORDER BY j.article_id, j.position
	`, t.table, t.join, t.column)

	rows, err := q.QueryContext(ctx, query, pq.Array(articleIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byArticle := make(map[string][]models.Label, len(articleIDs))
	for rows.Next() {
		var articleID string
		l := models.Label{Kind: kind}
		if err := rows.Scan(&articleID, &l.ID, &l.Name, &l.Slug); err != nil {
			return nil, err
		}
		byArticle[articleID] = append(byArticle[articleID], l)
	}
	return byArticle, rows.Err()
}
