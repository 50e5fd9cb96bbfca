package models

// LabelKind distinguishes categories from tags
type LabelKind string

const (
	LabelCategory LabelKind = "category"
	LabelTag      LabelKind = "tag"
)

// Label is a category or tag. Slug is the identity key; Name keeps the
// editor's spelling and follows the latest upsert.
type Label struct {
	ID           string    `json:"id"`
	Kind         LabelKind `json:"kind,omitempty"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	ArticleCount int       `json:"article_count,omitempty"`
}

func labelNames(labels []Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return names
}

// TaxonomyPreview shows the labels an article would be saved with and
// which of the two lists came from inference
type TaxonomyPreview struct {
	Categories         []string `json:"categories"`
	Tags               []string `json:"tags"`
	InferredCategories bool     `json:"inferred_categories"`
	InferredTags       bool     `json:"inferred_tags"`
}
