package service

import (
	"github.com/restaurant-cms-api/internal/metrics"
	"github.com/restaurant-cms-api/internal/models"
	"github.com/restaurant-cms-api/internal/taxonomy"
)

// labelResolver fills empty category and tag lists from taxonomy inference.
// Each list is decided on its own: a manual category list does not stop
// tags from being inferred.
type labelResolver struct {
	inferrer *taxonomy.Inferrer
	metrics  *metrics.Metrics
}

func (r labelResolver) resolve(title, excerpt, body string, categories, tags []string) models.TaxonomyPreview {
	preview := models.TaxonomyPreview{
		Categories: taxonomy.NormalizeLabels(categories),
		Tags:       taxonomy.NormalizeLabels(tags),
	}
	if len(preview.Categories) > 0 && len(preview.Tags) > 0 {
		return preview
	}

	inferred := r.inferrer.Infer(title, excerpt, body)
	if len(preview.Categories) == 0 {
		preview.Categories = inferred.Categories
		preview.InferredCategories = true
		r.metrics.RecordInference(string(models.LabelCategory))
	}
	if len(preview.Tags) == 0 {
		preview.Tags = inferred.Tags
		preview.InferredTags = true
		r.metrics.RecordInference(string(models.LabelTag))
	}
	return preview
}

// labels turns the resolved names into label values keyed by slug
func (r labelResolver) labels(title, excerpt, body string, categories, tags []string) (cats, tgs []models.Label) {
	preview := r.resolve(title, excerpt, body, categories, tags)
	return toLabels(models.LabelCategory, preview.Categories), toLabels(models.LabelTag, preview.Tags)
}

func toLabels(kind models.LabelKind, names []string) []models.Label {
	labels := make([]models.Label, 0, len(names))
	for _, name := range names {
		labels = append(labels, models.Label{Kind: kind, Name: name, Slug: taxonomy.Slugify(name)})
	}
	return labels
}
