package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/restaurant-cms-api/internal/models"
	"github.com/restaurant-cms-api/internal/repository"
	"github.com/rs/zerolog"
)

// flushEvery is how many records are written between flushes of a streaming
// response
const flushEvery = 100

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repos *repository.Repositories, log zerolog.Logger) *exportService {
	return &exportService{
		repos: repos,
		log:   log.With().Str("service", "export").Logger(),
	}
}

// StreamArticles streams every article in the specified format. Records use
// the import line shape, so an export can be imported again.
func (s *exportService) StreamArticles(ctx context.Context, w http.ResponseWriter, format string) error {
	s.log.Info().Str("format", format).Msg("Starting articles export")

	switch format {
	case "ndjson":
		return s.streamNDJSON(ctx, w)
	case "json":
		return s.streamJSON(ctx, w)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// GetCount returns the number of articles with status, or of all articles
// when status is empty
func (s *exportService) GetCount(ctx context.Context, status models.ArticleStatus) (int, error) {
	return s.repos.Article.Count(ctx, status)
}

func (s *exportService) streamNDJSON(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", "attachment; filename=articles.ndjson")

	flusher, _ := w.(http.Flusher)
	count := 0

	err := s.repos.Article.StreamAll(ctx, func(article *models.Article) error {
		data, err := json.Marshal(exportRecord(article))
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
		count++

		if count%flushEvery == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	s.log.Info().Int("count", count).Msg("Articles export completed")
	return err
}

func (s *exportService) streamJSON(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=articles.json")

	w.Write([]byte("["))
	count := 0

	err := s.repos.Article.StreamAll(ctx, func(article *models.Article) error {
		if count > 0 {
			w.Write([]byte(","))
		}
		data, err := json.Marshal(exportRecord(article))
		if err != nil {
			return err
		}
		w.Write(data)
		count++
		return nil
	})

	w.Write([]byte("]"))
	s.log.Info().Int("count", count).Msg("Articles export completed")
	return err
}

func exportRecord(a *models.Article) models.ArticleNDJSON {
	return models.ArticleNDJSON{
		ID:             a.ID,
		Slug:           a.Slug,
		Title:          a.Title,
		Excerpt:        a.Excerpt,
		Body:           a.Body,
		CoverImageURL:  a.CoverImageURL,
		SEOTitle:       a.SEOTitle,
		SEODescription: a.SEODescription,
		Status:         string(a.Status),
		PublishedAt:    formatTime(a.PublishedAt),
		ScheduledAt:    formatTime(a.ScheduledAt),
		Categories:     a.CategoryNames(),
		Tags:           a.TagNames(),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
