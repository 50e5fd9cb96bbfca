package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/restaurant-cms-api/internal/models"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

const (
	MaxTitleLength          = 200
	MaxSlugLength           = 120
	MaxExcerptLength        = 500
	MaxSEOTitleLength       = 70
	MaxSEODescriptionLength = 160
	MaxLabelLength          = 60
	MaxLabels               = 20
)

const statusChoices = "DRAFT, SCHEDULED, PUBLISHED"

// Validator checks admin payloads and import lines. It remembers slugs
// accepted earlier in the same import so duplicates inside one file are
// reported against the later line.
type Validator struct {
	articleSlugCache map[string]bool
	articleIDCache   map[string]bool
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		articleSlugCache: make(map[string]bool),
		articleIDCache:   make(map[string]bool),
	}
}

// AddArticleSlug adds a slug to the uniqueness cache
func (v *Validator) AddArticleSlug(slug string) {
	v.articleSlugCache[slug] = true
}

// AddArticleID adds an id to the uniqueness cache
func (v *Validator) AddArticleID(id string) {
	v.articleIDCache[strings.ToLower(id)] = true
}

// ValidateInput validates an admin create or update payload
func (v *Validator) ValidateInput(input *models.ArticleInput) []models.ValidationError {
	var errors []models.ValidationError

	errors = append(errors, checkTitle(input.Title)...)

	if input.Slug != "" {
		errors = append(errors, checkSlugFormat(input.Slug)...)
	}

	errors = append(errors, checkOptionalText("excerpt", input.Excerpt, MaxExcerptLength)...)
	errors = append(errors, checkOptionalText("seo_title", input.SEOTitle, MaxSEOTitleLength)...)
	errors = append(errors, checkOptionalText("seo_description", input.SEODescription, MaxSEODescriptionLength)...)
	errors = append(errors, checkURL("cover_image_url", input.CoverImageURL)...)

	status := models.StatusDraft
	if input.Status != "" {
		parsed, ok := models.ParseStatus(input.Status)
		if !ok {
			errors = append(errors, models.ValidationError{
				Field:   "status",
				Message: "invalid status, must be one of: " + statusChoices,
				Value:   input.Status,
			})
		}
		status = parsed
	}

	if status == models.StatusScheduled && input.ScheduledAt == nil && input.PublishedAt == nil {
		errors = append(errors, models.ValidationError{
			Field:   "scheduled_at",
			Message: "scheduled articles need scheduled_at or published_at",
		})
	}

	errors = append(errors, checkLabels("categories", input.Categories)...)
	errors = append(errors, checkLabels("tags", input.Tags)...)

	return errors
}

// ValidateArticle validates one NDJSON import line
func (v *Validator) ValidateArticle(article *models.ArticleNDJSON, lineNum int) []models.ValidationError {
	var errors []models.ValidationError

	if article.ID != "" {
		if !isValidUUID(article.ID) {
			errors = append(errors, models.ValidationError{Field: "id", Message: "invalid UUID format", Value: article.ID})
		} else if v.articleIDCache[strings.ToLower(article.ID)] {
			errors = append(errors, models.ValidationError{Field: "id", Message: "duplicate id", Value: article.ID})
		}
	}

	if article.Slug == "" {
		errors = append(errors, models.ValidationError{Field: "slug", Message: "slug is required"})
	} else if slugErrs := checkSlugFormat(article.Slug); len(slugErrs) > 0 {
		errors = append(errors, slugErrs...)
	} else if v.articleSlugCache[article.Slug] {
		errors = append(errors, models.ValidationError{Field: "slug", Message: "duplicate slug", Value: article.Slug})
	}

	errors = append(errors, checkTitle(article.Title)...)

	if strings.TrimSpace(article.Body) == "" {
		errors = append(errors, models.ValidationError{Field: "body", Message: "body is required"})
	}

	errors = append(errors, checkOptionalText("excerpt", article.Excerpt, MaxExcerptLength)...)
	errors = append(errors, checkURL("cover_image_url", article.CoverImageURL)...)

	status := models.StatusDraft
	if article.Status != "" {
		parsed, ok := models.ParseStatus(article.Status)
		if !ok {
			errors = append(errors, models.ValidationError{
				Field:   "status",
				Message: "invalid status, must be one of: " + statusChoices,
				Value:   article.Status,
			})
		}
		status = parsed
	}

	errors = append(errors, checkTimestamp("published_at", article.PublishedAt)...)
	errors = append(errors, checkTimestamp("scheduled_at", article.ScheduledAt)...)

	if status == models.StatusScheduled && article.ScheduledAt == "" && article.PublishedAt == "" {
		errors = append(errors, models.ValidationError{
			Field:   "scheduled_at",
			Message: "scheduled articles need scheduled_at or published_at",
		})
	}

	errors = append(errors, checkLabels("categories", article.Categories)...)
	errors = append(errors, checkLabels("tags", article.Tags)...)

	for i := range errors {
		errors[i].Line = lineNum
	}
	return errors
}

// ParseTimestamp parses an RFC 3339 import timestamp; empty means unset
func ParseTimestamp(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ValidSlug reports whether s is lowercase kebab-case
func ValidSlug(s string) bool {
	return slugRegex.MatchString(s)
}

func checkTitle(title string) []models.ValidationError {
	title = strings.TrimSpace(title)
	if title == "" {
		return []models.ValidationError{{Field: "title", Message: "title is required"}}
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return []models.ValidationError{{
			Field:   "title",
			Message: fmt.Sprintf("title exceeds %d characters", MaxTitleLength),
		}}
	}
	return nil
}

func checkSlugFormat(slug string) []models.ValidationError {
	if !slugRegex.MatchString(slug) {
		return []models.ValidationError{{
			Field:   "slug",
			Message: "slug must be kebab-case (lowercase letters, numbers, hyphens)",
			Value:   slug,
		}}
	}
	if len(slug) > MaxSlugLength {
		return []models.ValidationError{{
			Field:   "slug",
			Message: fmt.Sprintf("slug exceeds %d characters", MaxSlugLength),
			Value:   slug,
		}}
	}
	return nil
}

func checkOptionalText(field, value string, max int) []models.ValidationError {
	if utf8.RuneCountInString(value) > max {
		return []models.ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("%s exceeds %d characters", field, max),
		}}
	}
	return nil
}

func checkURL(field, value string) []models.ValidationError {
	if value == "" {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return []models.ValidationError{{Field: field, Message: "must be an absolute http(s) URL", Value: value}}
	}
	return nil
}

func checkLabels(field string, labels []string) []models.ValidationError {
	var errors []models.ValidationError
	if len(labels) > MaxLabels {
		errors = append(errors, models.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("at most %d %s allowed", MaxLabels, field),
		})
	}
	for _, l := range labels {
		if utf8.RuneCountInString(strings.TrimSpace(l)) > MaxLabelLength {
			errors = append(errors, models.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("label exceeds %d characters", MaxLabelLength),
				Value:   l,
			})
		}
	}
	return errors
}

func checkTimestamp(field, value string) []models.ValidationError {
	if _, err := ParseTimestamp(value); err != nil {
		return []models.ValidationError{{Field: field, Message: "invalid RFC 3339 timestamp", Value: value}}
	}
	return nil
}

// isValidUUID checks if a string is a valid UUID
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
