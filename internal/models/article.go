package models

import (
	"strings"
	"time"
)

// ArticleStatus is the lifecycle state of an article
type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "DRAFT"
	StatusScheduled ArticleStatus = "SCHEDULED"
	StatusPublished ArticleStatus = "PUBLISHED"
)

// ValidStatuses defines allowed article statuses
var ValidStatuses = map[ArticleStatus]bool{
	StatusDraft:     true,
	StatusScheduled: true,
	StatusPublished: true,
}

// ParseStatus accepts any casing ("draft", "Scheduled") and reports whether
// the value is a known status.
func ParseStatus(s string) (ArticleStatus, bool) {
	status := ArticleStatus(strings.ToUpper(strings.TrimSpace(s)))
	return status, ValidStatuses[status]
}

// Article represents a magazine article
type Article struct {
	ID             string        `json:"id" db:"id"`
	Slug           string        `json:"slug" db:"slug"`
	Title          string        `json:"title" db:"title"`
	Excerpt        string        `json:"excerpt,omitempty" db:"excerpt"`
	Body           string        `json:"body" db:"body"`
	CoverImageURL  string        `json:"cover_image_url,omitempty" db:"cover_image_url"`
	SEOTitle       string        `json:"seo_title,omitempty" db:"seo_title"`
	SEODescription string        `json:"seo_description,omitempty" db:"seo_description"`
	Status         ArticleStatus `json:"status" db:"status"`
	PublishedAt    *time.Time    `json:"published_at,omitempty" db:"published_at"`
	ScheduledAt    *time.Time    `json:"scheduled_at,omitempty" db:"scheduled_at"`
	Categories     []Label       `json:"categories" db:"-"`
	Tags           []Label       `json:"tags" db:"-"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// DueAt returns the time a scheduled article should go live:
// scheduled_at if set, else published_at.
func (a *Article) DueAt() *time.Time {
	if a.ScheduledAt != nil {
		return a.ScheduledAt
	}
	return a.PublishedAt
}

// IsDue reports whether a scheduled article's due time is at or before now.
func (a *Article) IsDue(now time.Time) bool {
	if a.Status != StatusScheduled {
		return false
	}
	due := a.DueAt()
	return due != nil && !due.After(now)
}

// IsPublished returns true if the article is publicly visible.
func (a *Article) IsPublished() bool {
	return a.Status == StatusPublished
}

// CategoryNames returns the display names of the article's categories.
func (a *Article) CategoryNames() []string {
	return labelNames(a.Categories)
}

// TagNames returns the display names of the article's tags.
func (a *Article) TagNames() []string {
	return labelNames(a.Tags)
}

// Clone returns a copy that shares no pointers or slices with a.
func (a *Article) Clone() *Article {
	c := *a
	if a.PublishedAt != nil {
		t := *a.PublishedAt
		c.PublishedAt = &t
	}
	if a.ScheduledAt != nil {
		t := *a.ScheduledAt
		c.ScheduledAt = &t
	}
	c.Categories = append([]Label(nil), a.Categories...)
	c.Tags = append([]Label(nil), a.Tags...)
	return &c
}

// ArticleInput is the admin payload for creating or updating an article.
// Empty Categories/Tags are filled by taxonomy inference.
type ArticleInput struct {
	Title          string     `json:"title"`
	Slug           string     `json:"slug"`
	Excerpt        string     `json:"excerpt"`
	Body           string     `json:"body"`
	CoverImageURL  string     `json:"cover_image_url"`
	SEOTitle       string     `json:"seo_title"`
	SEODescription string     `json:"seo_description"`
	Status         string     `json:"status"`
	PublishedAt    *time.Time `json:"published_at"`
	ScheduledAt    *time.Time `json:"scheduled_at"`
	Categories     []string   `json:"categories"`
	Tags           []string   `json:"tags"`
}

// ArticleFilter narrows article listings
type ArticleFilter struct {
	Status   ArticleStatus
	Category string // category slug
	Tag      string // tag slug
	Limit    int
	Offset   int
}

// ArticleNDJSON represents an article record from NDJSON import
type ArticleNDJSON struct {
	ID             string   `json:"id"`
	Slug           string   `json:"slug"`
	Title          string   `json:"title"`
	Excerpt        string   `json:"excerpt,omitempty"`
	Body           string   `json:"body"`
	CoverImageURL  string   `json:"cover_image_url,omitempty"`
	SEOTitle       string   `json:"seo_title,omitempty"`
	SEODescription string   `json:"seo_description,omitempty"`
	Status         string   `json:"status"`
	PublishedAt    string   `json:"published_at,omitempty"`
	ScheduledAt    string   `json:"scheduled_at,omitempty"`
	Categories     []string `json:"categories,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}
