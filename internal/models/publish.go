package models

import "time"

// DueArticle is the projection the publish sweep reads for each due article
type DueArticle struct {
	ID          string
	PublishedAt *time.Time
	ScheduledAt *time.Time
	CreatedAt   time.Time
}

// PublishUpdate is one row of the sweep's batched write. The store sets
// status to PUBLISHED and clears scheduled_at.
type PublishUpdate struct {
	ID          string
	PublishedAt time.Time
}

// PublishResult reports one sweep run
type PublishResult struct {
	CheckedAt      time.Time `json:"checked_at"`
	DueCount       int       `json:"due_count"`
	PublishedCount int       `json:"published_count"`
	PublishedIDs   []string  `json:"published_ids"`
}
