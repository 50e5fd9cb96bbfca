package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/restaurant-cms-api/internal/config"
	"github.com/restaurant-cms-api/internal/models"
	"github.com/rs/zerolog"
)

const (
	keyPrefix      = "articles:"
	listKeyPrefix  = keyPrefix + "list:"
	slugKeyPrefix  = keyPrefix + "slug:"
	scanBatchCount = 100
)

// ListingCache caches public article reads in redis. A nil *ListingCache is
// valid and caches nothing, so callers never need to check whether redis is
// configured.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// New connects to REDIS_URL. It returns a nil cache when no URL is set.
func New(ctx context.Context, cfg config.CacheConfig, log zerolog.Logger) (*ListingCache, error) {
	if cfg.RedisURL == "" {
		log.Info().Msg("REDIS_URL not set, listing cache disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, cfg.TTL, log), nil
}

// NewWithClient wraps an existing redis client
func NewWithClient(client *redis.Client, ttl time.Duration, log zerolog.Logger) *ListingCache {
	return &ListingCache{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "cache").Logger(),
	}
}

// Enabled reports whether reads and writes reach redis
func (c *ListingCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Close releases the redis connection pool
func (c *ListingCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// ListKey identifies one public listing page
func ListKey(filter models.ArticleFilter) string {
	return fmt.Sprintf("%s%s:%s:%s:%d:%d", listKeyPrefix,
		filter.Status, filter.Category, filter.Tag, filter.Limit, filter.Offset)
}

// SlugKey identifies one public article
func SlugKey(slug string) string {
	return slugKeyPrefix + slug
}

// GetArticles returns a cached listing page. Redis errors count as a miss.
func (c *ListingCache) GetArticles(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, bool) {
	var articles []*models.Article
	if !c.get(ctx, ListKey(filter), &articles) {
		return nil, false
	}
	return articles, true
}

// SetArticles stores a listing page
func (c *ListingCache) SetArticles(ctx context.Context, filter models.ArticleFilter, articles []*models.Article) {
	c.set(ctx, ListKey(filter), articles)
}

// GetArticle returns a cached published article by slug
func (c *ListingCache) GetArticle(ctx context.Context, slug string) (*models.Article, bool) {
	var article models.Article
	if !c.get(ctx, SlugKey(slug), &article) {
		return nil, false
	}
	return &article, true
}

// SetArticle stores a published article under its slug
func (c *ListingCache) SetArticle(ctx context.Context, article *models.Article) {
	c.set(ctx, SlugKey(article.Slug), article)
}

// Invalidate drops every cached listing and article. It runs after a
// publish sweep and after any admin write.
func (c *ListingCache) Invalidate(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}

	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", scanBatchCount).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.log.Debug().Int("keys", deleted).Msg("Listing cache invalidated")
	return nil
}

func (c *ListingCache) get(ctx context.Context, key string, dest interface{}) bool {
	if !c.Enabled() {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Discarding unreadable cache entry")
		return false
	}
	return true
}

func (c *ListingCache) set(ctx context.Context, key string, value interface{}) {
	if !c.Enabled() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to encode cache entry")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}
