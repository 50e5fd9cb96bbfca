package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/restaurant-cms-api/internal/models"
	"github.com/restaurant-cms-api/internal/service"
	"github.com/restaurant-cms-api/internal/taxonomy"
	"github.com/rs/zerolog"
)

// ArticleHandler handles public and admin article endpoints
type ArticleHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewArticleHandler creates a new ArticleHandler
func NewArticleHandler(services *service.Services, log zerolog.Logger) *ArticleHandler {
	return &ArticleHandler{
		services: services,
		log:      log.With().Str("handler", "article").Logger(),
	}
}

// ListPublished handles GET /v1/articles
func (h *ArticleHandler) ListPublished(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	articles, err := h.services.Article.ListPublished(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err, "Failed to list published articles")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// GetPublished handles GET /v1/articles/:slug
func (h *ArticleHandler) GetPublished(c *gin.Context) {
	article, err := h.services.Article.GetPublished(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.writeError(c, err, "Failed to get article")
		return
	}
	c.JSON(http.StatusOK, article)
}

// ListCategories handles GET /v1/categories
func (h *ArticleHandler) ListCategories(c *gin.Context) {
	h.listLabels(c, models.LabelCategory, "categories")
}

// ListTags handles GET /v1/tags
func (h *ArticleHandler) ListTags(c *gin.Context) {
	h.listLabels(c, models.LabelTag, "tags")
}

func (h *ArticleHandler) listLabels(c *gin.Context, kind models.LabelKind, key string) {
	labels, err := h.services.Article.ListLabels(c.Request.Context(), kind)
	if err != nil {
		h.writeError(c, err, "Failed to list labels")
		return
	}
	c.JSON(http.StatusOK, gin.H{key: labels})
}

// List handles GET /v1/admin/articles?status=...
func (h *ArticleHandler) List(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	if raw := c.Query("status"); raw != "" {
		status, valid := models.ParseStatus(raw)
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of: DRAFT, SCHEDULED, PUBLISHED"})
			return
		}
		filter.Status = status
	}

	articles, err := h.services.Article.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err, "Failed to list articles")
		return
	}
	if articles == nil {
		articles = []*models.Article{}
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// Get handles GET /v1/admin/articles/:id
func (h *ArticleHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id", "article not found")
	if !ok {
		return
	}

	article, err := h.services.Article.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "Failed to get article")
		return
	}
	c.JSON(http.StatusOK, article)
}

// Create handles POST /v1/admin/articles
func (h *ArticleHandler) Create(c *gin.Context) {
	var input models.ArticleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	article, err := h.services.Article.Create(c.Request.Context(), &input)
	if err != nil {
		h.writeError(c, err, "Failed to create article")
		return
	}
	c.JSON(http.StatusCreated, article)
}

// Update handles PUT /v1/admin/articles/:id
func (h *ArticleHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id", "article not found")
	if !ok {
		return
	}

	var input models.ArticleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	article, err := h.services.Article.Update(c.Request.Context(), id, &input)
	if err != nil {
		h.writeError(c, err, "Failed to update article")
		return
	}
	c.JSON(http.StatusOK, article)
}

// Delete handles DELETE /v1/admin/articles/:id
func (h *ArticleHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id", "article not found")
	if !ok {
		return
	}

	if err := h.services.Article.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "Failed to delete article")
		return
	}
	c.Status(http.StatusNoContent)
}

// PreviewTaxonomy handles POST /v1/admin/taxonomy/preview
func (h *ArticleHandler) PreviewTaxonomy(c *gin.Context) {
	var input models.ArticleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.services.Article.PreviewTaxonomy(&input))
}

// parseFilter reads limit, offset, category and tag. The limit is clamped to
// the page size the listing applies. Label filters accept a display name or
// a slug.
func (h *ArticleHandler) parseFilter(c *gin.Context) (models.ArticleFilter, bool) {
	var filter models.ArticleFilter

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": p.name + " must be a non-negative integer"})
			return filter, false
		}
		*p.dst = n
	}

	filter.Limit = service.ClampLimit(filter.Limit)
	filter.Category = taxonomy.Slugify(c.Query("category"))
	filter.Tag = taxonomy.Slugify(c.Query("tag"))
	return filter, true
}

// pathID reads a UUID path parameter. Anything else cannot name a stored
// row, so it is answered with 404 before reaching the database.
func pathID(c *gin.Context, param, notFound string) (string, bool) {
	id := c.Param(param)
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return "", false
	}
	return id, true
}

// writeError maps service errors to status codes
func (h *ArticleHandler) writeError(c *gin.Context, err error, msg string) {
	var verr *service.ValidationErrors
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "errors": verr.Errors})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
	case errors.Is(err, service.ErrSlugTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "slug already in use"})
	default:
		h.log.Error().Err(err).Msg(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
