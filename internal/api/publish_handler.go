package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/restaurant-cms-api/internal/service"
	"github.com/rs/zerolog"
)

// PublishHandler triggers the scheduled-publish sweep
type PublishHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewPublishHandler creates a new PublishHandler
func NewPublishHandler(services *service.Services, log zerolog.Logger) *PublishHandler {
	return &PublishHandler{
		services: services,
		log:      log.With().Str("handler", "publish").Logger(),
	}
}

// Sweep handles GET|POST /v1/cron/publish and POST /v1/admin/publish
func (h *PublishHandler) Sweep(c *gin.Context) {
	result, err := h.services.Publish.PublishDue(c.Request.Context(), time.Time{})
	if err != nil {
		h.log.Error().Err(err).Str("route", c.FullPath()).Msg("Publish sweep request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "publish sweep failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}
