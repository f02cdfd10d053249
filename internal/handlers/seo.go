package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quire/internal/services"
)

// SEOHandler serves the crawler-facing documents of a site.
type SEOHandler struct {
	seo *services.SEOService
	log *zap.Logger
}

func NewSEOHandler(seo *services.SEOService, log *zap.Logger) *SEOHandler {
	return &SEOHandler{seo: seo, log: log}
}

func (h *SEOHandler) Sitemap(c *gin.Context) {
	body, err := h.seo.SiteSitemap(c.Request.Context(), siteID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
}

func (h *SEOHandler) Robots(c *gin.Context) {
	body, err := h.seo.SiteRobots(c.Request.Context(), siteID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.String(http.StatusOK, body)
}
