package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"quire/internal/services"
)

// Services is everything the router needs.
type Services struct {
	Sites    *services.SiteService
	Schemas  *services.SchemaService
	Content  *services.ContentService
	Importer *services.ImportService
	SEO      *services.SEOService
}

// NewRouter wires the public API, the admin API and the crawler documents.
func NewRouter(svc Services, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), ZapLogger(log))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	site := r.Group("/", SiteMiddleware(svc.Sites, log))
	seo := NewSEOHandler(svc.SEO, log)
	site.GET("/sitemap.xml", seo.Sitemap)
	site.GET("/robots.txt", seo.Robots)

	NewAPIHandler(svc.Schemas, svc.Content, svc.SEO, log).Register(site.Group("/api"))

	admin := site.Group("/api/admin", APIAuthMiddleware(svc.Sites))
	NewAdminHandler(svc.Sites, svc.Schemas, svc.Content, svc.Importer, log).Register(admin)

	return r
}
