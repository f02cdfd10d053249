package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quire/internal/models"
	"quire/internal/services"
)

// APIHandler serves the public read API.  Only published items are visible.
type APIHandler struct {
	schemas *services.SchemaService
	content *services.ContentService
	seo     *services.SEOService
	log     *zap.Logger
}

func NewAPIHandler(schemas *services.SchemaService, content *services.ContentService, seo *services.SEOService, log *zap.Logger) *APIHandler {
	return &APIHandler{schemas: schemas, content: content, seo: seo, log: log}
}

// Register mounts the public routes on g.
func (h *APIHandler) Register(g *gin.RouterGroup) {
	g.GET("/collections/:collection/items", h.ListItems)
	g.GET("/collections/:collection/items/:slug", h.GetItem)
	g.GET("/collections/:collection/items/:slug/seo", h.GetSEO)
	g.GET("/resolve", h.Resolve)
	g.GET("/search", h.Search)
}

func wantsRender(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("render"))
	return v
}

func (h *APIHandler) ListItems(c *gin.Context) {
	opts := listOptions(c)
	opts.PublishedOnly = true
	res, err := h.content.ListContent(c.Request.Context(), siteID(c), c.Param("collection"), opts)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !wantsRender(c) {
		c.JSON(http.StatusOK, res)
		return
	}

	coll, err := h.schemas.GetCollection(c.Request.Context(), siteID(c), c.Param("collection"))
	if err != nil || coll == nil {
		respondError(c, h.log, models.CollectionNotFound(siteID(c), c.Param("collection")))
		return
	}
	rendered := make([]*services.RenderedItem, 0, len(res.Items))
	for i := range res.Items {
		rendered = append(rendered, h.content.RenderItem(&res.Items[i], coll))
	}
	c.JSON(http.StatusOK, gin.H{"items": rendered, "total": res.Total, "page": res.Page})
}

func (h *APIHandler) GetItem(c *gin.Context) {
	ctx := c.Request.Context()
	coll, err := h.schemas.GetCollection(ctx, siteID(c), c.Param("collection"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if coll == nil {
		notFound(c, "collection")
		return
	}
	item, err := h.content.GetContentBySlug(ctx, siteID(c), coll.Slug, c.Param("slug"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if item == nil || !item.IsPublished() {
		notFound(c, "content")
		return
	}
	if wantsRender(c) {
		c.JSON(http.StatusOK, h.content.RenderItem(item, coll))
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *APIHandler) GetSEO(c *gin.Context) {
	res, err := h.seo.ItemSEO(c.Request.Context(), siteID(c), c.Param("collection"), c.Param("slug"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if res == nil {
		notFound(c, "content")
		return
	}
	c.JSON(http.StatusOK, res)
}

// Resolve maps ?url= to a collection and, when the pattern captures a slug,
// the published item behind it.
func (h *APIHandler) Resolve(c *gin.Context) {
	ctx := c.Request.Context()
	match, err := h.schemas.GetCollectionByURL(ctx, siteID(c), c.Query("url"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if match == nil {
		notFound(c, "route")
		return
	}
	out := gin.H{"collection": match.Collection.Slug, "params": match.Params}
	if s, ok := match.Params["slug"]; ok {
		item, err := h.content.GetContentBySlug(ctx, siteID(c), match.Collection.Slug, s)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		if item == nil || !item.IsPublished() {
			notFound(c, "content")
			return
		}
		if wantsRender(c) {
			out["item"] = h.content.RenderItem(item, match.Collection)
		} else {
			out["item"] = item
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *APIHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	var slugs []string
	for _, s := range strings.Split(c.Query("collections"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			slugs = append(slugs, s)
		}
	}
	items, err := h.content.Search(c.Request.Context(), siteID(c), c.Query("q"), slugs, true, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}
