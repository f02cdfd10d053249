package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quire/internal/constants"
	"quire/internal/models"
	"quire/internal/services"
)

// AdminHandler serves the authenticated management API.
type AdminHandler struct {
	sites    *services.SiteService
	schemas  *services.SchemaService
	content  *services.ContentService
	importer *services.ImportService
	log      *zap.Logger
}

func NewAdminHandler(sites *services.SiteService, schemas *services.SchemaService, content *services.ContentService, importer *services.ImportService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{sites: sites, schemas: schemas, content: content, importer: importer, log: log}
}

// Register mounts the admin routes on g.
func (h *AdminHandler) Register(g *gin.RouterGroup) {
	g.GET("/collections", h.ListCollections)
	g.POST("/collections", h.CreateCollection)
	g.GET("/collections/:collection", h.GetCollection)
	g.PUT("/collections/:collection", h.UpdateCollection)
	g.DELETE("/collections/:collection", h.DeleteCollection)

	g.GET("/collections/:collection/items", h.ListItems)
	g.POST("/collections/:collection/items", h.CreateItem)
	g.POST("/collections/:collection/import", h.ImportItems)
	g.GET("/collections/:collection/items/:id", h.GetItem)
	g.PATCH("/collections/:collection/items/:id", h.UpdateItem)
	g.DELETE("/collections/:collection/items/:id", h.DeleteItem)
	g.PUT("/collections/:collection/items/:id/draft", h.SaveDraft)
	g.DELETE("/collections/:collection/items/:id/draft", h.ClearDraft)
	g.POST("/collections/:collection/items/:id/publish", h.Publish)

	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings)
}

func (h *AdminHandler) ListCollections(c *gin.Context) {
	list, err := h.schemas.GetAllCollections(c.Request.Context(), siteID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": list})
}

func (h *AdminHandler) GetCollection(c *gin.Context) {
	coll, err := h.schemas.GetCollection(c.Request.Context(), siteID(c), c.Param("collection"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if coll == nil {
		notFound(c, "collection")
		return
	}
	c.JSON(http.StatusOK, coll)
}

func (h *AdminHandler) CreateCollection(c *gin.Context) {
	var in services.CollectionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	coll, err := h.schemas.CreateCollection(c.Request.Context(), siteID(c), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, coll)
}

func (h *AdminHandler) UpdateCollection(c *gin.Context) {
	var in services.CollectionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	coll, err := h.schemas.UpdateCollection(c.Request.Context(), siteID(c), c.Param("collection"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, coll)
}

func (h *AdminHandler) DeleteCollection(c *gin.Context) {
	if err := h.schemas.DeleteCollection(c.Request.Context(), siteID(c), c.Param("collection")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListItems(c *gin.Context) {
	opts := listOptions(c)
	if status := c.Query("status"); status != "" {
		opts.Filter["status"] = status
	}
	res, err := h.content.ListContent(c.Request.Context(), siteID(c), c.Param("collection"), opts)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// adminItem adds the editing view of an item.
func adminItem(item *models.ContentItem) gin.H {
	return gin.H{
		"item":         item,
		"draftData":    item.DraftData,
		"editableData": item.EditableData(),
		"hasDraft":     item.HasDraft(),
	}
}

func (h *AdminHandler) GetItem(c *gin.Context) {
	item, err := h.content.GetContentByID(c.Request.Context(), siteID(c), c.Param("collection"), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if item == nil {
		notFound(c, "content")
		return
	}
	c.JSON(http.StatusOK, adminItem(item))
}

func bindData(c *gin.Context) (map[string]any, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return body, true
}

func (h *AdminHandler) CreateItem(c *gin.Context) {
	data, ok := bindData(c)
	if !ok {
		return
	}
	item, err := h.content.CreateContent(c.Request.Context(), siteID(c), c.Param("collection"), data, c.GetString(constants.ContextKeyAuthorID))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, adminItem(item))
}

func (h *AdminHandler) UpdateItem(c *gin.Context) {
	patch, ok := bindData(c)
	if !ok {
		return
	}
	item, err := h.content.UpdateContentByID(c.Request.Context(), siteID(c), c.Param("collection"), c.Param("id"), patch)
	h.itemResult(c, item, err)
}

func (h *AdminHandler) SaveDraft(c *gin.Context) {
	draft, ok := bindData(c)
	if !ok {
		return
	}
	item, err := h.content.UpdateDraftByID(c.Request.Context(), siteID(c), c.Param("collection"), c.Param("id"), draft)
	h.itemResult(c, item, err)
}

func (h *AdminHandler) ClearDraft(c *gin.Context) {
	item, err := h.content.ClearDraftByID(c.Request.Context(), siteID(c), c.Param("collection"), c.Param("id"))
	h.itemResult(c, item, err)
}

// Publish promotes the pending draft, or the JSON body when one is sent.
func (h *AdminHandler) Publish(c *gin.Context) {
	var payload map[string]any
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&payload); err != nil && err != io.EOF {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	item, err := h.content.PublishDraftByID(c.Request.Context(), siteID(c), c.Param("collection"), c.Param("id"), payload)
	h.itemResult(c, item, err)
}

func (h *AdminHandler) itemResult(c *gin.Context, item *models.ContentItem, err error) {
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if item == nil {
		notFound(c, "content")
		return
	}
	c.JSON(http.StatusOK, adminItem(item))
}

func (h *AdminHandler) DeleteItem(c *gin.Context) {
	if err := h.content.DeleteContentByID(c.Request.Context(), siteID(c), c.Param("collection"), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportItems accepts a JSON array of rows, a text/csv body or a multipart
// "file" upload of a CSV.
func (h *AdminHandler) ImportItems(c *gin.Context) {
	var rows []map[string]any
	var err error

	switch ct := c.ContentType(); {
	case ct == "text/csv":
		rows, err = services.ReadCSV(c.Request.Body)
	case strings.HasPrefix(ct, "multipart/"):
		file, ferr := c.FormFile("file")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": ferr.Error()})
			return
		}
		f, ferr := file.Open()
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": ferr.Error()})
			return
		}
		defer f.Close()
		rows, err = services.ReadCSV(f)
	default:
		err = c.ShouldBindJSON(&rows)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.importer.CreateContentBatch(c.Request.Context(), siteID(c), c.Param("collection"), rows)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.sites.GetSettings(c.Request.Context(), siteID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	delete(settings, constants.SettingAPIToken)
	c.JSON(http.StatusOK, gin.H{"site": currentSite(c), "settings": settings})
}

func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var settings map[string]string
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.sites.UpdateSettings(c.Request.Context(), siteID(c), settings); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "settings updated"})
}

// listOptions reads limit, offset, sort and filter[key]=value.
func listOptions(c *gin.Context) services.ListOptions {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	filter := make(map[string]any)
	for k, v := range c.QueryMap("filter") {
		filter[k] = v
	}
	return services.ListOptions{
		Limit:  limit,
		Offset: offset,
		Sort:   c.Query("sort"),
		Filter: filter,
	}
}
