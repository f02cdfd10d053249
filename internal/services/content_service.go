package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"quire/internal/constants"
	"quire/internal/fields"
	"quire/internal/markdown"
	"quire/internal/metrics"
	"quire/internal/models"
	"quire/internal/repository"
	"quire/internal/utils"
)

// publishedAtKey is the input key that writes the published_at column.
const publishedAtKey = "publishedAt"

// ListOptions narrows a collection listing.
type ListOptions struct {
	Limit         int
	Offset        int
	Sort          string
	Filter        map[string]any
	PublishedOnly bool
}

// ListResult is one page of a listing.
type ListResult struct {
	Items []models.ContentItem `json:"items"`
	Total int64                `json:"total"`
	Page  utils.PageMeta       `json:"page"`
}

// RenderedItem carries derived, display-only values next to an item.
type RenderedItem struct {
	*models.ContentItem
	HTML        map[string]string   `json:"html"`
	Excerpt     string              `json:"excerpt"`
	ReadingTime int                 `json:"readingTime"`
	TOC         []markdown.TOCEntry `json:"toc"`
}

// ContentService is the draft/publish content store.  Every call names the
// site and the collection slug; the collection is always resolved by both.
type ContentService struct {
	schemas  *SchemaService
	repo     *repository.ContentRepository
	renderer *markdown.Renderer
	log      *zap.Logger
	now      func() time.Time
}

func NewContentService(schemas *SchemaService, repo *repository.ContentRepository, renderer *markdown.Renderer, log *zap.Logger) *ContentService {
	return &ContentService{
		schemas:  schemas,
		repo:     repo,
		renderer: renderer,
		log:      log,
		now:      time.Now,
	}
}

func isColumnKey(k string) bool {
	switch k {
	case fields.Title, fields.Slug, fields.Status, publishedAtKey:
		return true
	}
	return false
}

// coerceData coerces every declared key of in and keeps undeclared keys as
// they are.  Column-backed and computed keys are skipped.  Keys whose value
// coerces to nil are reported in cleared.
func coerceData(coll *models.Collection, in map[string]any) (data map[string]any, cleared []string, err error) {
	data = make(map[string]any, len(in))
	for k, v := range in {
		if isColumnKey(k) || k == fields.DateLastModified {
			continue
		}
		f, ok := coll.Field(k)
		if !ok {
			data[k] = v
			continue
		}
		cv, err := fields.Coerce(f, v)
		if err != nil {
			return nil, nil, validationFrom(err)
		}
		if cv == nil {
			cleared = append(cleared, k)
			continue
		}
		data[k] = cv
	}
	return data, cleared, nil
}

// applyDefaults fills absent declared fields from their defaults and rejects
// missing required ones.
func applyDefaults(coll *models.Collection, data map[string]any) error {
	for _, f := range coll.Fields {
		if isColumnKey(f.Name) || f.Name == fields.DateLastModified {
			continue
		}
		if _, ok := data[f.Name]; ok {
			continue
		}
		if f.Default != nil {
			v, err := fields.Coerce(f, f.Default)
			if err != nil {
				return validationFrom(err)
			}
			if v != nil {
				data[f.Name] = v
				continue
			}
		}
		if f.Required {
			return models.ValidationError{Field: f.Name, Message: "is required"}
		}
	}
	return nil
}

func coerceColumn(coll *models.Collection, name string, raw any) (string, error) {
	f, _ := coll.Field(name)
	v, err := fields.Coerce(f, raw)
	if err != nil {
		return "", validationFrom(err)
	}
	s, _ := v.(string)
	return s, nil
}

func parsePublishedAt(raw any) (*time.Time, error) {
	v, err := fields.Coerce(fields.Field{Name: publishedAtKey, Type: fields.TypeDatetime}, raw)
	if err != nil || v == nil {
		return nil, validationFrom(err)
	}
	t, err := time.Parse(time.RFC3339, v.(string))
	if err != nil {
		return nil, models.ValidationError{Field: publishedAtKey, Message: err.Error()}
	}
	return &t, nil
}

// newItem builds an unsaved item from create input.  explicit reports whether
// the caller chose the slug.
func newItem(coll *models.Collection, in map[string]any, now time.Time) (*models.ContentItem, bool, error) {
	title, err := coerceColumn(coll, fields.Title, in[fields.Title])
	if err != nil {
		return nil, false, err
	}

	explicit := false
	itemSlug := ""
	if raw, ok := in[fields.Slug].(string); ok && strings.TrimSpace(raw) != "" {
		itemSlug = slug.Make(raw)
		explicit = true
	}
	if itemSlug == "" {
		itemSlug = slug.Make(title)
	}
	if itemSlug == "" {
		itemSlug = "untitled"
	}

	status := constants.StatusDraft
	if raw, ok := in[fields.Status]; ok {
		if status, err = coerceColumn(coll, fields.Status, raw); err != nil {
			return nil, false, err
		}
		if status == "" {
			status = constants.StatusDraft
		}
	}

	data, _, err := coerceData(coll, in)
	if err != nil {
		return nil, false, err
	}
	if err := applyDefaults(coll, data); err != nil {
		return nil, false, err
	}

	item := &models.ContentItem{
		ID:           uuid.NewString(),
		SiteID:       coll.SiteID,
		CollectionID: coll.ID,
		Slug:         itemSlug,
		Title:        title,
		Data:         datatypes.JSONMap(data),
		Status:       status,
	}
	if raw, ok := in[publishedAtKey]; ok {
		if item.PublishedAt, err = parsePublishedAt(raw); err != nil {
			return nil, false, err
		}
	}
	if item.IsPublished() && item.PublishedAt == nil {
		stamp := now.UTC()
		item.PublishedAt = &stamp
	}
	return item, explicit, nil
}

// generateUniqueSlug checks for slug uniqueness and appends a counter if needed.
func (s *ContentService) generateUniqueSlug(ctx context.Context, coll *models.Collection, base, itemID string) (string, error) {
	finalSlug := base
	counter := 1
	for {
		exists, err := s.repo.CheckSlugExists(ctx, coll.SiteID, coll.ID, finalSlug, itemID)
		if err != nil {
			return "", err
		}
		if !exists {
			return finalSlug, nil
		}
		finalSlug = fmt.Sprintf("%s-%d", base, counter)
		counter++
	}
}

// CreateContent stores a new item in a site's collection.  A slug derived
// from the title gets a -N suffix on collision; a slug the caller asked for
// must be free.
func (s *ContentService) CreateContent(ctx context.Context, siteID, collSlug string, data map[string]any, authorID string) (*models.ContentItem, error) {
	if data == nil {
		return nil, models.ValidationError{Field: "data", Message: "is required"}
	}
	coll, err := s.schemas.RequireCollection(ctx, siteID, collSlug)
	if err != nil {
		return nil, err
	}

	item, explicit, err := newItem(coll, data, s.now())
	if err != nil {
		return nil, err
	}
	if authorID != "" {
		item.AuthorID = &authorID
	}

	if explicit {
		exists, err := s.repo.CheckSlugExists(ctx, siteID, coll.ID, item.Slug, "")
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, models.ConflictError{Resource: "content", Key: item.Slug}
		}
	} else if item.Slug, err = s.generateUniqueSlug(ctx, coll, item.Slug, ""); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	metrics.ContentWritesTotal.WithLabelValues("create").Inc()
	s.log.Debug("content created",
		zap.String("site", siteID),
		zap.String("collection", collSlug),
		zap.String("item", item.ID))
	return item, nil
}

// ListContent pages through a collection.  The default order is most
// recently updated first.
func (s *ContentService) ListContent(ctx context.Context, siteID, collSlug string, opts ListOptions) (*ListResult, error) {
	coll, err := s.schemas.RequireCollection(ctx, siteID, collSlug)
	if err != nil {
		return nil, err
	}
	limit := utils.ClampLimit(opts.Limit)
	offset := utils.ClampOffset(opts.Offset)

	items, total, err := s.repo.List(ctx, repository.ContentQuery{
		SiteID:        siteID,
		CollectionID:  coll.ID,
		Limit:         limit,
		Offset:        offset,
		Sort:          opts.Sort,
		Filter:        typedFilter(coll, opts.Filter),
		PublishedOnly: opts.PublishedOnly,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.ContentItem{}
	}
	return &ListResult{
		Items: items,
		Total: total,
		Page:  utils.GeneratePagination(total, limit, offset),
	}, nil
}

// typedFilter turns query-string filter values into the JSON scalars stored
// in data: declared boolean fields are coerced, undeclared keys holding
// "true", "false" or a number become bool or float64.  Column filters and
// declared non-boolean fields keep their strings.
func typedFilter(coll *models.Collection, filter map[string]any) map[string]any {
	if len(filter) == 0 {
		return filter
	}
	out := make(map[string]any, len(filter))
	for k, v := range filter {
		out[k] = v
		str, ok := v.(string)
		if !ok || repository.IsColumnFilter(k) {
			continue
		}
		if f, declared := coll.Field(k); declared {
			if f.Type == fields.TypeBoolean {
				if b, err := fields.Coerce(f, str); err == nil && b != nil {
					out[k] = b
				}
			}
			continue
		}
		switch str {
		case "true":
			out[k] = true
		case "false":
			out[k] = false
		default:
			if n, err := strconv.ParseFloat(str, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
				out[k] = n
			}
		}
	}
	return out
}

// GetContentBySlug returns nil when the site has no such collection or item.
func (s *ContentService) GetContentBySlug(ctx context.Context, siteID, collSlug, itemSlug string) (*models.ContentItem, error) {
	coll, err := s.schemas.GetCollection(ctx, siteID, collSlug)
	if err != nil || coll == nil {
		return nil, err
	}
	return s.repo.FindBySlug(ctx, siteID, coll.ID, itemSlug)
}

// GetContentByID returns nil when the site has no such collection or item.
func (s *ContentService) GetContentByID(ctx context.Context, siteID, collSlug, id string) (*models.ContentItem, error) {
	coll, err := s.schemas.GetCollection(ctx, siteID, collSlug)
	if err != nil || coll == nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, siteID, coll.ID, id)
}

// locate resolves the collection (a miss is an error) and the item (a miss
// is nil).
func (s *ContentService) locate(ctx context.Context, siteID, collSlug, id string) (*models.Collection, *models.ContentItem, error) {
	coll, err := s.schemas.RequireCollection(ctx, siteID, collSlug)
	if err != nil {
		return nil, nil, err
	}
	item, err := s.repo.FindByID(ctx, siteID, coll.ID, id)
	if err != nil {
		return nil, nil, err
	}
	return coll, item, nil
}

func (s *ContentService) write(ctx context.Context, op string, coll *models.Collection, id string, values map[string]any) (*models.ContentItem, error) {
	ok, err := s.repo.UpdateFields(ctx, coll.SiteID, coll.ID, id, values)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	metrics.ContentWritesTotal.WithLabelValues(op).Inc()
	return s.repo.FindByID(ctx, coll.SiteID, coll.ID, id)
}

// stampPublished sets published_at only if it is still NULL, inside the
// same UPDATE.
func (s *ContentService) stampPublished() any {
	return gorm.Expr("COALESCE(published_at, ?)", s.now().UTC())
}

// UpdateContentByID shallow-merges patch into the live data.  title, slug,
// status and publishedAt go to their columns.  Touching any content field
// drops a pending draft.  Returns nil when the item does not exist.
func (s *ContentService) UpdateContentByID(ctx context.Context, siteID, collSlug, id string, patch map[string]any) (*models.ContentItem, error) {
	coll, item, err := s.locate(ctx, siteID, collSlug, id)
	if err != nil || item == nil {
		return nil, err
	}

	values := make(map[string]any)
	contentChanged := false

	if raw, ok := patch[fields.Title]; ok {
		title, err := coerceColumn(coll, fields.Title, raw)
		if err != nil {
			return nil, err
		}
		values["title"] = title
		contentChanged = true
	}
	if raw, ok := patch[fields.Slug]; ok {
		str, _ := raw.(string)
		newSlug := slug.Make(str)
		if newSlug == "" {
			return nil, models.ValidationError{Field: fields.Slug, Message: "is empty"}
		}
		if newSlug != item.Slug {
			exists, err := s.repo.CheckSlugExists(ctx, siteID, coll.ID, newSlug, item.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, models.ConflictError{Resource: "content", Key: newSlug}
			}
		}
		values["slug"] = newSlug
		contentChanged = true
	}
	if raw, ok := patch[publishedAtKey]; ok && item.PublishedAt == nil {
		at, err := parsePublishedAt(raw)
		if err != nil {
			return nil, err
		}
		if at != nil {
			values["published_at"] = *at
		}
	}

	coerced, cleared, err := coerceData(coll, patch)
	if err != nil {
		return nil, err
	}
	if len(coerced) > 0 || len(cleared) > 0 {
		merged := make(map[string]any, len(item.Data)+len(coerced))
		for k, v := range item.Data {
			merged[k] = v
		}
		for k, v := range coerced {
			merged[k] = v
		}
		for _, k := range cleared {
			delete(merged, k)
		}
		values["data"] = datatypes.JSONMap(merged)
		contentChanged = true
	}
	if contentChanged {
		values["draft_data"] = nil
	}

	if raw, ok := patch[fields.Status]; ok {
		status, err := coerceColumn(coll, fields.Status, raw)
		if err != nil {
			return nil, err
		}
		switch status {
		case constants.StatusPublished:
			values["status"] = status
			if _, set := values["published_at"]; !set {
				values["published_at"] = s.stampPublished()
			}
		case constants.StatusDraft, "":
			values["status"] = constants.StatusDraft
			values["draft_data"] = nil
		}
	}

	if len(values) == 0 {
		return item, nil
	}
	return s.write(ctx, "update", coll, id, values)
}

// UpdateDraftByID stores pending edits on a published item.  Unpublished
// items have no draft slot, so the call becomes a direct update.
func (s *ContentService) UpdateDraftByID(ctx context.Context, siteID, collSlug, id string, draft map[string]any) (*models.ContentItem, error) {
	coll, item, err := s.locate(ctx, siteID, collSlug, id)
	if err != nil || item == nil {
		return nil, err
	}
	if _, ok := item.State().(models.Unpublished); ok {
		return s.UpdateContentByID(ctx, siteID, collSlug, id, draft)
	}

	overlay := make(map[string]any, len(item.DraftData)+len(draft))
	for k, v := range item.DraftData {
		overlay[k] = v
	}
	coerced, cleared, err := coerceData(coll, draft)
	if err != nil {
		return nil, err
	}
	for k, v := range coerced {
		overlay[k] = v
	}
	for _, k := range cleared {
		overlay[k] = nil
	}
	for _, k := range []string{fields.Title, fields.Slug} {
		if raw, ok := draft[k]; ok {
			v, err := coerceColumn(coll, k, raw)
			if err != nil {
				return nil, err
			}
			if k == fields.Slug {
				v = slug.Make(v)
			}
			overlay[k] = v
		}
	}

	var value any
	if len(overlay) > 0 {
		value = datatypes.JSONMap(overlay)
	}
	ok, err := s.repo.UpdateDraft(ctx, siteID, coll.ID, id, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		// unpublished or deleted since it was read
		return s.UpdateContentByID(ctx, siteID, collSlug, id, draft)
	}
	metrics.ContentWritesTotal.WithLabelValues("draft").Inc()
	return s.repo.FindByID(ctx, siteID, coll.ID, id)
}

// ClearDraftByID discards the pending overlay.
func (s *ContentService) ClearDraftByID(ctx context.Context, siteID, collSlug, id string) (*models.ContentItem, error) {
	coll, item, err := s.locate(ctx, siteID, collSlug, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, models.NotFoundError{Resource: "content", Key: id, SiteID: siteID}
	}
	return s.write(ctx, "clear_draft", coll, id, map[string]any{"draft_data": nil})
}

// PublishDraftByID makes an item live in one UPDATE.  payload, when given,
// replaces data; otherwise the pending overlay is promoted over data.
func (s *ContentService) PublishDraftByID(ctx context.Context, siteID, collSlug, id string, payload map[string]any) (*models.ContentItem, error) {
	coll, item, err := s.locate(ctx, siteID, collSlug, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, models.NotFoundError{Resource: "content", Key: id, SiteID: siteID}
	}

	var doc map[string]any
	if payload != nil {
		doc = payload
	} else {
		doc = item.EditableData()
	}

	values := map[string]any{
		"status":       constants.StatusPublished,
		"published_at": s.stampPublished(),
		"draft_data":   nil,
	}

	for _, k := range []string{fields.Title, fields.Slug} {
		raw, ok := doc[k]
		if !ok || raw == nil {
			continue
		}
		v, err := coerceColumn(coll, k, raw)
		if err != nil {
			return nil, err
		}
		if k == fields.Slug {
			if v = slug.Make(v); v == "" || v == item.Slug {
				continue
			}
			exists, err := s.repo.CheckSlugExists(ctx, siteID, coll.ID, v, item.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, models.ConflictError{Resource: "content", Key: v}
			}
		}
		values[k] = v
	}

	data, _, err := coerceData(coll, doc)
	if err != nil {
		return nil, err
	}
	values["data"] = datatypes.JSONMap(data)

	published, err := s.write(ctx, "publish", coll, id, values)
	if err != nil {
		return nil, err
	}
	s.log.Info("content published",
		zap.String("site", siteID),
		zap.String("collection", collSlug),
		zap.String("item", id))
	return published, nil
}

// DeleteContentByID removes an item.  Missing items are not an error.
func (s *ContentService) DeleteContentByID(ctx context.Context, siteID, collSlug, id string) error {
	coll, err := s.schemas.RequireCollection(ctx, siteID, collSlug)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, siteID, coll.ID, id); err != nil {
		return err
	}
	metrics.ContentWritesTotal.WithLabelValues("delete").Inc()
	return nil
}

// Search matches query against titles and data of a site's items.  Unknown
// collection slugs are an error rather than being ignored.
func (s *ContentService) Search(ctx context.Context, siteID, query string, collSlugs []string, publishedOnly bool, limit int) ([]models.ContentItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.ContentItem{}, nil
	}

	var ids []string
	if len(collSlugs) > 0 {
		found, err := s.schemas.repo.FindBySlugs(ctx, siteID, collSlugs)
		if err != nil {
			return nil, err
		}
		bySlug := make(map[string]string, len(found))
		for _, c := range found {
			bySlug[c.Slug] = c.ID
		}
		for _, cs := range collSlugs {
			id, ok := bySlug[cs]
			if !ok {
				metrics.CollectionMissesTotal.Inc()
				return nil, models.CollectionNotFound(siteID, cs)
			}
			ids = append(ids, id)
		}
	}

	items, err := s.repo.Search(ctx, siteID, ids, query, publishedOnly, utils.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.ContentItem{}
	}
	return items, nil
}

// BodyField names the markdown field treated as the item body: "content" or
// "body" when declared, else the first markdown field.
func BodyField(coll *models.Collection) string {
	if coll.Fields == nil {
		coll.ResolveFields()
	}
	first := ""
	for _, f := range coll.Fields {
		if f.Type != fields.TypeMarkdown {
			continue
		}
		if f.Name == "content" || f.Name == "body" {
			return f.Name
		}
		if first == "" {
			first = f.Name
		}
	}
	if first == "" {
		return "content"
	}
	return first
}

// RenderItem renders every markdown field of item and derives the excerpt,
// reading time and table of contents from its body.  Rendering failures
// degrade to the raw text.
func (s *ContentService) RenderItem(item *models.ContentItem, coll *models.Collection) *RenderedItem {
	if coll.Fields == nil {
		coll.ResolveFields()
	}
	out := &RenderedItem{ContentItem: item, HTML: map[string]string{}}
	for _, f := range coll.Fields {
		if f.Type != fields.TypeMarkdown {
			continue
		}
		if src := item.String(f.Name); src != "" {
			out.HTML[f.Name] = s.renderer.RenderOrRaw(src)
		}
	}

	bodyField := BodyField(coll)
	body := item.String(bodyField)
	if _, done := out.HTML[bodyField]; !done && body != "" {
		out.HTML[bodyField] = s.renderer.RenderOrRaw(body)
	}
	out.Excerpt = item.String("excerpt")
	if out.Excerpt == "" {
		out.Excerpt = markdown.ExtractExcerpt(body, markdown.DefaultExcerptLength)
	}
	out.ReadingTime = markdown.EstimateReadingTime(body)
	out.TOC = markdown.GenerateTableOfContents(body)
	if out.TOC == nil {
		out.TOC = []markdown.TOCEntry{}
	}
	return out
}
