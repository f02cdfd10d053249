package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quire/internal/constants"
	"quire/internal/models"
)

// sortable maps accepted sort keys to columns.
var sortable = map[string]string{
	"title":        "title",
	"slug":         "slug",
	"created_at":   "created_at",
	"createdAt":    "created_at",
	"updated_at":   "updated_at",
	"updatedAt":    "updated_at",
	"published_at": "published_at",
	"publishedAt":  "published_at",
}

// systemFilters are filter keys answered by a column instead of data.
var systemFilters = map[string]string{
	"id":        "id",
	"slug":      "slug",
	"title":     "title",
	"status":    "status",
	"author_id": "author_id",
	"authorId":  "author_id",
}

var dataKeyRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ContentQuery is a list request already scoped to one collection.
type ContentQuery struct {
	SiteID        string
	CollectionID  string
	Limit         int
	Offset        int
	Sort          string
	Filter        map[string]any
	PublishedOnly bool
}

type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) scoped(ctx context.Context, siteID, collectionID string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ContentItem{}).
		Where("site_id = ? AND collection_id = ?", siteID, collectionID)
}

// List returns one page of items and the total matching count.
func (r *ContentRepository) List(ctx context.Context, q ContentQuery) ([]models.ContentItem, int64, error) {
	build := func() (*gorm.DB, error) {
		tx := r.scoped(ctx, q.SiteID, q.CollectionID)
		if q.PublishedOnly {
			tx = tx.Where("status = ?", constants.StatusPublished)
		}
		for key, value := range q.Filter {
			var err error
			if tx, err = r.applyFilter(tx, key, value); err != nil {
				return nil, err
			}
		}
		return tx, nil
	}

	countTx, err := build()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := countTx.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count content")
	}

	listTx, _ := build()
	column, desc := ParseSort(q.Sort)
	var items []models.ContentItem
	err = listTx.
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc}).
		Order("id asc").
		Offset(q.Offset).Limit(q.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list content")
	}
	return items, total, nil
}

// ParseSort reads "field", "-field", "field desc" or "field:asc".  Unknown
// fields fall back to updated_at descending.
func ParseSort(sort string) (string, bool) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		return "updated_at", true
	}
	desc := false
	if strings.HasPrefix(sort, "-") {
		desc = true
		sort = sort[1:]
	}
	name, dir, _ := strings.Cut(strings.NewReplacer(":", " ").Replace(sort), " ")
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "desc":
		desc = true
	case "asc":
		desc = false
	}
	column, ok := sortable[name]
	if !ok {
		return "updated_at", true
	}
	return column, desc
}

// IsColumnFilter reports whether key filters on a column rather than data.
func IsColumnFilter(key string) bool {
	_, ok := systemFilters[key]
	return ok
}

func (r *ContentRepository) applyFilter(tx *gorm.DB, key string, value any) (*gorm.DB, error) {
	if column, ok := systemFilters[key]; ok {
		return tx.Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}), nil
	}
	if !dataKeyRe.MatchString(key) {
		return nil, models.ValidationError{Field: key, Message: "is not a valid filter key"}
	}
	expr, arg := jsonExtract(r.db.Dialector.Name(), key)
	return tx.Where(expr+" = ?", arg, jsonFilterValue(r.db.Dialector.Name(), value)), nil
}

// jsonExtract returns a text-valued expression reading key from data.
func jsonExtract(dialect, key string) (string, string) {
	switch dialect {
	case "postgres":
		return "data->>CAST(? AS TEXT)", key
	case "mysql":
		return "JSON_UNQUOTE(JSON_EXTRACT(data, ?))", "$." + key
	default:
		return "json_extract(data, ?)", "$." + key
	}
}

// jsonFilterValue adapts a filter value to what jsonExtract yields on the
// dialect: text on postgres and mysql, native JSON scalars on sqlite.
func jsonFilterValue(dialect string, v any) any {
	if dialect == "postgres" || dialect == "mysql" {
		return fmt.Sprint(v)
	}
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

// dataAsText casts the data column for substring search.
func dataAsText(dialect string) string {
	if dialect == "mysql" {
		return "CAST(data AS CHAR)"
	}
	return "CAST(data AS TEXT)"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// likeEscapeClause declares the backslash escape.  MySQL already uses it and
// would read '\' as an unterminated literal.
func likeEscapeClause(dialect string) string {
	if dialect == "mysql" {
		return ""
	}
	return ` ESCAPE '\'`
}

// FindBySlug returns the item or nil.
func (r *ContentRepository) FindBySlug(ctx context.Context, siteID, collectionID, slug string) (*models.ContentItem, error) {
	return r.first(ctx, r.scoped(ctx, siteID, collectionID).Where("slug = ?", slug))
}

// FindByID returns the item or nil.
func (r *ContentRepository) FindByID(ctx context.Context, siteID, collectionID, id string) (*models.ContentItem, error) {
	return r.first(ctx, r.scoped(ctx, siteID, collectionID).Where("id = ?", id))
}

func (r *ContentRepository) first(_ context.Context, tx *gorm.DB) (*models.ContentItem, error) {
	var item models.ContentItem
	err := tx.First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find content")
	}
	return &item, nil
}

func (r *ContentRepository) CheckSlugExists(ctx context.Context, siteID, collectionID, slug, excludeID string) (bool, error) {
	var count int64
	q := r.scoped(ctx, siteID, collectionID).Where("slug = ?", slug)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "count slugs")
	}
	return count > 0, nil
}

func (r *ContentRepository) Create(ctx context.Context, item *models.ContentItem) error {
	err := r.db.WithContext(ctx).Create(item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.ConflictError{Resource: "content", Key: item.Slug}
	}
	return errors.Wrap(err, "create content")
}

// UpdateFields applies one UPDATE to a single item and reports whether a row
// matched.
func (r *ContentRepository) UpdateFields(ctx context.Context, siteID, collectionID, id string, values map[string]any) (bool, error) {
	res := r.scoped(ctx, siteID, collectionID).Where("id = ?", id).Updates(values)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		slug, _ := values["slug"].(string)
		return false, models.ConflictError{Resource: "content", Key: slug}
	}
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "update content")
	}
	return res.RowsAffected > 0, nil
}

// UpdateDraft writes the draft overlay of a published item.  The status
// check is part of the UPDATE, so an item unpublished in the meantime is left
// alone and false is returned.
func (r *ContentRepository) UpdateDraft(ctx context.Context, siteID, collectionID, id string, draft any) (bool, error) {
	res := r.scoped(ctx, siteID, collectionID).
		Where("id = ? AND status = ?", id, constants.StatusPublished).
		Updates(map[string]any{"draft_data": draft})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "update draft")
	}
	return res.RowsAffected > 0, nil
}

// Delete removes an item; deleting a missing item is not an error.
func (r *ContentRepository) Delete(ctx context.Context, siteID, collectionID, id string) error {
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND collection_id = ? AND id = ?", siteID, collectionID, id).
		Delete(&models.ContentItem{}).Error
	return errors.Wrap(err, "delete content")
}

func onConflictSkip() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "site_id"}, {Name: "collection_id"}, {Name: "slug"}},
		DoNothing: true,
	}
}

// InsertIgnore inserts items in one statement, skipping rows whose
// (site_id, collection_id, slug) already exists.  It returns how many rows
// were actually written.
func (r *ContentRepository) InsertIgnore(ctx context.Context, items []models.ContentItem) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Clauses(onConflictSkip()).Create(&items)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "batch insert content")
	}
	return res.RowsAffected, nil
}

// SlugIDs maps every slug of a collection to its item id.
func (r *ContentRepository) SlugIDs(ctx context.Context, siteID, collectionID string) (map[string]string, error) {
	var rows []struct {
		ID   string
		Slug string
	}
	if err := r.scoped(ctx, siteID, collectionID).Select("id", "slug").Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load slug index")
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Slug] = row.ID
	}
	return out, nil
}

// Search does a case-insensitive substring match over title and the
// serialized data of a site's items.
func (r *ContentRepository) Search(ctx context.Context, siteID string, collectionIDs []string, query string, publishedOnly bool, limit int) ([]models.ContentItem, error) {
	dialect := r.db.Dialector.Name()
	like := "%" + escapeLike(strings.ToLower(query)) + "%"
	esc := likeEscapeClause(dialect)
	tx := r.db.WithContext(ctx).Model(&models.ContentItem{}).
		Where("site_id = ?", siteID).
		Where("LOWER(title) LIKE ?"+esc+" OR LOWER("+dataAsText(dialect)+") LIKE ?"+esc, like, like)
	if len(collectionIDs) > 0 {
		tx = tx.Where("collection_id IN ?", collectionIDs)
	}
	if publishedOnly {
		tx = tx.Where("status = ?", constants.StatusPublished)
	}

	var items []models.ContentItem
	err := tx.Order("updated_at desc").Order("id asc").Limit(limit).Find(&items).Error
	return items, errors.Wrap(err, "search content")
}

// ScheduledDrafts lists draft items of a site whose data.datePublished is at
// or before now.  datePublished is stored as RFC3339 UTC, so text comparison
// orders correctly.
func (r *ContentRepository) ScheduledDrafts(ctx context.Context, siteID string, now time.Time) ([]models.ContentItem, error) {
	dialect := r.db.Dialector.Name()
	expr, arg := jsonExtract(dialect, "datePublished")

	var items []models.ContentItem
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND status = ?", siteID, constants.StatusDraft).
		Where(expr+" IS NOT NULL", arg).
		Where(expr+" <= ?", arg, now.UTC().Format(time.RFC3339)).
		Order("id asc").
		Find(&items).Error
	return items, errors.Wrap(err, "list scheduled drafts")
}

// CountByCollection returns item counts per collection id of a site.
func (r *ContentRepository) CountByCollection(ctx context.Context, siteID string, publishedOnly bool) (map[string]int64, error) {
	var rows []struct {
		CollectionID string
		N            int64
	}
	tx := r.db.WithContext(ctx).Model(&models.ContentItem{}).Where("site_id = ?", siteID)
	if publishedOnly {
		tx = tx.Where("status = ?", constants.StatusPublished)
	}
	if err := tx.Select("collection_id, COUNT(*) AS n").Group("collection_id").Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "count by collection")
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.CollectionID] = row.N
	}
	return out, nil
}

// ListAll returns every item of a site, used by the sitemap.
func (r *ContentRepository) ListAll(ctx context.Context, siteID string, publishedOnly bool) ([]models.ContentItem, error) {
	tx := r.db.WithContext(ctx).Where("site_id = ?", siteID)
	if publishedOnly {
		tx = tx.Where("status = ?", constants.StatusPublished)
	}
	var items []models.ContentItem
	err := tx.Order("collection_id asc, slug asc").Find(&items).Error
	return items, errors.Wrap(err, "list site content")
}
