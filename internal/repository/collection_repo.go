package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"quire/internal/models"
)

// CollectionRepository persists collection definitions.  Every lookup is
// scoped by site_id; there is no slug-only finder.
type CollectionRepository struct {
	db *gorm.DB
}

func NewCollectionRepository(db *gorm.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// FindBySlug returns the site's collection with slug, or nil.
func (r *CollectionRepository) FindBySlug(ctx context.Context, siteID, slug string) (*models.Collection, error) {
	var c models.Collection
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND slug = ?", siteID, slug).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find collection %s", slug)
	}
	return &c, nil
}

// FindByID returns the site's collection with id, or nil.
func (r *CollectionRepository) FindByID(ctx context.Context, siteID, id string) (*models.Collection, error) {
	var c models.Collection
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND id = ?", siteID, id).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find collection %s", id)
	}
	return &c, nil
}

// FindAll lists a site's collections oldest first.  The order is also the
// tie-break for URL pattern matching.
func (r *CollectionRepository) FindAll(ctx context.Context, siteID string) ([]models.Collection, error) {
	var list []models.Collection
	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("created_at asc, id asc").
		Find(&list).Error
	return list, errors.Wrap(err, "list collections")
}

// FindBySlugs returns the subset of slugs that exist in the site.
func (r *CollectionRepository) FindBySlugs(ctx context.Context, siteID string, slugs []string) ([]models.Collection, error) {
	var list []models.Collection
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND slug IN ?", siteID, slugs).
		Find(&list).Error
	return list, errors.Wrap(err, "find collections by slug")
}

func (r *CollectionRepository) CheckSlugExists(ctx context.Context, siteID, slug, excludeID string) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Collection{}).
		Where("site_id = ? AND slug = ?", siteID, slug)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "count collections")
	}
	return count > 0, nil
}

func (r *CollectionRepository) Create(ctx context.Context, c *models.Collection) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(c).Error, "create collection")
}

func (r *CollectionRepository) Update(ctx context.Context, c *models.Collection) error {
	err := r.db.WithContext(ctx).
		Where("site_id = ?", c.SiteID).
		Select("name", "slug", "url_pattern", "schema", "settings", "updated_at").
		Updates(c).Error
	return errors.Wrap(err, "update collection")
}

// Delete removes a collection and all of its items in one transaction.
func (r *CollectionRepository) Delete(ctx context.Context, siteID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("site_id = ? AND collection_id = ?", siteID, id).
			Delete(&models.ContentItem{}).Error; err != nil {
			return errors.Wrap(err, "delete collection items")
		}
		if err := tx.Where("site_id = ? AND id = ?", siteID, id).
			Delete(&models.Collection{}).Error; err != nil {
			return errors.Wrap(err, "delete collection")
		}
		return nil
	})
}
