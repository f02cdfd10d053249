package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"quire/internal/models"
)

type SiteRepository struct {
	db *gorm.DB
}

func NewSiteRepository(db *gorm.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

func (r *SiteRepository) Create(ctx context.Context, site *models.Site) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(site).Error, "create site")
}

func (r *SiteRepository) Update(ctx context.Context, site *models.Site) error {
	return errors.Wrap(r.db.WithContext(ctx).Save(site).Error, "update site")
}

// FindByID returns nil when the site does not exist.
func (r *SiteRepository) FindByID(ctx context.Context, id string) (*models.Site, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByHost returns nil when no site claims host.
func (r *SiteRepository) FindByHost(ctx context.Context, host string) (*models.Site, error) {
	if host == "" {
		return nil, nil
	}
	return r.first(ctx, "host = ?", host)
}

func (r *SiteRepository) FindAll(ctx context.Context) ([]models.Site, error) {
	var sites []models.Site
	err := r.db.WithContext(ctx).Order("created_at asc, id asc").Find(&sites).Error
	return sites, errors.Wrap(err, "list sites")
}

// CheckHostExists reports whether another site already uses host.
func (r *SiteRepository) CheckHostExists(ctx context.Context, host, excludeID string) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Site{}).Where("host = ?", host)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "count hosts")
	}
	return count > 0, nil
}

func (r *SiteRepository) first(ctx context.Context, query string, args ...any) (*models.Site, error) {
	var site models.Site
	err := r.db.WithContext(ctx).Where(query, args...).First(&site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find site")
	}
	return &site, nil
}
