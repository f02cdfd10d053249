package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quire/internal/models"
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// GetSettingByKey retrieves a single setting of a site, or nil.
func (r *SettingRepository) GetSettingByKey(ctx context.Context, siteID, key string) (*models.Setting, error) {
	var setting models.Setting
	err := r.db.WithContext(ctx).
		Where(&models.Setting{SiteID: siteID, Key: key}).
		First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find setting")
	}
	return &setting, nil
}

// GetAllSettings retrieves all settings of a site as a map.
func (r *SettingRepository) GetAllSettings(ctx context.Context, siteID string) (map[string]string, error) {
	var settings []models.Setting
	if err := r.db.WithContext(ctx).Where("site_id = ?", siteID).Find(&settings).Error; err != nil {
		return nil, errors.Wrap(err, "list settings")
	}

	settingsMap := make(map[string]string, len(settings))
	for _, s := range settings {
		settingsMap[s.Key] = s.Value
	}
	return settingsMap, nil
}

// UpdateSetting updates or creates a setting of a site.
func (r *SettingRepository) UpdateSetting(ctx context.Context, siteID, key, value string) error {
	setting := models.Setting{SiteID: siteID, Key: key, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "site_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	return errors.Wrapf(err, "upsert setting %s", key)
}
