package models

import "time"

// Setting stores one per-site key/value pair.
type Setting struct {
	ID        uint   `gorm:"primaryKey"`
	SiteID    string `gorm:"size:36;not null;uniqueIndex:idx_setting_site_key,priority:1"`
	Key       string `gorm:"type:varchar(255);not null;uniqueIndex:idx_setting_site_key,priority:2"`
	Value     string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
