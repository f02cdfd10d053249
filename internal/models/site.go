package models

import "time"

// Site is the tenant boundary.  Every collection and content item belongs to
// exactly one site.
type Site struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"not null" json:"name" validate:"required,max=255"`
	Host      string    `gorm:"size:255;index" json:"host" validate:"omitempty,hostname_rfc1123"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SiteProfile is the read-only view of a site the SEO layer needs.
type SiteProfile struct {
	ID               string
	Name             string
	BaseURL          string
	DefaultOGImage   string
	OrganizationLogo string
}
