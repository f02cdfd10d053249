package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"

	"quire/internal/fields"
)

// Schema is the author-defined part of a collection definition.  Default
// fields are never stored here.
type Schema struct {
	Fields []fields.Field `json:"fields"`
}

// Collection is a named, schema-typed bucket of content within a site.
type Collection struct {
	ID         string                     `gorm:"primaryKey;size:36" json:"id"`
	SiteID     string                     `gorm:"size:36;not null;uniqueIndex:idx_collection_site_slug,priority:1" json:"siteId"`
	Name       string                     `gorm:"not null" json:"name"`
	Slug       string                     `gorm:"size:255;not null;uniqueIndex:idx_collection_site_slug,priority:2" json:"slug"`
	URLPattern string                     `gorm:"not null" json:"urlPattern"`
	Schema     datatypes.JSONType[Schema] `json:"schema"`
	Settings   datatypes.JSONMap          `json:"settings"`
	CreatedAt  time.Time                  `json:"createdAt"`
	UpdatedAt  time.Time                  `json:"updatedAt"`

	// Fields is the effective field list (defaults first).  It is filled in
	// at read time and never persisted.
	Fields []fields.Field `gorm:"-" json:"fields"`
}

// CustomFields returns the stored, author-defined fields.
func (c *Collection) CustomFields() []fields.Field {
	return c.Schema.Data().Fields
}

// ResolveFields fills Fields with the merged default and custom fields.
func (c *Collection) ResolveFields() {
	c.Fields = fields.Merge(c.CustomFields())
}

// Field looks a field up in the effective field list.
func (c *Collection) Field(name string) (fields.Field, bool) {
	if c.Fields == nil {
		c.ResolveFields()
	}
	return fields.Find(c.Fields, name)
}

// Setting returns a string collection setting or "".
func (c *Collection) Setting(key string) string {
	if c.Settings == nil {
		return ""
	}
	s, _ := c.Settings[key].(string)
	return s
}

// URLFor substitutes slug into the collection URL pattern.
func (c *Collection) URLFor(slug string) string {
	return strings.ReplaceAll(c.URLPattern, "{slug}", slug)
}

// BasePath is the listing path of the collection: the URL pattern up to its
// first placeholder, without a trailing slash.  "/blog/{slug}" → "/blog".
func (c *Collection) BasePath() string {
	p := c.URLPattern
	if i := strings.Index(p, "{"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}
