package models

import (
	"time"

	"gorm.io/datatypes"

	"quire/internal/constants"
	"quire/internal/fields"
)

// ContentItem is one document of a collection.  Data holds the live values;
// DraftData, when non-empty, is an overlay of unpublished edits and only ever
// exists on published items.  It never serializes; editing views expose it
// explicitly.
type ContentItem struct {
	ID           string            `gorm:"primaryKey;size:36" json:"id"`
	SiteID       string            `gorm:"size:36;not null;uniqueIndex:idx_item_site_collection_slug,priority:1" json:"siteId"`
	CollectionID string            `gorm:"size:36;not null;uniqueIndex:idx_item_site_collection_slug,priority:2;index" json:"collectionId"`
	Slug         string            `gorm:"size:255;not null;uniqueIndex:idx_item_site_collection_slug,priority:3" json:"slug"`
	Title        string            `gorm:"not null" json:"title"`
	Data         datatypes.JSONMap `gorm:"not null" json:"data"`
	Status       string            `gorm:"size:16;not null;default:draft;index" json:"status"`
	DraftData    datatypes.JSONMap `json:"-"`
	AuthorID     *string           `gorm:"size:64" json:"authorId,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	PublishedAt  *time.Time        `json:"publishedAt,omitempty"`
}

// IsPublished returns true if the item is visible to the public read API.
func (c *ContentItem) IsPublished() bool {
	return c.Status == constants.StatusPublished
}

// HasDraft reports whether a pending overlay exists.  A NULL column scans as
// an empty map, so emptiness and absence are the same thing.
func (c *ContentItem) HasDraft() bool {
	return c.IsPublished() && len(c.DraftData) > 0
}

// State is the lifecycle position of an item: Unpublished, Live or
// LiveWithPendingDraft.
type State interface {
	state()
}

// Unpublished items are edited in place; they never carry a draft.
type Unpublished struct{}

// Live items are published with no pending edits.
type Live struct{}

// LiveWithPendingDraft items are published and have an overlay waiting.
type LiveWithPendingDraft struct {
	Draft map[string]any
}

func (Unpublished) state()          {}
func (Live) state()                 {}
func (LiveWithPendingDraft) state() {}

// State returns the item's lifecycle variant.
func (c *ContentItem) State() State {
	switch {
	case !c.IsPublished():
		return Unpublished{}
	case c.HasDraft():
		return LiveWithPendingDraft{Draft: c.DraftData}
	default:
		return Live{}
	}
}

// EditableData is Data with the draft overlay (if any) layered on top.  This
// is what editing contexts display; public reads use Data.
func (c *ContentItem) EditableData() map[string]any {
	out := make(map[string]any, len(c.Data)+len(c.DraftData))
	for k, v := range c.Data {
		out[k] = v
	}
	if s, ok := c.State().(LiveWithPendingDraft); ok {
		for k, v := range s.Draft {
			out[k] = v
		}
	}
	return out
}

// String returns a string value from Data or "".
func (c *ContentItem) String(key string) string {
	s, _ := c.Data[key].(string)
	return s
}

// Values is the flat field view of the item: Data plus the default fields
// that live in dedicated columns.
func (c *ContentItem) Values() map[string]any {
	out := make(map[string]any, len(c.Data)+5)
	for k, v := range c.Data {
		out[k] = v
	}
	out[fields.Title] = c.Title
	out[fields.Slug] = c.Slug
	out[fields.Status] = c.Status
	out[fields.DateLastModified] = c.UpdatedAt.UTC().Format(time.RFC3339)
	if c.PublishedAt != nil {
		if _, ok := out[fields.DatePublished]; !ok {
			out[fields.DatePublished] = c.PublishedAt.UTC().Format(time.RFC3339)
		}
	}
	return out
}
