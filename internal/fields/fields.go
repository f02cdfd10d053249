// Package fields is the vocabulary of field kinds a collection schema may use,
// plus the default fields every collection receives.
package fields

// Type is the kind of value a field holds.
type Type string

const (
	TypeText           Type = "text"
	TypeMarkdown       Type = "markdown"
	TypeBoolean        Type = "boolean"
	TypeImage          Type = "image"
	TypeReference      Type = "reference"
	TypeMultiReference Type = "multi-reference"
	TypeSelect         Type = "select"
	TypeMultiSelect    Type = "multiselect"
	TypeDatetime       Type = "datetime"
)

var allTypes = []Type{
	TypeText, TypeMarkdown, TypeBoolean, TypeImage, TypeReference,
	TypeMultiReference, TypeSelect, TypeMultiSelect, TypeDatetime,
}

// Types returns every known field type in catalog order.
func Types() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// Known reports whether t is part of the catalog.
func Known(t Type) bool {
	for _, k := range allTypes {
		if k == t {
			return true
		}
	}
	return false
}

// IsReference reports whether values of t are content item identifiers.
func (t Type) IsReference() bool {
	return t == TypeReference || t == TypeMultiReference
}

// Validation holds optional per-field constraints.
type Validation struct {
	Options []string `json:"options,omitempty"`
	Min     *int     `json:"min,omitempty"`
	Max     *int     `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
}

// Field is one typed slot of a collection schema.
type Field struct {
	Name                string      `json:"name" validate:"required,max=64"`
	Label               string      `json:"label"`
	Type                Type        `json:"type" validate:"required"`
	Required            bool        `json:"required,omitempty"`
	Default             any         `json:"default,omitempty"`
	Validation          *Validation `json:"validation,omitempty"`
	ReferenceCollection string      `json:"referenceCollection,omitempty"`
	System              bool        `json:"system,omitempty"`
}

// Default field names.
const (
	Title            = "title"
	Description      = "description"
	Slug             = "slug"
	SEOTitle         = "seoTitle"
	SEODescription   = "seoDescription"
	OGTitle          = "ogTitle"
	OGDescription    = "ogDescription"
	OGImage          = "ogImage"
	Status           = "status"
	DateLastModified = "dateLastModified"
	DatePublished    = "datePublished"
)

// Defaults returns the default field set in display order.  A fresh slice is
// returned on every call so callers may append to it.
func Defaults() []Field {
	return []Field{
		{Name: Title, Label: "Title", Type: TypeText, Required: true, System: true},
		{Name: Description, Label: "Description", Type: TypeText, System: true},
		{Name: Slug, Label: "Slug", Type: TypeText, System: true},
		{Name: SEOTitle, Label: "SEO Title", Type: TypeText, System: true},
		{Name: SEODescription, Label: "SEO Description", Type: TypeText, System: true},
		{Name: OGTitle, Label: "OG Title", Type: TypeText, System: true},
		{Name: OGDescription, Label: "OG Description", Type: TypeText, System: true},
		{Name: OGImage, Label: "OG Image", Type: TypeImage, System: true},
		{
			Name: Status, Label: "Status", Type: TypeSelect, Default: "draft", System: true,
			Validation: &Validation{Options: []string{"draft", "published"}},
		},
		{Name: DateLastModified, Label: "Last Modified", Type: TypeDatetime, System: true},
		{Name: DatePublished, Label: "Date Published", Type: TypeDatetime, System: true},
	}
}

// IsDefault reports whether name belongs to the default field set.
func IsDefault(name string) bool {
	for _, f := range Defaults() {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Merge returns the default fields followed by the custom ones.  Custom fields
// that reuse a default name are dropped so the default semantics win.
func Merge(custom []Field) []Field {
	merged := Defaults()
	for _, f := range custom {
		if IsDefault(f.Name) {
			continue
		}
		merged = append(merged, f)
	}
	return merged
}

// Find returns the field named name, if present.
func Find(list []Field, name string) (Field, bool) {
	for _, f := range list {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
