package utils

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ClampLimit keeps a requested page size within [1, MaxPageSize]; zero or
// negative means DefaultPageSize.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}

// ClampOffset rejects negative offsets.
func ClampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// PageMeta describes a window into a list for API consumers.
type PageMeta struct {
	Total       int64 `json:"total"`
	Limit       int   `json:"limit"`
	Offset      int   `json:"offset"`
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	HasPrev     bool  `json:"hasPrev"`
	HasNext     bool  `json:"hasNext"`
}

// GeneratePagination builds the page metadata for a limit/offset window.
func GeneratePagination(total int64, limit, offset int) PageMeta {
	limit = ClampLimit(limit)
	offset = ClampOffset(offset)

	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	current := offset/limit + 1

	return PageMeta{
		Total:       total,
		Limit:       limit,
		Offset:      offset,
		CurrentPage: current,
		TotalPages:  totalPages,
		HasPrev:     offset > 0,
		HasNext:     int64(offset+limit) < total,
	}
}
