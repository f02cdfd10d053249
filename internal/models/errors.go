package models

import "fmt"

// NotFoundError represents a resource missing for a given site.
type NotFoundError struct {
	Resource string
	Key      string
	SiteID   string
}

func (e NotFoundError) Error() string {
	switch {
	case e.Resource == "":
		return "not found"
	case e.SiteID != "":
		return fmt.Sprintf("%s %q not found in site %s", e.Resource, e.Key, e.SiteID)
	case e.Key != "":
		return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	switch t := target.(type) {
	case NotFoundError:
		return t.Resource == "" || t.Resource == e.Resource
	case *NotFoundError:
		return t == nil || t.Resource == "" || t.Resource == e.Resource
	}
	return false
}

// ErrNotFound matches every NotFoundError.
var ErrNotFound = NotFoundError{}

// ErrCollectionNotFound matches collection misses only.
var ErrCollectionNotFound = NotFoundError{Resource: "collection"}

// CollectionNotFound builds the tenant-scoped collection miss error.
func CollectionNotFound(siteID, slug string) error {
	return NotFoundError{Resource: "collection", Key: slug, SiteID: siteID}
}

// ValidationError reports input rejected before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

func (e ValidationError) Is(target error) bool {
	switch target.(type) {
	case ValidationError, *ValidationError:
		return true
	}
	return false
}

// ErrValidation matches every ValidationError.
var ErrValidation = ValidationError{}

// ConflictError reports a uniqueness violation the caller must resolve.
type ConflictError struct {
	Resource string
	Key      string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Resource, e.Key)
}

func (e ConflictError) Is(target error) bool {
	switch target.(type) {
	case ConflictError, *ConflictError:
		return true
	}
	return false
}

// ErrConflict matches every ConflictError.
var ErrConflict = ConflictError{}
