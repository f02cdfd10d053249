package services

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"quire/internal/fields"
	"quire/internal/models"
)

// validationFrom turns validator and field coercion failures into a
// models.ValidationError.  Other errors pass through.
func validationFrom(err error) error {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		msg := "failed " + fe.Tag()
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		return models.ValidationError{Field: fe.Field(), Message: msg}
	}
	var fieldErr *fields.Error
	if errors.As(err, &fieldErr) {
		return models.ValidationError{Field: fieldErr.Field, Message: fieldErr.Message}
	}
	return err
}
