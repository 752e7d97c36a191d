// Package validation validates request structs tagged with `validate` and
// reports failures as API field errors keyed by JSON name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/invitely/invitely/internal/api/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

var messages = map[string]string{
	"required": "%s is required",
	"min":      "%s must be at least %s characters",
	"max":      "%s must be at most %s characters",
	"oneof":    "%s must be one of: %s",
	"datetime": "%s must match the format %s",
	"gte":      "%s must be greater than or equal to %s",
	"lte":      "%s must be less than or equal to %s",
}

// Struct validates s and returns one FieldError per failed rule, in field order.
// A nil result means s is valid.
func Struct(s any) []models.FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.FieldError{{Field: "", Message: err.Error(), Code: "invalid"}}
	}

	out := make([]models.FieldError, 0, len(verrs))
	for _, e := range verrs {
		field := fieldPath(e.Namespace())
		out = append(out, models.FieldError{
			Field:   field,
			Message: message(field, e),
			Code:    e.Tag(),
		})
	}
	return out
}

// fieldPath drops the root struct name from a namespace like "createEventInput.venue.name".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func message(field string, e validator.FieldError) string {
	tmpl, ok := messages[e.Tag()]
	if !ok {
		return fmt.Sprintf("%s is invalid", field)
	}
	if strings.Count(tmpl, "%s") == 2 {
		param := e.Param()
		if e.Tag() == "oneof" {
			param = strings.ReplaceAll(param, " ", ", ")
		}
		return fmt.Sprintf(tmpl, field, param)
	}
	return fmt.Sprintf(tmpl, field)
}
