package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/dom/bookshelf-api/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.ToLower(f.Name)
	})
	return v
}

// validateStruct checks s against its validate tags and reports the first
// failing field as a domain.ErrValidation.
func validateStruct(s any) error {
	return fromValidator("", validate.Struct(s))
}

// validateField checks a single value against tag, reporting failures under
// field.
func validateField(field string, value any, tag string) error {
	return fromValidator(field, validate.Var(value, tag))
}

func fromValidator(field string, err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return oops.Code("VALIDATION_FAILED").Wrap(fmt.Errorf("%w: %w", domain.ErrValidation, err))
	}

	fe := fieldErrs[0]
	if field == "" {
		field = fe.Field()
	}
	return validationError(field, reason(fe))
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "is too long"
	case "email":
		return "is not a valid address"
	default:
		return "is invalid"
	}
}

func validationError(field, reason string) error {
	return oops.Code("VALIDATION_FAILED").
		With("field", field).
		Wrap(fmt.Errorf("%w: %s %s", domain.ErrValidation, field, reason))
}
