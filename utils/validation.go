package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their json/form names so messages line up with inputs.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidationError wraps validation errors with structured details
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// Details converts the field messages for a JSON error envelope.
func (e *ValidationError) Details() map[string]interface{} {
	details := make(map[string]interface{}, len(e.Fields))
	for k, v := range e.Fields {
		details[k] = v
	}
	return details
}

// NewValidationError creates a ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string)
	for _, err := range errs {
		field := err.Field()
		label := strings.ReplaceAll(field, "_", " ")

		switch err.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", label)
		case "email":
			fields[field] = fmt.Sprintf("%s must be a valid email", label)
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s", label, err.Param())
		case "max":
			if err.Kind() == reflect.String {
				fields[field] = fmt.Sprintf("%s must be at most %s characters", label, err.Param())
			} else {
				fields[field] = fmt.Sprintf("%s must be at most %s", label, err.Param())
			}
		case "oneof":
			fields[field] = fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(err.Param(), " ", ", "))
		default:
			fields[field] = fmt.Sprintf("%s is invalid", label)
		}
	}

	return &ValidationError{
		Message: "Validation failed",
		Fields:  fields,
	}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// GetValidationFields extracts field errors from a ValidationError
func GetValidationFields(err error) map[string]string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Fields
	}
	return nil
}
