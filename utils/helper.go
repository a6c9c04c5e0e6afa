package utils

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FormatValidationErrors maps each failing field to the validator tag it broke.
// Non validator errors are returned under the "request" key.
func FormatValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["request"] = err.Error()
		return errorResponse
	}
	for _, ve := range validationErrors {
		if ve.Param() != "" {
			errorResponse[ve.Field()] = ve.Tag() + "=" + ve.Param()
			continue
		}
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

// FileExtension returns the lower case extension including the dot.
func FileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
}

func NewTrue() *bool {
	b := true
	return &b
}
