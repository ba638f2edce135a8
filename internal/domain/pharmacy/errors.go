package pharmacy

import (
	"fmt"
	"strings"
)

// ValidationError reports a missing or invalid field, or a request the
// current stock cannot satisfy.
type ValidationError struct {
	Message string
	Details map[string]any
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports an unknown patient, store, distribution center,
// SKU, order or shipment.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// NewValidationError creates a validation error with optional details.
func NewValidationError(message string, details map[string]any) *ValidationError {
	return &ValidationError{Message: message, Details: details}
}

func notFoundf(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// MissingFieldsError lists the required fields that were absent or empty.
func MissingFieldsError(missing []string) *ValidationError {
	return NewValidationError(
		"Body must contain "+strings.Join(missing, ", "),
		map[string]any{"missing": missing},
	)
}

// requireStrings returns a MissingFieldsError naming every empty field.
// Fields are given as name/value pairs.
func requireStrings(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return MissingFieldsError(missing)
	}
	return nil
}
