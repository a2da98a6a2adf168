package ir

import (
	"errors"
	"fmt"
)

// SchemaError reports a field whose value lies outside its declared domain.
// It signals a version mismatch between the event producer and the indexer.
type SchemaError struct {
	Field  string
	Value  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("schema violation: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("schema violation: %s=%s: %s", e.Field, e.Value, e.Reason)
}

// IsSchemaError reports whether err wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

func schemaErrorf(field, value, format string, args ...any) *SchemaError {
	return &SchemaError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}
