package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/vidindex/internal/ir"
)

// IndexError is an error raised while applying one event. It always names
// the producer position of the event so an operator can find it upstream.
type IndexError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Position is where the failing event sits in the producer's order.
	Position ir.Position

	// Kind is the event kind, if the envelope decoded far enough to tell.
	Kind ir.Kind

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes index errors.
type ErrorCode string

const (
	// ErrCodeSchemaViolation indicates a field outside its declared domain.
	// Fatal: the producer and the indexer disagree on the event schema.
	ErrCodeSchemaViolation ErrorCode = "SCHEMA_VIOLATION"

	// ErrCodeOutOfOrder indicates an unseen event at or below the checkpoint.
	ErrCodeOutOfOrder ErrorCode = "OUT_OF_ORDER"

	// ErrCodePositionConflict indicates a second, different event delivered
	// at an already applied position.
	ErrCodePositionConflict ErrorCode = "POSITION_CONFLICT"

	// ErrCodeStoreUnavailable indicates the store rejected a read or write.
	// Retryable: the checkpoint did not move.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// Error implements the error interface.
func (e *IndexError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s (position=%s, kind=%s)", e.Code, e.Message, e.Position, e.Kind)
	}
	return fmt.Sprintf("%s: %s (position=%s)", e.Code, e.Message, e.Position)
}

// Unwrap returns the underlying cause.
func (e *IndexError) Unwrap() error {
	return e.Err
}

// Retryable reports whether applying the same event again may succeed.
func (e *IndexError) Retryable() bool {
	return e.Code == ErrCodeStoreUnavailable
}

// CodeOf returns the code of the IndexError wrapped by err.
func CodeOf(err error) (ErrorCode, bool) {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Code, true
	}
	return "", false
}

// IsSchemaError returns true if err is a schema violation.
func IsSchemaError(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrCodeSchemaViolation
}

// IsRetryable returns true if err is a retryable store failure.
func IsRetryable(err error) bool {
	var ie *IndexError
	return errors.As(err, &ie) && ie.Retryable()
}

// IsFatal returns true if err must halt ingestion. Every IndexError except
// a store failure is fatal.
func IsFatal(err error) bool {
	var ie *IndexError
	return errors.As(err, &ie) && !ie.Retryable()
}

func newIndexError(code ErrorCode, ev ir.Event, err error, msg string) *IndexError {
	return &IndexError{
		Code:     code,
		Message:  msg,
		Position: ev.Position,
		Kind:     ev.Kind,
		Err:      err,
	}
}

// NewSchemaError wraps a decode or validation failure for the event at ev's
// position. ev may be partially decoded.
func NewSchemaError(ev ir.Event, err error) *IndexError {
	ie := newIndexError(ErrCodeSchemaViolation, ev, err, err.Error())
	var se *ir.SchemaError
	if errors.As(err, &se) {
		ie.Details = map[string]string{"field": se.Field, "value": se.Value}
	}
	return ie
}

func newConflictError(ev ir.Event, stored, got string) *IndexError {
	ie := newIndexError(ErrCodePositionConflict, ev, nil, "a different event was already applied at this position")
	ie.Details = map[string]string{"stored_hash": stored, "event_hash": got}
	return ie
}

func newOutOfOrderError(ev ir.Event, checkpoint ir.Position) *IndexError {
	ie := newIndexError(ErrCodeOutOfOrder, ev, nil,
		fmt.Sprintf("event is not after checkpoint %s", checkpoint))
	ie.Details = map[string]string{"checkpoint": checkpoint.String()}
	return ie
}

// classify maps an error from inside the apply transaction to its category.
// Context cancellation passes through untouched.
func classify(ev ir.Event, err error) error {
	var ie *IndexError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ie):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case ir.IsSchemaError(err):
		return NewSchemaError(ev, err)
	default:
		return newIndexError(ErrCodeStoreUnavailable, ev, err, err.Error())
	}
}
