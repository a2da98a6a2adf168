// Package schema checks raw wire events against the CUE definitions in
// events.cue before they are decoded.
//
// The Go decoder in package ir is the authority on what the engine accepts;
// the CUE schema is the published contract for producers and gives better
// error paths for hand-written event files.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/vidindex/internal/ir"
)

//go:embed events.cue
var eventsCUE string

// Source returns the CUE schema text.
func Source() string {
	return eventsCUE
}

// Validator checks wire events against the schema.
//
// A Validator is not safe for concurrent use: cue.Context is not.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(eventsCUE, cue.Filename("events.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile events.cue: %w", err)
	}
	return &Validator{ctx: ctx, schema: v}, nil
}

// Validate checks one JSON-encoded event. Failures are *ir.SchemaError with
// the dotted path of the first offending field.
func (v *Validator) Validate(data []byte) error {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return &ir.SchemaError{Field: "event", Reason: err.Error()}
	}
	if !ir.Kind(head.Kind).Valid() {
		return &ir.SchemaError{Field: "kind", Value: head.Kind, Reason: "unknown event kind"}
	}
	def := v.schema.LookupPath(cue.ParsePath("#" + head.Kind))
	if !def.Exists() {
		return &ir.SchemaError{Field: "kind", Value: head.Kind, Reason: "no schema for event kind"}
	}

	expr, err := cuejson.Extract("event.json", data)
	if err != nil {
		return &ir.SchemaError{Field: "event", Reason: err.Error()}
	}
	doc := v.ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return &ir.SchemaError{Field: "event", Reason: err.Error()}
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return toSchemaError(err)
	}
	return nil
}

func toSchemaError(err error) *ir.SchemaError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ir.SchemaError{Field: "event", Reason: err.Error()}
	}
	first := errs[0]
	field := strings.Join(first.Path(), ".")
	if field == "" {
		field = "event"
	}
	format, args := first.Msg()
	return &ir.SchemaError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
