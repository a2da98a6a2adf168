// Package source delivers ledger events to the engine in producer order.
//
// Sources are at-least-once: a source may deliver an event the store has
// already applied, and the engine skips it. Next returns io.EOF after the
// last event.
package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/schema"
	"github.com/roach88/vidindex/internal/store"
)

// Source is a totally ordered stream of finalized events.
type Source interface {
	Next(ctx context.Context) (ir.Event, error)
}

// maxLineSize bounds one JSONL event. Comments and descriptions are the
// only unbounded fields.
const maxLineSize = 4 << 20

// JSONL reads one wire-format event per line. Blank lines are skipped.
type JSONL struct {
	scanner   *bufio.Scanner
	closer    io.Closer
	line      int
	validator *schema.Validator
}

// JSONLOption configures a JSONL source.
type JSONLOption func(*JSONL)

// WithValidator checks every line against the CUE schema before decoding.
func WithValidator(v *schema.Validator) JSONLOption {
	return func(s *JSONL) {
		s.validator = v
	}
}

// NewJSONL creates a source reading from r.
func NewJSONL(r io.Reader, opts ...JSONLOption) *JSONL {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	s := &JSONL{scanner: sc}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the underlying reader if it is an io.Closer.
func (s *JSONL) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Line returns the 1-based number of the line last read.
func (s *JSONL) Line() int {
	return s.line
}

// Next decodes the next event. A malformed line yields a *LineError
// wrapping *ir.SchemaError; the returned event carries whatever envelope
// fields decoded.
func (s *JSONL) Next(ctx context.Context) (ir.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return ir.Event{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return ir.Event{}, fmt.Errorf("read line %d: %w", s.line+1, err)
			}
			return ir.Event{}, io.EOF
		}
		s.line++

		data := bytes.TrimSpace(s.scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		if s.validator != nil {
			if err := s.validator.Validate(data); err != nil {
				ev, _ := ir.DecodeEvent(data)
				return ev, &LineError{Line: s.line, Err: err}
			}
		}
		ev, err := ir.DecodeEvent(data)
		if err != nil {
			return ev, &LineError{Line: s.line, Err: err}
		}
		return ev, nil
	}
}

// LineError locates a bad event in a JSONL stream.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// DefaultBatchSize is how many log rows Log reads per query.
const DefaultBatchSize = 500

// Log replays the applied-event log of a store, oldest first.
type Log struct {
	store     *store.Store
	batchSize int
	after     *ir.Position
	buf       []store.EventRecord
	done      bool
}

// NewLog creates a source over st's event log. A batchSize of 0 means
// DefaultBatchSize.
func NewLog(st *store.Store, batchSize int) *Log {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Log{store: st, batchSize: batchSize}
}

// Next returns the next logged event.
func (l *Log) Next(ctx context.Context) (ir.Event, error) {
	if len(l.buf) == 0 {
		if l.done {
			return ir.Event{}, io.EOF
		}
		recs, err := l.store.EventsAfter(ctx, l.after, l.batchSize)
		if err != nil {
			return ir.Event{}, fmt.Errorf("read event log: %w", err)
		}
		if len(recs) < l.batchSize {
			l.done = true
		}
		if len(recs) == 0 {
			return ir.Event{}, io.EOF
		}
		l.buf = recs
	}

	rec := l.buf[0]
	l.buf = l.buf[1:]
	pos := rec.Position
	l.after = &pos

	ev, err := ir.DecodeEvent(rec.Canonical)
	if err != nil {
		return ev, fmt.Errorf("event log %s: %w", rec.Position, err)
	}
	return ev, nil
}

// Slice delivers a fixed list of events. Tests and the scenario harness
// use it.
type Slice struct {
	events []ir.Event
	next   int
}

// NewSlice creates a source over events.
func NewSlice(events ...ir.Event) *Slice {
	return &Slice{events: events}
}

// Next returns the next event.
func (s *Slice) Next(ctx context.Context) (ir.Event, error) {
	if err := ctx.Err(); err != nil {
		return ir.Event{}, err
	}
	if s.next >= len(s.events) {
		return ir.Event{}, io.EOF
	}
	ev := s.events[s.next]
	s.next++
	return ev, nil
}
