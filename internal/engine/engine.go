package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/holiman/uint256"

	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/store"
)

// Entities is the store handle every handler receives. All reads and writes
// of one event go through the same handle, so they commit or roll back
// together.
type Entities interface {
	EnsureChannel(ctx context.Context, id string, createdAt int64) (created bool, err error)
	GetVideo(ctx context.Context, id string) (ir.Video, bool, error)
	InsertVideo(ctx context.Context, v ir.Video) (inserted bool, err error)
	PutVideo(ctx context.Context, v ir.Video) error
	InsertTip(ctx context.Context, t ir.Tip) (inserted bool, err error)
	GetLike(ctx context.Context, id string) (ir.Like, bool, error)
	InsertLike(ctx context.Context, l ir.Like) (inserted bool, err error)
	DeleteLike(ctx context.Context, id string) (deleted bool, err error)
	InsertComment(ctx context.Context, c ir.Comment) (inserted bool, err error)
	InsertReport(ctx context.Context, r ir.Report) (inserted bool, err error)
	RecordedChildren(ctx context.Context, videoID string) (tipTotal *uint256.Int, reports int64, err error)
}

var _ Entities = (*store.Tx)(nil)

// RetryPolicy bounds how often Run re-applies an event after a store
// failure before it gives up.
type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used unless WithRetry overrides it.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:        5,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	retries := uint64(0)
	if p.Attempts > 1 {
		retries = uint64(p.Attempts - 1)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

// Engine is the single-writer mapping engine.
//
// Events are applied strictly in delivery order, one transaction per event.
// Each transaction runs the event's handler, appends the event to the log
// and advances the checkpoint, so the checkpoint never passes an event
// whose writes did not commit.
//
// Thread-safety model:
//   - Enqueue(), Close(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Apply(): must not run concurrently with Run() or another Apply()
type Engine struct {
	store   *store.Store
	logger  *slog.Logger
	metrics *Metrics
	runID   string
	retry   RetryPolicy
	queue   *eventQueue
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets the metrics sink. Default: unregistered collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRunIDGenerator names the run with gen's next id.
// Default: UUIDv7Generator.
func WithRunIDGenerator(gen RunIDGenerator) Option {
	return func(e *Engine) {
		e.runID = gen.Generate()
	}
}

// WithRetry sets the store-failure retry policy used by Run.
func WithRetry(p RetryPolicy) Option {
	return func(e *Engine) {
		e.retry = p
	}
}

// New creates an Engine writing to s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: slog.Default(),
		retry:  DefaultRetryPolicy,
		queue:  newEventQueue(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	if e.runID == "" {
		e.runID = UUIDv7Generator{}.Generate()
	}
	return e
}

// RunID returns the id recorded with every checkpoint this engine writes.
func (e *Engine) RunID() string {
	return e.runID
}

// Store returns the store the engine writes to.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Enqueue submits an event for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the stream has been closed.
func (e *Engine) Enqueue(ev ir.Event) bool {
	return e.queue.Enqueue(queueItem{ev: ev})
}

// QueueLen returns the number of events waiting to be applied.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Close marks the end of the stream. Run applies what is already queued
// and then returns nil.
func (e *Engine) Close() {
	e.queue.Close()
}

// Run starts the single-writer apply loop.
// Blocks until the stream is closed and drained, the context is cancelled,
// or an event fails.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: store failures are retried under the retry policy. Any
// other failure halts the loop and is returned with the event's position;
// later events stay unapplied so that the checkpoint marks where to resume.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "run_id", e.runID)
	defer e.queue.Close()

	for {
		it, ok := e.queue.TryDequeue()
		if ok {
			if it.err != nil {
				e.logger.Error("engine halting: stream error", "error", it.err)
				return it.err
			}
			if err := e.applyWithRetry(ctx, it.ev); err != nil {
				e.logger.Error("engine halting",
					"position", it.ev.Position.String(),
					"kind", it.ev.Kind,
					"error", err,
				)
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Drained() {
				e.logger.Info("engine stopping: end of stream")
				return nil
			}
		}
	}
}

func (e *Engine) applyWithRetry(ctx context.Context, ev ir.Event) error {
	op := func() error {
		_, err := e.Apply(ctx, ev)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		e.logger.Warn("store unavailable, retrying",
			"position", ev.Position.String(),
			"wait", wait,
			"error", err,
		)
	}
	return backoff.RetryNotify(op, e.retry.backOff(ctx), notify)
}

// Apply applies one event and reports whether it changed the store.
//
// A redelivery of an already applied event (same position, same content)
// is skipped and reported as applied == false with a nil error. Every
// other failure is an *IndexError and leaves the store untouched.
func (e *Engine) Apply(ctx context.Context, ev ir.Event) (applied bool, err error) {
	start := time.Now()

	if err := ev.Validate(); err != nil {
		return false, NewSchemaError(ev, err)
	}
	// The log stores the event as delivered; its canonical form is lossless,
	// so a rebuild decodes to the same values the handlers saw here.
	canonical, err := ev.Canonical()
	if err != nil {
		return false, NewSchemaError(ev, err)
	}
	hash := ir.EventHashOf(canonical)

	err = e.store.Update(ctx, func(tx *store.Tx) error {
		stored, seen, err := tx.LookupEvent(ctx, ev.Position)
		if err != nil {
			return err
		}
		if seen {
			if stored != hash {
				return newConflictError(ev, stored, hash)
			}
			return nil
		}

		cp, ok, err := tx.Checkpoint(ctx)
		if err != nil {
			return err
		}
		if ok && !cp.Position.Before(ev.Position) {
			return newOutOfOrderError(ev, cp.Position)
		}

		if err := e.dispatch(ctx, tx, ev); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, store.EventRecord{
			Position:  ev.Position,
			Kind:      ev.Kind,
			Canonical: canonical,
			Hash:      hash,
		}); err != nil {
			return err
		}
		if err := tx.AdvanceCheckpoint(ctx, ev.Position, e.runID); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, classify(ev, err)
	}

	if !applied {
		e.logger.Debug("duplicate delivery skipped",
			"position", ev.Position.String(),
			"kind", ev.Kind,
		)
		e.metrics.observeSkipped(SkipDuplicate)
		return false, nil
	}

	e.metrics.observeApplied(ev, time.Since(start).Seconds())
	e.logger.Debug("event applied",
		"position", ev.Position.String(),
		"kind", ev.Kind,
	)
	return true, nil
}
