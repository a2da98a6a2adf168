package engine

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/source"
)

// Ingest applies every event from src, in order, until the source is
// exhausted or an event fails. A reader goroutine fills the queue while Run
// applies; a bad event from the source is queued as an error so that every
// event before it is still applied.
func Ingest(ctx context.Context, e *Engine, src source.Source) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer e.Close()
		for {
			ev, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				e.queue.Enqueue(queueItem{err: sourceError(ev, err)})
				return nil
			}
			if !e.Enqueue(ev) {
				// Run has stopped; its error is the one to report.
				return nil
			}
		}
	})

	g.Go(func() error {
		err := e.Run(ctx)
		if err != nil {
			// Unblock a reader waiting on a pipe.
			if c, ok := src.(io.Closer); ok {
				c.Close()
			}
		}
		return err
	})

	return g.Wait()
}

func sourceError(ev ir.Event, err error) error {
	if ir.IsSchemaError(err) {
		return NewSchemaError(ev, err)
	}
	return err
}
