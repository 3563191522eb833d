package source

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/vango-dev/vrender/pkg/dom"
	"github.com/vango-dev/vrender/pkg/dom/htmldom"
	"github.com/vango-dev/vrender/pkg/protocol"
	"github.com/vango-dev/vrender/pkg/registry"
	"github.com/vango-dev/vrender/pkg/renderer"
)

// Event builds the simulated event for target.
func (e NativeEvent) Event(target dom.Node) *htmldom.Event {
	ev := htmldom.NewEvent(e.Type, target, e.Fields)
	for name, entries := range e.Lists {
		fields := make([]htmldom.Fields, len(entries))
		for i, f := range entries {
			fields[i] = f
		}
		ev.WithList(name, fields...)
	}
	return ev
}

// Report summarizes a replay.
type Report struct {
	Batches int
	Applied int
	Skipped int

	// Events are the synthetic events produced by fired native events, in
	// queue order.
	Events []protocol.Event
}

// Replay applies every step of src to r, whose document must be doc, and
// fires each step's native events once its batch is applied. It stops at
// the first protocol violation.
func Replay(ctx context.Context, r *renderer.Renderer, doc *htmldom.Document, src Source, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "replay")

	rep := &Report{}
	for {
		step, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return rep, nil
		}
		if err != nil {
			return rep, err
		}

		res, err := r.Apply(ctx, step.Batch)
		rep.Batches++
		rep.Applied += res.Applied
		rep.Skipped += res.Skipped
		if err != nil {
			return rep, err
		}

		if len(step.Fire) == 0 {
			continue
		}
		err = r.View(ctx, func(_ dom.Document, reg *registry.Registry) error {
			for _, ne := range step.Fire {
				target, err := reg.Get(ne.Target)
				if err != nil {
					logger.Warn("native event target not live",
						"seq", step.Batch.Seq,
						"type", ne.Type,
						"target", uint64(ne.Target))
					continue
				}
				doc.Dispatch(ne.Event(target))
			}
			return nil
		})
		if err != nil {
			return rep, err
		}
		// Dispatch runs in tasks queued by the listeners; debounced input
		// is delivered by Flush.
		if err := r.Yield(ctx); err != nil {
			return rep, err
		}
		if err := r.Flush(ctx); err != nil {
			return rep, err
		}
		rep.Events = append(rep.Events, r.Events().Drain()...)
	}
}
