// Package renderer owns one DOM mount and everything needed to drive it
// from an external diffing engine: the node registry, the string interner,
// the mutation interpreter, the event delegation bridge and the loop they
// all run on.
//
// Basic usage:
//
//	doc := htmldom.New()
//	r, err := renderer.New(doc)
//	if err != nil {
//	    return err
//	}
//	go r.Run(ctx)
//
//	res, err := r.Apply(ctx, &protocol.Batch{Mutations: []protocol.Mutation{
//	    protocol.NewPushRoot(0),
//	    protocol.NewCreateElement("p", 1),
//	    protocol.NewCreateTextNode("hello", 2),
//	    protocol.NewAppendChildren(1),
//	    protocol.NewAppendChildren(1),
//	}})
//
// Each batch is one loop task, so a native event can never observe a
// half-applied batch. Synthetic events are read from Events.
package renderer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	rerrors "github.com/vango-dev/vrender/internal/errors"
	"github.com/vango-dev/vrender/pkg/delegate"
	"github.com/vango-dev/vrender/pkg/dom"
	"github.com/vango-dev/vrender/pkg/intern"
	"github.com/vango-dev/vrender/pkg/interp"
	"github.com/vango-dev/vrender/pkg/protocol"
	"github.com/vango-dev/vrender/pkg/registry"
	"github.com/vango-dev/vrender/pkg/sched"
	"github.com/vango-dev/vrender/pkg/schema"
	"github.com/vango-dev/vrender/pkg/telemetry"
)

// Errors returned by Renderer methods.
var (
	// ErrFaulted is wrapped by the R005 error returned for batches sent
	// after a protocol violation.
	ErrFaulted = errors.New("renderer: faulted")

	// ErrNoMount is returned by New when the mount node cannot be found.
	ErrNoMount = errors.New("renderer: mount node not found")

	// ErrNotMutations is returned by ApplyFrame for frames of another type.
	ErrNotMutations = errors.New("renderer: not a mutation frame")
)

// Result is the outcome of one applied batch.
type Result = interp.Result

// Options configures a Renderer.
type Options struct {
	Logger        *slog.Logger
	Metrics       *telemetry.Metrics
	Tracer        *telemetry.Tracer
	Schema        *schema.Table
	Mount         dom.Node
	MountID       string
	RootID        protocol.NodeID
	MaxNodeID     protocol.NodeID
	QueueSize     int
	InputDebounce time.Duration
}

// Option configures a Renderer.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics records renderer activity in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithTracer traces each batch with t.
func WithTracer(t *telemetry.Tracer) Option {
	return func(o *Options) { o.Tracer = t }
}

// WithSchema sets the event table.
func WithSchema(t *schema.Table) Option {
	return func(o *Options) { o.Schema = t }
}

// WithMount mounts the renderer on n instead of the document body.
func WithMount(n dom.Node) Option {
	return func(o *Options) { o.Mount = n }
}

// WithMountID mounts the renderer on the element with the given id.
func WithMountID(id string) Option {
	return func(o *Options) { o.MountID = id }
}

// WithRootID sets the node id the mount is registered under (default 0).
func WithRootID(id protocol.NodeID) Option {
	return func(o *Options) { o.RootID = id }
}

// WithMaxNodeID bounds the node ids the engine may use.
func WithMaxNodeID(id protocol.NodeID) Option {
	return func(o *Options) { o.MaxNodeID = id }
}

// WithQueueSize sets the outbound event queue capacity.
func WithQueueSize(n int) Option {
	return func(o *Options) { o.QueueSize = n }
}

// WithInputDebounce coalesces input events per node.
func WithInputDebounce(d time.Duration) Option {
	return func(o *Options) { o.InputDebounce = d }
}

// Renderer is a renderer instance. Its methods are safe to call from any
// goroutine; the work itself runs on the renderer loop, which Run drives.
type Renderer struct {
	doc    dom.Document
	mount  dom.Node
	rootID protocol.NodeID

	loop   *sched.Loop
	reg    *registry.Registry
	names  *intern.Table
	bridge *delegate.Bridge
	interp *interp.Interpreter

	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	logger  *slog.Logger

	fault     atomic.Pointer[rerrors.RenderError]
	lastSeq   atomic.Uint64
	closeOnce sync.Once
}

// New creates a renderer on doc and registers its mount node.
func New(doc dom.Document, opts ...Option) (*Renderer, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Tracer == nil {
		o.Tracer = telemetry.NewTracer("")
	}

	mount := o.Mount
	if mount == nil && o.MountID != "" {
		mount = doc.ElementByID(o.MountID)
	} else if mount == nil {
		mount = doc.Body()
	}
	if mount == nil {
		return nil, ErrNoMount
	}

	logger := o.Logger.With("component", "renderer")
	r := &Renderer{
		doc:     doc,
		mount:   mount,
		rootID:  o.RootID,
		loop:    sched.New(sched.WithLogger(o.Logger)),
		reg:     registry.New(),
		names:   intern.New(),
		metrics: o.Metrics,
		tracer:  o.Tracer,
		logger:  logger,
	}
	if o.MaxNodeID > 0 {
		r.reg.SetMaxID(o.MaxNodeID)
	}

	bridgeOpts := []delegate.Option{
		delegate.WithLogger(o.Logger),
		delegate.WithSchema(o.Schema),
		delegate.WithQueueSize(o.QueueSize),
		delegate.WithInputDebounce(o.InputDebounce),
	}
	interpOpts := []interp.Option{interp.WithLogger(o.Logger)}
	if o.Metrics != nil {
		bridgeOpts = append(bridgeOpts, delegate.WithRecorder(o.Metrics))
		interpOpts = append(interpOpts, interp.WithRecorder(o.Metrics))
	}
	r.bridge = delegate.New(doc, r.reg, r.names, r.loop, bridgeOpts...)
	r.interp = interp.New(doc, r.reg, r.bridge, interpOpts...)

	if err := r.reg.Create(r.rootID, mount); err != nil {
		return nil, err
	}
	return r, nil
}

// Run drives the renderer loop until ctx is cancelled or Close is called.
func (r *Renderer) Run(ctx context.Context) error {
	r.logger.Info("renderer started", "root", uint64(r.rootID))
	err := r.loop.Run(ctx)
	r.logger.Info("renderer stopped")
	return err
}

// Apply applies b as one atomic loop task. A protocol violation aborts the
// batch and faults the renderer: later batches fail with an R005 error
// wrapping ErrFaulted until Reset.
func (r *Renderer) Apply(ctx context.Context, b *protocol.Batch) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "vrender.apply",
		attribute.Int64("vrender.seq", int64(b.Seq)),
		attribute.Int("vrender.instructions", len(b.Mutations)))

	var res Result
	err := r.loop.Do(ctx, func() error {
		var err error
		res, err = r.apply(b)
		return err
	})

	span.SetAttributes(
		attribute.Int("vrender.applied", res.Applied),
		attribute.Int("vrender.skipped", res.Skipped))
	telemetry.End(span, err)
	return res, err
}

// apply runs on the loop.
func (r *Renderer) apply(b *protocol.Batch) (Result, error) {
	if f := r.fault.Load(); f != nil {
		r.record("rejected", 0)
		return Result{Seq: b.Seq}, rerrors.New("R005").
			WithDetail("Faulted by: " + f.Error()).
			Wrap(ErrFaulted)
	}

	start := time.Now()
	res, err := r.interp.Apply(b)
	if err != nil {
		var re *rerrors.RenderError
		if errors.As(err, &re) && rerrors.IsProtocolViolation(err) {
			r.fault.Store(re)
			r.logger.Error("renderer faulted",
				"seq", b.Seq,
				"code", re.Code)
		}
		r.record("violation", time.Since(start))
		return res, err
	}

	r.lastSeq.Store(b.Seq)
	r.record("ok", time.Since(start))
	return res, nil
}

func (r *Renderer) record(status string, d time.Duration) {
	if r.metrics != nil {
		r.metrics.BatchApplied(status, d, r.reg.Live())
	}
}

// ApplyFrame decodes a FrameMutations frame and applies it. Decoding runs
// on the loop so repeated names resolve through the renderer's interner.
// A frame that fails to decode returns an R007 error and does not fault the
// renderer, since nothing from it was applied.
func (r *Renderer) ApplyFrame(ctx context.Context, f *protocol.Frame) (Result, error) {
	if f.Type != protocol.FrameMutations {
		return Result{}, ErrNotMutations
	}
	payload, err := protocol.Decompress(f)
	if err != nil {
		return Result{}, rerrors.New("R007").Wrap(err)
	}

	var b *protocol.Batch
	err = r.loop.Do(ctx, func() error {
		var err error
		b, err = protocol.DecodeBatchFrom(protocol.NewDecoder(payload).WithPool(r.names))
		return err
	})
	if err != nil {
		if errors.Is(err, sched.ErrClosed) || ctx.Err() != nil {
			return Result{}, err
		}
		r.logger.Warn("malformed mutation frame", "bytes", len(payload), "error", err)
		return Result{}, rerrors.New("R007").Wrap(err)
	}
	return r.Apply(ctx, b)
}

// Events returns the outbound synthetic event queue.
func (r *Renderer) Events() *delegate.Queue { return r.bridge.Queue() }

// Yield waits until every task queued before the call has run.
func (r *Renderer) Yield(ctx context.Context) error { return r.loop.Yield(ctx) }

// After runs fn on the renderer loop once d has elapsed.
func (r *Renderer) After(d time.Duration, fn func()) *sched.Timer {
	return r.loop.AfterFunc(d, fn)
}

// Idle runs fn on the loop once no other work is queued.
func (r *Renderer) Idle(fn func()) bool { return r.loop.Idle(fn) }

// View runs fn on the loop with read access to the document and registry.
// fn must not mutate either.
func (r *Renderer) View(ctx context.Context, fn func(doc dom.Document, reg *registry.Registry) error) error {
	return r.loop.Do(ctx, func() error { return fn(r.doc, r.reg) })
}

// Flush delivers debounced input events immediately.
func (r *Renderer) Flush(ctx context.Context) error {
	return r.loop.Do(ctx, func() error {
		r.bridge.Flush()
		return nil
	})
}

// Faulted returns the protocol violation that faulted the renderer, or nil.
func (r *Renderer) Faulted() error {
	if f := r.fault.Load(); f != nil {
		return f
	}
	return nil
}

// LastSeq returns the sequence number of the last batch applied without a
// protocol violation.
func (r *Renderer) LastSeq() uint64 { return r.lastSeq.Load() }

// Reset clears the fault, releases every node except the mount, empties
// the mount and drops all listener registrations. Root listeners stay
// installed. The engine is expected to resend the tree.
func (r *Renderer) Reset(ctx context.Context) error {
	return r.loop.Do(ctx, func() error {
		var detached []dom.Node
		for _, id := range r.reg.IDs() {
			if n, _ := r.reg.Get(id); n != nil && n.Parent() == nil && id != r.rootID {
				detached = append(detached, n)
			}
		}
		r.release()
		for c := r.mount.FirstChild(); c != nil; c = r.mount.FirstChild() {
			if err := r.mount.RemoveChild(c); err != nil {
				return rerrors.New("R010").WithOp("Reset").Wrap(err)
			}
			dom.Forget(r.doc, c, nil)
		}
		for _, n := range detached {
			dom.Forget(r.doc, n, nil)
		}
		if err := r.reg.Create(r.rootID, r.mount); err != nil {
			return err
		}
		r.fault.Store(nil)
		r.logger.Info("renderer reset")
		return nil
	})
}

func (r *Renderer) release() {
	r.reg.Reset()
	r.bridge.Reset()
}

// Close stops the loop and releases the registry and interner. It is safe
// to call more than once.
func (r *Renderer) Close() {
	r.closeOnce.Do(func() {
		cleanup := func() {
			r.release()
			r.names.Clear()
		}
		if r.loop.Running() {
			_ = r.loop.Do(context.Background(), func() error {
				cleanup()
				return nil
			})
		} else {
			cleanup()
		}
		r.loop.Close()
	})
}

// Stats is a snapshot of renderer state.
type Stats struct {
	Registry      registry.Stats `json:"registry"`
	Registrations int            `json:"registrations"`
	Listeners     []string       `json:"listeners"`
	Interned      int            `json:"interned"`
	QueuedEvents  int            `json:"queued_events"`
	DroppedEvents uint64         `json:"dropped_events"`
	LastSeq       uint64         `json:"last_seq"`
	Faulted       string         `json:"faulted,omitempty"`
}

// Stats collects a snapshot on the loop.
func (r *Renderer) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.loop.Do(ctx, func() error {
		s = Stats{
			Registry:      r.reg.Stats(),
			Registrations: r.bridge.Registrations(),
			Listeners:     r.bridge.Installed(),
			Interned:      r.names.Len(),
			QueuedEvents:  r.bridge.Queue().Len(),
			DroppedEvents: r.bridge.Queue().Dropped(),
			LastSeq:       r.lastSeq.Load(),
		}
		if f := r.fault.Load(); f != nil {
			s.Faulted = f.Error()
		}
		return nil
	})
	return s, err
}
