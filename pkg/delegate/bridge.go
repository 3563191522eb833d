// Package delegate routes native DOM events to the engine.
//
// One native listener per event category is installed at the document root
// the first time any node registers for that category. When it fires, the
// bridge captures the event synchronously (payload fields, live form
// values) and posts the ancestor walk to the renderer loop, so dispatch
// never runs in the middle of a mutation batch. The walk checks every
// registered ancestor of the native target against the registration map
// and pushes one protocol.Event per matching ancestor onto the outbound
// Queue.
package delegate

import (
	"log/slog"
	"sort"
	"time"

	rerrors "github.com/vango-dev/vrender/internal/errors"
	"github.com/vango-dev/vrender/pkg/dom"
	"github.com/vango-dev/vrender/pkg/intern"
	"github.com/vango-dev/vrender/pkg/protocol"
	"github.com/vango-dev/vrender/pkg/registry"
	"github.com/vango-dev/vrender/pkg/sched"
	"github.com/vango-dev/vrender/pkg/schema"
)

// Reasons passed to Recorder.EventDropped.
const (
	DropNoHandler = "no_handler"
	DropDecode    = "decode"
	DropQueueFull = "queue_full"
	DropStale     = "stale"
)

// Recorder observes delegation outcomes.
type Recorder interface {
	EventDispatched(category string)
	EventDropped(category, reason string)
}

type nopRecorder struct{}

func (nopRecorder) EventDispatched(string)      {}
func (nopRecorder) EventDropped(string, string) {}

// Option configures a Bridge.
type Option func(*Bridge)

// WithSchema replaces the default event table.
func WithSchema(t *schema.Table) Option {
	return func(b *Bridge) {
		if t != nil {
			b.schema = t
		}
	}
}

// WithLogger sets the bridge logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(b *Bridge) {
		if r != nil {
			b.rec = r
		}
	}
}

// WithQueueSize sets the capacity of the outbound queue.
func WithQueueSize(n int) Option {
	return func(b *Bridge) { b.queueSize = n }
}

// WithInputDebounce coalesces input events per node. Only the last input
// within d is delivered, carrying the value read when the delay expires.
// Zero disables debouncing.
func WithInputDebounce(d time.Duration) Option {
	return func(b *Bridge) { b.debounce = d }
}

type debounceKey struct {
	category intern.String
	id       protocol.NodeID
}

// Bridge is the event delegation bridge. Listen, Unlisten and Dispatch
// must run on the renderer loop.
type Bridge struct {
	doc    dom.Document
	reg    *registry.Registry
	names  *intern.Table
	schema *schema.Table
	loop   *sched.Loop
	queue  *Queue

	regs      map[protocol.NodeID]map[intern.String]struct{}
	count     int
	installed map[intern.String]bool

	input     intern.String
	debounce  time.Duration
	debouncer *sched.Debouncer[debounceKey]
	queueSize int

	logger *slog.Logger
	rec    Recorder
}

// New creates a bridge over doc. It registers a release hook on reg so a
// removed node loses its registrations before its id can be reused.
func New(doc dom.Document, reg *registry.Registry, names *intern.Table, loop *sched.Loop, opts ...Option) *Bridge {
	b := &Bridge{
		doc:       doc,
		reg:       reg,
		names:     names,
		schema:    schema.Default(),
		loop:      loop,
		regs:      make(map[protocol.NodeID]map[intern.String]struct{}),
		installed: make(map[intern.String]bool),
		logger:    slog.Default(),
		rec:       nopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "delegate")
	b.queue = NewQueue(b.queueSize, b.logger)
	b.input = names.Intern("input")
	b.debouncer = sched.NewDebouncer[debounceKey](loop, b.debounce)
	reg.OnRelease(func(id protocol.NodeID, _ dom.Node) { b.release(id) })
	return b
}

// Queue returns the outbound event queue.
func (b *Bridge) Queue() *Queue { return b.queue }

// Schema returns the event table in use.
func (b *Bridge) Schema() *schema.Table { return b.schema }

// Listen registers a handler for category on id, installing the root
// listener for the category on first use. id must be live.
func (b *Bridge) Listen(category string, id protocol.NodeID) error {
	if !b.reg.Has(id) {
		return rerrors.New("R001").WithNode(uint64(id)).Wrap(registry.ErrUnknownNode)
	}
	name := b.names.Intern(category)
	if err := b.install(name); err != nil {
		return err
	}
	set, ok := b.regs[id]
	if !ok {
		set = make(map[intern.String]struct{}, 1)
		b.regs[id] = set
	}
	if _, dup := set[name]; !dup {
		set[name] = struct{}{}
		b.count++
	}
	return nil
}

func (b *Bridge) install(name intern.String) error {
	if b.installed[name] {
		return nil
	}
	info, known := b.schema.Lookup(name.Value())
	if !known {
		b.logger.Debug("listening for unknown event category", "category", name.Value())
	}
	if err := b.doc.AddRootListener(name.Value(), !info.Bubbles, b.handle); err != nil {
		return rerrors.New("R010").
			WithOp("NewEventListener").
			WithDetail("The root listener for " + name.Value() + " could not be installed.").
			Wrap(err)
	}
	b.installed[name] = true
	b.logger.Debug("root listener installed",
		"category", name.Value(),
		"capture", !info.Bubbles)
	return nil
}

// Unlisten clears the registration for category on id. Root listeners stay
// installed.
func (b *Bridge) Unlisten(category string, id protocol.NodeID) {
	name, ok := b.names.Lookup(category)
	if !ok {
		return
	}
	set := b.regs[id]
	if _, ok := set[name]; !ok {
		return
	}
	delete(set, name)
	b.count--
	if len(set) == 0 {
		delete(b.regs, id)
	}
	b.debouncer.Cancel(debounceKey{name, id})
}

// Has reports whether id is registered for category.
func (b *Bridge) Has(category string, id protocol.NodeID) bool {
	name, ok := b.names.Lookup(category)
	if !ok {
		return false
	}
	_, ok = b.regs[id][name]
	return ok
}

func (b *Bridge) has(name intern.String, id protocol.NodeID) bool {
	_, ok := b.regs[id][name]
	return ok
}

// Registrations returns the number of (category, node) registrations.
func (b *Bridge) Registrations() int { return b.count }

// Installed returns the categories with a root listener, sorted.
func (b *Bridge) Installed() []string {
	out := make([]string, 0, len(b.installed))
	for name := range b.installed {
		out = append(out, name.Value())
	}
	sort.Strings(out)
	return out
}

func (b *Bridge) release(id protocol.NodeID) {
	set, ok := b.regs[id]
	if !ok {
		return
	}
	for name := range set {
		b.debouncer.Cancel(debounceKey{name, id})
	}
	b.count -= len(set)
	delete(b.regs, id)
}

// Reset drops every registration and pending debounced event. Root
// listeners stay installed.
func (b *Bridge) Reset() {
	for id, set := range b.regs {
		for name := range set {
			b.debouncer.Cancel(debounceKey{name, id})
		}
	}
	clear(b.regs)
	b.count = 0
}

// Pending is a native event captured at firing time, waiting for its
// ancestor walk.
type Pending struct {
	Category intern.String
	Info     schema.EventInfo
	Target   dom.Node
	Payload  protocol.Payload
}

// Capture decodes native into a Pending event. It runs synchronously in
// the native listener so live values reflect the DOM at firing time.
// Decode failures return an R020 error.
func (b *Bridge) Capture(native dom.Event) (*Pending, error) {
	typ := native.Type()
	info, _ := b.schema.Lookup(typ)
	target := native.Target()
	if target == nil {
		return nil, rerrors.New("R020").WithDetail("event " + typ + " has no target").Wrap(ErrNoTarget)
	}
	payload, err := decodePayload(info.Payload, native, target)
	if err != nil {
		return nil, rerrors.New("R020").
			WithDetail("event " + typ + " carried an unusable " + info.Payload.String() + " payload").
			Wrap(err)
	}
	return &Pending{
		Category: b.names.Intern(typ),
		Info:     info,
		Target:   target,
		Payload:  payload,
	}, nil
}

func (b *Bridge) handle(native dom.Event) {
	p, err := b.Capture(native)
	if err != nil {
		b.logger.Debug("dropping undecodable event",
			"event", native.Type(),
			"error", err)
		b.rec.EventDropped(native.Type(), DropDecode)
		return
	}
	if !b.loop.Post(func() { b.Dispatch(p) }) {
		b.rec.EventDropped(p.Category.Value(), DropStale)
	}
}

// Dispatch walks from the pending target to the document root and queues
// an event for each registered ancestor, stopping at the first unless the
// category propagates. It returns the number of ancestors matched.
//
// The tree may have changed since Capture, so a target that is no longer
// attached to the document is dropped and every ancestor is re-resolved
// through the registry.
func (b *Bridge) Dispatch(p *Pending) int {
	category := p.Category.Value()
	if !dom.Contains(b.doc.Root(), p.Target) {
		b.rec.EventDropped(category, DropStale)
		return 0
	}

	matched := 0
	for n := p.Target; n != nil; n = n.Parent() {
		id, ok := b.reg.Lookup(n)
		if !ok || !b.has(p.Category, id) {
			continue
		}
		matched++
		b.deliver(p, id)
		if !p.Info.Propagates {
			break
		}
	}
	if matched == 0 {
		b.rec.EventDropped(category, DropNoHandler)
	}
	return matched
}

func (b *Bridge) deliver(p *Pending, id protocol.NodeID) {
	if b.debounce > 0 && p.Category == b.input {
		key := debounceKey{p.Category, id}
		target := p.Target
		b.debouncer.Trigger(key, func() {
			if !b.has(key.category, id) || !dom.Contains(b.doc.Root(), target) {
				b.rec.EventDropped(key.category.Value(), DropStale)
				return
			}
			payload := p.Payload
			if fd, err := formData(target); err == nil {
				payload = fd
			}
			b.push(protocol.Event{Name: key.category.Value(), Target: id, Payload: payload})
		})
		return
	}
	// Anything else observes the latest input first.
	b.debouncer.FlushAll()
	b.push(protocol.Event{Name: p.Category.Value(), Target: id, Payload: p.Payload})
}

func (b *Bridge) push(ev protocol.Event) {
	if !b.queue.Push(ev) {
		b.rec.EventDropped(ev.Name, DropQueueFull)
		return
	}
	b.rec.EventDispatched(ev.Name)
}

// Flush delivers every debounced input event now.
func (b *Bridge) Flush() int { return b.debouncer.FlushAll() }
