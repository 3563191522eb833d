// Package interp replays mutation batches against a DOM.
//
// Instructions run strictly in stream order over an operand stack that is
// local to one batch: creates and PushRoot push, AppendChildren,
// InsertBefore, InsertAfter and ReplaceWith pop. Two kinds of failure are
// distinguished. A protocol violation (unknown node, duplicate create,
// stack underflow, unknown op) means the engine and renderer disagree about
// the tree; the batch stops at that instruction and the error is returned.
// A native failure (the DOM rejected a call) is logged, the instruction is
// skipped and the batch continues.
package interp

import (
	"errors"
	"log/slog"
	"strconv"

	rerrors "github.com/vango-dev/vrender/internal/errors"
	"github.com/vango-dev/vrender/pkg/dom"
	"github.com/vango-dev/vrender/pkg/protocol"
	"github.com/vango-dev/vrender/pkg/registry"
)

// ErrStackUnderflow is wrapped by R003 errors.
var ErrStackUnderflow = errors.New("interp: stack underflow")

// Listeners records event listener registrations. The delegation bridge
// implements it.
type Listeners interface {
	Listen(category string, id protocol.NodeID) error
	Unlisten(category string, id protocol.NodeID)
}

// Recorder observes instruction outcomes.
type Recorder interface {
	InstructionApplied(op protocol.Op)
	InstructionSkipped(op protocol.Op)
	ProtocolViolation(code string)
}

type nopRecorder struct{}

func (nopRecorder) InstructionApplied(protocol.Op) {}
func (nopRecorder) InstructionSkipped(protocol.Op) {}
func (nopRecorder) ProtocolViolation(string)       {}

// Result summarizes one batch.
type Result struct {
	Seq     uint64
	Applied int
	Skipped int
	// Depth is the number of handles left on the stack when the batch
	// ended. They are discarded.
	Depth int
	// Failures holds the native failures of skipped instructions.
	Failures []error
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the interpreter logger.
func WithLogger(l *slog.Logger) Option {
	return func(in *Interpreter) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(in *Interpreter) {
		if r != nil {
			in.rec = r
		}
	}
}

// Interpreter is the mutation interpreter. It is not safe for concurrent
// use; the renderer runs it on its loop.
type Interpreter struct {
	doc       dom.Document
	reg       *registry.Registry
	listeners Listeners
	stack     []dom.Node

	logger *slog.Logger
	rec    Recorder
}

// New returns an interpreter that creates nodes in doc, tracks them in reg
// and forwards listener instructions to listeners.
func New(doc dom.Document, reg *registry.Registry, listeners Listeners, opts ...Option) *Interpreter {
	in := &Interpreter{
		doc:       doc,
		reg:       reg,
		listeners: listeners,
		stack:     make([]dom.Node, 0, 32),
		logger:    slog.Default(),
		rec:       nopRecorder{},
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = in.logger.With("component", "interp")
	return in
}

// Apply replays b. It returns the first protocol violation, annotated with
// the instruction index and op; instructions before it stay applied.
func (in *Interpreter) Apply(b *protocol.Batch) (Result, error) {
	res := Result{Seq: b.Seq}
	in.reset()
	defer in.reset()

	for i := range b.Mutations {
		m := &b.Mutations[i]
		err := in.exec(m)
		if err == nil {
			res.Applied++
			in.rec.InstructionApplied(m.Op)
			continue
		}

		if re := asNative(err); re != nil {
			re.WithOp(m.Op.String()).WithIndex(i)
			res.Skipped++
			res.Failures = append(res.Failures, re)
			in.rec.InstructionSkipped(m.Op)
			in.logger.Warn("instruction skipped",
				"seq", b.Seq,
				"index", i,
				"op", m.Op.String(),
				"node", uint64(m.ID),
				"error", re.Unwrap())
			continue
		}

		re := rerrors.FromError(err, "R004").WithOp(m.Op.String()).WithIndex(i)
		res.Depth = len(in.stack)
		in.rec.ProtocolViolation(re.Code)
		in.logger.Error("protocol violation",
			"seq", b.Seq,
			"index", i,
			"op", m.Op.String(),
			"code", re.Code,
			"error", re.Error())
		return res, re
	}

	res.Depth = len(in.stack)
	if res.Depth > 0 {
		in.logger.Debug("batch left handles on the stack", "seq", b.Seq, "depth", res.Depth)
	}
	return res, nil
}

// Depth returns the current stack depth. It is zero outside Apply.
func (in *Interpreter) Depth() int { return len(in.stack) }

func (in *Interpreter) reset() {
	clear(in.stack)
	in.stack = in.stack[:0]
}

// asNative returns err as a RenderError when it is a native failure.
func asNative(err error) *rerrors.RenderError {
	if !rerrors.IsNative(err) {
		return nil
	}
	var re *rerrors.RenderError
	errors.As(err, &re)
	return re
}

func native(id protocol.NodeID, err error) error {
	if err == nil {
		return nil
	}
	return rerrors.New("R010").WithNode(uint64(id)).Wrap(err)
}

func underflow(want, have int) error {
	return rerrors.New("R003").
		WithDetail("needed " + strconv.Itoa(want) + " handles, stack holds " + strconv.Itoa(have)).
		Wrap(ErrStackUnderflow)
}

func (in *Interpreter) push(n dom.Node) { in.stack = append(in.stack, n) }

// pop removes the top n handles and returns them in push order.
func (in *Interpreter) pop(n int) ([]dom.Node, error) {
	if n < 0 || n > len(in.stack) {
		return nil, underflow(n, len(in.stack))
	}
	top := len(in.stack) - n
	out := make([]dom.Node, n)
	copy(out, in.stack[top:])
	clear(in.stack[top:])
	in.stack = in.stack[:top]
	return out, nil
}

func (in *Interpreter) exec(m *protocol.Mutation) error {
	switch m.Op {
	case protocol.OpCreateElement:
		n, err := in.doc.CreateElement(m.Tag)
		return in.create(m.ID, n, err)

	case protocol.OpCreateElementNs:
		n, err := in.doc.CreateElementNS(m.Namespace, m.Tag)
		return in.create(m.ID, n, err)

	case protocol.OpCreateTextNode:
		return in.create(m.ID, in.doc.CreateTextNode(m.Text), nil)

	case protocol.OpCreatePlaceholder:
		return in.create(m.ID, in.doc.CreateComment("placeholder"), nil)

	case protocol.OpAppendChildren:
		// The parent stays on the stack below the children.
		if m.N+1 > len(in.stack) {
			return underflow(m.N+1, len(in.stack))
		}
		children, err := in.pop(m.N)
		if err != nil {
			return err
		}
		parent := in.stack[len(in.stack)-1]
		var first error
		for _, c := range children {
			if err := parent.AppendChild(c); err != nil && first == nil {
				first = err
			}
		}
		if first != nil {
			return rerrors.New("R010").Wrap(first)
		}
		return nil

	case protocol.OpInsertBefore, protocol.OpInsertAfter:
		ref, err := in.reg.Get(m.ID)
		if err != nil {
			return err
		}
		nodes, err := in.pop(m.N)
		if err != nil {
			return err
		}
		return native(m.ID, insert(ref, nodes, m.Op == protocol.OpInsertAfter))

	case protocol.OpRemove:
		n, err := in.reg.Remove(m.ID)
		if err != nil {
			return err
		}
		if err := n.Remove(); err != nil {
			return native(m.ID, err)
		}
		in.forget(n)
		return nil

	case protocol.OpReplaceWith:
		old, err := in.reg.Get(m.ID)
		if err != nil {
			return err
		}
		nodes, err := in.pop(m.N)
		if err != nil {
			return err
		}
		nerr := insert(old, nodes, false)
		if err := old.Remove(); nerr == nil {
			nerr = err
		}
		// The engine considers the id released whatever the DOM did.
		if _, err := in.reg.Remove(m.ID); err != nil {
			return err
		}
		if old.Parent() == nil {
			in.forget(old)
		}
		return native(m.ID, nerr)

	case protocol.OpSetAttribute:
		n, err := in.reg.Get(m.ID)
		if err != nil {
			return err
		}
		return native(m.ID, setAttribute(n, m.Name, m.Value, m.Namespace))

	case protocol.OpRemoveAttribute:
		n, err := in.reg.Get(m.ID)
		if err != nil {
			return err
		}
		return native(m.ID, removeAttribute(n, m.Name, m.Namespace))

	case protocol.OpSetText:
		n, err := in.reg.Get(m.ID)
		if err != nil {
			return err
		}
		return native(m.ID, n.SetText(m.Text))

	case protocol.OpNewEventListener:
		if err := in.listeners.Listen(m.Name, m.ID); err != nil {
			return rerrors.FromError(err, "R010")
		}
		return nil

	case protocol.OpRemoveEventListener:
		if _, err := in.reg.Get(m.ID); err != nil {
			return err
		}
		in.listeners.Unlisten(m.Name, m.ID)
		return nil

	case protocol.OpPushRoot:
		n, err := in.reg.Get(m.ID)
		if err != nil {
			return err
		}
		in.push(n)
		return nil

	case protocol.OpPopRoot:
		_, err := in.pop(1)
		return err

	default:
		return rerrors.New("R004").
			WithDetail("opcode " + strconv.Itoa(int(m.Op))).
			Wrap(protocol.ErrUnknownOp)
	}
}

// forget releases backend state for a detached subtree. Descendants the
// engine still holds ids for keep theirs.
func (in *Interpreter) forget(n dom.Node) {
	dom.Forget(in.doc, n, func(c dom.Node) bool {
		_, live := in.reg.Lookup(c)
		return live
	})
}

// create registers and pushes a new node. When the DOM rejected the
// create, a placeholder comment takes its place so the stack and registry
// still match the engine's view, and the failure is reported as native.
func (in *Interpreter) create(id protocol.NodeID, n dom.Node, nerr error) error {
	if nerr != nil {
		n = in.doc.CreateComment("rejected")
	}
	if err := in.reg.Create(id, n); err != nil {
		return err
	}
	in.push(n)
	return native(id, nerr)
}

// insert places nodes next to ref, before it or after it, keeping their
// order. A failure does not stop the remaining nodes.
func insert(ref dom.Node, nodes []dom.Node, after bool) error {
	parent := ref.Parent()
	if parent == nil {
		return dom.ErrNotFound
	}
	anchor := ref
	if after {
		anchor = ref.NextSibling()
	}
	var first error
	for _, n := range nodes {
		if err := parent.InsertBefore(n, anchor); err != nil && first == nil {
			first = err
		}
	}
	return first
}
