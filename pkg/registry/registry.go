// Package registry maps the node ids chosen by the diffing engine to live
// native nodes.
//
// Storage is a slot slice indexed by id that grows with the highest id
// seen and is never compacted; ids are reusable as soon as they are
// removed and are not assumed to be issued in order. A reverse index from
// dom.Key lets event delegation turn a native node back into its id.
package registry

import (
	"errors"

	rerrors "github.com/vango-dev/vrender/internal/errors"
	"github.com/vango-dev/vrender/pkg/dom"
	"github.com/vango-dev/vrender/pkg/protocol"
)

// DefaultMaxID bounds slot growth.
const DefaultMaxID = 1 << 24

var (
	ErrDuplicateNode = errors.New("registry: duplicate node")
	ErrUnknownNode   = errors.New("registry: unknown node")
	ErrIDOutOfRange  = errors.New("registry: node id out of range")
)

// ReleaseHook runs when an id is removed, before its slot can be reused.
type ReleaseHook func(id protocol.NodeID, n dom.Node)

// Stats is a point-in-time summary of a Registry.
type Stats struct {
	Live    int             `json:"live"`
	Slots   int             `json:"slots"`
	Highest protocol.NodeID `json:"highest"`
	Created uint64          `json:"created"`
	Removed uint64          `json:"removed"`
}

// Registry is the node registry. It is not safe for concurrent use.
type Registry struct {
	slots   []dom.Node
	byKey   map[dom.Key]protocol.NodeID
	hooks   []ReleaseHook
	maxID   protocol.NodeID
	live    int
	created uint64
	removed uint64
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byKey: make(map[dom.Key]protocol.NodeID),
		maxID: DefaultMaxID,
	}
}

// SetMaxID changes the largest id Create accepts.
func (r *Registry) SetMaxID(id protocol.NodeID) { r.maxID = id }

// OnRelease registers a hook run by Remove and Reset.
func (r *Registry) OnRelease(h ReleaseHook) {
	r.hooks = append(r.hooks, h)
}

// Create registers n under id.
func (r *Registry) Create(id protocol.NodeID, n dom.Node) error {
	if id > r.maxID {
		return rerrors.New("R006").WithNode(uint64(id)).Wrap(ErrIDOutOfRange)
	}
	if r.Has(id) {
		return rerrors.New("R002").WithNode(uint64(id)).Wrap(ErrDuplicateNode)
	}
	if prev, ok := r.byKey[n.Key()]; ok {
		return rerrors.New("R002").WithNode(uint64(id)).
			WithDetail("The native node is already registered as " + prev.String() + ".").
			Wrap(ErrDuplicateNode)
	}
	if int(id) >= len(r.slots) {
		r.grow(int(id) + 1)
	}
	r.slots[id] = n
	r.byKey[n.Key()] = id
	r.live++
	r.created++
	return nil
}

func (r *Registry) grow(n int) {
	if n <= cap(r.slots) {
		r.slots = r.slots[:n]
		return
	}
	c := 2 * cap(r.slots)
	if c < n {
		c = n
	}
	if c < 64 {
		c = 64
	}
	slots := make([]dom.Node, n, c)
	copy(slots, r.slots)
	r.slots = slots
}

// Has reports whether id has a live slot.
func (r *Registry) Has(id protocol.NodeID) bool {
	return uint64(id) < uint64(len(r.slots)) && r.slots[id] != nil
}

// Get returns the node registered under id.
func (r *Registry) Get(id protocol.NodeID) (dom.Node, error) {
	if !r.Has(id) {
		return nil, rerrors.New("R001").WithNode(uint64(id)).Wrap(ErrUnknownNode)
	}
	return r.slots[id], nil
}

// Remove clears the slot for id and returns its node. Release hooks run
// first, so per-node state is gone before the id can be reused.
func (r *Registry) Remove(id protocol.NodeID) (dom.Node, error) {
	n, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	for _, h := range r.hooks {
		h(id, n)
	}
	r.slots[id] = nil
	delete(r.byKey, n.Key())
	r.live--
	r.removed++
	return n, nil
}

// Lookup returns the id n is registered under.
func (r *Registry) Lookup(n dom.Node) (protocol.NodeID, bool) {
	if n == nil {
		return 0, false
	}
	id, ok := r.byKey[n.Key()]
	return id, ok
}

// Live returns the number of registered nodes.
func (r *Registry) Live() int { return r.live }

// Len returns the number of slots, live or empty.
func (r *Registry) Len() int { return len(r.slots) }

// IDs returns the live ids in ascending order.
func (r *Registry) IDs() []protocol.NodeID {
	ids := make([]protocol.NodeID, 0, r.live)
	for i, n := range r.slots {
		if n != nil {
			ids = append(ids, protocol.NodeID(i))
		}
	}
	return ids
}

// Stats returns current counters.
func (r *Registry) Stats() Stats {
	s := Stats{
		Live:    r.live,
		Slots:   len(r.slots),
		Created: r.created,
		Removed: r.removed,
	}
	for i := len(r.slots) - 1; i >= 0; i-- {
		if r.slots[i] != nil {
			s.Highest = protocol.NodeID(i)
			break
		}
	}
	return s
}

// Reset releases every live node, running release hooks, and drops the
// slot storage.
func (r *Registry) Reset() {
	for i, n := range r.slots {
		if n == nil {
			continue
		}
		for _, h := range r.hooks {
			h(protocol.NodeID(i), n)
		}
	}
	r.slots = nil
	clear(r.byKey)
	r.removed += uint64(r.live)
	r.live = 0
}
