// Package dom defines the native capability surface the renderer drives.
//
// Two backends implement it: htmldom, a headless tree on golang.org/x/net/html
// used by tests and the CLI, and jsdom, the browser DOM reached through
// safejs when compiled for js/wasm. The renderer never touches a backend
// directly; every mutation and every event read goes through these
// interfaces, and every call that the underlying DOM can reject returns an
// error instead of panicking.
package dom

import "errors"

// Namespace URIs understood by the backends.
const (
	NamespaceHTML   = "http://www.w3.org/1999/xhtml"
	NamespaceSVG    = "http://www.w3.org/2000/svg"
	NamespaceMathML = "http://www.w3.org/1998/Math/MathML"
	NamespaceXLink  = "http://www.w3.org/1999/xlink"
	NamespaceXML    = "http://www.w3.org/XML/1998/namespace"
	NamespaceXMLNS  = "http://www.w3.org/2000/xmlns/"
)

// Errors returned by backends. They mirror the DOMException names a
// browser raises for the same conditions.
var (
	ErrHierarchy        = errors.New("dom: hierarchy request error")
	ErrNotFound         = errors.New("dom: node not found")
	ErrInvalidCharacter = errors.New("dom: invalid character")
	ErrNamespace        = errors.New("dom: namespace error")
	ErrNotSupported     = errors.New("dom: operation not supported on this node")
	ErrMissingField     = errors.New("dom: event field missing")
)

// Key is a stable identity for a native node, unique within one Document.
// Backends whose handles are not comparable stamp a Key on the node.
type Key uint64

// NodeType classifies a node.
type NodeType uint8

const (
	ElementNode NodeType = iota + 1
	TextNode
	CommentNode
	DocumentNode
)

// String returns the name of the node type.
func (t NodeType) String() string {
	switch t {
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	case CommentNode:
		return "comment"
	case DocumentNode:
		return "document"
	default:
		return "unknown"
	}
}

// Node is a handle to one native node.
type Node interface {
	Key() Key
	Type() NodeType

	// NodeName is the lower-case tag for elements and "#text",
	// "#comment" or "#document" otherwise.
	NodeName() string

	// Navigation. Each returns nil when there is no such node.
	Parent() Node
	FirstChild() Node
	NextSibling() Node

	// AppendChild moves child to the end of n's children.
	AppendChild(child Node) error
	// InsertBefore moves child before ref. A nil ref appends.
	InsertBefore(child, ref Node) error
	// RemoveChild detaches child, which must be a child of n.
	RemoveChild(child Node) error
	// Remove detaches n from its parent. Detached nodes are a no-op.
	Remove() error

	GetAttribute(name string) (string, bool)
	SetAttribute(name, value string) error
	RemoveAttribute(name string) error
	SetAttributeNS(ns, qualifiedName, value string) error
	RemoveAttributeNS(ns, localName string) error

	// SetStyle replaces the inline style with a CSS declaration block.
	SetStyle(cssText string) error
	SetStyleProperty(name, value string) error
	RemoveStyleProperty(name string) error

	// Property reads a live property such as value or checked.
	Property(name string) (any, error)
	SetProperty(name string, value any) error

	// SetText replaces the data of a text or comment node, or the
	// whole content of an element.
	SetText(text string) error
	SetInnerHTML(markup string) error
}

// Listener receives native events from a root listener.
type Listener func(Event)

// Document creates nodes and owns the delegation root.
type Document interface {
	CreateElement(tag string) (Node, error)
	CreateElementNS(ns, tag string) (Node, error)
	CreateTextNode(text string) Node
	CreateComment(data string) Node

	// Root is the node root listeners attach to.
	Root() Node
	Body() Node
	ElementByID(id string) Node

	// AddRootListener installs fn for events of the given type at Root.
	// Capture listeners run before the event reaches its target and so
	// also see events that do not bubble.
	AddRootListener(eventType string, capture bool, fn Listener) error
}

// Releaser is implemented by documents that keep per-node state on the Go
// side. Forget drops that state for a node that has left the tree for good.
type Releaser interface {
	Forget(n Node)
}

// Forget releases n and its descendants on documents that are Releasers.
// Subtrees rooted at a node for which keep reports true are left alone.
func Forget(doc Document, n Node, keep func(Node) bool) {
	r, ok := doc.(Releaser)
	if !ok || n == nil {
		return
	}
	forget(r, n, keep)
}

func forget(r Releaser, n Node, keep func(Node) bool) {
	if keep != nil && keep(n) {
		return
	}
	// Children are read before n is released.
	for c := n.FirstChild(); c != nil; {
		next := c.NextSibling()
		forget(r, c, keep)
		c = next
	}
	r.Forget(n)
}

// Fields reads typed properties of a native event or one of its list
// entries. Every read fails with ErrMissingField when the property is
// absent or has the wrong type.
type Fields interface {
	Int(name string) (int, error)
	Float(name string) (float64, error)
	Bool(name string) (bool, error)
	String(name string) (string, error)
}

// Event is a native event as seen by a root listener.
type Event interface {
	Fields
	Type() string
	Target() Node
	// List reads an array-valued property such as touches.
	List(name string) ([]Fields, error)
}

// Contains reports whether n is other or one of its ancestors.
func Contains(n, other Node) bool {
	if n == nil || other == nil {
		return false
	}
	for p := other; p != nil; p = p.Parent() {
		if p.Key() == n.Key() {
			return true
		}
	}
	return false
}

// Children returns the children of n in order.
func Children(n Node) []Node {
	var out []Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, c)
	}
	return out
}

// Walk calls fn for n and every descendant in document order until fn
// returns false.
func Walk(n Node, fn func(Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}
