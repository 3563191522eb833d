// Package htmldom is a headless implementation of the dom capability surface
// on top of golang.org/x/net/html.
//
// It follows browser semantics closely enough for the renderer's failure
// policy to be exercised: inserting a node into its own subtree is a
// hierarchy error, a reference node that is not a child is not found, and
// malformed attribute names or namespaces are rejected. Events are
// simulated with Dispatch, which runs root listeners in capture phase and,
// for event types that bubble natively, in bubble phase.
//
// A Document is not safe for concurrent use.
package htmldom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/vrender/pkg/dom"
)

const blankPage = "<!DOCTYPE html><html><head></head><body></body></html>"

type rootListener struct {
	capture bool
	fn      dom.Listener
}

// Document is a headless DOM document.
type Document struct {
	root      *html.Node
	nodes     map[*html.Node]*Node
	nextKey   dom.Key
	listeners map[string][]rootListener
}

// New returns an empty HTML document with a head and a body.
func New() *Document {
	d, err := Parse(strings.NewReader(blankPage))
	if err != nil {
		panic(fmt.Sprintf("htmldom: parse blank page: %v", err))
	}
	return d
}

// Parse builds a document from existing markup.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldom: parse: %w", err)
	}
	return &Document{
		root:      root,
		nodes:     make(map[*html.Node]*Node),
		listeners: make(map[string][]rootListener),
	}, nil
}

// ParseString is Parse for a string.
func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// wrap returns the stable wrapper for n, creating it on first sight.
func (d *Document) wrap(n *html.Node) *Node {
	if w, ok := d.nodes[n]; ok {
		return w
	}
	d.nextKey++
	w := &Node{doc: d, n: n, key: d.nextKey}
	d.nodes[n] = w
	return w
}

// node converts n to a dom.Node, keeping nil a nil interface.
func (d *Document) node(n *html.Node) dom.Node {
	if n == nil {
		return nil
	}
	return d.wrap(n)
}

func (d *Document) unwrap(n dom.Node) (*Node, error) {
	w, ok := n.(*Node)
	if !ok || w == nil || w.doc != d {
		return nil, fmt.Errorf("%w: node belongs to another document", dom.ErrNotSupported)
	}
	return w, nil
}

// CreateElement creates an HTML element.
func (d *Document) CreateElement(tag string) (dom.Node, error) {
	if !validName(tag) {
		return nil, fmt.Errorf("%w: tag %q", dom.ErrInvalidCharacter, tag)
	}
	tag = strings.ToLower(tag)
	return d.wrap(&html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}), nil
}

// CreateElementNS creates an element in the given namespace.
func (d *Document) CreateElementNS(ns, tag string) (dom.Node, error) {
	if ns == "" || ns == dom.NamespaceHTML {
		return d.CreateElement(tag)
	}
	if !validName(tag) {
		return nil, fmt.Errorf("%w: tag %q", dom.ErrInvalidCharacter, tag)
	}
	prefix, local := splitQName(tag)
	if prefix != "" && !validName(local) {
		return nil, fmt.Errorf("%w: tag %q", dom.ErrNamespace, tag)
	}
	return d.wrap(&html.Node{
		Type:      html.ElementNode,
		Data:      local,
		Namespace: elementNamespace(ns),
	}), nil
}

// CreateTextNode creates a text node.
func (d *Document) CreateTextNode(text string) dom.Node {
	return d.wrap(&html.Node{Type: html.TextNode, Data: text})
}

// CreateComment creates a comment node.
func (d *Document) CreateComment(data string) dom.Node {
	return d.wrap(&html.Node{Type: html.CommentNode, Data: data})
}

// Root returns the document node.
func (d *Document) Root() dom.Node {
	return d.wrap(d.root)
}

// Body returns the body element, or nil.
func (d *Document) Body() dom.Node {
	return d.node(findElement(d.root, func(n *html.Node) bool {
		return n.DataAtom == atom.Body && n.Namespace == ""
	}))
}

// ElementByID returns the first element whose id attribute equals id.
func (d *Document) ElementByID(id string) dom.Node {
	return d.node(findElement(d.root, func(n *html.Node) bool {
		v, ok := attr(n, "id")
		return ok && v == id
	}))
}

// AddRootListener installs fn at the document node.
func (d *Document) AddRootListener(eventType string, capture bool, fn dom.Listener) error {
	if eventType == "" || fn == nil {
		return fmt.Errorf("%w: empty listener", dom.ErrNotSupported)
	}
	d.listeners[eventType] = append(d.listeners[eventType], rootListener{capture: capture, fn: fn})
	return nil
}

// Forget drops the wrapper of n. A later lookup of the same underlying
// node yields a new wrapper with a new key.
func (d *Document) Forget(n dom.Node) {
	w, ok := n.(*Node)
	if !ok || w == nil || w.doc != d || w.n == d.root {
		return
	}
	if d.nodes[w.n] == w {
		delete(d.nodes, w.n)
	}
}

var _ dom.Releaser = (*Document)(nil)

// Wrapped returns the number of nodes with a live wrapper.
func (d *Document) Wrapped() int { return len(d.nodes) }

// ListenerCount returns how many root listeners exist for eventType.
func (d *Document) ListenerCount(eventType string) int {
	return len(d.listeners[eventType])
}

// Dispatch delivers ev to the root listeners the way a browser would for
// a listener on the document: capture listeners first, then bubble
// listeners if the event type bubbles. Events whose target is not
// connected to the document reach no listener.
func (d *Document) Dispatch(ev *Event) {
	target, err := d.unwrap(ev.target)
	if err != nil || !d.connected(target.n) {
		return
	}
	ls := d.listeners[ev.typ]
	for _, l := range ls {
		if l.capture {
			l.fn(ev)
		}
	}
	if !Bubbles(ev.typ) {
		return
	}
	for _, l := range ls {
		if !l.capture {
			l.fn(ev)
		}
	}
}

// Fire builds an event and dispatches it.
func (d *Document) Fire(target dom.Node, eventType string, fields map[string]any) *Event {
	ev := NewEvent(eventType, target, fields)
	d.Dispatch(ev)
	return ev
}

func (d *Document) connected(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// nonBubbling lists the event types a browser does not bubble.
var nonBubbling = map[string]bool{
	"focus": true, "blur": true,
	"mouseenter": true, "mouseleave": true,
	"pointerenter": true, "pointerleave": true,
	"load": true, "unload": true, "error": true, "abort": true,
	"scroll": true, "scrollend": true, "toggle": true,
	"play": true, "pause": true, "playing": true, "ended": true,
	"canplay": true, "canplaythrough": true, "durationchange": true,
	"emptied": true, "loadeddata": true, "loadedmetadata": true,
	"loadstart": true, "progress": true, "ratechange": true,
	"seeked": true, "seeking": true, "stalled": true, "suspend": true,
	"timeupdate": true, "volumechange": true, "waiting": true,
	"invalid": true,
}

// Bubbles reports whether events of the given type bubble natively.
func Bubbles(eventType string) bool {
	return !nonBubbling[eventType]
}

func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

// elementNamespace maps a namespace URI to the short form x/net/html uses.
func elementNamespace(ns string) string {
	switch ns {
	case dom.NamespaceSVG:
		return "svg"
	case dom.NamespaceMathML:
		return "math"
	default:
		return ns
	}
}

// attrPrefix maps a namespace URI to its conventional attribute prefix.
func attrPrefix(ns string) string {
	switch ns {
	case dom.NamespaceXLink:
		return "xlink"
	case dom.NamespaceXML:
		return "xml"
	case dom.NamespaceXMLNS:
		return "xmlns"
	default:
		return ""
	}
}

func splitQName(name string) (prefix, local string) {
	if p, l, ok := strings.Cut(name, ":"); ok {
		return p, l
	}
	return "", name
}

// validName is a permissive version of the XML Name production.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r <= ' ', r == 0x7F:
			return false
		case strings.ContainsRune(`"'<>/=`, r):
			return false
		}
	}
	return true
}
