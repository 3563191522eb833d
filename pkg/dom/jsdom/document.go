//go:build js && wasm

// Package jsdom implements the dom capability surface on the browser DOM.
//
// Every call goes through github.com/hack-pad/safejs, so a DOMException
// thrown by the browser comes back as an error wrapping the matching dom
// sentinel instead of a panic. Nodes are identified by a key stamped on
// the JavaScript object the first time Go sees it.
package jsdom

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall/js"

	"github.com/hack-pad/safejs"

	"github.com/vango-dev/vrender/pkg/dom"
)

// keyProperty holds the stamped dom.Key on each JavaScript node.
const keyProperty = "__vrenderKey"

// Document is the browser document.
type Document struct {
	doc     safejs.Value
	nextKey dom.Key
	funcs   []safejs.Func
	logger  *slog.Logger
}

var _ dom.Document = (*Document)(nil)

// New wraps the global document.
func New() (*Document, error) {
	doc, err := safejs.Global().Get("document")
	if err != nil {
		return nil, fmt.Errorf("jsdom: %w", err)
	}
	if doc.IsUndefined() || doc.IsNull() {
		return nil, fmt.Errorf("jsdom: no global document")
	}
	return Wrap(doc), nil
}

// Wrap uses doc, which must be a DOM Document object.
func Wrap(doc safejs.Value) *Document {
	return &Document{doc: doc, logger: slog.Default().With("component", "jsdom")}
}

// SetLogger replaces the logger used for stamping failures.
func (d *Document) SetLogger(l *slog.Logger) {
	if l != nil {
		d.logger = l.With("component", "jsdom")
	}
}

// node wraps v, stamping a key on first sight. Null and undefined are nil.
func (d *Document) node(v safejs.Value) dom.Node {
	if v.IsNull() || v.IsUndefined() {
		return nil
	}
	return d.wrap(v)
}

func (d *Document) wrap(v safejs.Value) *Node {
	if k, ok := stampedKey(v); ok {
		return &Node{doc: d, v: v, key: k}
	}
	d.nextKey++
	key := d.nextKey
	if err := stamp(v, key); err != nil {
		// The node still works, but every later sighting mints a new key,
		// so it can never be matched back to a registered id.
		d.logger.Warn("node key not stamped", "key", uint64(key), "error", err)
	}
	return &Node{doc: d, v: v, key: key}
}

func stampedKey(v safejs.Value) (dom.Key, bool) {
	k, err := v.Get(keyProperty)
	if err != nil || k.Type() != safejs.TypeNumber {
		return 0, false
	}
	n, err := k.Int()
	if err != nil {
		return 0, false
	}
	return dom.Key(n), true
}

// stamp writes key onto v and reads it back. Frozen or sealed objects
// accept the write silently and keep no property.
func stamp(v safejs.Value, key dom.Key) error {
	if err := v.Set(keyProperty, int(key)); err != nil {
		return err
	}
	if got, ok := stampedKey(v); !ok || got != key {
		return ErrNotStamped
	}
	return nil
}

func (d *Document) unwrap(n dom.Node) (*Node, error) {
	w, ok := n.(*Node)
	if !ok || w == nil || w.doc != d {
		return nil, fmt.Errorf("%w: node belongs to another document", dom.ErrNotSupported)
	}
	return w, nil
}

func (d *Document) call(method string, args ...any) (safejs.Value, error) {
	v, err := d.doc.Call(method, args...)
	if err != nil {
		return safejs.Value{}, domError(method, err)
	}
	return v, nil
}

func (d *Document) CreateElement(tag string) (dom.Node, error) {
	v, err := d.call("createElement", tag)
	if err != nil {
		return nil, err
	}
	return d.wrap(v), nil
}

func (d *Document) CreateElementNS(ns, tag string) (dom.Node, error) {
	if ns == "" {
		ns = dom.NamespaceHTML
	}
	v, err := d.call("createElementNS", ns, tag)
	if err != nil {
		return nil, err
	}
	return d.wrap(v), nil
}

func (d *Document) CreateTextNode(text string) dom.Node {
	v, err := d.call("createTextNode", text)
	if err != nil {
		return nil
	}
	return d.wrap(v)
}

func (d *Document) CreateComment(data string) dom.Node {
	v, err := d.call("createComment", data)
	if err != nil {
		return nil
	}
	return d.wrap(v)
}

func (d *Document) Root() dom.Node { return d.wrap(d.doc) }

func (d *Document) Body() dom.Node {
	v, err := d.doc.Get("body")
	if err != nil {
		return nil
	}
	return d.node(v)
}

func (d *Document) ElementByID(id string) dom.Node {
	v, err := d.call("getElementById", id)
	if err != nil {
		return nil
	}
	return d.node(v)
}

// AddRootListener installs fn on the document. The listener stays until
// Release.
func (d *Document) AddRootListener(eventType string, capture bool, fn dom.Listener) error {
	if eventType == "" || fn == nil {
		return fmt.Errorf("%w: empty listener", dom.ErrNotSupported)
	}
	f, err := safejs.FuncOf(func(_ safejs.Value, args []safejs.Value) any {
		if len(args) > 0 {
			fn(&Event{doc: d, v: args[0]})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("jsdom: listener: %w", err)
	}
	if _, err := d.doc.Call("addEventListener", eventType, f.Value(), capture); err != nil {
		f.Release()
		return domError("addEventListener", err)
	}
	d.funcs = append(d.funcs, f)
	return nil
}

// Release frees the Go functions behind every root listener. Listeners
// fired afterwards throw in JavaScript.
func (d *Document) Release() {
	for _, f := range d.funcs {
		f.Release()
	}
	d.funcs = nil
}

// ErrNotStamped reports a node that refused the key property.
var ErrNotStamped = errors.New("jsdom: node refused key property")

// domErrors maps DOMException names to dom sentinels.
var domErrors = map[string]error{
	"HierarchyRequestError": dom.ErrHierarchy,
	"NotFoundError":         dom.ErrNotFound,
	"InvalidCharacterError": dom.ErrInvalidCharacter,
	"NamespaceError":        dom.ErrNamespace,
	"NotSupportedError":     dom.ErrNotSupported,
}

// domError converts an exception thrown by method into a dom error.
func domError(method string, err error) error {
	var jsErr js.Error
	if errors.As(err, &jsErr) {
		name, nerr := safejs.Safe(jsErr.Value).Get("name")
		if nerr == nil {
			if s, serr := name.String(); serr == nil {
				if sentinel, ok := domErrors[s]; ok {
					return fmt.Errorf("%w: %s: %v", sentinel, method, err)
				}
			}
		}
	}
	return fmt.Errorf("jsdom: %s: %w", method, err)
}
