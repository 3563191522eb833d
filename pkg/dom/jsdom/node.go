//go:build js && wasm

package jsdom

import (
	"fmt"
	"strings"

	"github.com/hack-pad/safejs"

	"github.com/vango-dev/vrender/pkg/dom"
)

// Node values from nodeType.
const (
	elementNode  = 1
	textNode     = 3
	commentNode  = 8
	documentNode = 9
)

// Node is a browser DOM node.
type Node struct {
	doc *Document
	v   safejs.Value
	key dom.Key
}

var _ dom.Node = (*Node)(nil)

// JSValue returns the underlying JavaScript object.
func (n *Node) JSValue() safejs.Value { return n.v }

func (n *Node) Key() dom.Key { return n.key }

func (n *Node) nodeType() int {
	v, err := n.v.Get("nodeType")
	if err != nil {
		return 0
	}
	t, _ := v.Int()
	return t
}

func (n *Node) Type() dom.NodeType {
	switch n.nodeType() {
	case elementNode:
		return dom.ElementNode
	case textNode:
		return dom.TextNode
	case commentNode:
		return dom.CommentNode
	case documentNode:
		return dom.DocumentNode
	}
	return 0
}

func (n *Node) NodeName() string {
	s, _ := n.str("nodeName")
	if n.nodeType() == elementNode {
		return strings.ToLower(s)
	}
	return s
}

func (n *Node) String() string {
	return fmt.Sprintf("<%s #%d>", n.NodeName(), n.key)
}

func (n *Node) str(prop string) (string, error) {
	v, err := n.v.Get(prop)
	if err != nil {
		return "", err
	}
	return v.String()
}

func (n *Node) rel(prop string) dom.Node {
	v, err := n.v.Get(prop)
	if err != nil {
		return nil
	}
	return n.doc.node(v)
}

func (n *Node) Parent() dom.Node      { return n.rel("parentNode") }
func (n *Node) FirstChild() dom.Node  { return n.rel("firstChild") }
func (n *Node) NextSibling() dom.Node { return n.rel("nextSibling") }

func (n *Node) call(method string, args ...any) (safejs.Value, error) {
	v, err := n.v.Call(method, args...)
	if err != nil {
		return safejs.Value{}, domError(method, err)
	}
	return v, nil
}

func (n *Node) set(prop string, value any) error {
	if err := n.v.Set(prop, value); err != nil {
		return domError(prop, err)
	}
	return nil
}

func (n *Node) element(op string) error {
	if n.nodeType() != elementNode {
		return fmt.Errorf("%w: %s on %s", dom.ErrNotSupported, op, n)
	}
	return nil
}

func (n *Node) AppendChild(child dom.Node) error {
	c, err := n.doc.unwrap(child)
	if err != nil {
		return err
	}
	_, err = n.call("appendChild", c.v)
	return err
}

func (n *Node) InsertBefore(child, ref dom.Node) error {
	c, err := n.doc.unwrap(child)
	if err != nil {
		return err
	}
	if ref == nil {
		_, err = n.call("insertBefore", c.v, nil)
		return err
	}
	r, err := n.doc.unwrap(ref)
	if err != nil {
		return err
	}
	_, err = n.call("insertBefore", c.v, r.v)
	return err
}

func (n *Node) RemoveChild(child dom.Node) error {
	c, err := n.doc.unwrap(child)
	if err != nil {
		return err
	}
	_, err = n.call("removeChild", c.v)
	return err
}

func (n *Node) Remove() error {
	if n.nodeType() == documentNode {
		return fmt.Errorf("%w: remove document", dom.ErrNotSupported)
	}
	_, err := n.call("remove")
	return err
}

func (n *Node) GetAttribute(name string) (string, bool) {
	if n.nodeType() != elementNode {
		return "", false
	}
	v, err := n.v.Call("getAttribute", name)
	if err != nil || v.IsNull() {
		return "", false
	}
	s, err := v.String()
	return s, err == nil
}

func (n *Node) SetAttribute(name, value string) error {
	if err := n.element("setAttribute"); err != nil {
		return err
	}
	_, err := n.call("setAttribute", name, value)
	return err
}

func (n *Node) RemoveAttribute(name string) error {
	if err := n.element("removeAttribute"); err != nil {
		return err
	}
	_, err := n.call("removeAttribute", name)
	return err
}

func (n *Node) SetAttributeNS(ns, qualifiedName, value string) error {
	if err := n.element("setAttributeNS"); err != nil {
		return err
	}
	_, err := n.call("setAttributeNS", nsArg(ns), qualifiedName, value)
	return err
}

func (n *Node) RemoveAttributeNS(ns, localName string) error {
	if err := n.element("removeAttributeNS"); err != nil {
		return err
	}
	_, err := n.call("removeAttributeNS", nsArg(ns), localName)
	return err
}

// nsArg passes the empty namespace as null.
func nsArg(ns string) any {
	if ns == "" {
		return nil
	}
	return ns
}

func (n *Node) style() (safejs.Value, error) {
	if err := n.element("style"); err != nil {
		return safejs.Value{}, err
	}
	s, err := n.v.Get("style")
	if err != nil || s.IsUndefined() {
		return safejs.Value{}, fmt.Errorf("%w: style on %s", dom.ErrNotSupported, n)
	}
	return s, nil
}

func (n *Node) SetStyle(cssText string) error {
	s, err := n.style()
	if err != nil {
		return err
	}
	if err := s.Set("cssText", cssText); err != nil {
		return domError("style.cssText", err)
	}
	return nil
}

func (n *Node) SetStyleProperty(name, value string) error {
	s, err := n.style()
	if err != nil {
		return err
	}
	if _, err := s.Call("setProperty", name, value); err != nil {
		return domError("style.setProperty", err)
	}
	return nil
}

func (n *Node) RemoveStyleProperty(name string) error {
	s, err := n.style()
	if err != nil {
		return err
	}
	if _, err := s.Call("removeProperty", name); err != nil {
		return domError("style.removeProperty", err)
	}
	return nil
}

// Property reads a property as a string, bool or float64. Objects and
// functions read as nil.
func (n *Node) Property(name string) (any, error) {
	v, err := n.v.Get(name)
	if err != nil {
		return nil, domError(name, err)
	}
	return goValue(v)
}

func goValue(v safejs.Value) (any, error) {
	switch v.Type() {
	case safejs.TypeString:
		return v.String()
	case safejs.TypeBoolean:
		return v.Bool()
	case safejs.TypeNumber:
		return v.Float()
	}
	return nil, nil
}

func (n *Node) SetProperty(name string, value any) error {
	return n.set(name, value)
}

func (n *Node) SetText(text string) error {
	switch n.nodeType() {
	case textNode, commentNode:
		return n.set("data", text)
	case elementNode:
		return n.set("textContent", text)
	}
	return fmt.Errorf("%w: textContent on %s", dom.ErrNotSupported, n)
}

func (n *Node) SetInnerHTML(markup string) error {
	if err := n.element("innerHTML"); err != nil {
		return err
	}
	return n.set("innerHTML", markup)
}
