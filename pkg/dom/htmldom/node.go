package htmldom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vango-dev/vrender/pkg/dom"
)

// Node wraps an *html.Node. Wrappers are unique per html.Node, so Key is
// stable for the node's lifetime.
type Node struct {
	doc   *Document
	n     *html.Node
	key   dom.Key
	props map[string]any
}

var _ dom.Node = (*Node)(nil)

// HTML returns the underlying x/net/html node.
func (w *Node) HTML() *html.Node { return w.n }

func (w *Node) Key() dom.Key { return w.key }

func (w *Node) Type() dom.NodeType {
	switch w.n.Type {
	case html.ElementNode:
		return dom.ElementNode
	case html.TextNode:
		return dom.TextNode
	case html.CommentNode:
		return dom.CommentNode
	case html.DocumentNode:
		return dom.DocumentNode
	default:
		return 0
	}
}

func (w *Node) NodeName() string {
	switch w.n.Type {
	case html.ElementNode:
		return w.n.Data
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	case html.DocumentNode:
		return "#document"
	default:
		return ""
	}
}

func (w *Node) Parent() dom.Node      { return w.doc.node(w.n.Parent) }
func (w *Node) FirstChild() dom.Node  { return w.doc.node(w.n.FirstChild) }
func (w *Node) NextSibling() dom.Node { return w.doc.node(w.n.NextSibling) }

func (w *Node) String() string {
	return fmt.Sprintf("%s#%d", w.NodeName(), w.key)
}

func (w *Node) canHaveChildren() bool {
	return w.n.Type == html.ElementNode || w.n.Type == html.DocumentNode
}

// checkInsert applies the pre-insertion validity rules.
func (w *Node) checkInsert(c *Node) error {
	if !w.canHaveChildren() {
		return fmt.Errorf("%w: %s cannot have children", dom.ErrHierarchy, w)
	}
	if c.n.Type == html.DocumentNode {
		return fmt.Errorf("%w: cannot insert a document", dom.ErrHierarchy)
	}
	for p := w.n; p != nil; p = p.Parent {
		if p == c.n {
			return fmt.Errorf("%w: %s is an ancestor of %s", dom.ErrHierarchy, c, w)
		}
	}
	return nil
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func (w *Node) AppendChild(child dom.Node) error {
	c, err := w.doc.unwrap(child)
	if err != nil {
		return err
	}
	if err := w.checkInsert(c); err != nil {
		return err
	}
	detach(c.n)
	w.n.AppendChild(c.n)
	return nil
}

func (w *Node) InsertBefore(child, ref dom.Node) error {
	if ref == nil {
		return w.AppendChild(child)
	}
	c, err := w.doc.unwrap(child)
	if err != nil {
		return err
	}
	r, err := w.doc.unwrap(ref)
	if err != nil {
		return err
	}
	if err := w.checkInsert(c); err != nil {
		return err
	}
	if r.n.Parent != w.n {
		return fmt.Errorf("%w: %s is not a child of %s", dom.ErrNotFound, r, w)
	}
	if c == r {
		return nil
	}
	detach(c.n)
	w.n.InsertBefore(c.n, r.n)
	return nil
}

func (w *Node) RemoveChild(child dom.Node) error {
	c, err := w.doc.unwrap(child)
	if err != nil {
		return err
	}
	if c.n.Parent != w.n {
		return fmt.Errorf("%w: %s is not a child of %s", dom.ErrNotFound, c, w)
	}
	w.n.RemoveChild(c.n)
	return nil
}

func (w *Node) Remove() error {
	detach(w.n)
	return nil
}

func (w *Node) element(op string) error {
	if w.n.Type != html.ElementNode {
		return fmt.Errorf("%w: %s on %s", dom.ErrNotSupported, op, w)
	}
	return nil
}

// attrName applies the HTML lower-casing rule for HTML elements.
func (w *Node) attrName(name string) string {
	if w.n.Namespace == "" {
		return strings.ToLower(name)
	}
	return name
}

func qualified(a html.Attribute) string {
	if a.Namespace == "" {
		return a.Key
	}
	return a.Namespace + ":" + a.Key
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if qualified(a) == name {
			return a.Val, true
		}
	}
	return "", false
}

func (w *Node) GetAttribute(name string) (string, bool) {
	if w.n.Type != html.ElementNode {
		return "", false
	}
	return attr(w.n, w.attrName(name))
}

func (w *Node) SetAttribute(name, value string) error {
	if err := w.element("setAttribute"); err != nil {
		return err
	}
	if !validName(name) {
		return fmt.Errorf("%w: attribute %q", dom.ErrInvalidCharacter, name)
	}
	name = w.attrName(name)
	for i, a := range w.n.Attr {
		if qualified(a) == name {
			w.n.Attr[i].Val = value
			return nil
		}
	}
	w.n.Attr = append(w.n.Attr, html.Attribute{Key: name, Val: value})
	return nil
}

func (w *Node) RemoveAttribute(name string) error {
	if err := w.element("removeAttribute"); err != nil {
		return err
	}
	name = w.attrName(name)
	w.removeAttrs(func(a html.Attribute) bool { return qualified(a) == name })
	return nil
}

func (w *Node) removeAttrs(match func(html.Attribute) bool) {
	out := w.n.Attr[:0]
	for _, a := range w.n.Attr {
		if !match(a) {
			out = append(out, a)
		}
	}
	w.n.Attr = out
}

func (w *Node) SetAttributeNS(ns, qualifiedName, value string) error {
	if ns == "" {
		return w.SetAttribute(qualifiedName, value)
	}
	if err := w.element("setAttributeNS"); err != nil {
		return err
	}
	if !validName(qualifiedName) {
		return fmt.Errorf("%w: attribute %q", dom.ErrInvalidCharacter, qualifiedName)
	}
	prefix, local := splitQName(qualifiedName)
	switch {
	case prefix == "xml" && ns != dom.NamespaceXML,
		(prefix == "xmlns" || qualifiedName == "xmlns") != (ns == dom.NamespaceXMLNS):
		return fmt.Errorf("%w: %q in %q", dom.ErrNamespace, qualifiedName, ns)
	}
	if prefix == "" {
		prefix = attrPrefix(ns)
	}
	for i, a := range w.n.Attr {
		if a.Namespace == prefix && a.Key == local {
			w.n.Attr[i].Val = value
			return nil
		}
	}
	w.n.Attr = append(w.n.Attr, html.Attribute{Namespace: prefix, Key: local, Val: value})
	return nil
}

func (w *Node) RemoveAttributeNS(ns, localName string) error {
	if ns == "" {
		return w.RemoveAttribute(localName)
	}
	if err := w.element("removeAttributeNS"); err != nil {
		return err
	}
	prefix := attrPrefix(ns)
	w.removeAttrs(func(a html.Attribute) bool {
		if a.Key != localName {
			return false
		}
		return prefix == "" || a.Namespace == prefix
	})
	return nil
}

func (w *Node) styleDecls() []dom.Declaration {
	v, _ := attr(w.n, "style")
	return dom.ParseStyle(v)
}

func (w *Node) writeStyle(decls []dom.Declaration) {
	if len(decls) == 0 {
		w.removeAttrs(func(a html.Attribute) bool { return qualified(a) == "style" })
		return
	}
	_ = w.SetAttribute("style", dom.FormatStyle(decls))
}

func (w *Node) SetStyle(cssText string) error {
	if err := w.element("style"); err != nil {
		return err
	}
	w.writeStyle(dom.ParseStyle(cssText))
	return nil
}

func (w *Node) SetStyleProperty(name, value string) error {
	if err := w.element("style.setProperty"); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: empty style property", dom.ErrInvalidCharacter)
	}
	w.writeStyle(dom.SetDeclaration(w.styleDecls(), name, value))
	return nil
}

func (w *Node) RemoveStyleProperty(name string) error {
	if err := w.element("style.removeProperty"); err != nil {
		return err
	}
	w.writeStyle(dom.RemoveDeclaration(w.styleDecls(), name))
	return nil
}

// Property returns a live property. Properties set with SetProperty win;
// otherwise value, checked, selected and disabled fall back to the
// attributes and content a browser would derive them from. Unknown
// properties read as nil.
func (w *Node) Property(name string) (any, error) {
	if v, ok := w.props[name]; ok {
		return v, nil
	}
	switch name {
	case "value":
		return w.defaultValue(), nil
	case "checked", "selected", "disabled", "hidden", "multiple", "readOnly", "required":
		_, ok := w.GetAttribute(name)
		return ok, nil
	case "textContent":
		return textContent(w.n), nil
	case "tagName":
		if w.n.Type == html.ElementNode {
			return strings.ToUpper(w.n.Data), nil
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func (w *Node) defaultValue() string {
	if w.n.Type != html.ElementNode {
		return ""
	}
	switch w.n.DataAtom {
	case atom.Textarea:
		return textContent(w.n)
	case atom.Select:
		var first, selected *Node
		dom.Walk(w, func(n dom.Node) bool {
			c := n.(*Node)
			if c.n.Type == html.ElementNode && c.n.DataAtom == atom.Option {
				if first == nil {
					first = c
				}
				if v, _ := c.Property("selected"); v == true {
					selected = c
					return false
				}
			}
			return true
		})
		if selected == nil {
			selected = first
		}
		if selected == nil {
			return ""
		}
		v, _ := selected.Property("value")
		s, _ := v.(string)
		return s
	case atom.Option:
		if v, ok := attr(w.n, "value"); ok {
			return v
		}
		return strings.TrimSpace(textContent(w.n))
	}
	v, _ := attr(w.n, "value")
	return v
}

func (w *Node) SetProperty(name string, value any) error {
	switch name {
	case "textContent":
		return w.SetText(fmt.Sprint(value))
	case "innerHTML":
		return w.SetInnerHTML(fmt.Sprint(value))
	}
	if w.props == nil {
		w.props = make(map[string]any)
	}
	w.props[name] = value
	return nil
}

func (w *Node) SetText(text string) error {
	switch w.n.Type {
	case html.TextNode, html.CommentNode:
		w.n.Data = text
		return nil
	case html.ElementNode:
		removeChildren(w.n)
		if text != "" {
			w.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
		}
		return nil
	default:
		return fmt.Errorf("%w: textContent on %s", dom.ErrNotSupported, w)
	}
}

func (w *Node) SetInnerHTML(markup string) error {
	if err := w.element("innerHTML"); err != nil {
		return err
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), w.n)
	if err != nil {
		return fmt.Errorf("htmldom: innerHTML: %w", err)
	}
	removeChildren(w.n)
	for _, c := range nodes {
		detach(c)
		w.n.AppendChild(c)
	}
	return nil
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode || n.Type == html.CommentNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
