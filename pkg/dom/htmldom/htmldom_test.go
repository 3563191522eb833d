package htmldom

import (
	"errors"
	"strings"
	"testing"

	"github.com/vango-dev/vrender/pkg/dom"
)

func mustElement(t *testing.T, d *Document, tag string) dom.Node {
	t.Helper()
	n, err := d.CreateElement(tag)
	if err != nil {
		t.Fatalf("CreateElement(%q): %v", tag, err)
	}
	return n
}

func TestBuildTree(t *testing.T) {
	d := New()
	body := d.Body()
	if body == nil {
		t.Fatal("Body() = nil")
	}

	ul := mustElement(t, d, "UL")
	a := mustElement(t, d, "li")
	b := mustElement(t, d, "li")
	c := mustElement(t, d, "li")
	_ = a.SetText("a")
	_ = b.SetText("b")
	_ = c.SetText("c")

	if err := body.AppendChild(ul); err != nil {
		t.Fatal(err)
	}
	if err := ul.AppendChild(c); err != nil {
		t.Fatal(err)
	}
	if err := ul.InsertBefore(a, c); err != nil {
		t.Fatal(err)
	}
	if err := ul.InsertBefore(b, c); err != nil {
		t.Fatal(err)
	}

	if got, want := InnerHTML(body), "<ul><li>a</li><li>b</li><li>c</li></ul>"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}

	// Moving an attached node detaches it from its old position.
	if err := ul.AppendChild(a); err != nil {
		t.Fatal(err)
	}
	if got, want := InnerHTML(ul), "<li>b</li><li>c</li><li>a</li>"; got != want {
		t.Errorf("after move = %q, want %q", got, want)
	}

	if err := b.Remove(); err != nil {
		t.Fatal(err)
	}
	if got, want := InnerHTML(ul), "<li>c</li><li>a</li>"; got != want {
		t.Errorf("after remove = %q, want %q", got, want)
	}
	if b.Parent() != nil {
		t.Error("removed node still has a parent")
	}
}

func TestWrapperIdentity(t *testing.T) {
	d := New()
	div := mustElement(t, d, "div")
	span := mustElement(t, d, "span")
	_ = div.AppendChild(span)

	if span.Parent().Key() != div.Key() {
		t.Error("Parent() returned a node with a different key")
	}
	if div.FirstChild() != span {
		t.Error("FirstChild() should return the same wrapper")
	}
	if span.NextSibling() != nil {
		t.Error("NextSibling() should be a nil interface")
	}
	if !dom.Contains(div, span) || dom.Contains(span, div) {
		t.Error("Contains mismatch")
	}
}

func TestForgetDropsDetachedWrappers(t *testing.T) {
	d := New()
	before := d.Wrapped()

	div := mustElement(t, d, "div")
	span := mustElement(t, d, "span")
	keep := mustElement(t, d, "em")
	_ = div.AppendChild(span)
	_ = div.AppendChild(keep)
	_ = keep.AppendChild(d.CreateTextNode("x"))

	dom.Forget(d, div, func(n dom.Node) bool { return n == keep })
	if got := d.Wrapped(); got != before+2 {
		t.Errorf("wrapped = %d, want %d (em and its text)", got, before+2)
	}
	if keep.FirstChild() == nil {
		t.Fatal("kept subtree lost its child")
	}

	// The underlying node survives; only its wrapper identity is new.
	if got := keep.Parent(); got == nil || got.Key() == div.Key() {
		t.Errorf("re-wrapped parent key = %v, want a fresh key", got)
	}

	d.Forget(d.Root())
	if d.Root() == nil || d.Wrapped() == 0 {
		t.Error("document node must never be forgotten")
	}
}

func TestHierarchyErrors(t *testing.T) {
	d := New()
	div := mustElement(t, d, "div")
	span := mustElement(t, d, "span")
	text := d.CreateTextNode("x")
	_ = div.AppendChild(span)

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"into itself", func() error { return div.AppendChild(div) }, dom.ErrHierarchy},
		{"into descendant", func() error { return span.InsertBefore(div, nil) }, dom.ErrHierarchy},
		{"child of text", func() error { return text.AppendChild(mustElement(t, d, "b")) }, dom.ErrHierarchy},
		{"ref not a child", func() error { return span.InsertBefore(text, span) }, dom.ErrNotFound},
		{"remove non-child", func() error { return span.RemoveChild(text) }, dom.ErrNotFound},
		{"foreign document", func() error { return div.AppendChild(New().CreateTextNode("y")) }, dom.ErrNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if got := OuterHTML(div); got != "<div><span></span></div>" {
		t.Errorf("tree changed by failed operations: %q", got)
	}
}

func TestInsertBeforeSelf(t *testing.T) {
	d := New()
	div := mustElement(t, d, "div")
	a := d.CreateTextNode("a")
	b := d.CreateTextNode("b")
	_ = div.AppendChild(a)
	_ = div.AppendChild(b)

	if err := div.InsertBefore(a, a); err != nil {
		t.Fatalf("InsertBefore(a, a): %v", err)
	}
	if got := InnerHTML(div); got != "ab" {
		t.Errorf("got %q, want %q", got, "ab")
	}
}

func TestAttributes(t *testing.T) {
	d := New()
	div := mustElement(t, d, "div")

	if err := div.SetAttribute("Class", "card"); err != nil {
		t.Fatal(err)
	}
	if v, ok := div.GetAttribute("class"); !ok || v != "card" {
		t.Errorf("class = %q, %v", v, ok)
	}
	_ = div.SetAttribute("class", "card active")
	_ = div.SetAttribute("hidden", "")
	if got := OuterHTML(div); got != `<div class="card active" hidden=""></div>` {
		t.Errorf("OuterHTML = %q", got)
	}

	_ = div.RemoveAttribute("hidden")
	if _, ok := div.GetAttribute("hidden"); ok {
		t.Error("hidden still present")
	}

	if err := div.SetAttribute("bad name", "x"); !errors.Is(err, dom.ErrInvalidCharacter) {
		t.Errorf("invalid name err = %v", err)
	}
	if err := d.CreateTextNode("t").SetAttribute("id", "x"); !errors.Is(err, dom.ErrNotSupported) {
		t.Errorf("text node attribute err = %v", err)
	}
}

func TestNamespacedAttributes(t *testing.T) {
	d := New()
	svg, err := d.CreateElementNS(dom.NamespaceSVG, "svg")
	if err != nil {
		t.Fatal(err)
	}
	use, _ := d.CreateElementNS(dom.NamespaceSVG, "use")
	_ = svg.AppendChild(use)

	if err := svg.SetAttribute("viewBox", "0 0 10 10"); err != nil {
		t.Fatal(err)
	}
	if _, ok := svg.GetAttribute("viewBox"); !ok {
		t.Error("SVG attribute case should be preserved")
	}

	if err := use.SetAttributeNS(dom.NamespaceXLink, "xlink:href", "#icon"); err != nil {
		t.Fatal(err)
	}
	if v, ok := use.GetAttribute("xlink:href"); !ok || v != "#icon" {
		t.Errorf("xlink:href = %q, %v", v, ok)
	}
	if !strings.Contains(OuterHTML(svg), `xlink:href="#icon"`) {
		t.Errorf("OuterHTML = %q", OuterHTML(svg))
	}

	_ = use.RemoveAttributeNS(dom.NamespaceXLink, "href")
	if _, ok := use.GetAttribute("xlink:href"); ok {
		t.Error("xlink:href not removed")
	}

	for _, tt := range []struct{ ns, name string }{
		{dom.NamespaceSVG, "xml:lang"},
		{dom.NamespaceSVG, "xmlns:foo"},
		{dom.NamespaceXMLNS, "href"},
	} {
		if err := use.SetAttributeNS(tt.ns, tt.name, "v"); !errors.Is(err, dom.ErrNamespace) {
			t.Errorf("SetAttributeNS(%q, %q) err = %v, want ErrNamespace", tt.ns, tt.name, err)
		}
	}
}

func TestStyle(t *testing.T) {
	d := New()
	div := mustElement(t, d, "div")

	if err := div.SetStyle("color: red; margin:0"); err != nil {
		t.Fatal(err)
	}
	_ = div.SetStyleProperty("color", "blue")
	_ = div.SetStyleProperty("padding", "1px")
	_ = div.RemoveStyleProperty("margin")
	if v, _ := div.GetAttribute("style"); v != "color: blue; padding: 1px;" {
		t.Errorf("style = %q", v)
	}

	_ = div.SetStyle("")
	if _, ok := div.GetAttribute("style"); ok {
		t.Error("empty style block should remove the attribute")
	}
}

func TestProperties(t *testing.T) {
	d, err := ParseString(`<body>
<input id="name" value="initial">
<input id="agree" type="checkbox" checked>
<textarea id="bio">hello</textarea>
<select id="pick"><option value="a">A</option><option value="b" selected>B</option></select>
</body>`)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		id, prop string
		want     any
	}{
		{"name", "value", "initial"},
		{"agree", "checked", true},
		{"name", "checked", false},
		{"bio", "value", "hello"},
		{"pick", "value", "b"},
		{"pick", "tagName", "SELECT"},
		{"name", "nonsense", nil},
	}
	for _, tt := range tests {
		n := d.ElementByID(tt.id)
		if n == nil {
			t.Fatalf("ElementByID(%q) = nil", tt.id)
		}
		got, err := n.Property(tt.prop)
		if err != nil || got != tt.want {
			t.Errorf("%s.%s = %v, %v; want %v", tt.id, tt.prop, got, err, tt.want)
		}
	}

	name := d.ElementByID("name")
	_ = name.SetProperty("value", "typed")
	if v, _ := name.Property("value"); v != "typed" {
		t.Errorf("live value = %v", v)
	}
	if v, _ := name.GetAttribute("value"); v != "initial" {
		t.Errorf("value attribute changed to %q", v)
	}
}

func TestTextAndInnerHTML(t *testing.T) {
	d := New()
	p := mustElement(t, d, "p")
	_ = p.SetInnerHTML("<b>bold</b> and <i>italic</i>")
	if got := InnerHTML(p); got != "<b>bold</b> and <i>italic</i>" {
		t.Errorf("InnerHTML = %q", got)
	}

	_ = p.SetText("plain <text>")
	if got := InnerHTML(p); got != "plain &lt;text&gt;" {
		t.Errorf("after SetText = %q", got)
	}

	c := d.CreateComment("")
	_ = p.AppendChild(c)
	_ = c.SetText("anchor")
	if got := InnerHTML(p); got != "plain &lt;text&gt;<!--anchor-->" {
		t.Errorf("with comment = %q", got)
	}
}

func TestDispatchPhases(t *testing.T) {
	d := New()
	btn := mustElement(t, d, "button")
	_ = d.Body().AppendChild(btn)

	var calls []string
	_ = d.AddRootListener("click", false, func(ev dom.Event) { calls = append(calls, "click-bubble") })
	_ = d.AddRootListener("focus", false, func(ev dom.Event) { calls = append(calls, "focus-bubble") })
	_ = d.AddRootListener("focus", true, func(ev dom.Event) { calls = append(calls, "focus-capture") })

	d.Fire(btn, "click", nil)
	d.Fire(btn, "focus", nil)

	detached := mustElement(t, d, "button")
	d.Fire(detached, "click", nil)

	want := []string{"click-bubble", "focus-capture"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", calls, want)
	}
	if d.ListenerCount("focus") != 2 {
		t.Errorf("ListenerCount(focus) = %d", d.ListenerCount("focus"))
	}
}

func TestEventFields(t *testing.T) {
	d := New()
	ev := NewEvent("touchstart", d.Body(), map[string]any{
		"clientX":  12.7,
		"shiftKey": true,
		"key":      "a",
	}).WithList("touches", Fields{"identifier": 1, "clientX": 5})

	if x, err := ev.Int("clientX"); err != nil || x != 12 {
		t.Errorf("Int(clientX) = %d, %v", x, err)
	}
	if _, err := ev.Bool("ctrlKey"); !errors.Is(err, dom.ErrMissingField) {
		t.Errorf("missing field err = %v", err)
	}
	if _, err := ev.Int("key"); !errors.Is(err, dom.ErrMissingField) {
		t.Errorf("wrong type err = %v", err)
	}
	touches, err := ev.List("touches")
	if err != nil || len(touches) != 1 {
		t.Fatalf("List(touches) = %v, %v", touches, err)
	}
	if id, _ := touches[0].Int("identifier"); id != 1 {
		t.Errorf("identifier = %d", id)
	}
	if _, err := ev.List("changedTouches"); !errors.Is(err, dom.ErrMissingField) {
		t.Errorf("missing list err = %v", err)
	}
}

func TestQuery(t *testing.T) {
	d, err := ParseString(`<body><div id="app"><ul><li class="x">one</li><li>two</li></ul></div></body>`)
	if err != nil {
		t.Fatal(err)
	}

	items, err := d.QueryAll("//li")
	if err != nil || len(items) != 2 {
		t.Fatalf("QueryAll = %v, %v", items, err)
	}
	first, _ := d.Query(`//li[@class="x"]`)
	if first == nil || first.Key() != items[0].Key() {
		t.Error("Query should return the same wrapper as QueryAll")
	}
	if txt, _ := d.Text("//li[2]"); txt != "two" {
		t.Errorf("Text = %q", txt)
	}
	out, _ := d.QueryHTML(`//ul`)
	if len(out) != 1 || out[0] != `<ul><li class="x">one</li><li>two</li></ul>` {
		t.Errorf("QueryHTML = %v", out)
	}
	if n, _ := d.Query("//table"); n != nil {
		t.Error("Query for missing element should be nil")
	}
	if _, err := d.Query("//li["); err == nil {
		t.Error("expected xpath syntax error")
	}
}
