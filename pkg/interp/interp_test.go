package interp

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	rerrors "github.com/vango-dev/vrender/internal/errors"
	"github.com/vango-dev/vrender/pkg/dom"
	"github.com/vango-dev/vrender/pkg/dom/htmldom"
	"github.com/vango-dev/vrender/pkg/protocol"
	"github.com/vango-dev/vrender/pkg/registry"
)

type listenCall struct {
	add      bool
	category string
	id       protocol.NodeID
}

type fakeListeners struct {
	reg   *registry.Registry
	calls []listenCall
	fail  error
}

func (f *fakeListeners) Listen(category string, id protocol.NodeID) error {
	if !f.reg.Has(id) {
		return rerrors.New("R001").WithNode(uint64(id)).Wrap(registry.ErrUnknownNode)
	}
	if f.fail != nil {
		return rerrors.New("R010").Wrap(f.fail)
	}
	f.calls = append(f.calls, listenCall{true, category, id})
	return nil
}

func (f *fakeListeners) Unlisten(category string, id protocol.NodeID) {
	f.calls = append(f.calls, listenCall{false, category, id})
}

type harness struct {
	doc       *htmldom.Document
	reg       *registry.Registry
	listeners *fakeListeners
	in        *Interpreter
}

// newHarness mounts the document body as node 0.
func newHarness(t *testing.T) *harness {
	t.Helper()
	doc := htmldom.New()
	reg := registry.New()
	if err := reg.Create(0, doc.Body()); err != nil {
		t.Fatal(err)
	}
	l := &fakeListeners{reg: reg}
	return &harness{doc: doc, reg: reg, listeners: l, in: New(doc, reg, l)}
}

func (h *harness) apply(t *testing.T, ms ...protocol.Mutation) Result {
	t.Helper()
	res, err := h.in.Apply(&protocol.Batch{Seq: 1, Mutations: ms})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return res
}

func (h *harness) node(t *testing.T, id protocol.NodeID) dom.Node {
	t.Helper()
	n, err := h.reg.Get(id)
	if err != nil {
		t.Fatalf("Get(%d): %v", id, err)
	}
	return n
}

func (h *harness) body() string { return htmldom.InnerHTML(h.doc.Body()) }

func TestBuildTree(t *testing.T) {
	h := newHarness(t)
	res := h.apply(t,
		protocol.NewPushRoot(0),
		protocol.NewCreateElement("ul", 1),
		protocol.NewCreateElement("li", 2),
		protocol.NewCreateTextNode("one", 3),
		protocol.NewAppendChildren(1),
		protocol.NewCreateElement("li", 4),
		protocol.NewCreateTextNode("two", 5),
		protocol.NewAppendChildren(1),
		protocol.NewAppendChildren(2),
		protocol.NewAppendChildren(1),
		protocol.NewSetAttribute("class", protocol.Text("list"), 1, ""),
	)
	if want := `<ul class="list"><li>one</li><li>two</li></ul>`; h.body() != want {
		t.Errorf("body = %s, want %s", h.body(), want)
	}
	if res.Applied != 11 || res.Skipped != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.Depth != 1 {
		t.Errorf("Depth = %d, want 1 (the root)", res.Depth)
	}
	if h.in.Depth() != 0 {
		t.Error("stack not cleared after batch")
	}
}

// Inserting a node before its own child is rejected by the DOM; the
// instruction is skipped and the earlier structure stays as built.
func TestInsertIntoOwnDescendantIsSkipped(t *testing.T) {
	h := newHarness(t)
	res := h.apply(t,
		protocol.NewCreateElement("div", 1),
		protocol.NewCreateElement("span", 2),
		protocol.NewAppendChildren(1),
		protocol.NewPushRoot(1),
		protocol.NewInsertBefore(2, 1),
	)
	if got := htmldom.OuterHTML(h.node(t, 1)); got != "<div><span></span></div>" {
		t.Errorf("div = %s", got)
	}
	if res.Applied != 4 || res.Skipped != 1 {
		t.Fatalf("result = %+v", res)
	}
	if !errors.Is(res.Failures[0], dom.ErrHierarchy) {
		t.Errorf("failure = %v, want hierarchy error", res.Failures[0])
	}
	if rerrors.CodeOf(res.Failures[0]) != "R010" {
		t.Errorf("code = %q", rerrors.CodeOf(res.Failures[0]))
	}
}

func TestInsertBeforeAndAfter(t *testing.T) {
	h := newHarness(t)
	h.apply(t,
		protocol.NewPushRoot(0),
		protocol.NewCreateElement("b", 1),
		protocol.NewAppendChildren(1),
		protocol.NewCreateElement("a", 2),
		protocol.NewCreateElement("i", 3),
		protocol.NewInsertBefore(1, 2),
		protocol.NewCreateElement("u", 4),
		protocol.NewCreateElement("s", 5),
		protocol.NewInsertAfter(1, 2),
	)
	if want := "<a></a><i></i><b></b><u></u><s></s>"; h.body() != want {
		t.Errorf("body = %s, want %s", h.body(), want)
	}
}

func TestReplaceWithReleasesID(t *testing.T) {
	h := newHarness(t)
	h.apply(t,
		protocol.NewPushRoot(0),
		protocol.NewCreateElement("p", 1),
		protocol.NewAppendChildren(1),
	)
	h.apply(t,
		protocol.NewCreateTextNode("x", 2),
		protocol.NewCreatePlaceholder(3),
		protocol.NewReplaceWith(1, 2),
	)
	if h.reg.Has(1) {
		t.Error("replaced id still registered")
	}
	if want := "x<!--placeholder-->"; h.body() != want {
		t.Errorf("body = %s, want %s", h.body(), want)
	}
}

func TestStackUnderflowIsFatal(t *testing.T) {
	tests := []struct {
		name string
		ms   []protocol.Mutation
	}{
		{"append without parent", []protocol.Mutation{
			protocol.NewCreateElement("div", 1),
			protocol.NewAppendChildren(1),
		}},
		{"insert more than pushed", []protocol.Mutation{
			protocol.NewCreateElement("div", 1),
			protocol.NewInsertBefore(1, 2),
		}},
		{"pop empty", []protocol.Mutation{
			protocol.NewPopRoot(),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.in.Apply(&protocol.Batch{Mutations: tt.ms})
			if !errors.Is(err, ErrStackUnderflow) {
				t.Fatalf("err = %v, want stack underflow", err)
			}
			if !rerrors.IsProtocolViolation(err) || rerrors.CodeOf(err) != "R003" {
				t.Errorf("err = %v, want R003 protocol violation", err)
			}
			if h.in.Depth() != 0 {
				t.Error("stack not cleared after failure")
			}
		})
	}
}

func TestProtocolViolationStopsBatch(t *testing.T) {
	h := newHarness(t)
	res, err := h.in.Apply(&protocol.Batch{Seq: 9, Mutations: []protocol.Mutation{
		protocol.NewCreateElement("div", 1),
		protocol.NewSetText("nope", 42),
		protocol.NewCreateElement("div", 2),
	}})
	if !errors.Is(err, registry.ErrUnknownNode) {
		t.Fatalf("err = %v", err)
	}
	var re *rerrors.RenderError
	if !errors.As(err, &re) || re.Index != 1 || re.Op != "SetText" {
		t.Errorf("error = %+v, want index 1 op SetText", re)
	}
	if res.Applied != 1 {
		t.Errorf("Applied = %d", res.Applied)
	}
	if h.reg.Has(2) {
		t.Error("instructions after the violation ran")
	}

	_, err = h.in.Apply(&protocol.Batch{Mutations: []protocol.Mutation{
		protocol.NewCreateTextNode("dup", 1),
	}})
	if rerrors.CodeOf(err) != "R002" {
		t.Errorf("duplicate create: %v", err)
	}

	_, err = h.in.Apply(&protocol.Batch{Mutations: []protocol.Mutation{{Op: 0x7F}}})
	if !errors.Is(err, protocol.ErrUnknownOp) || rerrors.CodeOf(err) != "R004" {
		t.Errorf("unknown op: %v", err)
	}
}

func TestBooleanAttributeRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.apply(t,
		protocol.NewCreateElement("button", 1),
		protocol.NewSetAttribute("disabled", protocol.Bool(true), 1, ""),
	)
	btn := h.node(t, 1)
	if v, ok := btn.GetAttribute("disabled"); !ok || v != "" {
		t.Fatalf("disabled = %q, %v", v, ok)
	}
	if p, _ := btn.Property("disabled"); p != true {
		t.Errorf("disabled property = %v", p)
	}

	h.apply(t, protocol.NewRemoveAttribute("disabled", 1, ""))
	if _, ok := btn.GetAttribute("disabled"); ok {
		t.Error("disabled still present after RemoveAttribute")
	}
	if p, _ := btn.Property("disabled"); p != false {
		t.Errorf("disabled property = %v", p)
	}

	h.apply(t,
		protocol.NewSetAttribute("hidden", protocol.Text("false"), 1, ""),
		protocol.NewSetAttribute("aria-pressed", protocol.Bool(true), 1, ""),
	)
	if _, ok := btn.GetAttribute("hidden"); ok {
		t.Error(`hidden="false" should leave the attribute absent`)
	}
	if v, _ := btn.GetAttribute("aria-pressed"); v != "true" {
		t.Errorf("aria-pressed = %q", v)
	}
}

func TestSpecialAttributes(t *testing.T) {
	h := newHarness(t)
	h.apply(t,
		protocol.NewCreateElement("input", 1),
		protocol.NewCreateElement("div", 2),
		protocol.NewCreateElementNs("svg", 3, dom.NamespaceSVG),
		protocol.NewSetAttribute("value", protocol.Text("hello"), 1, ""),
		protocol.NewSetAttribute("style", protocol.Text("color: red;margin:0"), 2, ""),
		protocol.NewSetAttribute("padding", protocol.Number(4), 2, "style"),
		protocol.NewSetAttribute("dangerous_inner_html", protocol.Text("<b>hi</b>"), 2, ""),
		protocol.NewSetAttribute("xlink:href", protocol.Text("#a"), 3, dom.NamespaceXLink),
	)

	input := h.node(t, 1)
	if v, _ := input.Property("value"); v != "hello" {
		t.Errorf("value property = %v", v)
	}
	div := h.node(t, 2)
	if v, _ := div.GetAttribute("style"); v != "color: red; margin: 0; padding: 4;" {
		t.Errorf("style = %q", v)
	}
	if got := htmldom.InnerHTML(div); got != "<b>hi</b>" {
		t.Errorf("inner = %q", got)
	}
	if v, ok := h.node(t, 3).GetAttribute("xlink:href"); !ok || v != "#a" {
		t.Errorf("xlink:href = %q, %v", v, ok)
	}

	h.apply(t,
		protocol.NewRemoveAttribute("color", 2, "style"),
		protocol.NewRemoveAttribute("value", 1, ""),
		protocol.NewRemoveAttribute("href", 3, dom.NamespaceXLink),
	)
	if v, _ := div.GetAttribute("style"); v != "margin: 0; padding: 4;" {
		t.Errorf("style after remove = %q", v)
	}
	if v, _ := input.Property("value"); v != "" {
		t.Errorf("value after remove = %v", v)
	}
	if _, ok := h.node(t, 3).GetAttribute("xlink:href"); ok {
		t.Error("xlink:href still present")
	}
}

func TestNativeFailureSkipsInstruction(t *testing.T) {
	h := newHarness(t)
	res := h.apply(t,
		protocol.NewPushRoot(0),
		protocol.NewCreateTextNode("t", 1),
		protocol.NewSetAttribute("class", protocol.Text("x"), 1, ""),
		protocol.NewCreateElement("svg", 2),
		protocol.NewSetAttribute("xmlns:bad", protocol.Text("x"), 2, dom.NamespaceXLink),
		protocol.NewSetAttribute("id", protocol.Text("ok"), 2, ""),
		protocol.NewAppendChildren(2),
	)
	if res.Skipped != 2 || res.Applied != 5 {
		t.Fatalf("result = %+v", res)
	}
	if !errors.Is(res.Failures[0], dom.ErrNotSupported) || !errors.Is(res.Failures[1], dom.ErrNamespace) {
		t.Errorf("failures = %v", res.Failures)
	}
	if want := `t<svg id="ok"></svg>`; h.body() != want {
		t.Errorf("body = %s, want %s", h.body(), want)
	}
}

// A create the DOM rejects still registers a stand-in so later
// instructions referring to the id keep working.
func TestRejectedCreateKeepsStackAligned(t *testing.T) {
	h := newHarness(t)
	res := h.apply(t,
		protocol.NewPushRoot(0),
		protocol.NewCreateElement("bad tag", 1),
		protocol.NewAppendChildren(1),
		protocol.NewSetText("still here", 1),
	)
	if res.Skipped != 1 || !errors.Is(res.Failures[0], dom.ErrInvalidCharacter) {
		t.Fatalf("result = %+v", res)
	}
	if !h.reg.Has(1) {
		t.Fatal("rejected create left no registration")
	}
	if want := "<!--still here-->"; h.body() != want {
		t.Errorf("body = %s, want %s", h.body(), want)
	}
}

func TestCreateRemoveRecreate(t *testing.T) {
	h := newHarness(t)
	h.apply(t,
		protocol.NewCreateTextNode("hi", 5),
		protocol.NewRemove(5),
	)
	if h.reg.Has(5) {
		t.Fatal("slot 5 still live")
	}
	if _, err := h.in.Apply(&protocol.Batch{Mutations: []protocol.Mutation{protocol.NewRemove(5)}}); !errors.Is(err, registry.ErrUnknownNode) {
		t.Errorf("double remove = %v", err)
	}

	h.apply(t,
		protocol.NewPushRoot(0),
		protocol.NewCreateElement("em", 5),
		protocol.NewAppendChildren(1),
	)
	if n := h.node(t, 5); n.NodeName() != "em" {
		t.Errorf("node 5 = %s, want the new em", n.NodeName())
	}
	if h.body() != "<em></em>" {
		t.Errorf("body = %s", h.body())
	}
}

func TestListenerInstructions(t *testing.T) {
	h := newHarness(t)
	h.apply(t,
		protocol.NewCreateElement("button", 1),
		protocol.NewEventListener("click", 1),
		protocol.NewRemoveEventListener("click", 1),
	)
	want := []listenCall{{true, "click", 1}, {false, "click", 1}}
	if len(h.listeners.calls) != 2 || h.listeners.calls[0] != want[0] || h.listeners.calls[1] != want[1] {
		t.Errorf("calls = %+v", h.listeners.calls)
	}

	_, err := h.in.Apply(&protocol.Batch{Mutations: []protocol.Mutation{protocol.NewRemoveEventListener("click", 9)}})
	if !rerrors.IsProtocolViolation(err) {
		t.Errorf("RemoveEventListener on unknown node = %v", err)
	}
	_, err = h.in.Apply(&protocol.Batch{Mutations: []protocol.Mutation{protocol.NewEventListener("click", 9)}})
	if !rerrors.IsProtocolViolation(err) {
		t.Errorf("NewEventListener on unknown node = %v", err)
	}

	h.listeners.fail = dom.ErrNotSupported
	res := h.apply(t, protocol.NewEventListener("click", 1))
	if res.Skipped != 1 {
		t.Errorf("listener install failure should be skipped, got %+v", res)
	}
}

// Replaying random valid streams leaves exactly the created-minus-removed
// ids live.
func TestLiveSetMatchesStream(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	h := newHarness(t)
	live := map[protocol.NodeID]bool{0: true}

	for batch := 0; batch < 50; batch++ {
		var ms []protocol.Mutation
		ms = append(ms, protocol.NewPushRoot(0))
		for i := 0; i < 20; i++ {
			id := protocol.NodeID(1 + rng.Intn(40))
			if live[id] {
				ms = append(ms, protocol.NewRemove(id))
				delete(live, id)
				continue
			}
			ms = append(ms, protocol.NewCreateElement("div", id), protocol.NewAppendChildren(1))
			live[id] = true
		}
		h.apply(t, ms...)
	}

	want := make([]protocol.NodeID, 0, len(live))
	for id := range live {
		want = append(want, id)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	got := h.reg.IDs()
	if len(got) != len(want) {
		t.Fatalf("live = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("live = %v, want %v", got, want)
		}
	}
}
