package schema

import (
	"testing"

	"github.com/vango-dev/vrender/pkg/dom/htmldom"
	"github.com/vango-dev/vrender/pkg/protocol"
)

func TestLookup(t *testing.T) {
	tab := Default()

	tests := []struct {
		name       string
		payload    protocol.PayloadKind
		bubbles    bool
		propagates bool
		snapshot   bool
	}{
		{"click", protocol.PayloadMouse, true, false, false},
		{"mouseover", protocol.PayloadMouse, true, true, false},
		{"focus", protocol.PayloadNone, false, false, false},
		{"focusin", protocol.PayloadNone, true, true, false},
		{"input", protocol.PayloadForm, true, false, true},
		{"submit", protocol.PayloadSubmit, true, false, true},
		{"keydown", protocol.PayloadKeyboard, true, false, false},
		{"scroll", protocol.PayloadScroll, false, false, false},
		{"pointerenter", protocol.PayloadPointer, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := tab.Lookup(tt.name)
			if !ok {
				t.Fatalf("Lookup(%q) not found", tt.name)
			}
			if e.Payload != tt.payload || e.Bubbles != tt.bubbles || e.Propagates != tt.propagates {
				t.Errorf("got %+v", e)
			}
			if e.SnapshotsValue() != tt.snapshot {
				t.Errorf("SnapshotsValue() = %v, want %v", e.SnapshotsValue(), tt.snapshot)
			}
		})
	}
}

func TestUnknownEvent(t *testing.T) {
	e, ok := Default().Lookup("x-custom")
	if ok {
		t.Fatal("unknown event reported as known")
	}
	if !e.Bubbles || e.Propagates || e.Payload != protocol.PayloadNone {
		t.Errorf("unknown event defaults = %+v", e)
	}
}

func TestWithPropagationDoesNotLeak(t *testing.T) {
	base := Default()
	custom := base.Clone().WithPropagation("click", "x-custom")

	if e, _ := custom.Lookup("click"); !e.Propagates || e.Payload != protocol.PayloadMouse {
		t.Errorf("custom click = %+v", e)
	}
	if e, ok := custom.Lookup("x-custom"); !ok || !e.Propagates {
		t.Errorf("custom x-custom = %+v, %v", e, ok)
	}
	if e, _ := base.Lookup("click"); e.Propagates {
		t.Error("Clone should isolate the base table")
	}
}

// The table's notion of native bubbling matches the headless DOM.
func TestBubblingMatchesHeadlessDOM(t *testing.T) {
	tab := Default()
	for _, name := range tab.Names() {
		e, _ := tab.Lookup(name)
		if e.Bubbles != htmldom.Bubbles(name) {
			t.Errorf("%s: schema bubbles=%v, htmldom bubbles=%v", name, e.Bubbles, htmldom.Bubbles(name))
		}
	}
}

func TestAttributes(t *testing.T) {
	for _, name := range []string{"disabled", "checked", "hidden", "readonly"} {
		if !IsBooleanAttr(name) {
			t.Errorf("%s should be boolean", name)
		}
	}
	if IsBooleanAttr("class") || IsBooleanAttr("value") {
		t.Error("class/value are not boolean")
	}
	if !IsPropertyAttr("value") || IsPropertyAttr("disabled") {
		t.Error("IsPropertyAttr mismatch")
	}
	if PropertyName("readonly") != "readOnly" || PropertyName("class") != "" {
		t.Error("PropertyName mismatch")
	}
}
