// Package schema is the event and attribute vocabulary the renderer
// special-cases: which DOM events exist, what payload each carries,
// whether it bubbles natively, and whether delegation keeps walking
// ancestors after the first registered handler.
package schema

import (
	"sort"

	"github.com/vango-dev/vrender/pkg/protocol"
)

// EventInfo describes one DOM event type.
type EventInfo struct {
	Name    string
	Payload protocol.PayloadKind

	// Bubbles is the native behavior. Non-bubbling events are observed by
	// a capture-phase root listener instead.
	Bubbles bool

	// Propagates means delegation continues to outer registered
	// ancestors after the first match, so several handlers observe one
	// firing. Everything else stops at the nearest handler.
	Propagates bool
}

// SnapshotsValue reports whether the target's live form state must be read
// synchronously when the event fires.
func (e EventInfo) SnapshotsValue() bool {
	return e.Payload == protocol.PayloadForm || e.Payload == protocol.PayloadSubmit
}

func group(kind protocol.PayloadKind, bubbles bool, names ...string) []EventInfo {
	out := make([]EventInfo, len(names))
	for i, n := range names {
		out[i] = EventInfo{Name: n, Payload: kind, Bubbles: bubbles}
	}
	return out
}

func builtinEvents() []EventInfo {
	var all []EventInfo
	add := func(infos []EventInfo) { all = append(all, infos...) }

	add(group(protocol.PayloadMouse, true,
		"click", "dblclick", "auxclick", "contextmenu",
		"mousedown", "mouseup", "mousemove", "mouseover", "mouseout",
		"drag", "dragstart", "dragend", "dragenter", "dragleave", "dragover", "drop"))
	add(group(protocol.PayloadMouse, false, "mouseenter", "mouseleave"))

	add(group(protocol.PayloadPointer, true,
		"pointerdown", "pointerup", "pointermove", "pointerover", "pointerout",
		"pointercancel", "gotpointercapture", "lostpointercapture"))
	add(group(protocol.PayloadPointer, false, "pointerenter", "pointerleave"))

	add(group(protocol.PayloadWheel, true, "wheel"))
	add(group(protocol.PayloadKeyboard, true, "keydown", "keyup", "keypress"))

	add(group(protocol.PayloadForm, true, "input", "change", "reset", "beforeinput"))
	add(group(protocol.PayloadForm, false, "invalid"))
	add(group(protocol.PayloadSubmit, true, "submit"))

	add(group(protocol.PayloadNone, false, "focus", "blur"))
	add(group(protocol.PayloadNone, true, "focusin", "focusout", "select"))

	add(group(protocol.PayloadClipboard, true, "copy", "cut", "paste"))
	add(group(protocol.PayloadComposition, true, "compositionstart", "compositionupdate", "compositionend"))
	add(group(protocol.PayloadTouch, true, "touchstart", "touchmove", "touchend", "touchcancel"))
	add(group(protocol.PayloadScroll, false, "scroll", "scrollend"))

	add(group(protocol.PayloadAnimation, true, "animationstart", "animationend", "animationiteration"))
	add(group(protocol.PayloadTransition, true, "transitionstart", "transitionend", "transitionrun", "transitioncancel"))

	add(group(protocol.PayloadMedia, false,
		"play", "pause", "playing", "ended", "timeupdate", "durationchange",
		"volumechange", "seeked", "seeking", "loadeddata", "loadedmetadata",
		"loadstart", "canplay", "canplaythrough", "waiting", "ratechange",
		"progress", "stalled", "suspend", "emptied", "abort"))
	add(group(protocol.PayloadToggle, false, "toggle"))
	add(group(protocol.PayloadNone, false, "load", "error"))

	return all
}

// DefaultPropagating are the events that keep walking past the first
// handler: enter/leave style notifications where every ancestor tracking
// hover or focus needs to see the transition.
var DefaultPropagating = []string{
	"mouseover", "mouseout",
	"pointerover", "pointerout",
	"focusin", "focusout",
}

// Table is an event vocabulary. The zero value is not usable; use Default.
type Table struct {
	events map[string]EventInfo
}

// Default returns the built-in table.
func Default() *Table {
	t := &Table{events: make(map[string]EventInfo, 96)}
	for _, e := range builtinEvents() {
		t.events[e.Name] = e
	}
	return t.WithPropagation(DefaultPropagating...)
}

// Clone returns an independent copy of t.
func (t *Table) Clone() *Table {
	c := &Table{events: make(map[string]EventInfo, len(t.events))}
	for k, v := range t.events {
		c.events[k] = v
	}
	return c
}

// WithPropagation marks names as propagating. Unknown names are added as
// bubbling events without a payload.
func (t *Table) WithPropagation(names ...string) *Table {
	for _, n := range names {
		e, ok := t.events[n]
		if !ok {
			e = EventInfo{Name: n, Payload: protocol.PayloadNone, Bubbles: true}
		}
		e.Propagates = true
		t.events[n] = e
	}
	return t
}

// WithEvent adds or replaces an event definition.
func (t *Table) WithEvent(e EventInfo) *Table {
	t.events[e.Name] = e
	return t
}

// Lookup returns the definition for name. Unknown events are reported as
// bubbling, non-propagating and without a payload, with ok false.
func (t *Table) Lookup(name string) (EventInfo, bool) {
	e, ok := t.events[name]
	if !ok {
		return EventInfo{Name: name, Payload: protocol.PayloadNone, Bubbles: true}, false
	}
	return e, true
}

// Names returns every known event name in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.events))
	for n := range t.events {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
