package delegate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vango-dev/vrender/pkg/dom"
	"github.com/vango-dev/vrender/pkg/protocol"
)

// ErrNoTarget is returned for native events without a target node.
var ErrNoTarget = errors.New("delegate: event has no target")

// reader reads event fields and keeps the first failure of a required
// field. Optional reads fall back to zero values.
type reader struct {
	f   dom.Fields
	err error
}

func (r *reader) need(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

func (r *reader) int(name string, required bool) int {
	v, err := r.f.Int(name)
	if required {
		r.need(err)
	}
	return v
}

func (r *reader) float(name string, required bool) float64 {
	v, err := r.f.Float(name)
	if required {
		r.need(err)
	}
	return v
}

func (r *reader) str(name string, required bool) string {
	v, err := r.f.String(name)
	if required {
		r.need(err)
	}
	return v
}

func (r *reader) flag(name string) bool {
	v, _ := r.f.Bool(name)
	return v
}

func (r *reader) modifiers() protocol.Modifiers {
	var m protocol.Modifiers
	if r.flag("ctrlKey") {
		m |= protocol.ModCtrl
	}
	if r.flag("shiftKey") {
		m |= protocol.ModShift
	}
	if r.flag("altKey") {
		m |= protocol.ModAlt
	}
	if r.flag("metaKey") {
		m |= protocol.ModMeta
	}
	return m
}

func (r *reader) mouse() protocol.MouseData {
	return protocol.MouseData{
		ClientX:   r.int("clientX", true),
		ClientY:   r.int("clientY", true),
		PageX:     r.int("pageX", false),
		PageY:     r.int("pageY", false),
		ScreenX:   r.int("screenX", false),
		ScreenY:   r.int("screenY", false),
		OffsetX:   r.int("offsetX", false),
		OffsetY:   r.int("offsetY", false),
		Button:    uint8(r.int("button", false)),
		Buttons:   uint8(r.int("buttons", false)),
		Modifiers: r.modifiers(),
	}
}

func touchPoints(ev dom.Event, name string, required bool) ([]protocol.TouchPoint, error) {
	list, err := ev.List(name)
	if err != nil {
		if !required {
			return nil, nil
		}
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	points := make([]protocol.TouchPoint, len(list))
	for i, f := range list {
		r := &reader{f: f}
		points[i] = protocol.TouchPoint{
			ID:      r.int("identifier", true),
			ClientX: r.int("clientX", true),
			ClientY: r.int("clientY", true),
			PageX:   r.int("pageX", false),
			PageY:   r.int("pageY", false),
		}
		if r.err != nil {
			return nil, r.err
		}
	}
	return points, nil
}

// decodePayload normalizes a native event into the payload of kind. Form
// state is read from the target node at call time.
func decodePayload(kind protocol.PayloadKind, ev dom.Event, target dom.Node) (protocol.Payload, error) {
	r := &reader{f: ev}
	var p protocol.Payload

	switch kind {
	case protocol.PayloadNone:
		return nil, nil

	case protocol.PayloadMouse:
		m := r.mouse()
		p = &m

	case protocol.PayloadPointer:
		p = &protocol.PointerData{
			MouseData:   r.mouse(),
			PointerID:   r.int("pointerId", true),
			Width:       r.float("width", false),
			Height:      r.float("height", false),
			Pressure:    r.float("pressure", false),
			PointerType: r.str("pointerType", false),
			IsPrimary:   r.flag("isPrimary"),
		}

	case protocol.PayloadWheel:
		p = &protocol.WheelData{
			DeltaX:    r.float("deltaX", false),
			DeltaY:    r.float("deltaY", true),
			DeltaZ:    r.float("deltaZ", false),
			DeltaMode: uint8(r.int("deltaMode", false)),
			ClientX:   r.int("clientX", false),
			ClientY:   r.int("clientY", false),
			Modifiers: r.modifiers(),
		}

	case protocol.PayloadKeyboard:
		p = &protocol.KeyboardData{
			Key:         r.str("key", true),
			Code:        r.str("code", false),
			Location:    uint8(r.int("location", false)),
			Repeat:      r.flag("repeat"),
			IsComposing: r.flag("isComposing"),
			Modifiers:   r.modifiers(),
		}

	case protocol.PayloadForm:
		return formData(target)

	case protocol.PayloadSubmit:
		return &protocol.SubmitData{Fields: formFields(target)}, nil

	case protocol.PayloadClipboard:
		p = &protocol.ClipboardData{Text: r.str("clipboardData", false)}

	case protocol.PayloadComposition:
		p = &protocol.CompositionData{Data: r.str("data", true)}

	case protocol.PayloadTouch:
		touches, err := touchPoints(ev, "touches", true)
		if err != nil {
			return nil, err
		}
		changed, err := touchPoints(ev, "changedTouches", false)
		if err != nil {
			return nil, err
		}
		p = &protocol.TouchData{Touches: touches, ChangedTouches: changed, Modifiers: r.modifiers()}

	case protocol.PayloadScroll:
		p = &protocol.ScrollData{
			ScrollTop:  int(propFloat(target, "scrollTop")),
			ScrollLeft: int(propFloat(target, "scrollLeft")),
		}

	case protocol.PayloadAnimation:
		p = &protocol.AnimationData{
			AnimationName: r.str("animationName", true),
			ElapsedTime:   r.float("elapsedTime", false),
			PseudoElement: r.str("pseudoElement", false),
		}

	case protocol.PayloadTransition:
		p = &protocol.TransitionData{
			PropertyName:  r.str("propertyName", true),
			ElapsedTime:   r.float("elapsedTime", false),
			PseudoElement: r.str("pseudoElement", false),
		}

	case protocol.PayloadMedia:
		paused, _ := prop(target, "paused").(bool)
		p = &protocol.MediaData{
			CurrentTime: propFloat(target, "currentTime"),
			Duration:    propFloat(target, "duration"),
			Paused:      paused,
		}

	case protocol.PayloadToggle:
		p = &protocol.ToggleData{NewState: r.str("newState", true)}

	default:
		return nil, fmt.Errorf("delegate: unsupported payload kind %s", kind)
	}

	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

func prop(n dom.Node, name string) any {
	if n == nil {
		return nil
	}
	v, err := n.Property(name)
	if err != nil {
		return nil
	}
	return v
}

func propFloat(n dom.Node, name string) float64 {
	switch v := prop(n, name).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func propString(n dom.Node, name string) string {
	switch v := prop(n, name).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// formData snapshots the live value of a form control.
func formData(target dom.Node) (*protocol.FormData, error) {
	if target == nil {
		return nil, ErrNoTarget
	}
	checked, _ := prop(target, "checked").(bool)
	return &protocol.FormData{
		Value:   propString(target, "value"),
		Checked: checked,
	}, nil
}

// formFields collects the successful controls of a form in document order.
func formFields(form dom.Node) []protocol.Field {
	if form == nil {
		return nil
	}
	var fields []protocol.Field
	dom.Walk(form, func(n dom.Node) bool {
		if n.Type() != dom.ElementNode {
			return true
		}
		switch n.NodeName() {
		case "input", "select", "textarea", "button":
		default:
			return true
		}
		name, ok := n.GetAttribute("name")
		if !ok || name == "" {
			return true
		}
		if disabled, _ := prop(n, "disabled").(bool); disabled {
			return true
		}
		if n.NodeName() == "button" {
			return true
		}
		if n.NodeName() == "input" {
			typ, _ := n.GetAttribute("type")
			switch strings.ToLower(typ) {
			case "checkbox", "radio":
				if checked, _ := prop(n, "checked").(bool); !checked {
					return true
				}
				if _, hasValue := n.GetAttribute("value"); !hasValue {
					fields = append(fields, protocol.Field{Name: name, Value: "on"})
					return true
				}
			case "submit", "button", "reset", "image", "file":
				return true
			}
		}
		fields = append(fields, protocol.Field{Name: name, Value: propString(n, "value")})
		return true
	})
	return fields
}
