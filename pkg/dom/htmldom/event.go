package htmldom

import (
	"fmt"

	"github.com/vango-dev/vrender/pkg/dom"
)

// Fields is a property bag that implements dom.Fields.
type Fields map[string]any

func (f Fields) missing(name, want string) error {
	if _, ok := f[name]; !ok {
		return fmt.Errorf("%w: %s", dom.ErrMissingField, name)
	}
	return fmt.Errorf("%w: %s is not %s", dom.ErrMissingField, name, want)
}

func (f Fields) Int(name string) (int, error) {
	switch v := f[name].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint8:
		return int(v), nil
	case float64:
		return int(v), nil
	}
	return 0, f.missing(name, "a number")
}

func (f Fields) Float(name string) (float64, error) {
	switch v := f[name].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, f.missing(name, "a number")
}

func (f Fields) Bool(name string) (bool, error) {
	if v, ok := f[name].(bool); ok {
		return v, nil
	}
	return false, f.missing(name, "a boolean")
}

func (f Fields) String(name string) (string, error) {
	if v, ok := f[name].(string); ok {
		return v, nil
	}
	return "", f.missing(name, "a string")
}

// Event is a simulated native event.
type Event struct {
	Fields
	typ    string
	target dom.Node
	lists  map[string][]Fields
}

var _ dom.Event = (*Event)(nil)

// NewEvent returns an event of the given type aimed at target.
func NewEvent(eventType string, target dom.Node, fields map[string]any) *Event {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Event{Fields: fields, typ: eventType, target: target}
}

// WithList attaches an array-valued property such as touches.
func (e *Event) WithList(name string, entries ...Fields) *Event {
	if e.lists == nil {
		e.lists = make(map[string][]Fields)
	}
	e.lists[name] = entries
	return e
}

func (e *Event) Type() string     { return e.typ }
func (e *Event) Target() dom.Node { return e.target }

func (e *Event) List(name string) ([]dom.Fields, error) {
	entries, ok := e.lists[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dom.ErrMissingField, name)
	}
	out := make([]dom.Fields, len(entries))
	for i, f := range entries {
		out[i] = f
	}
	return out, nil
}
