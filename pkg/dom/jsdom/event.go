//go:build js && wasm

package jsdom

import (
	"fmt"

	"github.com/hack-pad/safejs"

	"github.com/vango-dev/vrender/pkg/dom"
)

// fields reads typed properties of a JavaScript object.
type fields struct {
	v safejs.Value
}

func (f fields) get(name string, want safejs.Type, desc string) (safejs.Value, error) {
	v, err := f.v.Get(name)
	if err != nil || v.IsUndefined() || v.IsNull() {
		return safejs.Value{}, fmt.Errorf("%w: %s", dom.ErrMissingField, name)
	}
	if v.Type() != want {
		return safejs.Value{}, fmt.Errorf("%w: %s is not %s", dom.ErrMissingField, name, desc)
	}
	return v, nil
}

func (f fields) Int(name string) (int, error) {
	v, err := f.get(name, safejs.TypeNumber, "a number")
	if err != nil {
		return 0, err
	}
	return v.Int()
}

func (f fields) Float(name string) (float64, error) {
	v, err := f.get(name, safejs.TypeNumber, "a number")
	if err != nil {
		return 0, err
	}
	return v.Float()
}

func (f fields) Bool(name string) (bool, error) {
	v, err := f.get(name, safejs.TypeBoolean, "a boolean")
	if err != nil {
		return false, err
	}
	return v.Bool()
}

func (f fields) String(name string) (string, error) {
	v, err := f.get(name, safejs.TypeString, "a string")
	if err != nil {
		return "", err
	}
	return v.String()
}

// Event is a browser event delivered to a root listener. It is only valid
// during the listener call.
type Event struct {
	doc *Document
	v   safejs.Value
}

var _ dom.Event = (*Event)(nil)

func (e *Event) fields() fields { return fields{e.v} }

func (e *Event) Int(name string) (int, error)       { return e.fields().Int(name) }
func (e *Event) Float(name string) (float64, error) { return e.fields().Float(name) }
func (e *Event) Bool(name string) (bool, error)     { return e.fields().Bool(name) }
func (e *Event) String(name string) (string, error) { return e.fields().String(name) }

func (e *Event) Type() string {
	s, _ := e.fields().String("type")
	return s
}

func (e *Event) Target() dom.Node {
	v, err := e.v.Get("target")
	if err != nil {
		return nil
	}
	return e.doc.node(v)
}

// List reads an array-like property such as touches or
// dataTransfer.files.
func (e *Event) List(name string) ([]dom.Fields, error) {
	v, err := e.v.Get(name)
	if err != nil || v.IsUndefined() || v.IsNull() {
		return nil, fmt.Errorf("%w: %s", dom.ErrMissingField, name)
	}
	n, err := v.Length()
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a list", dom.ErrMissingField, name)
	}
	out := make([]dom.Fields, 0, n)
	for i := 0; i < n; i++ {
		item, err := v.Index(i)
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d]", dom.ErrMissingField, name, i)
		}
		out = append(out, fields{item})
	}
	return out, nil
}
