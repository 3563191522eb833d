package interp

import (
	"github.com/vango-dev/vrender/pkg/dom"
	"github.com/vango-dev/vrender/pkg/protocol"
	"github.com/vango-dev/vrender/pkg/schema"
)

// present reports whether v leaves a boolean attribute set. Text "false"
// counts as absent so engines that stringify booleans still work.
func present(v protocol.AttrValue) bool {
	switch v.Kind {
	case protocol.ValueBool:
		return v.Bool
	case protocol.ValueNone:
		return false
	case protocol.ValueText:
		return v.Text != "false"
	default:
		return v.Number != 0
	}
}

func setAttribute(n dom.Node, name string, v protocol.AttrValue, ns string) error {
	switch {
	case ns == schema.NamespaceStyle:
		if v.Kind == protocol.ValueNone {
			return n.RemoveStyleProperty(name)
		}
		return n.SetStyleProperty(name, v.String())

	case ns != "":
		if v.Kind == protocol.ValueNone {
			return n.RemoveAttributeNS(ns, localName(name))
		}
		return n.SetAttributeNS(ns, name, v.String())

	case name == schema.AttrInnerHTML:
		return n.SetInnerHTML(v.String())

	case name == schema.AttrStyle:
		if v.Kind == protocol.ValueNone {
			return n.RemoveAttribute(schema.AttrStyle)
		}
		return n.SetStyle(v.String())

	case schema.IsBooleanAttr(name):
		on := present(v)
		var err error
		if on {
			err = n.SetAttribute(name, "")
		} else {
			err = n.RemoveAttribute(name)
		}
		if err != nil {
			return err
		}
		if prop := schema.PropertyName(name); prop != "" {
			return n.SetProperty(prop, on)
		}
		return nil

	case v.Kind == protocol.ValueNone:
		return n.RemoveAttribute(name)
	}

	if err := n.SetAttribute(name, v.String()); err != nil {
		return err
	}
	if schema.IsPropertyAttr(name) {
		return n.SetProperty(schema.PropertyName(name), v.String())
	}
	return nil
}

func removeAttribute(n dom.Node, name, ns string) error {
	switch {
	case ns == schema.NamespaceStyle:
		return n.RemoveStyleProperty(name)
	case ns != "":
		return n.RemoveAttributeNS(ns, localName(name))
	case name == schema.AttrInnerHTML:
		return n.SetInnerHTML("")
	}

	if err := n.RemoveAttribute(name); err != nil {
		return err
	}
	switch prop := schema.PropertyName(name); {
	case prop == "":
		return nil
	case schema.IsBooleanAttr(name):
		return n.SetProperty(prop, false)
	default:
		return n.SetProperty(prop, "")
	}
}

func localName(qname string) string {
	for i := 0; i < len(qname); i++ {
		if qname[i] == ':' {
			return qname[i+1:]
		}
	}
	return qname
}
