package schema

// Attribute names the interpreter treats specially.
const (
	AttrStyle      = "style"
	AttrInnerHTML  = "dangerous_inner_html"
	AttrValue      = "value"
	AttrChecked    = "checked"
	AttrSelected   = "selected"
	NamespaceStyle = "style"
)

// booleanAttrs are attributes whose presence, not value, carries meaning.
var booleanAttrs = map[string]bool{
	"allowfullscreen": true,
	"async":           true,
	"autofocus":       true,
	"autoplay":        true,
	"checked":         true,
	"controls":        true,
	"default":         true,
	"defer":           true,
	"disabled":        true,
	"formnovalidate":  true,
	"hidden":          true,
	"inert":           true,
	"ismap":           true,
	"itemscope":       true,
	"loop":            true,
	"multiple":        true,
	"muted":           true,
	"nomodule":        true,
	"novalidate":      true,
	"open":            true,
	"playsinline":     true,
	"readonly":        true,
	"required":        true,
	"reversed":        true,
	"selected":        true,
}

// propertyAttrs mirror into a live property that can drift from the
// attribute once the user interacts with the element.
var propertyAttrs = map[string]bool{
	AttrValue:    true,
	AttrChecked:  true,
	AttrSelected: true,
}

// IsBooleanAttr reports whether name is a boolean attribute.
func IsBooleanAttr(name string) bool {
	return booleanAttrs[name]
}

// IsPropertyAttr reports whether setting name must also set the live
// property of the same name.
func IsPropertyAttr(name string) bool {
	return propertyAttrs[name]
}

// PropertyName returns the DOM property backing an attribute name, or ""
// when the attribute has none worth mirroring.
func PropertyName(attr string) string {
	switch attr {
	case AttrValue, AttrChecked, AttrSelected, "disabled", "hidden", "multiple", "required":
		return attr
	case "readonly":
		return "readOnly"
	default:
		return ""
	}
}
