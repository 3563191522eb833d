package dom

import "strings"

// Declaration is one property of an inline CSS declaration block.
type Declaration struct {
	Property string
	Value    string
}

// ParseStyle splits a declaration block such as "color: red; margin: 0"
// into declarations. Empty and malformed entries are skipped; property
// names are lower-cased except for custom properties.
func ParseStyle(cssText string) []Declaration {
	var out []Declaration
	for _, part := range strings.Split(cssText, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.TrimSpace(prop)
		value = strings.TrimSpace(value)
		if prop == "" || value == "" {
			continue
		}
		if !strings.HasPrefix(prop, "--") {
			prop = strings.ToLower(prop)
		}
		out = append(out, Declaration{Property: prop, Value: value})
	}
	return out
}

// FormatStyle serializes declarations the way a browser reports cssText.
func FormatStyle(decls []Declaration) string {
	var b strings.Builder
	for i, d := range decls {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(d.Property)
		b.WriteString(": ")
		b.WriteString(d.Value)
		b.WriteByte(';')
	}
	return b.String()
}

// SetDeclaration returns decls with prop set to value, replacing an
// existing entry in place or appending a new one.
func SetDeclaration(decls []Declaration, prop, value string) []Declaration {
	for i := range decls {
		if decls[i].Property == prop {
			decls[i].Value = value
			return decls
		}
	}
	return append(decls, Declaration{Property: prop, Value: value})
}

// RemoveDeclaration returns decls without prop.
func RemoveDeclaration(decls []Declaration, prop string) []Declaration {
	out := decls[:0]
	for _, d := range decls {
		if d.Property != prop {
			out = append(out, d)
		}
	}
	return out
}
