// Package intern deduplicates the attribute names, tag names and event
// categories that repeat on nearly every mutation.
//
// A Table belongs to one renderer and lives as long as it does: entries are
// never evicted, because the vocabulary is small and bounded while a page
// lives for a long time. Handles from one Table compare equal with == exactly
// when their text is equal. A Table must only be used from the goroutine
// that runs the renderer loop.
package intern

// MaxLen is the longest text Canonical will retain. Longer input is copied
// but not interned, so one oversized value cannot grow the table without
// bound.
const MaxLen = 256

type entry struct {
	s string
}

// String is a canonical handle. The zero String is the empty handle and
// is never returned by Intern.
type String struct {
	e *entry
}

// Value returns the interned text.
func (s String) Value() string {
	if s.e == nil {
		return ""
	}
	return s.e.s
}

// IsZero reports whether s is the zero handle.
func (s String) IsZero() bool { return s.e == nil }

func (s String) String() string { return s.Value() }

// Table is an interning table.
type Table struct {
	m map[string]*entry
}

// New returns an empty table.
func New() *Table {
	return &Table{m: make(map[string]*entry, 64)}
}

// Intern returns the canonical handle for s.
func (t *Table) Intern(s string) String {
	if e, ok := t.m[s]; ok {
		return String{e}
	}
	e := &entry{s: s}
	t.m[s] = e
	return String{e}
}

// InternBytes is Intern for a byte slice. Lookups of known text do not
// allocate.
func (t *Table) InternBytes(b []byte) String {
	if e, ok := t.m[string(b)]; ok {
		return String{e}
	}
	return t.Intern(string(b))
}

// Lookup returns the handle for s without interning it.
func (t *Table) Lookup(s string) (String, bool) {
	e, ok := t.m[s]
	return String{e}, ok
}

// Canonical returns the canonical storage for b. It lets a protocol
// decoder resolve names straight into the table.
func (t *Table) Canonical(b []byte) string {
	if len(b) > MaxLen {
		return string(b)
	}
	return t.InternBytes(b).Value()
}

// Len returns the number of interned strings.
func (t *Table) Len() int { return len(t.m) }

// Clear drops every entry. Handles obtained earlier stay readable but no
// longer compare equal to handles interned afterwards, so Clear is only
// for renderer shutdown.
func (t *Table) Clear() {
	clear(t.m)
}
