package fetch

import (
	"iter"
	"strings"
)

// HeaderEntry is a single name/value pair in a Headers list.
type HeaderEntry struct {
	Name  string
	Value string
}

// Headers is an ordered multi-map of HTTP header fields.
//
// Names are stored lower-cased and compared case-insensitively. Appending a
// name that already exists adds another entry; it never replaces the
// existing one. The zero value is an empty, ready to use Headers.
type Headers struct {
	entries []HeaderEntry
}

// NewHeaders returns Headers populated from alternating name/value pairs.
// A trailing name without a value is ignored.
func NewHeaders(pairs ...string) Headers {
	var h Headers
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Append(pairs[i], pairs[i+1])
	}
	return h
}

// Append adds a value under name, after any existing values.
func (h *Headers) Append(name, value string) {
	h.entries = append(h.entries, HeaderEntry{Name: normalizeName(name), Value: value})
}

// AppendValue adds every value carried by v under name, in order.
func (h *Headers) AppendValue(name string, v HeaderValue) {
	for _, s := range v.Values() {
		h.Append(name, s)
	}
}

// Get returns the values of name joined with ", ", or "" if the header is
// absent. Use Values for headers that must not be combined (set-cookie).
func (h Headers) Get(name string) string {
	return strings.Join(h.Values(name), ", ")
}

// First returns the first value of name and whether it was present.
func (h Headers) First(name string) (string, bool) {
	name = normalizeName(name)
	for _, e := range h.entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// Values returns every value of name in insertion order.
func (h Headers) Values(name string) []string {
	name = normalizeName(name)
	var out []string
	for _, e := range h.entries {
		if e.Name == name {
			out = append(out, e.Value)
		}
	}
	return out
}

// Has reports whether at least one entry exists for name.
func (h Headers) Has(name string) bool {
	_, ok := h.First(name)
	return ok
}

// Len returns the number of entries, counting repeated names separately.
func (h Headers) Len() int {
	return len(h.entries)
}

// Names returns the distinct header names in order of first appearance.
func (h Headers) Names() []string {
	seen := make(map[string]bool, len(h.entries))
	var names []string
	for _, e := range h.entries {
		if !seen[e.Name] {
			seen[e.Name] = true
			names = append(names, e.Name)
		}
	}
	return names
}

// All iterates over every entry in insertion order.
func (h Headers) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, e := range h.entries {
			if !yield(e.Name, e.Value) {
				return
			}
		}
	}
}

// Entries returns a copy of the entry list.
func (h Headers) Entries() []HeaderEntry {
	if len(h.entries) == 0 {
		return nil
	}
	out := make([]HeaderEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Clone returns an independent copy of h.
func (h Headers) Clone() Headers {
	return Headers{entries: h.Entries()}
}

// Without returns a copy of h with every entry for the given names removed.
func (h Headers) Without(names ...string) Headers {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[normalizeName(n)] = true
	}
	var out Headers
	for _, e := range h.entries {
		if !drop[e.Name] {
			out.entries = append(out.entries, e)
		}
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(name)
}
