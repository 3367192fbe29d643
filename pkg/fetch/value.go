package fetch

// HeaderValue is the value of one header as reported by a socket-style
// server: either a single string or an ordered list of strings (the
// set-cookie family). The shape is resolved once, when the value is built,
// so consumers never inspect types at runtime.
type HeaderValue struct {
	values []string
	multi  bool
}

// Single returns a HeaderValue holding one string.
func Single(v string) HeaderValue {
	return HeaderValue{values: []string{v}}
}

// Multi returns a HeaderValue holding an ordered list of strings.
func Multi(vs ...string) HeaderValue {
	cp := make([]string, len(vs))
	copy(cp, vs)
	return HeaderValue{values: cp, multi: true}
}

// IsMulti reports whether v was constructed with Multi.
func (v HeaderValue) IsMulti() bool {
	return v.multi
}

// Values returns the strings held by v, in order.
func (v HeaderValue) Values() []string {
	return v.values
}

// RawHeader is one entry of a socket-style header map.
type RawHeader struct {
	Name  string
	Value HeaderValue
}
