package fetch

import (
	"slices"
	"testing"
)

func TestHeadersAppendKeepsRepeatedValues(t *testing.T) {
	var h Headers
	h.Append("Set-Cookie", "x=1")
	h.Append("set-cookie", "y=2")

	got := h.Values("SET-COOKIE")
	want := []string{"x=1", "y=2"}
	if !slices.Equal(got, want) {
		t.Errorf("Values(set-cookie) = %v, want %v", got, want)
	}
	if h.Len() != 2 {
		t.Errorf("Len() = %d, want 2", h.Len())
	}
}

func TestHeadersGetJoinsValues(t *testing.T) {
	h := NewHeaders("accept", "text/html", "Accept", "application/json")

	if got := h.Get("accept"); got != "text/html, application/json" {
		t.Errorf("Get(accept) = %q, want %q", got, "text/html, application/json")
	}
	if got := h.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q, want empty", got)
	}
}

func TestHeadersFirst(t *testing.T) {
	h := NewHeaders("x-a", "1", "x-a", "2")

	v, ok := h.First("X-A")
	if !ok || v != "1" {
		t.Errorf("First(X-A) = (%q, %v), want (\"1\", true)", v, ok)
	}
	if _, ok := h.First("x-b"); ok {
		t.Error("First(x-b) reported present, want absent")
	}
}

func TestHeadersNamesPreserveFirstAppearance(t *testing.T) {
	h := NewHeaders("b", "1", "a", "2", "b", "3", "c", "4")

	got := h.Names()
	want := []string{"b", "a", "c"}
	if !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestHeadersAllOrder(t *testing.T) {
	h := NewHeaders("b", "1", "a", "2", "b", "3")

	var got []HeaderEntry
	for name, value := range h.All() {
		got = append(got, HeaderEntry{Name: name, Value: value})
	}
	want := []HeaderEntry{{"b", "1"}, {"a", "2"}, {"b", "3"}}
	if !slices.Equal(got, want) {
		t.Errorf("All() = %v, want %v", got, want)
	}
}

func TestHeadersCloneIsIndependent(t *testing.T) {
	h := NewHeaders("a", "1")
	c := h.Clone()
	c.Append("a", "2")

	if h.Len() != 1 {
		t.Errorf("original Len() = %d after appending to clone, want 1", h.Len())
	}
	if c.Len() != 2 {
		t.Errorf("clone Len() = %d, want 2", c.Len())
	}
}

func TestHeadersWithout(t *testing.T) {
	h := NewHeaders("connection", "close", "a", "1", "Connection", "x", "b", "2")
	got := h.Without("CONNECTION").Entries()
	want := []HeaderEntry{{"a", "1"}, {"b", "2"}}
	if !slices.Equal(got, want) {
		t.Errorf("Without(connection) = %v, want %v", got, want)
	}
}

func TestAppendValue(t *testing.T) {
	var h Headers
	h.AppendValue("set-cookie", Multi("x=1", "y=2"))
	h.AppendValue("host", Single("example.com"))

	want := []HeaderEntry{{"set-cookie", "x=1"}, {"set-cookie", "y=2"}, {"host", "example.com"}}
	if got := h.Entries(); !slices.Equal(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
}

func TestHeaderValueVariants(t *testing.T) {
	s := Single("a")
	if s.IsMulti() {
		t.Error("Single reported IsMulti")
	}
	if !slices.Equal(s.Values(), []string{"a"}) {
		t.Errorf("Single values = %v", s.Values())
	}

	src := []string{"a", "b"}
	m := Multi(src...)
	src[0] = "changed"
	if !m.IsMulti() {
		t.Error("Multi did not report IsMulti")
	}
	if !slices.Equal(m.Values(), []string{"a", "b"}) {
		t.Errorf("Multi values = %v, want [a b] (must not alias input)", m.Values())
	}
}
