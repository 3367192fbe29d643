package fetch

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestNewRequestDefaults(t *testing.T) {
	req, err := NewRequest("https://example.com/a?b=1", RequestInit{})
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	if req.Method() != "GET" {
		t.Errorf("Method() = %q, want GET", req.Method())
	}
	if req.Href() != "https://example.com/a?b=1" {
		t.Errorf("Href() = %q", req.Href())
	}
	if req.HasBody() {
		t.Error("GET request has body")
	}
	if req.Signal() == nil || req.Signal().Aborted() {
		t.Error("expected an unset signal")
	}
}

func TestNewRequestRejectsBodyOnGetAndHead(t *testing.T) {
	for _, method := range []string{"GET", "head"} {
		_, err := NewRequest("https://example.com/", RequestInit{
			Method: method,
			Body:   strings.NewReader("x"),
		})
		if !errors.Is(err, ErrBodyNotAllowed) {
			t.Errorf("%s: error = %v, want ErrBodyNotAllowed", method, err)
		}
	}
}

func TestNewRequestRejectsRelativeURL(t *testing.T) {
	_, err := NewRequest("/only/a/path", RequestInit{})
	if !errors.Is(err, ErrRelativeURL) {
		t.Errorf("error = %v, want ErrRelativeURL", err)
	}
}

func TestNewRequestBodyPassThrough(t *testing.T) {
	req, err := NewRequest("https://example.com/upload", RequestInit{
		Method: "post",
		Body:   strings.NewReader("payload"),
	})
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	if req.Method() != "POST" {
		t.Errorf("Method() = %q, want POST", req.Method())
	}
	data, err := io.ReadAll(req.Body())
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("body = %q, want %q", data, "payload")
	}
}

func TestRequestIsImmutable(t *testing.T) {
	h := NewHeaders("a", "1")
	req, err := NewRequest("https://example.com/", RequestInit{Headers: h})
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}

	h.Append("a", "2")
	got := req.Headers()
	got.Append("b", "3")
	u := req.URL()
	u.Path = "/changed"

	if req.Headers().Len() != 1 {
		t.Errorf("request headers changed: %v", req.Headers().Entries())
	}
	if req.URL().Path != "/" {
		t.Errorf("request URL changed: %s", req.Href())
	}
}

func TestRequestContextFollowsSignal(t *testing.T) {
	type key struct{}
	parent := context.WithValue(context.Background(), key{}, "v")
	sig := NewSignal(parent)
	req, err := NewRequest("https://example.com/", RequestInit{Signal: sig})
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}

	if req.Context().Value(key{}) != "v" {
		t.Error("request context lost parent values")
	}

	sig.Abort(nil)
	select {
	case <-req.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("request context not cancelled after abort")
	}
	if !errors.Is(context.Cause(req.Context()), ErrAborted) {
		t.Errorf("cause = %v, want ErrAborted", context.Cause(req.Context()))
	}
}

func TestRequestWithContext(t *testing.T) {
	type key struct{}
	sig := NewSignal(context.Background())
	req, err := NewRequest("https://example.com/", RequestInit{Signal: sig})
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}

	derived := req.WithContext(context.WithValue(req.Context(), key{}, "id-1"))
	if derived.Context().Value(key{}) != "id-1" {
		t.Error("derived request lost the context value")
	}
	if req.Context().Value(key{}) != nil {
		t.Error("original request was modified")
	}
	if derived.Signal() != sig || derived.Href() != req.Href() {
		t.Error("derived request does not share signal and URL")
	}

	// Values from an unrelated context still cancel with the signal.
	unrelated := req.WithContext(context.WithValue(context.Background(), key{}, "id-2"))
	sig.Abort(nil)
	for _, r := range []*Request{derived, unrelated} {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
			t.Fatal("derived request context not cancelled after abort")
		}
	}
	if unrelated.Context().Value(key{}) != "id-2" {
		t.Error("unrelated context value lost")
	}
}

func TestMethodAllowsBody(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{"GET", false},
		{"HEAD", false},
		{"get", false},
		{"POST", true},
		{"PUT", true},
		{"DELETE", true},
		{"PATCH", true},
		{"OPTIONS", true},
	}
	for _, tt := range tests {
		if got := MethodAllowsBody(tt.method); got != tt.want {
			t.Errorf("MethodAllowsBody(%q) = %v, want %v", tt.method, got, tt.want)
		}
	}
}
