package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/fetchbridge/pkg/fetch"
	"github.com/rhuss/fetchbridge/pkg/transport"
)

func TestIncomingMessageRawHeaders(t *testing.T) {
	r := httptest.NewRequest("POST", "/a?b=1", strings.NewReader("x"))
	r.Host = "example.com"
	r.Header.Add("X-Zeta", "z")
	r.Header.Add("Cookie", "a=1")
	r.Header.Add("Cookie", "b=2")
	r.Header.Add("Accept", "*/*")

	in := NewIncomingMessage(r)

	var names []string
	for _, h := range in.RawHeaders() {
		names = append(names, h.Name)
	}
	if want := []string{"Accept", "Cookie", "Host", "X-Zeta"}; !slices.Equal(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}

	for _, h := range in.RawHeaders() {
		switch h.Name {
		case "Cookie":
			if !h.Value.IsMulti() || !slices.Equal(h.Value.Values(), []string{"a=1", "b=2"}) {
				t.Errorf("Cookie = %v, want Multi(a=1, b=2)", h.Value.Values())
			}
		case "Host":
			if h.Value.IsMulti() || h.Value.Values()[0] != "example.com" {
				t.Errorf("Host = %v, want Single(example.com)", h.Value.Values())
			}
		}
	}

	if in.RequestURI() != "/a?b=1" {
		t.Errorf("RequestURI() = %q", in.RequestURI())
	}
	if in.Method() != "POST" {
		t.Errorf("Method() = %q", in.Method())
	}
	if in.Body() == nil {
		t.Error("Body() = nil for a request with a body")
	}
}

func TestIncomingMessageNoBody(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if body := NewIncomingMessage(r).Body(); body != nil {
		t.Errorf("Body() = %v, want nil", body)
	}
}

func TestTranslateIncoming(t *testing.T) {
	h := TranslateIncoming([]fetch.RawHeader{
		multi("Set-Cookie", "a", "b"),
		single("X-One", "1"),
		multi("x-empty"),
	})

	want := []fetch.HeaderEntry{
		{Name: "set-cookie", Value: "a"},
		{Name: "set-cookie", Value: "b"},
		{Name: "x-one", Value: "1"},
	}
	if got := h.Entries(); !slices.Equal(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
}

func TestTranslateOutgoingNeverJoins(t *testing.T) {
	dst := http.Header{}
	TranslateOutgoing(fetch.NewHeaders("set-cookie", "x=1", "set-cookie", "y=2", "vary", "a"), dst)

	if got := dst["Set-Cookie"]; !slices.Equal(got, []string{"x=1", "y=2"}) {
		t.Errorf("Set-Cookie = %q, want two entries", got)
	}
	if got := dst.Get("Vary"); got != "a" {
		t.Errorf("Vary = %q", got)
	}
}

func TestResponseMessageSingleHeaderBlock(t *testing.T) {
	rec := httptest.NewRecorder()
	out := NewOutgoingMessage(rec, httptest.NewRequest("GET", "/", nil))

	if err := out.WriteHead(202, "Accepted", fetch.NewHeaders("x-a", "1")); err != nil {
		t.Fatalf("WriteHead() error: %v", err)
	}
	if err := out.WriteHead(500, "", fetch.Headers{}); !errors.Is(err, transport.ErrHeadersWritten) {
		t.Errorf("second WriteHead() = %v, want ErrHeadersWritten", err)
	}
	if rec.Code != 202 {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if !out.HeadersWritten() {
		t.Error("HeadersWritten() = false")
	}
}

func TestResponseMessageEnd(t *testing.T) {
	rec := httptest.NewRecorder()
	out := NewOutgoingMessage(rec, httptest.NewRequest("GET", "/", nil))

	out.WriteHead(200, "OK", fetch.Headers{})
	if _, err := out.Write([]byte("abc")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := out.End(); err != nil {
		t.Fatalf("End() error: %v", err)
	}
	if _, err := out.Write([]byte("more")); err == nil {
		t.Error("Write() after End succeeded")
	}
	if out.BytesWritten() != 3 {
		t.Errorf("BytesWritten() = %d, want 3", out.BytesWritten())
	}
	if rec.Body.String() != "abc" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestResponseMessageOnClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	out := NewOutgoingMessage(httptest.NewRecorder(), r)

	fired := make(chan struct{})
	out.OnClose(func() { close(fired) })
	cancel()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("close notification did not fire")
	}
}

func TestResponseMessageOnCloseStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	out := NewOutgoingMessage(httptest.NewRecorder(), r)

	stop := out.OnClose(func() { t.Error("close notification fired after stop") })
	if !stop() {
		t.Error("stop() = false for a pending notification")
	}
	cancel()
	time.Sleep(10 * time.Millisecond)
}

// plainWriter is an http.ResponseWriter without Flush support.
type plainWriter struct {
	header http.Header
}

func (w *plainWriter) Header() http.Header         { return w.header }
func (w *plainWriter) Write(p []byte) (int, error) { return len(p), nil }
func (w *plainWriter) WriteHeader(int)             {}

func TestResponseMessageFlushUnsupported(t *testing.T) {
	out := NewOutgoingMessage(&plainWriter{header: http.Header{}}, httptest.NewRequest("GET", "/", nil))
	if err := out.Flush(); err != nil {
		t.Errorf("Flush() = %v, want nil when flushing is unsupported", err)
	}
}
