package transport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rhuss/fetchbridge/pkg/fetch"
)

func okHandler() Handler {
	return HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
		return fetch.Text(200, "ok"), nil
	})
}

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
				order = append(order, name+":before")
				resp, err := next.Handle(ctx, req)
				order = append(order, name+":after")
				return resp, err
			})
		}
	}

	handler := HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
		order = append(order, "handler")
		return nil, nil
	})

	wrapped := Chain(mw("first"), mw("second"), mw("third"))(handler)
	wrapped.Handle(context.Background(), newTestRequest(t))

	expected := []string{
		"first:before", "second:before", "third:before",
		"handler",
		"third:after", "second:after", "first:after",
	}

	if len(order) != len(expected) {
		t.Fatalf("execution order length = %d, want %d: %v", len(order), len(expected), order)
	}
	for i, got := range order {
		if got != expected[i] {
			t.Errorf("order[%d] = %q, want %q", i, got, expected[i])
		}
	}
}

func TestRecoveryCatchesPanic(t *testing.T) {
	handler := HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
		panic("test panic")
	})

	resp, err := Recovery()(handler).Handle(context.Background(), newTestRequest(t))

	if err == nil {
		t.Fatal("expected error after panic, got nil")
	}
	if resp != nil {
		t.Errorf("response = %v, want nil after panic", resp)
	}
	if !errors.Is(err, ErrHandlerPanic) {
		t.Errorf("error = %v, want ErrHandlerPanic", err)
	}
	if !strings.Contains(err.Error(), "test panic") {
		t.Errorf("error message = %q, should contain %q", err.Error(), "test panic")
	}
}

func TestRecoveryPassesThroughNormalExecution(t *testing.T) {
	resp, err := Recovery()(okHandler()).Handle(context.Background(), newTestRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil || resp.Status() != 200 {
		t.Errorf("response = %v, want 200", resp)
	}
}

func captureRequestID(id *string) Handler {
	return HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
		*id = RequestIDFromContext(ctx)
		return nil, nil
	})
}

func TestRequestIDGeneratesNewID(t *testing.T) {
	var capturedID string
	RequestID()(captureRequestID(&capturedID)).Handle(context.Background(), newTestRequest(t))

	if capturedID == "" {
		t.Fatal("expected a generated request ID, got empty string")
	}
	if _, err := uuid.Parse(capturedID); err != nil {
		t.Errorf("request ID %q is not a UUID: %v", capturedID, err)
	}
}

func TestRequestIDPropagatesExisting(t *testing.T) {
	var capturedID string
	ctx := ContextWithRequestID(context.Background(), "existing-id-123")
	RequestID()(captureRequestID(&capturedID)).Handle(ctx, newTestRequest(t))

	if capturedID != "existing-id-123" {
		t.Errorf("request ID = %q, want %q", capturedID, "existing-id-123")
	}
}

func TestRequestIDVisibleThroughRequestContext(t *testing.T) {
	var fromCtx, fromReq string
	h := HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
		fromCtx = RequestIDFromContext(ctx)
		fromReq = RequestIDFromContext(req.Context())
		return fetch.Text(200, "ok"), nil
	})
	req, err := fetch.NewRequest("https://example.com/", fetch.RequestInit{
		Headers: fetch.NewHeaders("x-request-id", "abc"),
		Signal:  fetch.NewSignal(context.Background()),
	})
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}

	RequestID()(h).Handle(req.Context(), req)

	if fromCtx != "abc" || fromReq != "abc" {
		t.Errorf("request ID from ctx/req = %q/%q, want abc/abc", fromCtx, fromReq)
	}
}

func TestRequestIDFromHeader(t *testing.T) {
	req, err := fetch.NewRequest("https://example.com/", fetch.RequestInit{
		Headers: fetch.NewHeaders("X-Request-ID", "from-proxy", "x-request-id", "second"),
	})
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}

	var capturedID string
	RequestID()(captureRequestID(&capturedID)).Handle(context.Background(), req)

	if capturedID != "from-proxy" {
		t.Errorf("request ID = %q, want %q", capturedID, "from-proxy")
	}
}

func TestRequestIDAddsResponseHeader(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "abc")
	resp, err := RequestID()(okHandler()).Handle(ctx, newTestRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resp.Headers().Get("X-Request-ID"); got != "abc" {
		t.Errorf("x-request-id = %q, want %q", got, "abc")
	}

	preset := HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
		return fetch.Text(200, "ok").WithHeader("x-request-id", "handler-set"), nil
	})
	resp, _ = RequestID()(preset).Handle(ctx, newTestRequest(t))
	if got := resp.Headers().Values("x-request-id"); len(got) != 1 || got[0] != "handler-set" {
		t.Errorf("x-request-id values = %v, want [handler-set]", got)
	}
}

func TestRequestIDUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	handler := HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
		ids[RequestIDFromContext(ctx)] = true
		return nil, nil
	})

	wrapped := RequestID()(handler)
	for i := 0; i < 100; i++ {
		wrapped.Handle(context.Background(), newTestRequest(t))
	}

	if len(ids) != 100 {
		t.Errorf("expected 100 unique IDs, got %d", len(ids))
	}
}

func TestLoggingEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx := ContextWithRequestID(context.Background(), "req-log-test")
	Logging(logger)(okHandler()).Handle(ctx, newTestRequest(t))

	output := buf.String()
	for _, expected := range []string{"request_id=req-log-test", "method=GET", "path=/things", "status=200", "request handled"} {
		if !strings.Contains(output, expected) {
			t.Errorf("log output missing %q in:\n%s", expected, output)
		}
	}
}

func TestLoggingEmitsErrorOnFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
		return nil, errors.New("test failure")
	})

	Logging(logger)(handler).Handle(context.Background(), newTestRequest(t))

	output := buf.String()
	if !strings.Contains(output, "request failed") {
		t.Errorf("log output missing 'request failed' in:\n%s", output)
	}
	if !strings.Contains(output, "test failure") {
		t.Errorf("log output missing error message in:\n%s", output)
	}
}

func TestLoggingReportsAbortNotFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	sig := fetch.NewSignal(context.Background())
	req, err := fetch.NewRequest("https://example.com/", fetch.RequestInit{Signal: sig})
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}

	handler := HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
		req.Signal().Abort(ErrConnectionClosed)
		return nil, context.Canceled
	})

	Logging(logger)(handler).Handle(context.Background(), req)

	output := buf.String()
	if !strings.Contains(output, "request aborted") {
		t.Errorf("log output missing 'request aborted' in:\n%s", output)
	}
	if strings.Contains(output, "request failed") {
		t.Errorf("aborted request logged as failure:\n%s", output)
	}
}
