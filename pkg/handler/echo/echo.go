// Package echo provides a diagnostic handler that describes the request it
// receives.
package echo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rhuss/fetchbridge/pkg/auth"
	"github.com/rhuss/fetchbridge/pkg/fetch"
	"github.com/rhuss/fetchbridge/pkg/transport"
)

// MirrorPrefix marks request headers that are copied onto the response.
const MirrorPrefix = "x-echo-"

// MaxChunks bounds the ?stream= parameter.
const MaxChunks = 10000

// Description is the JSON body returned for non-streaming requests.
type Description struct {
	Method     string      `json:"method"`
	URL        string      `json:"url"`
	Headers    [][2]string `json:"headers"`
	BodyLength int64       `json:"body_length"`
	RequestID  string      `json:"request_id,omitempty"`

	// Identity fields are set when the request passed authentication.
	Subject     string   `json:"subject,omitempty"`
	ServiceTier string   `json:"service_tier,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
}

// Handler echoes requests back to the caller.
type Handler struct {
	// Interval is the pause between streamed chunks.
	Interval time.Duration
}

// New returns an echo handler with a 10ms chunk interval.
func New() *Handler {
	return &Handler{Interval: 10 * time.Millisecond}
}

// Handle implements transport.Handler.
//
// Without a stream query parameter the response is a JSON Description. With
// ?stream=N the handler streams N text lines and stops early once ctx is
// done. Request headers prefixed with x-echo- are mirrored in both cases.
func (h *Handler) Handle(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	mirrored := mirror(req.Headers())

	if raw := req.URL().Query().Get("stream"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxChunks {
			return transport.NewAPIErrorResponse(transport.NewInvalidRequestError(
				fmt.Sprintf("stream must be an integer between 1 and %d", MaxChunks),
			)), nil
		}
		mirrored.Append("content-type", "text/plain; charset=utf-8")
		mirrored.Append("cache-control", "no-cache")
		return fetch.NewResponse(h.stream(ctx, n), fetch.ResponseInit{Status: http.StatusOK, Headers: mirrored})
	}

	var length int64
	if req.HasBody() {
		n, err := io.Copy(io.Discard, req.Body())
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		length = n
	}

	desc := Description{
		Method:     req.Method(),
		URL:        req.Href(),
		Headers:    [][2]string{},
		BodyLength: length,
		RequestID:  transport.RequestIDFromContext(ctx),
	}
	for name, value := range req.Headers().All() {
		desc.Headers = append(desc.Headers, [2]string{name, value})
	}
	if id := auth.IdentityFromContext(ctx); id != nil {
		desc.Subject = id.Subject
		desc.ServiceTier = id.ServiceTier
		desc.Scopes = id.Scopes
	}

	resp, err := fetch.JSON(http.StatusOK, desc)
	if err != nil {
		return nil, err
	}
	for name, value := range mirrored.All() {
		resp = resp.WithHeader(name, value)
	}
	return resp, nil
}

// stream produces n lines through a pipe. The producer blocks until the
// consumer reads, and exits when ctx is done or the reader is closed.
func (h *Handler) stream(ctx context.Context, n int) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		for i := 1; i <= n; i++ {
			if err := h.pause(ctx, i); err != nil {
				pw.CloseWithError(err)
				return
			}
			if _, err := fmt.Fprintf(pw, "chunk %d/%d\n", i, n); err != nil {
				return
			}
		}
		pw.Close()
	}()
	return pr
}

// pause waits Interval before every chunk but the first. It returns the
// cancellation cause once ctx is done.
func (h *Handler) pause(ctx context.Context, i int) error {
	if i == 1 || h.Interval <= 0 {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return nil
	}
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-time.After(h.Interval):
		return nil
	}
}

// mirror collects x-echo-* headers in request order.
func mirror(h fetch.Headers) fetch.Headers {
	var out fetch.Headers
	for name, value := range h.All() {
		if strings.HasPrefix(name, MirrorPrefix) {
			out.Append(name, value)
		}
	}
	return out
}
