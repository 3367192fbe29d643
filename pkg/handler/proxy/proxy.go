// Package proxy provides a handler that forwards requests to an upstream
// origin and streams the upstream response back without buffering.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rhuss/fetchbridge/pkg/config"
	"github.com/rhuss/fetchbridge/pkg/debug"
	"github.com/rhuss/fetchbridge/pkg/fetch"
	"github.com/rhuss/fetchbridge/pkg/observability"
	"github.com/rhuss/fetchbridge/pkg/transport"
)

// hopHeaders are connection-scoped and never forwarded (RFC 9110 7.6.1).
var hopHeaders = []string{
	"connection",
	"proxy-connection",
	"keep-alive",
	"proxy-authenticate",
	"proxy-authorization",
	"te",
	"trailer",
	"transfer-encoding",
	"upgrade",
}

// Config holds the proxy handler settings.
type Config struct {
	// UpstreamURL is the origin requests are forwarded to. Its path is
	// prefixed to the request path.
	UpstreamURL string

	// Timeout bounds the whole upstream exchange, including the body.
	// Zero means no limit.
	Timeout time.Duration

	// APIKey, when set, replaces the caller's Authorization header with a
	// Bearer token for the upstream.
	APIKey string

	// Client is the HTTP client used for upstream calls. If nil, a client
	// that does not follow redirects is used.
	Client *http.Client
}

// FromConfig converts the handler.proxy config section.
func FromConfig(cfg config.ProxyConfig) Config {
	return Config{
		UpstreamURL: cfg.UpstreamURL,
		Timeout:     cfg.Timeout,
		APIKey:      cfg.APIKey,
	}
}

// Handler forwards requests to a single upstream.
type Handler struct {
	upstream *url.URL
	timeout  time.Duration
	apiKey   string
	client   *http.Client
}

// New creates a proxy handler. The upstream URL must be absolute.
func New(cfg Config) (*Handler, error) {
	u, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("upstream URL %q must be an absolute http(s) URL", cfg.UpstreamURL)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return &Handler{
		upstream: u,
		timeout:  cfg.Timeout,
		apiKey:   cfg.APIKey,
		client:   client,
	}, nil
}

// Handle implements transport.Handler. The upstream call is bound to ctx,
// so an aborted request signal abandons it.
func (h *Handler) Handle(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	cancel := context.CancelFunc(func() {})
	if h.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
	}

	out, err := h.outbound(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	debug.Log("proxy", "forwarding request", "method", out.Method, "url", out.URL.String())

	start := time.Now()
	resp, err := h.client.Do(out)
	if err != nil {
		cancel()
		observability.UpstreamRequestsTotal.WithLabelValues("error").Inc()
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			// The caller's body is over the limit; not an upstream failure.
			return nil, err
		}
		timedOut := false
		if ctx.Err() != nil {
			cause := context.Cause(ctx)
			if !errors.Is(cause, context.DeadlineExceeded) {
				// The caller went away; the adapter reports the abort.
				return nil, cause
			}
			timedOut = true
		}
		return gatewayError(err, timedOut), nil
	}
	observability.UpstreamLatency.Observe(time.Since(start).Seconds())
	observability.UpstreamRequestsTotal.WithLabelValues(observability.StatusClass(resp.StatusCode)).Inc()

	var headers fetch.Headers
	connection := resp.Header.Values("Connection")
	for _, name := range sortedKeys(resp.Header) {
		lower := strings.ToLower(name)
		if isHop(lower, connection) {
			continue
		}
		for _, v := range resp.Header[name] {
			headers.Append(lower, v)
		}
	}

	var body io.Reader
	if resp.Body != nil && resp.Body != http.NoBody && req.Method() != http.MethodHead {
		body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	} else {
		if resp.Body != nil {
			resp.Body.Close()
		}
		cancel()
	}

	return fetch.NewResponse(body, fetch.ResponseInit{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    headers,
	})
}

// outbound builds the upstream request from req.
func (h *Handler) outbound(ctx context.Context, req *fetch.Request) (*http.Request, error) {
	in := req.URL()
	target := *h.upstream
	target.Path, target.RawPath = joinURLPath(h.upstream, in)
	switch {
	case h.upstream.RawQuery == "":
		target.RawQuery = in.RawQuery
	case in.RawQuery != "":
		target.RawQuery = h.upstream.RawQuery + "&" + in.RawQuery
	}

	var body io.Reader
	if req.HasBody() {
		body = req.Body()
	}

	out, err := http.NewRequestWithContext(ctx, req.Method(), target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}

	reqHeaders := req.Headers()
	connection := reqHeaders.Values("connection")
	for name, value := range reqHeaders.All() {
		if name == "host" || isHop(name, connection) {
			continue
		}
		out.Header.Add(name, value)
	}

	if cl, ok := reqHeaders.First("content-length"); ok && body != nil {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			out.ContentLength = n
		}
	}

	out.Header.Set("X-Forwarded-Host", in.Host)
	out.Header.Set("X-Forwarded-Proto", in.Scheme)
	if id := transport.RequestIDFromContext(ctx); id != "" {
		out.Header.Set("X-Request-ID", id)
	}
	if h.apiKey != "" {
		out.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
	return out, nil
}

// gatewayError maps a failed upstream call to a 502 or 504 response.
func gatewayError(err error, timedOut bool) *fetch.Response {
	slog.Warn("upstream request failed", "error", err, "timed_out", timedOut)
	if timedOut {
		return transport.NewAPIErrorResponse(&transport.APIError{
			Type:    transport.ErrorTypeGatewayTimeout,
			Message: "upstream timed out",
		})
	}
	return transport.NewAPIErrorResponse(&transport.APIError{
		Type:    transport.ErrorTypeBadGateway,
		Message: "upstream unavailable",
	})
}

// cancelBody releases the upstream context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// isHop reports whether the lower-case header name is hop-by-hop, either
// by definition or because a Connection header lists it.
func isHop(name string, connection []string) bool {
	if slices.Contains(hopHeaders, name) {
		return true
	}
	for _, v := range connection {
		for token := range strings.SplitSeq(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), name) {
				return true
			}
		}
	}
	return false
}

func sortedKeys(h http.Header) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// statusText strips the numeric prefix from resp.Status.
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	return ""
}

// joinURLPath prefixes the upstream path to the request path, keeping a
// single slash between them.
func joinURLPath(upstream, in *url.URL) (path, rawPath string) {
	if upstream.RawPath == "" && in.RawPath == "" {
		return singleJoiningSlash(upstream.Path, in.Path), ""
	}
	apath := upstream.EscapedPath()
	bpath := in.EscapedPath()
	path = singleJoiningSlash(upstream.Path, in.Path)
	rawPath = singleJoiningSlash(apath, bpath)
	return path, rawPath
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
