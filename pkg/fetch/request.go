package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

var (
	// ErrBodyNotAllowed is returned by NewRequest when a body is supplied
	// for a GET or HEAD request.
	ErrBodyNotAllowed = errors.New("fetch: request with GET/HEAD method cannot have body")

	// ErrRelativeURL is returned by NewRequest when the URL is not absolute.
	ErrRelativeURL = errors.New("fetch: request URL must be absolute")
)

// RequestInit holds the optional parts of a Request, in the manner of the
// Fetch API's RequestInit dictionary.
type RequestInit struct {
	// Method defaults to GET.
	Method string

	Headers Headers

	// Body is passed through without buffering. It must be nil for GET
	// and HEAD.
	Body io.Reader

	// Signal is created unset when nil.
	Signal *Signal
}

// Request is an immutable Fetch-style HTTP request.
// Accessors return copies, so callers cannot mutate a Request after
// construction.
type Request struct {
	method  string
	url     *url.URL
	headers Headers
	body    io.ReadCloser
	signal  *Signal

	// values, when set, supplies request-scoped values ahead of the
	// signal's context.
	values context.Context
}

// NewRequest constructs a Request for an absolute URL.
func NewRequest(rawURL string, init RequestInit) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: parsing request URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrRelativeURL, rawURL)
	}

	method := strings.ToUpper(init.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.ReadCloser
	if init.Body != nil {
		if !MethodAllowsBody(method) {
			return nil, ErrBodyNotAllowed
		}
		if rc, ok := init.Body.(io.ReadCloser); ok {
			body = rc
		} else {
			body = io.NopCloser(init.Body)
		}
	}

	signal := init.Signal
	if signal == nil {
		signal = NewSignal(context.Background())
	}

	return &Request{
		method:  method,
		url:     u,
		headers: init.Headers.Clone(),
		body:    body,
		signal:  signal,
	}, nil
}

// MethodAllowsBody reports whether a request with the given method may carry
// a body. GET and HEAD never do.
func MethodAllowsBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return false
	default:
		return true
	}
}

// Method returns the upper-cased request method.
func (r *Request) Method() string { return r.method }

// URL returns a copy of the absolute request URL.
func (r *Request) URL() *url.URL {
	u := *r.url
	if r.url.User != nil {
		user := *r.url.User
		u.User = &user
	}
	return &u
}

// Href returns the serialized request URL.
func (r *Request) Href() string { return r.url.String() }

// Headers returns a copy of the request headers.
func (r *Request) Headers() Headers { return r.headers.Clone() }

// Header returns the combined value of one request header.
func (r *Request) Header(name string) string { return r.headers.Get(name) }

// Body returns the request body stream, or nil when the request has none.
// The stream can be consumed once.
func (r *Request) Body() io.ReadCloser { return r.body }

// HasBody reports whether the request carries a body stream.
func (r *Request) HasBody() bool { return r.body != nil }

// Signal returns the request's cancellation token.
func (r *Request) Signal() *Signal { return r.signal }

// Context returns a context that is cancelled when the request's Signal is
// set. It carries the values of the context the Signal was created from
// and, after WithContext, the values of that context first.
func (r *Request) Context() context.Context {
	if r.values == nil {
		return r.signal.Context()
	}
	return valuesContext{Context: r.signal.Context(), values: r.values}
}

// WithContext returns a shallow copy of r whose Context also carries the
// values of ctx. Cancellation keeps following r's Signal, so ctx is
// normally derived from r.Context().
func (r *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic("fetch: nil context")
	}
	r2 := *r
	r2.values = ctx
	return &r2
}

// valuesContext is cancelled with the embedded context and looks values up
// in values first.
type valuesContext struct {
	context.Context
	values context.Context
}

func (c valuesContext) Value(key any) any {
	if v := c.values.Value(key); v != nil {
		return v
	}
	return c.Context.Value(key)
}
