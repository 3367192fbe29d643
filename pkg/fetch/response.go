package fetch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// ErrNullBodyStatus means a body was supplied for a status that cannot
// carry one.
var ErrNullBodyStatus = errors.New("fetch: response status cannot have a body")

// nullBodyStatus reports whether a response with status never has a body.
func nullBodyStatus(status int) bool {
	switch status {
	case http.StatusSwitchingProtocols, http.StatusEarlyHints,
		http.StatusNoContent, http.StatusResetContent, http.StatusNotModified:
		return true
	}
	return false
}

// ResponseInit holds the optional parts of a Response.
type ResponseInit struct {
	// Status defaults to 200.
	Status int

	// StatusText defaults to the canonical reason phrase for Status.
	StatusText string

	Headers Headers
}

// Response is an immutable Fetch-style HTTP response. The body is produced
// lazily by whoever reads it and may be nil.
type Response struct {
	status     int
	statusText string
	headers    Headers
	body       io.ReadCloser
}

// NewResponse constructs a Response. A nil body yields a response without a
// body; the writer then ends the message right after the headers. A body
// for 101, 103, 204, 205 or 304 is rejected with ErrNullBodyStatus.
func NewResponse(body io.Reader, init ResponseInit) (*Response, error) {
	status := init.Status
	if status == 0 {
		status = http.StatusOK
	}
	if status < 100 || status > 999 {
		return nil, fmt.Errorf("fetch: invalid response status %d", status)
	}

	statusText := init.StatusText
	if statusText == "" {
		statusText = http.StatusText(status)
	}
	if strings.ContainsAny(statusText, "\r\n") {
		return nil, fmt.Errorf("fetch: invalid status text %q", statusText)
	}

	if body != nil && nullBodyStatus(status) {
		return nil, fmt.Errorf("%w: %d", ErrNullBodyStatus, status)
	}

	var rc io.ReadCloser
	if body != nil {
		if c, ok := body.(io.ReadCloser); ok {
			rc = c
		} else {
			rc = io.NopCloser(body)
		}
	}

	return &Response{
		status:     status,
		statusText: statusText,
		headers:    init.Headers.Clone(),
		body:       rc,
	}, nil
}

// Text returns a response with a text/plain body.
func Text(status int, body string) *Response {
	h := NewHeaders(
		"content-type", "text/plain; charset=utf-8",
		"content-length", strconv.Itoa(len(body)),
	)
	resp, err := NewResponse(strings.NewReader(body), ResponseInit{Status: status, Headers: h})
	if err != nil {
		panic(err)
	}
	return resp
}

// JSON returns a response whose body is the JSON encoding of v.
func JSON(status int, v any) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("fetch: encoding JSON body: %w", err)
	}
	h := NewHeaders(
		"content-type", "application/json",
		"content-length", strconv.Itoa(len(data)),
	)
	return NewResponse(bytes.NewReader(data), ResponseInit{Status: status, Headers: h})
}

// Status returns the status code.
func (r *Response) Status() int { return r.status }

// StatusText returns the reason phrase.
func (r *Response) StatusText() string { return r.statusText }

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool { return r.status >= 200 && r.status < 300 }

// Headers returns a copy of the response headers.
func (r *Response) Headers() Headers { return r.headers.Clone() }

// Body returns the body stream, or nil when the response has no body.
func (r *Response) Body() io.ReadCloser { return r.body }

// HasBody reports whether the response carries a body stream.
func (r *Response) HasBody() bool { return r.body != nil }

// WithHeader returns a copy of r with one more header entry appended. The
// copy shares r's body stream.
func (r *Response) WithHeader(name, value string) *Response {
	cp := *r
	cp.headers = r.headers.Clone()
	cp.headers.Append(name, value)
	return &cp
}
