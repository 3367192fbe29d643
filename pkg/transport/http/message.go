package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"sync"

	"github.com/rhuss/fetchbridge/pkg/fetch"
	"github.com/rhuss/fetchbridge/pkg/transport"
)

// IncomingMessage is the socket-style request side of one exchange. The
// adapter borrows it for the duration of one request and never mutates it.
type IncomingMessage interface {
	// Method returns the request method as received.
	Method() string

	// RawHeaders returns the header entries in a stable order. Names are
	// case-insensitive; repeated headers arrive as one Multi entry.
	RawHeaders() []fetch.RawHeader

	// RequestURI returns the raw path and query, e.g. "/a?b=1".
	RequestURI() string

	// Body returns the request body stream. It may be nil.
	Body() io.ReadCloser

	// Context returns the transport context. Its values are carried into
	// the Fetch-style request; its cancellation is not.
	Context() context.Context
}

// OutgoingMessage is the socket-style response side of one exchange.
type OutgoingMessage interface {
	// WriteHead sends status, status text and headers as one block.
	// Repeated header names produce separate header lines. A second call
	// returns transport.ErrHeadersWritten.
	WriteHead(status int, statusText string, headers fetch.Headers) error

	// Write sends body bytes. It blocks while the peer is not accepting
	// data.
	Write(p []byte) (int, error)

	// Flush pushes buffered body bytes to the peer.
	Flush() error

	// End marks the message complete. No writes are accepted afterwards.
	End() error

	// OnClose registers fn to run once when the underlying connection
	// closes. The returned stop function unregisters it and reports whether
	// it did so before fn started.
	OnClose(fn func()) (stop func() bool)
}

// errMessageEnded is returned by writes after End.
var errMessageEnded = errors.New("outgoing message already ended")

// requestMessage exposes an *http.Request as an IncomingMessage.
type requestMessage struct {
	r *http.Request
}

var _ IncomingMessage = (*requestMessage)(nil)

// NewIncomingMessage wraps r. net/http keeps headers in a map and moves Host
// out of it, so the header list is rebuilt with host re-inserted and names
// in sorted order.
func NewIncomingMessage(r *http.Request) IncomingMessage {
	return &requestMessage{r: r}
}

func (m *requestMessage) Method() string { return m.r.Method }

func (m *requestMessage) RawHeaders() []fetch.RawHeader {
	names := make([]string, 0, len(m.r.Header)+1)
	for name := range m.r.Header {
		names = append(names, name)
	}
	hasHost := m.r.Host != "" && len(m.r.Header.Values("Host")) == 0
	if hasHost {
		names = append(names, "Host")
	}
	slices.Sort(names)

	raw := make([]fetch.RawHeader, 0, len(names))
	for _, name := range names {
		if name == "Host" && hasHost {
			raw = append(raw, fetch.RawHeader{Name: name, Value: fetch.Single(m.r.Host)})
			continue
		}
		values := m.r.Header[name]
		switch len(values) {
		case 0:
			continue
		case 1:
			raw = append(raw, fetch.RawHeader{Name: name, Value: fetch.Single(values[0])})
		default:
			raw = append(raw, fetch.RawHeader{Name: name, Value: fetch.Multi(values...)})
		}
	}
	return raw
}

func (m *requestMessage) RequestURI() string {
	if m.r.URL != nil {
		return m.r.URL.RequestURI()
	}
	return m.r.RequestURI
}

func (m *requestMessage) Body() io.ReadCloser {
	if m.r.Body == nil || m.r.Body == http.NoBody {
		return nil
	}
	return m.r.Body
}

func (m *requestMessage) Context() context.Context { return m.r.Context() }

// ResponseMessage exposes an http.ResponseWriter as an OutgoingMessage.
//
// net/http always sends the canonical reason phrase for a status code, so
// the status text passed to WriteHead is not put on the wire.
type ResponseMessage struct {
	w   http.ResponseWriter
	rc  *http.ResponseController
	ctx context.Context

	mu          sync.Mutex
	wroteHeader bool
	ended       bool
	written     int64
}

var _ OutgoingMessage = (*ResponseMessage)(nil)

// NewOutgoingMessage wraps w. The close notification fires when the
// request context of r is cancelled, which net/http does when the client
// connection goes away.
func NewOutgoingMessage(w http.ResponseWriter, r *http.Request) *ResponseMessage {
	return &ResponseMessage{
		w:   w,
		rc:  http.NewResponseController(w),
		ctx: r.Context(),
	}
}

func (m *ResponseMessage) WriteHead(status int, _ string, headers fetch.Headers) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.wroteHeader {
		return transport.ErrHeadersWritten
	}
	if m.ended {
		return errMessageEnded
	}
	m.wroteHeader = true
	TranslateOutgoing(headers, m.w.Header())
	m.w.WriteHeader(status)
	return nil
}

func (m *ResponseMessage) Write(p []byte) (int, error) {
	m.mu.Lock()
	ended := m.ended
	m.wroteHeader = true
	m.mu.Unlock()

	if ended {
		return 0, errMessageEnded
	}
	n, err := m.w.Write(p)

	m.mu.Lock()
	m.written += int64(n)
	m.mu.Unlock()
	return n, err
}

func (m *ResponseMessage) Flush() error {
	err := m.rc.Flush()
	if errors.Is(err, http.ErrNotSupported) {
		return nil
	}
	return err
}

// End marks the message complete. net/http finishes the response when the
// handler returns; flushing here would force chunked encoding on bodiless
// responses, so End only closes the message for further writes.
func (m *ResponseMessage) End() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = true
	return nil
}

func (m *ResponseMessage) OnClose(fn func()) (stop func() bool) {
	return context.AfterFunc(m.ctx, fn)
}

// HeadersWritten reports whether a header block or body bytes were sent.
func (m *ResponseMessage) HeadersWritten() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wroteHeader
}

// BytesWritten returns the number of body bytes written so far.
func (m *ResponseMessage) BytesWritten() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}
