package http

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/rhuss/fetchbridge/pkg/fetch"
	"github.com/rhuss/fetchbridge/pkg/transport"
)

// fakeIncoming is a hand-written IncomingMessage.
type fakeIncoming struct {
	method     string
	headers    []fetch.RawHeader
	requestURI string
	body       io.ReadCloser
	ctx        context.Context
}

func (m *fakeIncoming) Method() string                { return m.method }
func (m *fakeIncoming) RawHeaders() []fetch.RawHeader { return m.headers }
func (m *fakeIncoming) RequestURI() string            { return m.requestURI }
func (m *fakeIncoming) Body() io.ReadCloser           { return m.body }

func (m *fakeIncoming) Context() context.Context {
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

func incoming(method, uri string, headers ...fetch.RawHeader) *fakeIncoming {
	return &fakeIncoming{method: method, requestURI: uri, headers: headers}
}

func single(name, value string) fetch.RawHeader {
	return fetch.RawHeader{Name: name, Value: fetch.Single(value)}
}

func multi(name string, values ...string) fetch.RawHeader {
	return fetch.RawHeader{Name: name, Value: fetch.Multi(values...)}
}

// fakeOutgoing is a hand-written OutgoingMessage that records everything
// written to it.
type fakeOutgoing struct {
	mu sync.Mutex

	status     int
	statusText string
	headers    fetch.Headers
	heads      int
	body       bytes.Buffer
	writes     int
	flushes    int
	ended      bool

	// writeErr fails every Write when set.
	writeErr error

	// writeGate, when set, blocks each Write until a value is received.
	writeGate chan struct{}

	// closeOnRegister fires the close notification as soon as it is
	// registered.
	closeOnRegister bool
	onClose         func()
}

func (o *fakeOutgoing) WriteHead(status int, statusText string, headers fetch.Headers) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.heads > 0 {
		return transport.ErrHeadersWritten
	}
	o.heads++
	o.status = status
	o.statusText = statusText
	o.headers = headers
	return nil
}

func (o *fakeOutgoing) Write(p []byte) (int, error) {
	if o.writeGate != nil {
		<-o.writeGate
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes++
	if o.writeErr != nil {
		return 0, o.writeErr
	}
	return o.body.Write(p)
}

func (o *fakeOutgoing) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flushes++
	return nil
}

func (o *fakeOutgoing) End() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended = true
	return nil
}

func (o *fakeOutgoing) OnClose(fn func()) func() bool {
	if o.closeOnRegister {
		fn()
		return func() bool { return false }
	}
	o.mu.Lock()
	o.onClose = fn
	o.mu.Unlock()
	return func() bool {
		o.mu.Lock()
		defer o.mu.Unlock()
		registered := o.onClose != nil
		o.onClose = nil
		return registered
	}
}

// closeConn fires the close notification, as a dropped connection would.
func (o *fakeOutgoing) closeConn() {
	o.mu.Lock()
	fn := o.onClose
	o.onClose = nil
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (o *fakeOutgoing) bodyString() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.body.String()
}

// trackingBody is a response body that records whether it was closed and
// how many times it was read.
type trackingBody struct {
	r      io.Reader
	mu     sync.Mutex
	reads  int
	closed bool

	// afterRead runs after each successful read.
	afterRead func(n int)
}

func (b *trackingBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.mu.Lock()
	b.reads++
	b.mu.Unlock()
	if n > 0 && b.afterRead != nil {
		b.afterRead(n)
	}
	return n, err
}

func (b *trackingBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *trackingBody) readCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

func (b *trackingBody) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func respond(resp *fetch.Response, err error) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
		return resp, err
	})
}
