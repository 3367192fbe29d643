package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rhuss/fetchbridge/pkg/debug"
	"github.com/rhuss/fetchbridge/pkg/fetch"
	"github.com/rhuss/fetchbridge/pkg/observability"
	"github.com/rhuss/fetchbridge/pkg/transport"
)

// Adapter bridges net/http style request/response pairs to a Fetch-style
// transport.Handler. It holds no per-request state; any number of requests
// may be served concurrently.
type Adapter struct {
	handler  transport.Handler
	builder  requestBuilder
	inflight *transport.InFlightRegistry
	config   Config
	logger   *slog.Logger
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	// DefaultProto is the scheme used when x-forwarded-proto is absent.
	// Empty means DefaultProto ("https").
	DefaultProto string

	// MaxBodySize bounds request bodies read through Handler(). Zero or
	// negative disables the limit.
	MaxBodySize int64

	Logger *slog.Logger
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		DefaultProto: DefaultProto,
		MaxBodySize:  10 << 20, // 10 MB
		Logger:       slog.Default(),
	}
}

// NewAdapter creates an adapter serving handler. Middleware is applied to
// the handler in the given order.
func NewAdapter(handler transport.Handler, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		handler = transport.Chain(middlewares...)(handler)
	}
	if cfg.DefaultProto == "" {
		cfg.DefaultProto = DefaultProto
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		handler:  handler,
		builder:  requestBuilder{defaultProto: cfg.DefaultProto},
		inflight: transport.NewInFlightRegistry(),
		config:   cfg,
		logger:   logger,
	}
}

// InFlight returns the registry of requests currently being served.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// Serve runs one exchange: build the Fetch-style request from in, hand it to
// the handler and write the response to out. It returns once the response
// has been written or the exchange stopped, with the state it ended in:
//
//   - StateDone, nil: the response was fully written.
//   - StateAborted, nil: the signal fired first; work was discontinued.
//   - StateReceived, *transport.BuildError: the request could not be built.
//   - StateBuilt, err: the handler failed; nothing was written.
//   - StateHandled, *transport.StreamError: writing the response failed.
func (a *Adapter) Serve(in IncomingMessage, out OutgoingMessage) (transport.State, error) {
	var lc transport.Lifecycle

	req, stop, err := a.builder.build(in, out)
	if err != nil {
		return lc.Current(), &transport.BuildError{Err: err}
	}
	defer stop()
	lc.MustAdvance(transport.StateBuilt)

	signal := req.Signal()
	key := uuid.NewString()
	a.inflight.Register(key, func() { signal.Abort(transport.ErrShutdown) })
	defer a.inflight.Remove(key)

	debug.Log("transport", "request built",
		"method", req.Method(), "url", debug.Truncate(req.Href(), 512), "has_body", req.HasBody())
	if debug.TraceIsEnabled("headers") {
		debug.Raw("headers", formatHeaderBlock(req.Method()+" "+req.Href(), req.Headers()))
	}

	resp, err := a.handler.Handle(req.Context(), req)
	if signal.Aborted() {
		if resp != nil && resp.HasBody() {
			resp.Body().Close()
		}
		lc.MustAdvance(transport.StateAborted)
		recordAbort(signal.Reason())
		return lc.Current(), nil
	}
	if err != nil {
		if resp != nil && resp.HasBody() {
			resp.Body().Close()
		}
		return lc.Current(), err
	}
	if resp == nil {
		return lc.Current(), transport.ErrNilResponse
	}
	lc.MustAdvance(transport.StateHandled)

	debug.Log("streaming", "writing response",
		"status", resp.Status(), "has_body", resp.HasBody())
	if debug.TraceIsEnabled("headers") {
		debug.Raw("headers", formatHeaderBlock(strconv.Itoa(resp.Status())+" "+resp.StatusText(), resp.Headers()))
	}

	written, err := writeResponse(signal, out, resp)
	if err != nil {
		return lc.Current(), err
	}
	if !written {
		lc.MustAdvance(transport.StateAborted)
		recordAbort(signal.Reason())
		return lc.Current(), nil
	}
	lc.MustAdvance(transport.StateWritten)
	lc.MustAdvance(transport.StateDone)
	return lc.Current(), nil
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest.
//
// Construction and handler errors, which happen before anything is written,
// produce the generic failure response, except a request body over
// MaxBodySize, which produces 413. Stream errors and aborts are only
// logged: the status line is already on the wire, or nobody is listening.
func (a *Adapter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.config.MaxBodySize > 0 && r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
		}

		out := NewOutgoingMessage(w, r)
		state, err := a.Serve(NewIncomingMessage(r), out)
		observability.ResponseBodyBytesTotal.Add(float64(out.BytesWritten()))

		attrs := []any{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("state", state.String()),
		}

		switch {
		case err == nil && state == transport.StateAborted:
			observability.RequestOutcomesTotal.WithLabelValues(state.String(), "aborted").Inc()
			a.logger.Debug("request aborted", attrs...)

		case err == nil:
			observability.RequestOutcomesTotal.WithLabelValues(state.String(), "ok").Inc()

		default:
			observability.RequestOutcomesTotal.WithLabelValues(state.String(), "error").Inc()
			attrs = append(attrs, slog.String("error", err.Error()))

			var streamErr *transport.StreamError
			if errors.As(err, &streamErr) {
				observability.StreamErrorsTotal.WithLabelValues(streamErr.Op).Inc()
				a.logger.Warn("response stream failed", attrs...)
				return
			}

			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				a.logger.Warn("request body too large", attrs...)
				if !out.HeadersWritten() {
					transport.WriteAPIError(w, transport.NewPayloadTooLargeError(maxErr.Limit))
				}
				return
			}

			a.logger.Error("request failed", attrs...)
			if !out.HeadersWritten() {
				transport.WriteAPIError(w, transport.GenericFailure())
			}
		}
	})
}

// recordAbort counts an aborted request by reason.
func recordAbort(reason error) {
	label := "other"
	switch {
	case errors.Is(reason, transport.ErrConnectionClosed):
		label = "connection_closed"
	case errors.Is(reason, transport.ErrShutdown):
		label = "shutdown"
	}
	observability.AbortedTotal.WithLabelValues(label).Inc()
	debug.Log("transport", "request aborted", "reason", reason)
}

// formatHeaderBlock renders a header block one line per entry, the way it
// appears on the wire.
func formatHeaderBlock(first string, headers fetch.Headers) string {
	var b strings.Builder
	b.WriteString(first)
	for name, value := range headers.All() {
		b.WriteString("\n")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
	}
	return b.String()
}
