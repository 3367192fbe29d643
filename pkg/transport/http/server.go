package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuss/fetchbridge/pkg/observability"
	"github.com/rhuss/fetchbridge/pkg/transport"
)

// Server wraps an http.Server with the adapter and manages the full
// lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	adapter    *Adapter
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	DefaultProto    string

	// MetricsPath mounts the Prometheus handler and enables request
	// metrics when non-empty.
	MetricsPath string

	// Middleware wraps the adapter's HTTP handler, outermost first. Health
	// and metrics endpoints are not wrapped.
	Middleware []func(http.Handler) http.Handler

	Logger *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
// Read and write timeouts are off: streamed bodies may take arbitrarily
// long, and the adapter itself imposes no timeouts.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30 * time.Second,
		DefaultProto:    DefaultProto,
		Logger:          slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithReadTimeout sets the http.Server read timeout.
func WithReadTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ReadTimeout = d }
}

// WithWriteTimeout sets the http.Server write timeout.
func WithWriteTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.WriteTimeout = d }
}

// WithDefaultProto sets the scheme assumed when x-forwarded-proto is absent.
func WithDefaultProto(proto string) ServerOption {
	return func(s *Server) { s.config.DefaultProto = proto }
}

// WithMetrics serves Prometheus metrics on path and records request metrics.
func WithMetrics(path string) ServerOption {
	return func(s *Server) { s.config.MetricsPath = path }
}

// WithMiddleware appends HTTP middleware, such as authentication, in front
// of the adapter.
func WithMiddleware(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.config.Middleware = append(s.config.Middleware, mw...) }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// NewServer creates a new server for handler with the given options.
// Default middleware (recovery, request ID, logging) is applied
// automatically.
func NewServer(handler transport.Handler, opts ...ServerOption) *Server {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	defaultMW := []transport.Middleware{
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
	}

	s.adapter = NewAdapter(handler, Config{
		DefaultProto: s.config.DefaultProto,
		MaxBodySize:  s.config.MaxBodySize,
		Logger:       s.logger,
	}, defaultMW...)

	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})

	var app http.Handler = s.adapter.Handler()
	for i := len(s.config.Middleware) - 1; i >= 0; i-- {
		app = s.config.Middleware[i](app)
	}
	if s.config.MetricsPath != "" {
		mux.Handle("GET "+s.config.MetricsPath, observability.Handler())
		app = observability.MetricsMiddleware(app)
	}
	mux.Handle("/", app)

	return mux
}

// Adapter returns the adapter served by this server.
func (s *Server) Adapter() *Adapter {
	return s.adapter
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then gracefully shuts down,
// waiting for in-flight requests to complete within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Run(ctx, ln)
}

// ServeOn starts the server on the given listener and blocks until a
// shutdown signal is received.
func (s *Server) ServeOn(ln net.Listener) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx, ln)
}

// Run serves on ln until ctx is done, then shuts down gracefully. It also
// returns when the server is stopped through Shutdown.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context. If ctx
// ends before all requests have completed, every in-flight request is
// aborted with transport.ErrShutdown and the remaining connections are
// closed; the context error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if err == nil || !errors.Is(err, ctx.Err()) {
		return err
	}

	n := s.adapter.InFlight().CancelAll()
	s.logger.Warn("shutdown deadline exceeded, aborting in-flight requests", slog.Int("count", n))
	return errors.Join(err, s.httpServer.Close())
}
