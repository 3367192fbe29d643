package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/fetchbridge/pkg/auth"
	"github.com/rhuss/fetchbridge/pkg/auth/apikey"
	"github.com/rhuss/fetchbridge/pkg/auth/jwt"
	"github.com/rhuss/fetchbridge/pkg/auth/noop"
	"github.com/rhuss/fetchbridge/pkg/config"
	"github.com/rhuss/fetchbridge/pkg/handler/echo"
	"github.com/rhuss/fetchbridge/pkg/handler/proxy"
	"github.com/rhuss/fetchbridge/pkg/handler/static"
	"github.com/rhuss/fetchbridge/pkg/observability"
	"github.com/rhuss/fetchbridge/pkg/transport"
	transporthttp "github.com/rhuss/fetchbridge/pkg/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the fetchbridge HTTP server with the configured handler.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (env: FETCHBRIDGE_PORT)")
	serveCmd.Flags().String("handler", "", "handler type: echo, proxy, static (env: FETCHBRIDGE_HANDLER)")
	serveCmd.Flags().String("upstream", "", "upstream URL for the proxy handler (env: FETCHBRIDGE_UPSTREAM_URL)")
	serveCmd.Flags().String("static-root", "", "directory served by the static handler (env: FETCHBRIDGE_STATIC_ROOT)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	h, closeHandler, err := buildHandler(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeHandler() }()

	if mw := buildAuth(cfg); mw != nil {
		h = mw(h)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(":" + strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithWriteTimeout(cfg.Server.WriteTimeout),
		transporthttp.WithDefaultProto(cfg.Adapter.DefaultProto),
		transporthttp.WithLogger(slog.Default()),
	}
	metrics := cfg.Observability.Metrics
	separateMetrics := metrics.Enabled && metrics.Port != 0
	switch {
	case separateMetrics:
		opts = append(opts, transporthttp.WithMiddleware(observability.MetricsMiddleware))
	case metrics.Enabled:
		opts = append(opts, transporthttp.WithMetrics(metrics.Path))
	}
	srv := transporthttp.NewServer(h, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	slog.Info("starting fetchbridge",
		"addr", ln.Addr().String(),
		"handler", cfg.Handler.Type,
		"auth", cfg.Auth.Type,
		"default_proto", cfg.Adapter.DefaultProto,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return srv.Run(gctx, ln)
	})
	if separateMetrics {
		g.Go(func() error {
			return serveMetrics(gctx, ":"+strconv.Itoa(metrics.Port), metrics.Path)
		})
	}
	return g.Wait()
}

// applyFlags copies explicitly set serve flags into cfg and revalidates it.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("handler") {
		cfg.Handler.Type, _ = flags.GetString("handler")
	}
	if flags.Changed("upstream") {
		cfg.Handler.Proxy.UpstreamURL, _ = flags.GetString("upstream")
	}
	if flags.Changed("static-root") {
		cfg.Handler.Static.Root, _ = flags.GetString("static-root")
	}
	return cfg.Validate()
}

// buildHandler creates the configured application handler. The returned
// function releases its resources.
func buildHandler(cfg *config.Config) (transport.Handler, func() error, error) {
	nopClose := func() error { return nil }

	switch cfg.Handler.Type {
	case "echo":
		return echo.New(), nopClose, nil
	case "proxy":
		h, err := proxy.New(proxy.FromConfig(cfg.Handler.Proxy))
		if err != nil {
			return nil, nil, fmt.Errorf("creating proxy handler: %w", err)
		}
		slog.Info("proxying", "upstream", cfg.Handler.Proxy.UpstreamURL, "timeout", cfg.Handler.Proxy.Timeout)
		return h, nopClose, nil
	case "static":
		h, err := static.New(cfg.Handler.Static.Root, cfg.Handler.Static.Index)
		if err != nil {
			return nil, nil, fmt.Errorf("creating static handler: %w", err)
		}
		slog.Info("serving files", "root", cfg.Handler.Static.Root)
		return h, h.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown handler type %q", cfg.Handler.Type)
	}
}

// buildAuth returns the authentication middleware for cfg, or nil when
// neither authentication nor rate limiting is configured. With auth type
// "none" every caller shares the anonymous identity and its bucket.
func buildAuth(cfg *config.Config) transport.Middleware {
	rl := cfg.Auth.RateLimit
	limited := rl.RequestsPerSecond > 0 || len(rl.Tiers) > 0

	var authn auth.Authenticator
	switch cfg.Auth.Type {
	case "apikey":
		authn = apikey.FromConfig(cfg.Auth.APIKeys)
	case "jwt":
		authn = jwt.FromConfig(cfg.Auth.JWT)
	default:
		if !limited {
			return nil
		}
		authn = &noop.Authenticator{}
	}

	chain := &auth.AuthChain{
		Authenticators:  []auth.Authenticator{authn},
		DefaultDecision: auth.No,
	}

	var limiter auth.RateLimiter
	if limited {
		tiers := make(map[string]auth.TierConfig, len(rl.Tiers))
		for name, t := range rl.Tiers {
			tiers[name] = auth.TierConfig{RequestsPerSecond: t.RequestsPerSecond, Burst: t.Burst}
		}
		limiter = auth.NewTokenBucketLimiter(tiers, auth.TierConfig{
			RequestsPerSecond: rl.RequestsPerSecond,
			Burst:             rl.Burst,
		})
	}

	slog.Info("authentication enabled",
		"type", cfg.Auth.Type,
		"rate_limited", limiter != nil,
		"required_scopes", cfg.Auth.RequiredScopes,
	)
	return auth.Middleware(chain, auth.Options{
		Limiter:        limiter,
		BypassPaths:    auth.DefaultBypassPaths,
		RequiredScopes: cfg.Auth.RequiredScopes,
	})
}

// serveMetrics serves the Prometheus registry on its own listener until
// ctx is done.
func serveMetrics(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle("GET "+path, observability.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics server starting", "addr", addr, "path", path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
