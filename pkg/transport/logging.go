package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/fetchbridge/pkg/fetch"
)

// Logging returns middleware that emits one structured log entry per
// handled request with the method, path, request ID, duration and either
// the response status or the error.
//
// It logs at the handler level: the time spent streaming the body to the
// client is not included. Requests whose signal fired while the handler was
// running are logged as aborted rather than failed.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
			start := time.Now()

			resp, err := next.Handle(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("method", req.Method()),
				slog.String("path", req.URL().Path),
				slog.Duration("duration", time.Since(start)),
			}

			switch {
			case req.Signal().Aborted():
				attrs = append(attrs, slog.Any("reason", req.Signal().Reason()))
				logger.LogAttrs(ctx, slog.LevelInfo, "request aborted", attrs...)
			case err != nil:
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
			case resp != nil:
				attrs = append(attrs, slog.Int("status", resp.Status()))
				logger.LogAttrs(ctx, slog.LevelInfo, "request handled", attrs...)
			}

			return resp, err
		})
	}
}
