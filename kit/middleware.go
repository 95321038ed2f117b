package kit

import (
	"context"
	"log/slog"
	"time"
)

// RequestID assigns a fresh request id to calls that don't carry one.
func RequestID(gen func() string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			if GetRequestID(ctx) == "" {
				ctx = WithRequestID(ctx, gen())
			}
			return next(ctx, req)
		}
	}
}

// Logging logs one line per call with the operation name, transport,
// request id and duration.
func Logging(log *slog.Logger, op string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"op", op,
				"transport", GetTransport(ctx),
				"request_id", GetRequestID(ctx),
				"duration", time.Since(start),
			}
			if err != nil {
				log.Warn("endpoint failed", append(attrs, "error", err)...)
			} else {
				log.Info("endpoint done", attrs...)
			}
			return resp, err
		}
	}
}
