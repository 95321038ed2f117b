// Package shield provides the HTTP security middleware for the sketchd
// daemon: security headers, per-IP rate limiting, body limits, and request
// tracing.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
//	r.Use(shield.MaxJSONBody(1 << 20))
//	r.Use(shield.TraceID)
//	r.Use(shield.NewRateLimiter(db, "/healthz").Middleware)
//
// Or apply the default stack in one call:
//
//	for _, mw := range shield.DefaultStack(db) {
//	    r.Use(mw)
//	}
package shield

import (
	"database/sql"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultStack returns the standard middleware stack for the daemon.
// Ordered: SecurityHeaders → MaxJSONBody → TraceID → RateLimiter.
// The rate limiter skips /healthz. Call the limiter's StartReloader
// separately if rules change at runtime.
func DefaultStack(db *sql.DB) []func(http.Handler) http.Handler {
	rl := NewRateLimiter(db, "/healthz")
	return []func(http.Handler) http.Handler{
		SecurityHeaders(DefaultHeaders()),
		MaxJSONBody(1 << 20),
		TraceID,
		rl.Middleware,
	}
}
