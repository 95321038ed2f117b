// Package kit holds the small transport-agnostic plumbing shared by the
// HTTP and MCP surfaces: the Endpoint abstraction, middleware chaining,
// context carriers, and the MCP tool adapter.
package kit

import "context"

// Endpoint is one transport-agnostic operation: a typed request in, a
// typed response out. HTTP handlers and MCP tools both terminate in an
// Endpoint.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first one listed is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
