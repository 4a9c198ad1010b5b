// Package http hosts the HTTP server, router and transport wiring.
package http

import (
	"net/http"
)

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Router defines the interface for HTTP routing. The abstraction keeps
// application code off the concrete router implementation.
type Router interface {
	// HTTP method handlers with optional route-specific middleware.
	// Middleware is applied in order: first middleware wraps outermost.
	GET(path string, handler http.HandlerFunc, middlewares ...Middleware)
	POST(path string, handler http.HandlerFunc, middlewares ...Middleware)
	PUT(path string, handler http.HandlerFunc, middlewares ...Middleware)
	PATCH(path string, handler http.HandlerFunc, middlewares ...Middleware)
	DELETE(path string, handler http.HandlerFunc, middlewares ...Middleware)

	// Group creates a new route group with prefix and optional
	// middleware that applies to every route in the group.
	Group(prefix string, fn func(Router), middlewares ...Middleware)

	// Use adds middleware applying to all subsequent routes.
	Use(middlewares ...Middleware)

	// With returns a new Router with the given middleware applied.
	With(middlewares ...Middleware) Router

	// Handler returns the http.Handler for use with http.Server.
	Handler() http.Handler
}

// Chain applies middlewares to a handler. The first middleware in the
// list is the outermost.
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
