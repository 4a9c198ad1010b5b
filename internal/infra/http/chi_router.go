package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// chiRouter implements Router using Chi.
type chiRouter struct {
	mux         chi.Router
	middlewares []Middleware
}

var _ Router = (*chiRouter)(nil)

// NewChiRouter creates a Router backed by Chi.
func NewChiRouter() Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.CleanPath)
	r.Use(chimw.StripSlashes)

	return &chiRouter{
		mux:         r,
		middlewares: []Middleware{},
	}
}

func (r *chiRouter) GET(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Get(path, r.wrapHandler(handler, middlewares...))
}

func (r *chiRouter) POST(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Post(path, r.wrapHandler(handler, middlewares...))
}

func (r *chiRouter) PUT(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Put(path, r.wrapHandler(handler, middlewares...))
}

func (r *chiRouter) PATCH(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Patch(path, r.wrapHandler(handler, middlewares...))
}

func (r *chiRouter) DELETE(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Delete(path, r.wrapHandler(handler, middlewares...))
}

func (r *chiRouter) Group(prefix string, fn func(Router), middlewares ...Middleware) {
	r.mux.Route(prefix, func(cr chi.Router) {
		for _, mw := range middlewares {
			cr.Use(mw)
		}
		fn(&chiRouter{mux: cr, middlewares: middlewares})
	})
}

func (r *chiRouter) Use(middlewares ...Middleware) {
	r.middlewares = append(r.middlewares, middlewares...)
	for _, mw := range middlewares {
		r.mux.Use(mw)
	}
}

func (r *chiRouter) With(middlewares ...Middleware) Router {
	chiMiddlewares := make([]func(http.Handler) http.Handler, len(middlewares))
	for i, mw := range middlewares {
		chiMiddlewares[i] = mw
	}
	return &chiRouter{
		mux:         r.mux.With(chiMiddlewares...),
		middlewares: append(r.middlewares, middlewares...),
	}
}

func (r *chiRouter) Handler() http.Handler {
	return r.mux
}

// wrapHandler wraps a handler with route-specific middleware.
func (r *chiRouter) wrapHandler(h http.HandlerFunc, middlewares ...Middleware) http.HandlerFunc {
	if len(middlewares) == 0 {
		return h
	}
	return Chain(h, middlewares...).ServeHTTP
}
