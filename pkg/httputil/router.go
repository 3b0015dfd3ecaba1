package httputil

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"sync"
)

// Middleware wraps an http.Handler to modify or enhance its behavior.
type Middleware func(http.Handler) http.Handler

// Router registers method-qualified patterns (Go 1.22 routing) on a
// ServeMux with a shared middleware chain and an optional path prefix.
type Router struct {
	mux        *http.ServeMux
	server     *http.Server
	prefix     string
	middleware []Middleware
	mu         sync.RWMutex
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{
		mux:    http.NewServeMux(),
		server: &http.Server{},
	}
}

// Use appends middleware to the chain. Middleware is applied in the order
// it was added, outermost first.
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)
}

// Group returns a sub-router whose patterns are registered under prefix.
// The sub-router inherits the parent's middleware.
func (r *Router) Group(prefix string) *Router {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Router{
		mux:        r.mux,
		middleware: slices.Clone(r.middleware),
		server:     r.server,
		prefix:     r.prefix + prefix,
	}
}

// Handle registers a handler for a "METHOD /pattern" string. A handler on a
// group with prefix /v2 registered as "GET /corpora" resolves to
// "GET /v2/corpora".
func (r *Router) Handle(methodPattern string, handler http.Handler) {
	parts := strings.SplitN(methodPattern, " ", 2)
	if len(parts) != 2 {
		log.Fatalf("invalid method pattern: %s", methodPattern)
	}
	method, pattern := parts[0], parts[1]

	r.mu.RLock()
	defer r.mu.RUnlock()

	finalHandler := handler
	for i := len(r.middleware) - 1; i >= 0; i-- {
		finalHandler = r.middleware[i](finalHandler)
	}
	r.mux.Handle(fmt.Sprintf("%s %s%s", method, r.prefix, pattern), finalHandler)
}

// HandleFunc is Handle for plain handler functions.
func (r *Router) HandleFunc(methodPattern string, handler func(http.ResponseWriter, *http.Request)) {
	r.Handle(methodPattern, http.HandlerFunc(handler))
}

// Handler returns the router as an http.Handler for use in tests.
func (r *Router) Handler() http.Handler {
	return r.mux
}

// ListenAndServe starts the HTTP server on addr.
func (r *Router) ListenAndServe(addr string) error {
	r.server.Addr = addr
	r.server.Handler = r.mux
	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (r *Router) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}
