package server

import (
	"net/http"
	"slices"
	"strings"
)

// Middleware decorates a handler.
type Middleware func(http.Handler) http.Handler

// Mountable is a handler that owns a fixed set of ServeMux patterns.
type Mountable interface {
	http.Handler
	Patterns() []string
}

// Chain wraps h so that mw[0] sees the request first.
func Chain(h http.Handler, mw ...Middleware) http.Handler {
	for _, m := range slices.Backward(mw) {
		h = m(h)
	}
	return h
}

// Router registers "METHOD /path" patterns on an [http.ServeMux], wrapping each handler in the
// middleware added so far. Unmatched methods on a known path get 405 from the mux.
type Router struct {
	mux *http.ServeMux
	mw  []Middleware
}

func NewRouter() *Router {
	return &Router{mux: http.NewServeMux()}
}

// Use appends middleware. It only affects routes registered afterwards.
func (r *Router) Use(mw ...Middleware) {
	r.mw = append(r.mw, mw...)
}

func (r *Router) Handle(method, path string, h http.Handler) {
	r.mux.Handle(strings.ToUpper(method)+" "+path, Chain(h, r.mw...))
}

func (r *Router) HandleFunc(method, path string, fn http.HandlerFunc) {
	r.Handle(method, path, fn)
}

// Mount registers m under each of its patterns.
func (r *Router) Mount(m Mountable) {
	h := Chain(m, r.mw...)
	for _, p := range m.Patterns() {
		r.mux.Handle(p, h)
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
