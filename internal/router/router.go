// Package router maps navigation locations to registered page handlers.
//
// Patterns are "/"-separated segments. A segment starting with ':' is a named
// parameter and accepts any value; every other segment must match literally.
// Registrations are tried in the order they were made and the first structural
// match wins. There is no specificity ranking: "/a/:x" registered before "/a/b"
// shadows it.
package router

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
)

// ParamPrefix marks a named parameter segment in a pattern.
const ParamPrefix = ":"

// ErrAlreadyStarted is returned when Start is called twice on one Router.
var ErrAlreadyStarted = errors.New("router already started")

// Params maps parameter names to their percent-decoded path values.
type Params map[string]string

// Handler runs when a navigation matches its pattern.
type Handler func(ctx context.Context, params Params) error

// NotFoundHandler runs when no registration matches a path.
type NotFoundHandler func(ctx context.Context, path string) error

// Match is the result of a successful lookup.
type Match struct {
	Pattern string
	Handler Handler
	Params  Params
}

type registration struct {
	pattern  string
	segments []string
	handler  Handler
}

// Router owns an ordered registration list and, when given a NavigationState,
// drives handler invocation on navigation events.
type Router struct {
	mu       sync.RWMutex
	routes   []registration
	notFound NotFoundHandler

	nav *NavigationState

	// seq is the number of the most recently started sequenced dispatch.
	seq      atomic.Uint64
	cancelMu sync.Mutex
	cancel   context.CancelFunc
	root     context.Context
	commitMu sync.Mutex
	inflight sync.WaitGroup
	started  atomic.Bool
}

// Option configures a Router.
type Option func(*Router)

// WithNavigation attaches the navigation state read by Start and NavigateTo.
func WithNavigation(nav *NavigationState) Option {
	return func(r *Router) { r.nav = nav }
}

// WithNotFound sets the fallback for unmatched paths.
func WithNotFound(h NotFoundHandler) Option {
	return func(r *Router) { r.notFound = h }
}

// New creates a Router. Without WithNavigation it starts at "/".
func New(opts ...Option) *Router {
	r := &Router{}
	for _, opt := range opts {
		opt(r)
	}
	if r.nav == nil {
		r.nav = NewNavigationState("")
	}
	return r
}

// Navigation returns the navigation state driven by this Router.
func (r *Router) Navigation() *NavigationState {
	return r.nav
}

// Register appends a pattern to the registration list.
// Patterns are not validated.
// POST: the registration is tried after all earlier ones
func (r *Router) Register(pattern string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, registration{
		pattern:  pattern,
		segments: splitSegments(pattern),
		handler:  h,
	})
}

// Patterns returns the registered patterns in registration order.
func (r *Router) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.routes))
	for i, reg := range r.routes {
		out[i] = reg.pattern
	}
	return out
}

// Match returns the first registration whose pattern structurally matches path.
// path must already be stripped of the location prefix marker.
// INVARIANT: the registration list is not mutated
func (r *Router) Match(path string) (Match, bool) {
	parts := splitSegments(path)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, reg := range r.routes {
		params, ok := matchSegments(reg.segments, parts)
		if ok {
			return Match{Pattern: reg.pattern, Handler: reg.handler, Params: params}, true
		}
	}
	return Match{}, false
}

// Handle matches path and invokes the handler (or the not-found fallback)
// without sequencing. Request-driven transports, where every request is its
// own navigation, use this instead of Dispatch.
func (r *Router) Handle(ctx context.Context, path string) error {
	return r.run(ctx, path)
}

func (r *Router) handleNotFound(ctx context.Context, path string) error {
	if r.notFound == nil {
		slog.Debug("route_not_found", "path", path)
		return nil
	}
	return r.notFound(ctx, path)
}

func matchSegments(pattern, path []string) (Params, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}
	params := Params{}
	for i, seg := range pattern {
		if name, ok := strings.CutPrefix(seg, ParamPrefix); ok {
			value, err := url.PathUnescape(path[i])
			if err != nil {
				return nil, false
			}
			params[name] = value
			continue
		}
		if seg != path[i] {
			return nil, false
		}
	}
	return params, true
}

func splitSegments(p string) []string {
	raw := strings.Split(p, "/")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
