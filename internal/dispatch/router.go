// Package dispatch routes inbound requests to controllers by path prefix and
// decodes them into calls on the orchestrator and executor handlers.
package dispatch

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Controller serves every request routed to its prefix.
type Controller interface {
	Service(w http.ResponseWriter, r *http.Request)
}

type route struct {
	prefix     string
	controller Controller
}

// Router is an ordered list of (prefix, controller) registrations. Longer
// prefixes are evaluated first; equal lengths keep registration order.
// Requests matching no prefix get 400.
type Router struct {
	mu     sync.RWMutex
	routes []route
	logger *slog.Logger
}

// NewRouter creates an empty Router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{logger: logger.With("component", "router")}
}

// Handle registers c under prefix. Registration is add-only: an empty
// prefix, a nil controller or an already registered prefix is ignored.
func (rt *Router) Handle(prefix string, c Controller) {
	if prefix == "" || c == nil {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	pos := len(rt.routes)
	for i, existing := range rt.routes {
		if existing.prefix == prefix {
			rt.logger.Debug("duplicate route ignored", "prefix", prefix)
			return
		}
		if len(existing.prefix) < len(prefix) && pos == len(rt.routes) {
			pos = i
		}
	}
	rt.routes = append(rt.routes, route{})
	copy(rt.routes[pos+1:], rt.routes[pos:])
	rt.routes[pos] = route{prefix: prefix, controller: c}
}

// Prefixes returns the registered prefixes in evaluation order.
func (rt *Router) Prefixes() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make([]string, len(rt.routes))
	for i, r := range rt.routes {
		out[i] = r.prefix
	}
	return out
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if c := rt.match(r.URL.Path); c != nil {
		c.Service(w, r)
		return
	}
	rt.logger.Debug("no route", "method", r.Method, "path", r.URL.Path)
	w.WriteHeader(http.StatusBadRequest)
}

func (rt *Router) match(path string) Controller {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	for _, r := range rt.routes {
		if strings.HasPrefix(path, r.prefix) {
			return r.controller
		}
	}
	return nil
}
