// Package router assembles per-plugin route sets into one immutable
// composed table. Assembly detects duplicate (method, path) pairs up
// front; there is no first-wins or last-wins resolution. The table is
// an http.Handler designed to be mounted under a sub-path of the host
// server and swapped atomically on reload.
package router

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/HerbHall/routeforge/pkg/plugin"
)

// ErrDuplicateRoute means two routes resolved to the same (method,
// effective path) pair during assembly.
var ErrDuplicateRoute = errors.New("duplicate route")

// Route pairs a validated route spec with its bound handler.
type Route struct {
	Spec    plugin.RouteSpec
	Handler http.HandlerFunc
}

// Group is the route set contributed by one plugin.
type Group struct {
	Plugin string
	Routes []Route
}

// Entry describes one mounted route in an assembled table.
type Entry struct {
	Plugin string
	Method string
	Path   string
}

// Table is the composed router handed to the host. Immutable after
// Assemble; a reload builds a new Table rather than mutating this one.
type Table struct {
	mux     *http.ServeMux
	entries []Entry
}

// Assemble merges all plugins' routes into one Table. When namespaced
// is true, each route's effective path is prefixed with the plugin
// name, which keeps same-path routes from different plugins apart.
// Fails with ErrDuplicateRoute on any (method, effective path)
// collision.
func Assemble(groups []Group, namespaced bool) (*Table, error) {
	mux := http.NewServeMux()
	seen := make(map[string]string) // "METHOD path" -> owning plugin

	t := &Table{mux: mux}

	for _, g := range groups {
		for _, r := range g.Routes {
			path := effectivePath(g.Plugin, r.Spec.Path, namespaced)
			method := strings.ToUpper(string(r.Spec.Method))

			key := method + " " + path
			if owner, ok := seen[key]; ok {
				return nil, fmt.Errorf("%w: %s %s declared by %q and %q",
					ErrDuplicateRoute, method, path, owner, g.Plugin)
			}
			seen[key] = g.Plugin

			if err := register(mux, muxPattern(method, path), r.Handler); err != nil {
				return nil, fmt.Errorf("plugin %q: %w", g.Plugin, err)
			}
			t.entries = append(t.entries, Entry{Plugin: g.Plugin, Method: method, Path: path})
		}
	}

	// Informational root route, unless a plugin claimed it. A plugin
	// wildcard can shadow the root pattern; the info route just loses.
	if _, taken := seen["GET /"]; !taken {
		count := len(groups)
		_ = register(mux, "GET /{$}", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprintf(w, "Loaded plugins: %d\n", count)
		}))
	}

	return t, nil
}

// ServeHTTP dispatches a request to the matching route handler.
func (t *Table) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.mux.ServeHTTP(w, r)
}

// Len returns the number of plugin routes in the table.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns a copy of the mounted route list in registration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// effectivePath applies the optional plugin-name prefix and normalizes
// the leading slash.
func effectivePath(pluginName, path string, namespaced bool) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if namespaced {
		return "/" + pluginName + path
	}
	return path
}

// muxPattern builds the ServeMux pattern for a route. The bare "/"
// path uses the exact-match marker so it does not swallow the whole
// subtree.
func muxPattern(method, path string) string {
	if path == "/" {
		return method + " /{$}"
	}
	return method + " " + path
}

// register installs one pattern on the mux, converting the panics
// ServeMux raises for malformed or conflicting patterns into errors.
// Paths come from plugin payloads, so a bad one must fail the load,
// not the process. The exact-string seen check above misses wildcard
// patterns the mux considers equivalent ("/item/{id}" vs
// "/item/{name}"); those surface here as conflict panics.
func register(mux *http.ServeMux, pattern string, h http.Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			if strings.Contains(msg, "conflicts with") {
				err = fmt.Errorf("%w: %s", ErrDuplicateRoute, msg)
				return
			}
			err = fmt.Errorf("invalid route pattern %q: %s", pattern, msg)
		}
	}()
	mux.Handle(pattern, h)
	return nil
}
