package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HerbHall/routeforge/pkg/plugin"
)

func stamp(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}
}

func route(path string, method plugin.Method, body string) Route {
	return Route{
		Spec:    plugin.RouteSpec{Path: path, Function: "f", Method: method, ResponseType: plugin.ResponseText},
		Handler: stamp(body),
	}
}

func TestAssembleAndDispatch(t *testing.T) {
	groups := []Group{
		{Plugin: "blog", Routes: []Route{
			route("/posts", plugin.MethodGet, "posts"),
			route("/posts", plugin.MethodPost, "created"),
		}},
		{Plugin: "shop", Routes: []Route{
			route("/items", plugin.MethodGet, "items"),
		}},
	}

	table, err := Assemble(groups, false)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", table.Len())
	}

	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/posts", "posts"},
		{http.MethodPost, "/posts", "created"},
		{http.MethodGet, "/items", "items"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		table.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Body.String() != tt.want {
			t.Errorf("%s %s = %q, want %q", tt.method, tt.path, rec.Body.String(), tt.want)
		}
	}
}

func TestAssembleDuplicateRoute(t *testing.T) {
	groups := []Group{
		{Plugin: "alpha", Routes: []Route{route("/hello", plugin.MethodGet, "a")}},
		{Plugin: "beta", Routes: []Route{route("/hello", plugin.MethodGet, "b")}},
	}

	_, err := Assemble(groups, false)
	if !errors.Is(err, ErrDuplicateRoute) {
		t.Fatalf("Assemble() error = %v, want ErrDuplicateRoute", err)
	}
	// The diagnostic names both plugins; no silent first-wins.
	if msg := err.Error(); !strings.Contains(msg, "alpha") || !strings.Contains(msg, "beta") {
		t.Errorf("error %q should name both plugins", msg)
	}
}

func TestAssembleMalformedPathFailsLoad(t *testing.T) {
	groups := []Group{
		{Plugin: "alpha", Routes: []Route{route("/a/{unclosed", plugin.MethodGet, "a")}},
	}

	_, err := Assemble(groups, false)
	if err == nil {
		t.Fatal("Assemble() accepted a malformed wildcard path")
	}
	if msg := err.Error(); !strings.Contains(msg, "alpha") {
		t.Errorf("error %q should name the declaring plugin", msg)
	}
}

func TestAssembleEquivalentWildcardsAreDuplicates(t *testing.T) {
	// Different spellings, same match set. The exact-string duplicate
	// check cannot see this; registration must still fail cleanly.
	groups := []Group{
		{Plugin: "alpha", Routes: []Route{route("/item/{id}", plugin.MethodGet, "a")}},
		{Plugin: "beta", Routes: []Route{route("/item/{name}", plugin.MethodGet, "b")}},
	}

	_, err := Assemble(groups, false)
	if !errors.Is(err, ErrDuplicateRoute) {
		t.Fatalf("Assemble() error = %v, want ErrDuplicateRoute", err)
	}
}

func TestAssembleNamespacingResolvesCollision(t *testing.T) {
	groups := []Group{
		{Plugin: "alpha", Routes: []Route{route("/hello", plugin.MethodGet, "from alpha")}},
		{Plugin: "beta", Routes: []Route{route("hello", plugin.MethodGet, "from beta")}},
	}

	table, err := Assemble(groups, true)
	if err != nil {
		t.Fatalf("Assemble() with namespacing error = %v", err)
	}

	for _, tt := range []struct{ path, want string }{
		{"/alpha/hello", "from alpha"},
		{"/beta/hello", "from beta"},
	} {
		rec := httptest.NewRecorder()
		table.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Body.String() != tt.want {
			t.Errorf("GET %s = %q, want %q", tt.path, rec.Body.String(), tt.want)
		}
	}
}

func TestAssembleMethodsDistinguishRoutes(t *testing.T) {
	groups := []Group{
		{Plugin: "alpha", Routes: []Route{
			route("/x", plugin.MethodGet, "get"),
			route("/x", plugin.MethodDelete, "delete"),
		}},
	}

	if _, err := Assemble(groups, false); err != nil {
		t.Fatalf("Assemble() error = %v, same path with different methods must not collide", err)
	}
}

func TestTableRootReportsPluginCount(t *testing.T) {
	table, err := Assemble([]Group{
		{Plugin: "alpha", Routes: []Route{route("/a", plugin.MethodGet, "a")}},
		{Plugin: "beta", Routes: []Route{route("/b", plugin.MethodGet, "b")}},
	}, false)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	rec := httptest.NewRecorder()
	table.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), "Loaded plugins: 2") {
		t.Errorf("root route = %q, want plugin count", rec.Body.String())
	}
}

func TestTableEntriesAreCopies(t *testing.T) {
	table, err := Assemble([]Group{
		{Plugin: "alpha", Routes: []Route{route("/a", plugin.MethodGet, "a")}},
	}, false)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	entries := table.Entries()
	entries[0].Path = "/mutated"
	if table.Entries()[0].Path != "/a" {
		t.Error("Entries() must return a copy, table was mutated")
	}
}
