package registry

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HerbHall/routeforge/internal/router"
	"github.com/HerbHall/routeforge/pkg/plugin"
	"github.com/HerbHall/routeforge/pkg/plugin/plugintest"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// fakeSource returns a fixed descriptor list.
type fakeSource struct {
	descs []plugin.Descriptor
	err   error
}

func (s *fakeSource) List() ([]plugin.Descriptor, error) { return s.descs, s.err }

// fakeOpener maps lib paths to fake libraries.
type fakeOpener struct {
	libs map[string]*plugintest.Library
}

func (o *fakeOpener) Open(path string) (Library, error) {
	lib, ok := o.libs[path]
	if !ok {
		return nil, fmt.Errorf("library file not found: %s", path)
	}
	return lib, nil
}

func desc(name string, enabled bool) plugin.Descriptor {
	return plugin.Descriptor{
		Name:    name,
		LibPath: name + ".so",
		Version: "1.0.0",
		Enabled: enabled,
	}
}

func routesLib(specs ...plugin.RouteSpec) *plugintest.Library {
	funcs := make(map[string]plugin.Func, len(specs))
	for _, s := range specs {
		funcs[s.Function] = plugintest.Echo("from " + s.Function)
	}
	return &plugintest.Library{
		RoutesData: plugintest.RoutesJSON(specs...),
		Funcs:      funcs,
	}
}

func getSpec(path, fn string) plugin.RouteSpec {
	return plugin.RouteSpec{Path: path, Function: fn, Method: plugin.MethodGet, ResponseType: plugin.ResponseText}
}

func TestLoadAllRoutes(t *testing.T) {
	source := &fakeSource{descs: []plugin.Descriptor{desc("blog", true), desc("shop", true)}}
	opener := &fakeOpener{libs: map[string]*plugintest.Library{
		"blog.so": routesLib(getSpec("/posts", "posts"), getSpec("/tags", "tags")),
		"shop.so": routesLib(getSpec("/items", "items")),
	}}

	reg := New(source, opener, Options{}, testLogger())
	table, err := reg.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// N enabled plugins exposing R routes produce exactly R entries.
	if table.Len() != 3 {
		t.Fatalf("table has %d routes, want 3", table.Len())
	}

	rec := httptest.NewRecorder()
	table.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))
	if rec.Body.String() != "from items" {
		t.Errorf("GET /items = %q, want dispatched to shop", rec.Body.String())
	}
}

func TestLoadDisabledPluginContributesZeroRoutes(t *testing.T) {
	source := &fakeSource{descs: []plugin.Descriptor{desc("blog", true), desc("shop", false)}}
	opener := &fakeOpener{libs: map[string]*plugintest.Library{
		"blog.so": routesLib(getSpec("/posts", "posts")),
		"shop.so": routesLib(getSpec("/items", "items")),
	}}

	reg := New(source, opener, Options{}, testLogger())
	table, err := reg.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("table has %d routes, want 1 (shop disabled)", table.Len())
	}

	states := reg.States()
	if len(states) != 2 {
		t.Fatalf("States() returned %d entries, want 2", len(states))
	}
	if states[1].Status != StatusDisabled {
		t.Errorf("shop status = %q, want disabled", states[1].Status)
	}
}

func TestLoadReloadPicksUpToggledFlag(t *testing.T) {
	source := &fakeSource{descs: []plugin.Descriptor{desc("blog", false)}}
	opener := &fakeOpener{libs: map[string]*plugintest.Library{
		"blog.so": routesLib(getSpec("/posts", "posts")),
	}}

	reg := New(source, opener, Options{}, testLogger())
	table, err := reg.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("disabled plugin produced %d routes, want 0", table.Len())
	}

	source.descs = []plugin.Descriptor{desc("blog", true)}
	table, err = reg.Load()
	if err != nil {
		t.Fatalf("reload Load() error = %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("after enabling, table has %d routes, want 1", table.Len())
	}
}

func TestLoadMalformedPayloadIsolated(t *testing.T) {
	source := &fakeSource{descs: []plugin.Descriptor{desc("broken", true), desc("blog", true)}}
	opener := &fakeOpener{libs: map[string]*plugintest.Library{
		"broken.so": {RoutesData: []byte("{not json")},
		"blog.so":   routesLib(getSpec("/posts", "posts")),
	}}

	reg := New(source, opener, Options{}, testLogger())
	table, err := reg.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want broken plugin isolated", err)
	}
	if table.Len() != 1 {
		t.Fatalf("table has %d routes, want 1 from the healthy sibling", table.Len())
	}

	states := reg.States()
	if states[0].Status != StatusFailed || !strings.Contains(states[0].Error, "malformed") {
		t.Errorf("broken state = %+v, want failed with decode diagnostic", states[0])
	}
	if states[1].Status != StatusLoaded {
		t.Errorf("blog state = %+v, want loaded", states[1])
	}
}

func TestLoadStrictModeAborts(t *testing.T) {
	source := &fakeSource{descs: []plugin.Descriptor{desc("broken", true)}}
	opener := &fakeOpener{libs: map[string]*plugintest.Library{}}

	reg := New(source, opener, Options{Strict: true}, testLogger())
	if _, err := reg.Load(); err == nil {
		t.Fatal("Load() in strict mode expected error, got nil")
	}
}

func TestLoadMissingFunctionSymbolSkipsRoute(t *testing.T) {
	lib := routesLib(getSpec("/good", "good"))
	lib.RoutesData = plugintest.RoutesJSON(getSpec("/good", "good"), getSpec("/gone", "gone"))

	source := &fakeSource{descs: []plugin.Descriptor{desc("blog", true)}}
	opener := &fakeOpener{libs: map[string]*plugintest.Library{"blog.so": lib}}

	reg := New(source, opener, Options{}, testLogger())
	table, err := reg.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, missing symbol must not fail the library", err)
	}
	if table.Len() != 1 {
		t.Fatalf("table has %d routes, want 1 (unresolvable route skipped)", table.Len())
	}
}

func TestLoadDuplicateRouteFailsAssembly(t *testing.T) {
	source := &fakeSource{descs: []plugin.Descriptor{desc("alpha", true), desc("beta", true)}}
	opener := &fakeOpener{libs: map[string]*plugintest.Library{
		"alpha.so": routesLib(getSpec("/hello", "hello")),
		"beta.so":  routesLib(getSpec("/hello", "hello")),
	}}

	reg := New(source, opener, Options{}, testLogger())
	if _, err := reg.Load(); !errors.Is(err, router.ErrDuplicateRoute) {
		t.Fatalf("Load() error = %v, want ErrDuplicateRoute", err)
	}

	// The same configuration succeeds once namespaced.
	reg = New(source, opener, Options{Namespaced: true}, testLogger())
	table, err := reg.Load()
	if err != nil {
		t.Fatalf("namespaced Load() error = %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("namespaced table has %d routes, want 2", table.Len())
	}

	rec := httptest.NewRecorder()
	table.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/beta/hello", nil))
	if rec.Body.String() != "from hello" {
		t.Errorf("GET /beta/hello = %q, want namespaced dispatch", rec.Body.String())
	}
}

func TestLoadManifestErrorIsFatal(t *testing.T) {
	source := &fakeSource{err: errors.New("manifest source not found")}
	reg := New(source, &fakeOpener{}, Options{}, testLogger())

	if _, err := reg.Load(); err == nil {
		t.Fatal("Load() expected error for unreadable manifest, got nil")
	}
}
