// Package loader maps native plugin libraries into the process and
// resolves their exported symbols. Handles are cached per path and kept
// open for the process lifetime; there is no unload. Route handlers
// built from a Library hold a back-reference to it, never ownership,
// so a handler can never outlive its library.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/HerbHall/routeforge/pkg/plugin"
	"go.uber.org/zap"
)

// Load errors. Callers classify with errors.Is.
var (
	// ErrNotFound means the library file does not exist.
	ErrNotFound = errors.New("library file not found")

	// ErrLinkFailure means the library exists but could not be mapped,
	// typically because a transitive dependency is missing.
	ErrLinkFailure = errors.New("library failed to link")

	// ErrSymbolMissing means a required exported symbol is absent.
	ErrSymbolMissing = errors.New("exported symbol missing")

	// ErrNullResult means a plugin function returned a null pointer
	// where a buffer was required.
	ErrNullResult = errors.New("plugin returned null pointer")
)

// Loader owns all native library handles. It is an append-only
// registry: a path is mapped at most once and never unmapped.
type Loader struct {
	mu     sync.Mutex
	libs   map[string]*Library
	logger *zap.Logger
}

// New creates a Loader.
func New(logger *zap.Logger) *Loader {
	return &Loader{
		libs:   make(map[string]*Library),
		logger: logger,
	}
}

// Open maps the shared library at path and resolves its mandatory
// entry points ("routes" and "free"). Opening the same path twice
// returns the cached handle. Fails with ErrNotFound, ErrLinkFailure,
// or ErrSymbolMissing.
func (l *Loader) Open(path string) (*Library, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if lib, ok := l.libs[abs]; ok {
		return lib, nil
	}

	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}

	handle, err := dlopen(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLinkFailure, abs, err)
	}

	routesAddr, err := dlsym(handle, plugin.SymbolRoutes)
	if err != nil {
		return nil, fmt.Errorf("%w: %q in %s", ErrSymbolMissing, plugin.SymbolRoutes, abs)
	}
	freeAddr, err := dlsym(handle, plugin.SymbolFree)
	if err != nil {
		return nil, fmt.Errorf("%w: %q in %s", ErrSymbolMissing, plugin.SymbolFree, abs)
	}

	lib := &Library{
		path:   abs,
		handle: handle,
		routes: newRoutesFunc(routesAddr),
		free:   newFreeFunc(freeAddr),
	}
	l.libs[abs] = lib

	l.logger.Info("library loaded",
		zap.String("path", abs),
	)
	return lib, nil
}

// Library is a mapped native library with its resolved entry points.
type Library struct {
	path   string
	handle uintptr
	routes func() uintptr
	free   func(uintptr)
}

// Path returns the absolute path the library was loaded from.
func (lib *Library) Path() string { return lib.path }

// Routes invokes the "routes" entry point once and returns a copy of
// the buffer it produced. The plugin's buffer is released through its
// own "free" before Routes returns.
func (lib *Library) Routes() ([]byte, error) {
	ptr := lib.routes()
	if ptr == 0 {
		return nil, fmt.Errorf("%w: %s from %q", ErrNullResult, lib.path, plugin.SymbolRoutes)
	}
	data := goBytes(ptr)
	lib.free(ptr)
	return data, nil
}

// Func resolves an exported route function by name and binds it to the
// per-route calling convention. The returned closure copies each result
// buffer and releases the plugin's buffer through "free" before
// returning; the closure holds only the library back-reference and is
// safe for concurrent use if the native function is reentrant.
func (lib *Library) Func(symbol string) (plugin.Func, error) {
	addr, err := dlsym(lib.handle, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %q in %s", ErrSymbolMissing, symbol, lib.path)
	}
	call := newCallFunc(addr)

	return func(payload []byte) ([]byte, error) {
		ptr := call(string(payload))
		if ptr == 0 {
			return nil, fmt.Errorf("%w: %s from %q", ErrNullResult, lib.path, symbol)
		}
		data := goBytes(ptr)
		lib.free(ptr)
		return data, nil
	}, nil
}
