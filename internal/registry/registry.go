// Package registry orchestrates the plugin load pipeline: manifest →
// library loader → route decode → call bridge → route assembly. It
// tracks per-plugin state for diagnostics and isolates single-plugin
// failures so one misconfigured library does not take down the rest,
// unless strict mode turns every load failure into a startup failure.
package registry

import (
	"fmt"
	"sync"

	"github.com/HerbHall/routeforge/internal/bridge"
	"github.com/HerbHall/routeforge/internal/router"
	"github.com/HerbHall/routeforge/pkg/plugin"
	"go.uber.org/zap"
)

// Source lists plugin descriptors. Defined here (consumer-side) rather
// than importing the concrete manifest store.
type Source interface {
	List() ([]plugin.Descriptor, error)
}

// Library is a loaded native library as the registry needs it.
type Library interface {
	Routes() ([]byte, error)
	Func(symbol string) (plugin.Func, error)
}

// Opener maps native libraries. Satisfied by the loader.
type Opener interface {
	Open(path string) (Library, error)
}

// Options controls load policy.
type Options struct {
	// Namespaced prefixes every route path with /{plugin_name}.
	Namespaced bool

	// Strict aborts the whole load when any enabled plugin fails to
	// load or decode. The default skips the failed plugin with a
	// diagnostic and continues.
	Strict bool
}

// Status is a plugin's load state.
type Status string

const (
	StatusLoaded   Status = "loaded"
	StatusDisabled Status = "disabled"
	StatusFailed   Status = "failed"
)

// State is the reportable condition of one configured plugin.
type State struct {
	Descriptor plugin.Descriptor `json:"descriptor"`
	Status     Status            `json:"status"`
	Error      string            `json:"error,omitempty"`
	RouteCount int               `json:"route_count"`
}

// Registry drives plugin loading and holds the latest per-plugin state.
type Registry struct {
	mu     sync.RWMutex
	states []State

	source Source
	opener Opener
	opts   Options
	logger *zap.Logger
}

// New creates a Registry.
func New(source Source, opener Opener, opts Options, logger *zap.Logger) *Registry {
	return &Registry{
		source: source,
		opener: opener,
		opts:   opts,
		logger: logger,
	}
}

// Load runs the full pipeline and returns a freshly assembled route
// table. Safe to call again for a reload: libraries already mapped are
// reused, new ones are mapped, and the caller swaps the returned table
// in atomically. A manifest read error or a route collision is always
// fatal to the load; per-plugin failures follow the strict/continue
// policy.
func (r *Registry) Load() (*router.Table, error) {
	descs, err := r.source.List()
	if err != nil {
		return nil, fmt.Errorf("reading plugin manifest: %w", err)
	}

	states := make([]State, 0, len(descs))
	var groups []router.Group

	for _, desc := range descs {
		if !desc.Enabled {
			r.logger.Info("skipping disabled plugin",
				zap.String("name", desc.Name),
				zap.String("lib_path", desc.LibPath),
			)
			states = append(states, State{Descriptor: desc, Status: StatusDisabled})
			continue
		}

		group, err := r.loadOne(desc)
		if err != nil {
			if r.opts.Strict {
				return nil, fmt.Errorf("plugin %q: %w", desc.Name, err)
			}
			r.logger.Warn("skipping plugin after load failure",
				zap.String("name", desc.Name),
				zap.String("lib_path", desc.LibPath),
				zap.Error(err),
			)
			states = append(states, State{Descriptor: desc, Status: StatusFailed, Error: err.Error()})
			continue
		}

		states = append(states, State{
			Descriptor: desc,
			Status:     StatusLoaded,
			RouteCount: len(group.Routes),
		})
		groups = append(groups, group)
	}

	table, err := router.Assemble(groups, r.opts.Namespaced)
	if err != nil {
		return nil, fmt.Errorf("assembling routes: %w", err)
	}

	r.mu.Lock()
	r.states = states
	r.mu.Unlock()

	r.logger.Info("plugin load complete",
		zap.Int("configured", len(descs)),
		zap.Int("loaded", len(groups)),
		zap.Int("routes", table.Len()),
	)
	return table, nil
}

// loadOne maps one plugin's library, decodes its route table, and
// builds a handler per declared route. A route whose function symbol
// does not resolve is skipped with a warning; the rest of the library
// still loads.
func (r *Registry) loadOne(desc plugin.Descriptor) (router.Group, error) {
	lib, err := r.opener.Open(desc.LibPath)
	if err != nil {
		return router.Group{}, err
	}

	raw, err := lib.Routes()
	if err != nil {
		return router.Group{}, err
	}

	specs, err := plugin.DecodeRoutes(raw)
	if err != nil {
		return router.Group{}, err
	}

	group := router.Group{Plugin: desc.Name}
	for _, spec := range specs {
		h, err := bridge.NewHandler(desc.Name, lib, spec, r.logger.Named(desc.Name))
		if err != nil {
			r.logger.Warn("skipping route: function symbol not resolvable",
				zap.String("plugin", desc.Name),
				zap.String("path", spec.Path),
				zap.String("function", spec.Function),
				zap.Error(err),
			)
			continue
		}
		group.Routes = append(group.Routes, router.Route{Spec: spec, Handler: h})
	}

	r.logger.Info("plugin loaded",
		zap.String("name", desc.Name),
		zap.String("version", desc.Version),
		zap.Int("routes", len(group.Routes)),
	)
	return group, nil
}

// States returns a copy of the per-plugin states from the latest Load.
func (r *Registry) States() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]State, len(r.states))
	copy(out, r.states)
	return out
}
