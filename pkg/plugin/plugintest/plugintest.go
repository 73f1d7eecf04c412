// Package plugintest provides in-process fakes for testing code that
// calls plugin route functions, without building a native shared
// library. Library satisfies the host's symbol-resolution interfaces
// structurally, so bridge and registry tests can exercise the full
// request path against Go closures.
package plugintest

import (
	"encoding/json"
	"fmt"

	"github.com/HerbHall/routeforge/pkg/plugin"
)

// Library is a fake loaded plugin. Funcs maps exported function names
// to Go implementations; RoutesData is the raw buffer the "routes"
// entry point would return.
type Library struct {
	RoutesData []byte
	Funcs      map[string]plugin.Func
	RoutesErr  error
}

// Routes returns the fake routes buffer.
func (l *Library) Routes() ([]byte, error) {
	if l.RoutesErr != nil {
		return nil, l.RoutesErr
	}
	return l.RoutesData, nil
}

// Func resolves a fake exported function by name.
func (l *Library) Func(symbol string) (plugin.Func, error) {
	fn, ok := l.Funcs[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %q not found", symbol)
	}
	return fn, nil
}

// RoutesJSON builds a valid RoutesPayload buffer for the given specs.
func RoutesJSON(specs ...plugin.RouteSpec) []byte {
	data, err := json.Marshal(plugin.RoutesPayload{
		Routes:  specs,
		Message: "ok",
		Status:  plugin.StatusOK,
	})
	if err != nil {
		panic(err)
	}
	return data
}

// Echo returns a route function that unmarshals the call payload and
// responds with the given static body, ignoring the request.
func Echo(body string) plugin.Func {
	return func(payload []byte) ([]byte, error) {
		var call plugin.CallPayload
		if err := json.Unmarshal(payload, &call); err != nil {
			return nil, err
		}
		return []byte(body), nil
	}
}

// Fail returns a route function that reports a plugin-side failure with
// the given status and message.
func Fail(status int, message string) plugin.Func {
	return func([]byte) ([]byte, error) {
		data, _ := json.Marshal(plugin.CallError{Status: status, Message: message})
		return data, nil
	}
}
