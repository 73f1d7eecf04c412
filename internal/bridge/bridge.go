// Package bridge converts declared plugin routes into live HTTP
// handlers. Each handler marshals the inbound request into the plugin
// call payload, invokes the resolved native function synchronously, and
// interprets the result bytes according to the route's declared
// response type. A handler holds no mutable shared state; every
// invocation builds fresh buffers, so concurrent requests are safe as
// long as the native function itself is reentrant.
package bridge

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/routeforge/pkg/plugin"
	"go.uber.org/zap"
)

// Library resolves exported functions. Defined here (consumer-side)
// rather than importing the concrete loader.
type Library interface {
	Func(symbol string) (plugin.Func, error)
}

// NewHandler resolves spec.Function against lib and returns an HTTP
// handler bound to it. Fails if the symbol is absent; the caller skips
// that one route with a warning rather than discarding the library.
func NewHandler(pluginName string, lib Library, spec plugin.RouteSpec, logger *zap.Logger) (http.HandlerFunc, error) {
	fn, err := lib.Func(spec.Function)
	if err != nil {
		return nil, fmt.Errorf("resolving route function: %w", err)
	}

	route := spec.Path

	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := marshalRequest(r)
		if err != nil {
			logger.Error("failed to marshal request for plugin",
				zap.String("plugin", pluginName),
				zap.String("route", route),
				zap.Error(err),
			)
			writeError(w, http.StatusBadRequest, "could not read request body")
			return
		}

		// The native call is synchronous and uncancellable; it blocks
		// this worker until the plugin returns.
		start := time.Now()
		result, err := fn(payload)
		duration := time.Since(start)

		if err != nil {
			callsTotal.WithLabelValues(pluginName, route, "error").Inc()
			logger.Error("plugin call failed",
				zap.String("plugin", pluginName),
				zap.String("route", route),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
			writeError(w, http.StatusBadGateway, "plugin call failed")
			return
		}

		callDuration.WithLabelValues(pluginName, route).Observe(duration.Seconds())

		if callErr, ok := nativeFailure(result); ok {
			callsTotal.WithLabelValues(pluginName, route, "failure").Inc()
			logger.Warn("plugin reported failure",
				zap.String("plugin", pluginName),
				zap.String("route", route),
				zap.Int("status", callErr.Status),
				zap.String("message", callErr.Message),
			)
			writeError(w, httpStatus(callErr.Status), callErr.Message)
			return
		}

		callsTotal.WithLabelValues(pluginName, route, "ok").Inc()
		writeResponse(w, result, spec.ResponseType, pluginName, route, logger)
	}, nil
}

// marshalRequest serializes an HTTP request into the plugin call
// payload. Repeated header values are joined with ", ", the standard
// field-combining form, so the payload keeps a flat string map.
func marshalRequest(r *http.Request) ([]byte, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
	}

	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		headers[name] = strings.Join(values, ", ")
	}

	return json.Marshal(plugin.CallPayload{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.RawQuery,
		Headers: headers,
		Body:    string(body),
	})
}

// nativeFailure reports whether the result bytes are a plugin-reported
// failure ({"status": n, "message": ...} with n != 0).
func nativeFailure(result []byte) (plugin.CallError, bool) {
	var callErr plugin.CallError
	if err := json.Unmarshal(result, &callErr); err != nil {
		return plugin.CallError{}, false
	}
	if callErr.Status == plugin.StatusOK {
		return plugin.CallError{}, false
	}
	return callErr, true
}

// httpStatus maps a plugin failure status onto an HTTP status code.
// Values in the HTTP error range pass through; anything else becomes
// a 500.
func httpStatus(status int) int {
	if status >= 400 && status < 600 {
		return status
	}
	return http.StatusInternalServerError
}

// writeResponse emits the result bytes under the declared response
// type. A json route whose result does not parse is logged and
// downgraded to plain text, but the raw bytes still reach the client
// to aid debugging.
func writeResponse(w http.ResponseWriter, result []byte, rt plugin.ResponseType, pluginName, route string, logger *zap.Logger) {
	switch rt {
	case plugin.ResponseHTML:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case plugin.ResponseJSON:
		if json.Valid(result) {
			w.Header().Set("Content-Type", "application/json")
		} else {
			logger.Error("plugin returned invalid JSON for json route",
				zap.String("plugin", pluginName),
				zap.String("route", route),
				zap.Int("bytes", len(result)),
			)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(result)))
	_, _ = w.Write(result)
}

// errorBody is the JSON error response for failed plugin calls.
type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}
