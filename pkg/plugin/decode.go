package plugin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Decode errors. Callers classify with errors.Is.
var (
	// ErrMalformedPayload means the routes buffer is not valid JSON of
	// either accepted shape.
	ErrMalformedPayload = errors.New("malformed routes payload")

	// ErrMissingField means a route entry omits path, function, or
	// method_router.
	ErrMissingField = errors.New("route entry missing required field")

	// ErrUnknownMethod means a route declares an unrecognized
	// method_router value.
	ErrUnknownMethod = errors.New("unknown route method")

	// ErrUnknownResponseType means a route declares an unrecognized
	// response_type value.
	ErrUnknownResponseType = errors.New("unknown response type")

	// ErrPluginRefused means the entry point returned a non-success
	// status instead of a route list.
	ErrPluginRefused = errors.New("plugin refused to enumerate routes")
)

// DecodeRoutes parses and validates the buffer returned by a plugin's
// "routes" entry point. The buffer may be a RoutesPayload object or a
// bare JSON array of route entries. Unknown method or response-type
// values are rejected, never defaulted. A payload with Status !=
// StatusOK fails with ErrPluginRefused carrying the plugin's message.
func DecodeRoutes(data []byte) ([]RouteSpec, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrMalformedPayload)
	}

	var routes []RouteSpec
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &routes); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	} else {
		var payload RoutesPayload
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if payload.Status != StatusOK {
			return nil, fmt.Errorf("%w: status %d: %s", ErrPluginRefused, payload.Status, payload.Message)
		}
		routes = payload.Routes
	}

	for i := range routes {
		if err := validateRoute(&routes[i]); err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
	}
	return routes, nil
}

func validateRoute(r *RouteSpec) error {
	if r.Path == "" {
		return fmt.Errorf("%w: path", ErrMissingField)
	}
	if r.Function == "" {
		return fmt.Errorf("%w: function", ErrMissingField)
	}
	if r.Method == "" {
		return fmt.Errorf("%w: method_router", ErrMissingField)
	}
	if !r.Method.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, r.Method)
	}
	if r.ResponseType == "" {
		// response_type is the one optional key; absent means plain text.
		r.ResponseType = ResponseText
	}
	if !r.ResponseType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownResponseType, r.ResponseType)
	}
	return nil
}
