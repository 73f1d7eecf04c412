// Package plugin defines the public contract between the RouteForge host
// and native plugins. A plugin is an independently compiled shared library
// that exposes HTTP routes through a small C ABI:
//
//   - It must export a symbol named "routes" with signature
//     `const char *routes(void)`, returning an owned NUL-terminated UTF-8
//     JSON buffer describing its routes (see RoutesPayload).
//   - It must export a symbol named "free" with signature
//     `void free_buf(char *)` under the name "free", which releases any
//     buffer the plugin handed to the host. The host never frees plugin
//     memory with its own allocator; every buffer a plugin allocates is
//     returned to the plugin's "free". Plugins must allocate all returned
//     buffers with the allocator that "free" releases.
//   - Each declared route names an exported function with signature
//     `const char *fn(const char *payload)`. The host passes a
//     NUL-terminated UTF-8 JSON CallPayload and takes ownership of the
//     returned buffer, releasing it through "free" after the HTTP
//     response is written.
//
// Route functions are invoked concurrently, once per matching HTTP
// request, with no host-side locking. Reentrancy is part of the plugin
// contract: a function that mutates unsynchronized global state must do
// its own locking. The host cannot verify this.
//
// The host never unloads a library. Handles stay mapped for the process
// lifetime; a reload maps fresh routes but does not dlclose old handles.
package plugin

// ABI symbol names every plugin must export.
const (
	SymbolRoutes = "routes"
	SymbolFree   = "free"
)

// StatusOK is the success value for the Status field of RoutesPayload
// and of per-call results. Any other value is a plugin-reported failure.
const StatusOK = 0

// Descriptor identifies one configured plugin in the host manifest.
// Immutable after the manifest is read. Manifest order is preserved so
// route registration is deterministic.
type Descriptor struct {
	Name    string `mapstructure:"name" json:"name"`
	LibPath string `mapstructure:"lib_path" json:"lib_path"`
	Version string `mapstructure:"version" json:"version"`
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
}

// Method is an HTTP method a plugin route may declare.
type Method string

const (
	MethodGet    Method = "get"
	MethodPost   Method = "post"
	MethodPut    Method = "put"
	MethodDelete Method = "delete"
)

// Valid reports whether m is a recognized method value.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete:
		return true
	}
	return false
}

// ResponseType declares how the host interprets a route function's
// result bytes when emitting the HTTP response body.
type ResponseType string

const (
	ResponseHTML ResponseType = "html"
	ResponseJSON ResponseType = "json"
	ResponseText ResponseType = "text"
)

// Valid reports whether t is a recognized response type.
func (t ResponseType) Valid() bool {
	switch t {
	case ResponseHTML, ResponseJSON, ResponseText:
		return true
	}
	return false
}

// RouteSpec is one route entry from a plugin's routes payload.
type RouteSpec struct {
	Path         string       `json:"path"`
	Function     string       `json:"function"`
	Method       Method       `json:"method_router"`
	ResponseType ResponseType `json:"response_type"`
}

// RoutesPayload is the JSON document the "routes" entry point returns.
// Status != StatusOK means the plugin refused to enumerate routes;
// Message carries its diagnostic.
type RoutesPayload struct {
	Routes  []RouteSpec `json:"routes"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
}

// CallPayload is the JSON document the host passes to a route function
// on each request. Body is the raw request body; Query is the raw query
// string without the leading "?".
type CallPayload struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Query   string            `json:"query,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// CallError is the shape of a plugin-reported per-call failure. A route
// function that cannot serve a request returns this instead of its
// normal body; the host converts it into an HTTP error response.
type CallError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Func invokes one resolved exported route function. The payload is the
// serialized CallPayload; the result is a copy of the plugin's buffer,
// taken before the buffer is returned to the plugin's "free".
type Func func(payload []byte) ([]byte, error)
