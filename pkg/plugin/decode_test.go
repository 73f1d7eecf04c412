package plugin

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeRoutesObjectPayload(t *testing.T) {
	data := []byte(`{
		"routes": [
			{"path": "/hello", "function": "hello", "method_router": "get", "response_type": "html"},
			{"path": "/submit", "function": "submit", "method_router": "post", "response_type": "json"}
		],
		"message": "ok",
		"status": 0
	}`)

	routes, err := DecodeRoutes(data)
	if err != nil {
		t.Fatalf("DecodeRoutes() error = %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("DecodeRoutes() returned %d routes, want 2", len(routes))
	}
	if routes[0].Path != "/hello" || routes[0].Method != MethodGet || routes[0].ResponseType != ResponseHTML {
		t.Errorf("route 0 = %+v, want /hello get html", routes[0])
	}
	if routes[1].Function != "submit" || routes[1].Method != MethodPost {
		t.Errorf("route 1 = %+v, want submit post", routes[1])
	}
}

func TestDecodeRoutesBareArray(t *testing.T) {
	data := []byte(`[{"path": "/x", "function": "fx", "method_router": "get", "response_type": "text"}]`)

	routes, err := DecodeRoutes(data)
	if err != nil {
		t.Fatalf("DecodeRoutes() error = %v", err)
	}
	if len(routes) != 1 || routes[0].Function != "fx" {
		t.Fatalf("DecodeRoutes() = %+v, want one route fx", routes)
	}
}

func TestDecodeRoutesDefaultsResponseType(t *testing.T) {
	data := []byte(`[{"path": "/x", "function": "fx", "method_router": "get"}]`)

	routes, err := DecodeRoutes(data)
	if err != nil {
		t.Fatalf("DecodeRoutes() error = %v", err)
	}
	if routes[0].ResponseType != ResponseText {
		t.Errorf("ResponseType = %q, want %q", routes[0].ResponseType, ResponseText)
	}
}

func TestDecodeRoutesErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"malformed json", `{not json`, ErrMalformedPayload},
		{"empty buffer", ``, ErrMalformedPayload},
		{"wrong array element type", `[42]`, ErrMalformedPayload},
		{"missing path", `[{"function": "f", "method_router": "get"}]`, ErrMissingField},
		{"missing function", `[{"path": "/x", "method_router": "get"}]`, ErrMissingField},
		{"missing method", `[{"path": "/x", "function": "f"}]`, ErrMissingField},
		{"unknown method", `[{"path": "/x", "function": "f", "method_router": "brew"}]`, ErrUnknownMethod},
		{"unknown response type", `[{"path": "/x", "function": "f", "method_router": "get", "response_type": "xml"}]`, ErrUnknownResponseType},
		{"plugin refused", `{"routes": [], "message": "license expired", "status": 3}`, ErrPluginRefused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRoutes([]byte(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeRoutes() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeRoutesRefusedCarriesMessage(t *testing.T) {
	_, err := DecodeRoutes([]byte(`{"routes": [], "message": "license expired", "status": 3}`))
	if err == nil {
		t.Fatal("DecodeRoutes() expected error, got nil")
	}
	if got := err.Error(); !strings.Contains(got, "license expired") {
		t.Errorf("error %q should contain the plugin message", got)
	}
}
