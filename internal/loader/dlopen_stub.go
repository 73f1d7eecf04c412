//go:build !(linux || darwin || freebsd)

package loader

import "errors"

// errUnsupported is returned on platforms without dlopen support.
var errUnsupported = errors.New("native plugin loading is not supported on this platform")

func dlopen(string) (uintptr, error)         { return 0, errUnsupported }
func dlsym(uintptr, string) (uintptr, error) { return 0, errUnsupported }

func newRoutesFunc(uintptr) func() uintptr {
	return func() uintptr { return 0 }
}

func newCallFunc(uintptr) func(string) uintptr {
	return func(string) uintptr { return 0 }
}

func newFreeFunc(uintptr) func(uintptr) {
	return func(uintptr) {}
}

func goBytes(uintptr) []byte { return nil }
