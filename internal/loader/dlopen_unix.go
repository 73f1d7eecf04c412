//go:build linux || darwin || freebsd

package loader

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// dlopen maps a shared library into the process address space. The
// handle is never passed to dlclose; libraries live until the process
// exits because route handlers keep raw function pointers into them.
func dlopen(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
}

// dlsym resolves an exported symbol address in a loaded library.
func dlsym(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

// newRoutesFunc binds the "routes" entry point: no arguments, returns
// an owned NUL-terminated buffer.
func newRoutesFunc(addr uintptr) func() uintptr {
	var fn func() uintptr
	purego.RegisterFunc(&fn, addr)
	return fn
}

// newCallFunc binds a per-route function: one NUL-terminated UTF-8
// payload in, an owned NUL-terminated buffer out. purego copies the Go
// string into a C string for the duration of the call.
func newCallFunc(addr uintptr) func(string) uintptr {
	var fn func(string) uintptr
	purego.RegisterFunc(&fn, addr)
	return fn
}

// newFreeFunc binds the plugin's deallocator. Every buffer a plugin
// returns is released through this, matching the allocator the plugin
// used; freeing with the host allocator would be undefined behavior.
func newFreeFunc(addr uintptr) func(uintptr) {
	var fn func(uintptr)
	purego.RegisterFunc(&fn, addr)
	return fn
}

// goBytes copies a NUL-terminated buffer out of native memory. The
// caller releases the native buffer afterwards.
func goBytes(ptr uintptr) []byte {
	if ptr == 0 {
		return nil
	}
	var n int
	for *(*byte)(unsafe.Pointer(ptr + uintptr(n))) != 0 {
		n++
	}
	if n == 0 {
		return []byte{}
	}
	data := make([]byte, n)
	copy(data, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n))
	return data
}
