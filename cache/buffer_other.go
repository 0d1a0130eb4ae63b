//go:build !linux

package cache

import "unsafe"

// allocAligned over-allocates a heap slice and slices out a size-byte
// window starting at the first align-boundary.
func allocAligned(size, align int) (buffer, mapped []byte, err error) {
	raw := make([]byte, size+align)

	base := uintptr(unsafe.Pointer(&raw[0]))
	skip := int((uintptr(align) - base%uintptr(align)) % uintptr(align))
	buffer = raw[skip : skip+size : skip+size]

	return buffer, nil, nil
}

// releaseMapped is a no-op for heap-backed buffers.
func releaseMapped(mapped []byte) error {
	return nil
}
