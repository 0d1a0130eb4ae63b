//go:build linux

package cache

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocAligned maps size+align bytes of anonymous memory and slices out a
// size-byte window starting at the first align-boundary. mmap only
// guarantees page alignment, and the buffer must be aligned to the cache
// size for set-index arithmetic to hold.
func allocAligned(size, align int) (buffer, mapped []byte, err error) {
	mapped, err = unix.Mmap(-1, 0, size+align,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}

	base := uintptr(unsafe.Pointer(&mapped[0]))
	skip := int((uintptr(align) - base%uintptr(align)) % uintptr(align))
	buffer = mapped[skip : skip+size : skip+size]

	return buffer, mapped, nil
}

// releaseMapped unmaps a buffer obtained from allocAligned.
func releaseMapped(mapped []byte) error {
	return unix.Munmap(mapped)
}
