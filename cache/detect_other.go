//go:build !linux

package cache

import "fmt"

// DetectL1D is only implemented on Linux, where the kernel exports the
// cache hierarchy through sysfs.
func DetectL1D(cpu int) (Geometry, error) {
	return Geometry{}, fmt.Errorf(
		"%w: cache geometry detection is not supported on this platform",
		ErrGeometry)
}
