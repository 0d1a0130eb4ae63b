//go:build !linux

// Package affinity pins the measuring thread to one logical CPU.
package affinity

import "fmt"

// Pin is only implemented on Linux.
func Pin(cpu int) error {
	return fmt.Errorf("cpu pinning is not supported on this platform")
}
