//go:build linux

package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DetectL1D reads the level-1 data cache geometry of the given logical
// CPU from the sysfs cache hierarchy and derives the Geometry. The
// kernel-reported values are trusted external input.
func DetectL1D(cpu int) (Geometry, error) {
	base := fmt.Sprintf("/sys/devices/system/cpu/cpu%d/cache", cpu)

	indexes, err := filepath.Glob(filepath.Join(base, "index*"))
	if err != nil || len(indexes) == 0 {
		return Geometry{}, fmt.Errorf(
			"%w: no cache hierarchy reported for cpu %d", ErrGeometry, cpu)
	}

	for _, dir := range indexes {
		level, err := readSysfsInt(filepath.Join(dir, "level"))
		if err != nil || level != 1 {
			continue
		}
		kind, err := readSysfsString(filepath.Join(dir, "type"))
		if err != nil || kind != "Data" {
			continue
		}

		size, err := readSysfsSize(filepath.Join(dir, "size"))
		if err != nil {
			return Geometry{}, err
		}
		lineSize, err := readSysfsInt(filepath.Join(dir, "coherency_line_size"))
		if err != nil {
			return Geometry{}, err
		}
		assoc, err := readSysfsInt(filepath.Join(dir, "ways_of_associativity"))
		if err != nil {
			return Geometry{}, err
		}

		return DeriveGeometry(size, lineSize, assoc)
	}

	return Geometry{}, fmt.Errorf(
		"%w: cpu %d reports no L1 data cache", ErrGeometry, cpu)
}

func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func readSysfsInt(path string) (int, error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return n, nil
}

// readSysfsSize parses sizes of the form "32K" or "1M".
func readSysfsSize(path string) (int, error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}

	multiplier := 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return n * multiplier, nil
}
