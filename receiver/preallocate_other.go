//go:build !linux

package receiver

import (
	"os"
	"path/filepath"
)

func parentDir(path string) string { return filepath.Dir(path) }

// preallocate outside Linux extends f to size with a plain truncate
// instead of a dedicated fallocate-equivalent syscall (spec §4.9 only
// mandates fallocate "on Linux").
func preallocate(f *os.File, size int64) {
	if size <= 0 {
		return
	}
	_ = f.Truncate(size)
}
