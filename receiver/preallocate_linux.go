//go:build linux

package receiver

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

func parentDir(path string) string { return filepath.Dir(path) }

// preallocate reserves size bytes for f using fallocate, per spec §4.9
// ("preallocate size, fallocate on Linux"). Failure is non-fatal: a short
// write still succeeds, just without the contiguous-allocation benefit.
func preallocate(f *os.File, size int64) {
	if size <= 0 {
		return
	}
	_ = unix.Fallocate(int(f.Fd()), 0, 0, size)
}
