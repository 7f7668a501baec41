package receiver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roethlar/blit/blitproto"
)

// donePhase implements the Done state: mirror deletion (if requested), then
// OK and close (spec §4.9).
func (c *Connection) donePhase() error {
	if c.Opts.Mirror {
		if err := c.mirrorDelete(); err != nil {
			return c.sendError(fmt.Errorf("mirror delete: %w", err))
		}
	}
	return c.Conn.WriteFrame(blitproto.TypeOK, nil)
}

// mirrorDelete enumerates BaseDir and deletes any file/symlink not in
// expectedPaths, then any directory not in expectedPaths, bottom-up, so a
// parent directory is only removed once everything under it is gone (spec
// §4.9 Done state).
func (c *Connection) mirrorDelete() error {
	type entry struct {
		relpath string
		abs     string
		isDir   bool
	}
	var entries []entry

	err := filepath.Walk(c.BaseDir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == c.BaseDir {
			return nil
		}
		rel, err := filepath.Rel(c.BaseDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		entries = append(entries, entry{relpath: rel, abs: path, isDir: fi.IsDir()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk base: %w", err)
	}

	// Delete files/symlinks first.
	var dirs []entry
	for _, e := range entries {
		if e.isDir {
			dirs = append(dirs, e)
			continue
		}
		if c.expectedPaths[e.relpath] {
			continue
		}
		if err := os.Remove(e.abs); err != nil {
			return fmt.Errorf("remove %s: %w", e.relpath, err)
		}
		c.Counters.RemovedMirror++
	}

	// Directories bottom-up: most path separators (deepest) first.
	depth := func(rel string) int { return strings.Count(rel, "/") }
	sort.Slice(dirs, func(i, j int) bool { return depth(dirs[i].relpath) > depth(dirs[j].relpath) })
	for _, d := range dirs {
		if c.expectedPaths[d.relpath] {
			continue
		}
		if err := os.Remove(d.abs); err != nil {
			continue // not empty (holds an expected descendant the walk ordering didn't reach yet) or already gone
		}
		c.Counters.RemovedMirror++
	}
	return nil
}
