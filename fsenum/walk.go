package fsenum

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Tier classifies a regular file by size, per spec §4.3.
type Tier int

const (
	TierSmall  Tier = iota // < 1 MiB: tar candidate
	TierMedium             // [1 MiB, 100 MiB]: parallel framed
	TierLarge              // > 100 MiB: delta or raw
)

const (
	SmallMax  = 1 << 20          // 1 MiB
	LargeMin  = 100 << 20        // 100 MiB
)

func ClassifySize(size int64) Tier {
	switch {
	case size < SmallMax:
		return TierSmall
	case size <= LargeMin:
		return TierMedium
	default:
		return TierLarge
	}
}

// Kind mirrors manifest.EntryKind without importing it, to keep fsenum leaf-level.
type Kind int

const (
	KindFile Kind = iota
	KindSymlink
	KindDirectory
)

// Entry is one walked filesystem entry, relative to the scan root.
type Entry struct {
	Relpath string
	Kind    Kind
	Size    int64
	MtimeS  int64
	Target  string // symlink target, if Kind == KindSymlink
	Tier    Tier   // valid only if Kind == KindFile
}

// Filter holds the include/exclude configuration from spec §4.3 and §6
// (--xf, --xd, min/max size).
type Filter struct {
	ExcludeDirs  []string
	ExcludeFiles []string
	MinSize      int64
	MaxSize      int64 // 0 means unbounded

	// Walk does not consult IncludeEmptyDirs, PreserveSymlinks or
	// PreserveJunctions: it always emits directories, and always emits a
	// symlink as a KindSymlink entry without following it.
	IncludeEmptyDirs  bool
	PreserveSymlinks  bool // --sl
	PreserveJunctions bool // --sj

	ExcludeSymlinks     bool // --xj: skip every symlink entry
	ExcludeDirSymlinks  bool // --xjd: skip symlinks resolving to a directory
	ExcludeFileSymlinks bool // --xjf: skip symlinks resolving to a regular file
}

func (f *Filter) dirExcluded(name string) bool {
	return MatchAny(f.ExcludeDirs, name)
}

func (f *Filter) fileExcluded(name string) bool {
	return MatchAny(f.ExcludeFiles, name)
}

func (f *Filter) sizeOK(size int64) bool {
	if size < f.MinSize {
		return false
	}
	if f.MaxSize > 0 && size > f.MaxSize {
		return false
	}
	return true
}

// Walk walks root without following symlinks (directories), applying the
// filter's exclude-dirs rule to any path component (rsync semantics: a hit
// prunes the whole subtree) and exclude-files to the filename. Results are
// returned sorted by relpath for deterministic manifests.
func Walk(root string, filter *Filter) ([]Entry, error) {
	var entries []Entry
	root = filepath.Clean(root)

	var walkDir func(abs, rel string) error
	walkDir = func(abs, rel string) error {
		items, err := os.ReadDir(abs)
		if err != nil {
			return err
		}
		sort.Slice(items, func(i, j int) bool { return items[i].Name() < items[j].Name() })

		for _, it := range items {
			name := it.Name()
			childRel := name
			if rel != "" {
				childRel = rel + "/" + name
			}
			childAbs := filepath.Join(abs, name)

			info, err := os.Lstat(childAbs)
			if err != nil {
				continue
			}
			mode := info.Mode()

			if mode&os.ModeSymlink != 0 {
				if filter.fileExcluded(name) || filter.ExcludeSymlinks {
					continue
				}
				target, err := os.Readlink(childAbs)
				if err != nil {
					continue
				}
				if filter.ExcludeDirSymlinks || filter.ExcludeFileSymlinks {
					if tinfo, err := os.Stat(childAbs); err == nil {
						if tinfo.IsDir() && filter.ExcludeDirSymlinks {
							continue
						}
						if !tinfo.IsDir() && filter.ExcludeFileSymlinks {
							continue
						}
					}
				}
				entries = append(entries, Entry{
					Relpath: childRel,
					Kind:    KindSymlink,
					Target:  target,
					MtimeS:  info.ModTime().Unix(),
				})
				continue
			}

			if mode.IsDir() {
				if filter.pathComponentExcluded(childRel) {
					continue
				}
				entries = append(entries, Entry{
					Relpath: childRel,
					Kind:    KindDirectory,
					MtimeS:  info.ModTime().Unix(),
				})
				if err := walkDir(childAbs, childRel); err != nil {
					return err
				}
				continue
			}

			if mode.IsRegular() {
				if filter.fileExcluded(name) {
					continue
				}
				size := info.Size()
				if !filter.sizeOK(size) {
					continue
				}
				entries = append(entries, Entry{
					Relpath: childRel,
					Kind:    KindFile,
					Size:    size,
					MtimeS:  info.ModTime().Unix(),
					Tier:    ClassifySize(size),
				})
			}
		}
		return nil
	}

	if err := walkDir(root, ""); err != nil {
		return nil, err
	}
	return entries, nil
}

// pathComponentExcluded applies exclude_dirs to every component of a
// directory's path, as rsync does: a hit on ANY component prunes the
// subtree, not just a match on the final component.
func (f *Filter) pathComponentExcluded(relpath string) bool {
	for _, comp := range strings.Split(relpath, "/") {
		if f.dirExcluded(comp) {
			return true
		}
	}
	return false
}
