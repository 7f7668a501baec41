// Package manifest defines ManifestEntry (the sender's inventory item) and
// the NeedList computation a receiver performs against its local tree
// (spec §3, §4.8/4.9).
package manifest

import (
	"github.com/roethlar/blit/fsenum"
)

// Kind mirrors fsenum.Kind; kept distinct so manifest's wire semantics don't
// leak fsenum's walk-local details into the protocol layer.
type Kind = fsenum.Kind

const (
	KindFile      = fsenum.KindFile
	KindSymlink   = fsenum.KindSymlink
	KindDirectory = fsenum.KindDirectory
)

// Entry is one ManifestEntry (spec §3).
type Entry struct {
	Relpath string
	Kind    Kind
	Size    int64 // files only
	MtimeS  int64 // files and symlinks; the wire entry carries none for directories
	Target  string // symlinks only
}

// FromFSEnum converts a fsenum.Entry into a wire ManifestEntry.
func FromFSEnum(e fsenum.Entry) Entry {
	return Entry{
		Relpath: e.Relpath,
		Kind:    e.Kind,
		Size:    e.Size,
		MtimeS:  e.MtimeS,
		Target:  e.Target,
	}
}

// MtimeTolerance is the slack allowed before a file is considered modified
// (spec §3: "|local_mtime − manifest_mtime| > 2 seconds").
const MtimeTolerance = 2

// LocalState is what the receiver knows about a path already present on
// disk, used to decide whether it's needed.
type LocalState struct {
	Present bool
	Kind    Kind
	Size    int64
	MtimeS  int64
	Target  string
}

// Needed reports whether the manifest entry must be retransmitted, given
// the receiver's local state for that relpath (spec §3 NeedList, testable
// property §8.6).
func Needed(entry Entry, local LocalState) bool {
	if !local.Present {
		return entry.Kind != KindDirectory // directories are just mkdir'd; always "satisfied" by creation
	}
	switch entry.Kind {
	case KindFile:
		if local.Kind != KindFile {
			return true
		}
		if local.Size != entry.Size {
			return true
		}
		delta := local.MtimeS - entry.MtimeS
		if delta < 0 {
			delta = -delta
		}
		return delta > MtimeTolerance
	case KindSymlink:
		if local.Kind != KindSymlink {
			return true
		}
		return local.Target != entry.Target
	case KindDirectory:
		return false
	default:
		return true
	}
}

// NeedList computes the set of relpaths needed, plus the set already
// present on the receiver ("client_present"), from a manifest and a lookup
// function for local state.
func NeedList(entries []Entry, localLookup func(relpath string) LocalState) (needed []string, present []string) {
	for _, e := range entries {
		local := localLookup(e.Relpath)
		if local.Present {
			present = append(present, e.Relpath)
		}
		if Needed(e, local) {
			needed = append(needed, e.Relpath)
		}
	}
	return needed, present
}
