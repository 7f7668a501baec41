// Package session implements the sender side of a transfer: the control
// connection's handshake/manifest/need-list exchange, the tar phase, the
// worker pool for medium/large files, and the verification phase (spec
// §4.8, §4.10).
package session

import (
	"runtime"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/fsenum"
)

// Options configures a Run (spec §6 CLI flags that reach the sender side).
type Options struct {
	Mirror           bool
	Pull             bool
	IncludeEmptyDirs bool
	NoVerify         bool
	NoRestart        bool // disables delta mode entirely; always FILE_RAW_START/PFILE
	Checksum         bool // --checksum; no session code reads it
	SpeedProfile     bool // --ludicrous-speed
	NetWorkers       int  // 0 = auto-tune
	NetChunkMB       int  // 0 = default (profile-dependent)
	Filter           fsenum.Filter
}

// ChunkSize returns the effective raw/delta streaming chunk size: 4 MiB by
// default, 8 MiB under the speed-profile flag, or the explicit override
// (spec §4.10).
func (o Options) ChunkSize() int {
	if o.NetChunkMB > 0 {
		return o.NetChunkMB << 20
	}
	if o.SpeedProfile {
		return 8 << 20
	}
	return 4 << 20
}

// WorkerCount auto-tunes to min(32, max(2, min(largeCount, max(4,
// cpus/2)))) unless NetWorkers overrides it (spec §4.10).
func (o Options) WorkerCount(largeCount int) int {
	if o.NetWorkers > 0 {
		return o.NetWorkers
	}
	if largeCount <= 0 {
		return 0
	}
	floor := runtime.NumCPU() / 2
	if floor < 4 {
		floor = 4
	}
	n := largeCount
	if n > floor {
		n = floor
	}
	if n < 2 {
		n = 2
	}
	if n > 32 {
		n = 32
	}
	return n
}

// startFlags builds the wire StartFlag bitset from Options.
func (o Options) startFlags() blitproto.StartFlag {
	var f blitproto.StartFlag
	if o.Mirror {
		f |= blitproto.FlagMirror
	}
	if o.Pull {
		f |= blitproto.FlagPull
	}
	if o.IncludeEmptyDirs {
		f |= blitproto.FlagIncludeEmptyDirs
	}
	if o.SpeedProfile {
		f |= blitproto.FlagSpeedProfile
	}
	return f
}
