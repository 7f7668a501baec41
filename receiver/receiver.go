// Package receiver implements the daemon-side connection state machine
// from spec §4.9: Handshake → Manifest → Transfer → Done.
package receiver

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/internal/log"
	"github.com/roethlar/blit/manifest"
	"github.com/roethlar/blit/pathsafe"
)

// Options configures a Connection (spec §6 CLI flags that reach the
// receiver side).
type Options struct {
	Mirror           bool
	IncludeEmptyDirs bool
	NoVerify         bool
}

// Counters tallies what a connection did, for end-of-session logging.
type Counters struct {
	FilesWritten  int
	BytesWritten  int64
	SymlinksMade  int
	DirsMade      int
	RemovedMirror int
}

// Connection is the per-connection receiver state (spec §3 "Connection
// state (receiver)").
type Connection struct {
	BaseDir string
	Opts    Options
	Log     log.Logger
	Conn    *blitproto.Conn

	// ResolveBaseDir, if set, overrides BaseDir per connection using the
	// START frame's Dest field (a module name in daemon module-serving
	// mode) and the peer's address. Nil means BaseDir is fixed at
	// construction time (single-root daemon mode).
	ResolveBaseDir func(dest, peerAddr string) (string, error)

	expectedPaths map[string]bool
	needed        map[string]bool
	clientPresent map[string]bool

	openFiles map[uint8]*openFile // PFILE_* multiplexed streams
	current   *openFile           // single-stream FILE_*/FILE_RAW_START target
	delta     *deltaState

	verifyBatch []string
	pull        bool
	tarBuf      []byte // accumulates TAR_DATA between TAR_START and TAR_END

	// ID identifies this connection in log lines and counter summaries, so
	// concurrent daemon connections can be told apart (spec §5: receiver
	// accepts each connection on a dedicated task).
	ID uuid.UUID

	Counters Counters
}

// abs resolves relpath against BaseDir via pathsafe, rejecting traversal and
// symlink-escape attempts (spec §4.2). Every wire relpath passes through
// here before touching the filesystem.
func (c *Connection) abs(relpath string) (string, error) {
	return pathsafe.Resolve(c.BaseDir, relpath)
}

// openFile tracks one in-progress FILE_START/PFILE_START/FILE_RAW_START
// target (spec §3 open_files entry).
type openFile struct {
	path         string
	handle       *os.File
	declaredSize int64
	written      int64
	mtimeS       int64
}

// New constructs a Connection ready to run HandleConnection.
func New(baseDir string, opts Options, logger log.Logger, conn *blitproto.Conn) *Connection {
	if logger == nil {
		logger = log.Discard
	}
	return &Connection{
		BaseDir:       baseDir,
		Opts:          opts,
		Log:           logger,
		Conn:          conn,
		expectedPaths: map[string]bool{},
		needed:        map[string]bool{},
		clientPresent: map[string]bool{},
		openFiles:     map[uint8]*openFile{},
		ID:            uuid.New(),
	}
}

// HandleConnection runs the full state machine for one accepted connection,
// from Handshake through Done. It never returns the underlying I/O error for
// a clean client-initiated close; anything else is returned to the caller.
func (c *Connection) HandleConnection() error {
	if err := c.handshake(); err != nil {
		return fmt.Errorf("receiver: handshake: %w", err)
	}
	pullMode, err := c.manifestPhase()
	if err != nil {
		return fmt.Errorf("receiver: manifest: %w", err)
	}
	if pullMode {
		if err := c.pullSend(); err != nil {
			return fmt.Errorf("receiver: pull: %w", err)
		}
	} else {
		if err := c.transferPhase(); err != nil {
			return fmt.Errorf("receiver: transfer: %w", err)
		}
	}
	if err := c.donePhase(); err != nil {
		return fmt.Errorf("receiver: done: %w", err)
	}
	c.Log.Printf("connection %s done: %d files (%d bytes), %d symlinks, %d dirs, %d mirror-removed",
		c.ID, c.Counters.FilesWritten, c.Counters.BytesWritten, c.Counters.SymlinksMade,
		c.Counters.DirsMade, c.Counters.RemovedMirror)
	return nil
}

// handshake implements the Handshake state: expect START, mkdir base, OK.
func (c *Connection) handshake() error {
	f, err := c.Conn.Expect(blitproto.TypeStart)
	if err != nil {
		return err
	}
	start, err := blitproto.DecodeStart(f.Payload)
	if err != nil {
		return c.protoError(err)
	}
	c.Opts.Mirror = c.Opts.Mirror || start.Flags&blitproto.FlagMirror != 0
	c.Opts.IncludeEmptyDirs = c.Opts.IncludeEmptyDirs || start.Flags&blitproto.FlagIncludeEmptyDirs != 0
	c.pull = start.Flags&blitproto.FlagPull != 0

	if c.ResolveBaseDir != nil {
		base, err := c.ResolveBaseDir(start.Dest, c.Conn.NetConn.RemoteAddr().String())
		if err != nil {
			return c.sendError(fmt.Errorf("module lookup: %w", err))
		}
		c.BaseDir = base
	}

	if err := os.MkdirAll(c.BaseDir, 0o755); err != nil {
		return c.sendError(fmt.Errorf("mkdir base: %w", err))
	}
	return c.Conn.WriteFrame(blitproto.TypeOK, nil)
}

// localLookup answers manifest.NeedList's lookup function from the live
// filesystem under BaseDir.
func (c *Connection) localLookup(relpath string) manifest.LocalState {
	abs, err := c.abs(relpath)
	if err != nil {
		return manifest.LocalState{} // unsafe path: treat as absent, forcing transfer (and rejection at write time)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return manifest.LocalState{}
	}
	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		target, err := os.Readlink(abs)
		if err != nil {
			return manifest.LocalState{}
		}
		return manifest.LocalState{Present: true, Kind: manifest.KindSymlink, Target: target, MtimeS: info.ModTime().Unix()}
	case mode.IsDir():
		return manifest.LocalState{Present: true, Kind: manifest.KindDirectory}
	default:
		return manifest.LocalState{Present: true, Kind: manifest.KindFile, Size: info.Size(), MtimeS: info.ModTime().Unix()}
	}
}

func (c *Connection) protoError(err error) error {
	_ = c.Conn.WriteFrame(blitproto.TypeError, []byte(err.Error()))
	return err
}

func (c *Connection) sendError(err error) error {
	_ = c.Conn.WriteFrame(blitproto.TypeError, []byte(err.Error()))
	return err
}
