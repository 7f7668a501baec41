package session

import (
	"fmt"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/internal/log"
	"github.com/roethlar/blit/manifest"
)

// Dialer opens one additional transport connection to the same destination
// as the control connection. Run uses it once per worker; callers build it
// from trust.ClientConfig + tls.Dial (or net.Dial under
// --never-tell-me-the-odds), keeping session parametric over the transport
// the way the teacher's rsyncd.Server is parametric over its io.ReadWriter.
type Dialer func() (*blitproto.Conn, error)

// Summary reports what a Run transferred, for the UI-bridge line protocol.
type Summary struct {
	FilesTarred    int
	FilesStreamed  int
	SymlinksMade   int
	DirsMade       int
	VerifiedOK     int
	VerifyFailures int
}

// Run drives one full sender-side session against an already-established
// control connection: handshake, manifest exchange, tar phase, symlinks,
// worker-distributed medium/large files, verification, DONE (spec §4.8).
func Run(control *blitproto.Conn, dial Dialer, sourceRoot, destPath string, opts Options, logger log.Logger) (Summary, error) {
	if logger == nil {
		logger = log.Discard
	}
	var sum Summary

	if err := control.WriteFrame(blitproto.TypeStart, blitproto.StartPayload{Dest: destPath, Flags: opts.startFlags()}.Encode()); err != nil {
		return sum, fmt.Errorf("session: send START: %w", err)
	}
	if _, err := control.Expect(blitproto.TypeOK); err != nil {
		return sum, fmt.Errorf("session: START handshake: %w", err)
	}

	p, err := buildPlan(sourceRoot, opts.Filter)
	if err != nil {
		return sum, fmt.Errorf("session: walk source: %w", err)
	}

	if err := sendManifest(control, p.entries); err != nil {
		return sum, fmt.Errorf("session: send manifest: %w", err)
	}
	needList, err := recvNeedList(control)
	if err != nil {
		return sum, fmt.Errorf("session: recv need-list: %w", err)
	}
	needSet := make(map[string]bool, len(needList))
	for _, r := range needList {
		needSet[r] = true
	}

	if opts.Pull {
		// The receiver has switched into a sender role and will stream
		// FILE_RAW_START bodies for everything it has that we asked for;
		// we just absorb the Transfer-phase frames as an ordinary receiver
		// would. Run does not absorb those frames: callers doing a pull
		// use Pull instead of Run.
		return sum, fmt.Errorf("session: pull mode is handled by the receiver package, not session.Run")
	}

	small, mediumLarge, symlinks := p.needed(needSet)

	for _, d := range p.dirs {
		if err := control.WriteFrame(blitproto.TypeMkdir, blitproto.MkdirPayload{Relpath: d.Relpath}.Encode()); err != nil {
			return sum, fmt.Errorf("session: MKDIR %s: %w", d.Relpath, err)
		}
		sum.DirsMade++
	}

	if len(small) > 0 {
		n, err := sendTarPhase(control, p, small)
		if err != nil {
			return sum, fmt.Errorf("session: tar phase: %w", err)
		}
		sum.FilesTarred = n
	}

	for _, s := range symlinks {
		if err := control.WriteFrame(blitproto.TypeSymlink, blitproto.SymlinkPayload{Relpath: s.Relpath, Target: s.Target}.Encode()); err != nil {
			return sum, fmt.Errorf("session: SYMLINK %s: %w", s.Relpath, err)
		}
		sum.SymlinksMade++
	}

	var transferred []manifest.Entry
	if len(mediumLarge) > 0 {
		n, err := runWorkerPool(dial, p, mediumLarge, opts, logger)
		if err != nil {
			return sum, fmt.Errorf("session: worker pool: %w", err)
		}
		sum.FilesStreamed = n
		transferred = mediumLarge
	}
	transferred = append(transferred, small...)

	if !opts.NoVerify && len(transferred) > 0 {
		ok, failed, err := verifyPhase(control, p, transferred)
		if err != nil {
			return sum, fmt.Errorf("session: verify phase: %w", err)
		}
		sum.VerifiedOK = ok
		sum.VerifyFailures = failed
		if failed > 0 {
			return sum, fmt.Errorf("session: %d files failed verification", failed)
		}
	}

	if err := control.WriteFrame(blitproto.TypeDone, nil); err != nil {
		return sum, fmt.Errorf("session: send DONE: %w", err)
	}
	if _, err := control.Expect(blitproto.TypeOK); err != nil {
		return sum, fmt.Errorf("session: final OK: %w", err)
	}
	return sum, nil
}

func sendManifest(conn *blitproto.Conn, entries []manifest.Entry) error {
	if err := conn.WriteFrame(blitproto.TypeManifestStart, nil); err != nil {
		return err
	}
	for _, e := range entries {
		wire := blitproto.ManifestEntryPayload{
			Kind:    blitproto.ManifestEntryKind(e.Kind),
			Relpath: e.Relpath,
			Size:    uint64(e.Size),
			MtimeS:  e.MtimeS,
			Target:  e.Target,
		}
		if err := conn.WriteFrame(blitproto.TypeManifestEntry, wire.Encode()); err != nil {
			return err
		}
	}
	return conn.WriteFrame(blitproto.TypeManifestEnd, nil)
}

func recvNeedList(conn *blitproto.Conn) ([]string, error) {
	f, err := conn.Expect(blitproto.TypeNeedList)
	if err != nil {
		return nil, err
	}
	p, err := blitproto.DecodeNeedList(f.Payload)
	if err != nil {
		return nil, err
	}
	return p.Relpaths, nil
}
