package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/internal/log"
)

// Pull drives the client side of a pull transfer: it asks the peer (the
// receiver.Connection on the other end of conn) to act as a sender for
// remoteRelpath, and writes whatever it streams back into destDir. This is
// the reverse of Run (push); the wire roles are still Manifest → Transfer
// → Done, but the manifest this side sends describes destDir's current
// contents, and a differing entry means "fetch it" rather than "it needs
// the file I'm about to send" (spec §4.9 pull-mode note).
func Pull(conn *blitproto.Conn, remoteRelpath, destDir string, opts Options, logger log.Logger) (Summary, error) {
	if logger == nil {
		logger = log.Discard
	}
	var sum Summary

	flags := opts.startFlags() | blitproto.FlagPull
	if err := conn.WriteFrame(blitproto.TypeStart, blitproto.StartPayload{Dest: remoteRelpath, Flags: flags}.Encode()); err != nil {
		return sum, fmt.Errorf("session: send START: %w", err)
	}
	if _, err := conn.Expect(blitproto.TypeOK); err != nil {
		return sum, fmt.Errorf("session: START handshake: %w", err)
	}

	p, err := buildPlan(destDir, opts.Filter)
	if err != nil {
		return sum, fmt.Errorf("session: walk dest: %w", err)
	}
	if err := sendManifest(conn, p.entries); err != nil {
		return sum, fmt.Errorf("session: send manifest: %w", err)
	}
	if _, err := conn.Expect(blitproto.TypeNeedList); err != nil {
		return sum, fmt.Errorf("session: recv need-list: %w", err)
	}

	for {
		f, err := conn.ReadFrame()
		if err != nil {
			return sum, fmt.Errorf("session: pull recv: %w", err)
		}
		if f.Type == blitproto.TypeDone {
			break
		}
		if f.Type != blitproto.TypeFileRawStart {
			return sum, blitproto.UnexpectedFrameError(blitproto.TypeFileRawStart, f.Type)
		}
		if err := recvPulledFile(conn, destDir, f.Payload); err != nil {
			return sum, fmt.Errorf("session: pull file: %w", err)
		}
		sum.FilesStreamed++
	}

	if err := conn.WriteFrame(blitproto.TypeDone, nil); err != nil {
		return sum, fmt.Errorf("session: send DONE: %w", err)
	}
	if _, err := conn.Expect(blitproto.TypeOK); err != nil {
		return sum, fmt.Errorf("session: final OK: %w", err)
	}
	return sum, nil
}

// recvPulledFile reads one FILE_RAW_START header plus its unframed body and
// writes it under destDir, acking OK (the mirror image of the receiver
// package's sendRawFile/handleFileRawStart pair).
func recvPulledFile(conn *blitproto.Conn, destDir string, payload []byte) error {
	hdr, err := blitproto.DecodeFileHeader(payload)
	if err != nil {
		return err
	}
	abs := filepath.Join(destDir, filepath.FromSlash(hdr.Relpath))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("mkdir parent: %w", err)
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", hdr.Relpath, err)
	}
	if _, err := io.CopyN(f, conn.NetConn, int64(hdr.Size)); err != nil {
		f.Close()
		return fmt.Errorf("body %s: %w", hdr.Relpath, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	t := time.Unix(hdr.MtimeS, 0)
	if err := os.Chtimes(abs, t, t); err != nil {
		return err
	}
	return conn.WriteFrame(blitproto.TypeOK, nil)
}
