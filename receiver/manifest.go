package receiver

import (
	"fmt"
	"os"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/manifest"
)

// manifestPhase implements the Manifest state: collect entries, compute
// needed/client_present, emit NEED_LIST. Returns whether the session
// switches into pull mode (spec §4.9).
func (c *Connection) manifestPhase() (pullMode bool, err error) {
	if _, err := c.Conn.Expect(blitproto.TypeManifestStart); err != nil {
		return false, err
	}

	var entries []manifest.Entry
	for {
		f, err := c.Conn.ReadFrame()
		if err != nil {
			return false, err
		}
		if f.Type == blitproto.TypeManifestEnd {
			break
		}
		if f.Type != blitproto.TypeManifestEntry {
			return false, blitproto.UnexpectedFrameError(blitproto.TypeManifestEntry, f.Type)
		}
		wire, err := blitproto.DecodeManifestEntry(f.Payload)
		if err != nil {
			return false, err
		}
		entries = append(entries, manifest.Entry{
			Relpath: wire.Relpath,
			Kind:    manifest.Kind(wire.Kind),
			Size:    int64(wire.Size),
			MtimeS:  wire.MtimeS,
			Target:  wire.Target,
		})
	}

	for _, e := range entries {
		c.expectedPaths[e.Relpath] = true
	}
	needed, present := manifest.NeedList(entries, c.localLookup)
	for _, r := range needed {
		c.needed[r] = true
	}
	for _, r := range present {
		c.clientPresent[r] = true
	}

	payload := blitproto.NeedListPayload{Relpaths: needed}.Encode()
	if err := c.Conn.WriteFrame(blitproto.TypeNeedList, payload); err != nil {
		return false, err
	}

	// Pull mode was recorded from the START flags during the handshake, so
	// the only thing left here is to report it back to the dispatcher.
	return c.pullRequested(), nil
}

func (c *Connection) pullRequested() bool {
	return c.pull
}

// pullSend implements the pull-mode branch of Manifest: the receiver
// switches into a sender role and streams every entry of the peer's
// manifest that differs from the local copy (the need-list computed above),
// using the same FILE_RAW_START body format a normal sender would use for
// non-delta transfers (spec §4.9: "switch into sender role and stream
// matching entries as described above"). After its own DONE it waits for
// the peer's DONE before the Done state replies OK.
func (c *Connection) pullSend() error {
	for relpath := range c.needed {
		abs, err := c.abs(relpath)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			continue // local copy vanished since the manifest was taken, or is a directory; skip
		}
		if err := c.sendRawFile(relpath, abs, info); err != nil {
			return fmt.Errorf("pull: send %s: %w", relpath, err)
		}
	}
	if err := c.Conn.WriteFrame(blitproto.TypeDone, nil); err != nil {
		return err
	}
	_, err := c.Conn.Expect(blitproto.TypeDone)
	return err
}

// sendRawFile writes one FILE_RAW_START header followed by the file's raw
// bytes (unframed, per spec §4.1), then expects OK. Used only by the
// pull-mode sender role; the regular sender lives in the session package.
func (c *Connection) sendRawFile(relpath, abs string, info os.FileInfo) error {
	f, err := os.Open(abs)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := blitproto.FileHeader{Relpath: relpath, Size: uint64(info.Size()), MtimeS: info.ModTime().Unix()}
	if err := c.Conn.WriteFrame(blitproto.TypeFileRawStart, hdr.Encode()); err != nil {
		return err
	}
	if err := writeRawBody(c.Conn.NetConn, f, info.Size()); err != nil {
		return err
	}
	_, err = c.Conn.Expect(blitproto.TypeOK)
	return err
}
