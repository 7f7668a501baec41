package receiver

import (
	"fmt"

	"github.com/roethlar/blit/blitproto"
)

// PFILE_* is the stream_id-multiplexed variant of FILE_START/DATA/END used
// by worker connections for medium-sized files (spec §4.1, §4.10).

func (c *Connection) handlePFileStart(payload []byte) error {
	streamID, rest, err := blitproto.DecodePFilePrefix(payload)
	if err != nil {
		return err
	}
	hdr, err := blitproto.DecodeFileHeader(rest)
	if err != nil {
		return err
	}
	f, abs, err := c.createPreallocated(hdr.Relpath, int64(hdr.Size))
	if err != nil {
		return err
	}
	c.openFiles[streamID] = &openFile{path: abs, handle: f, declaredSize: int64(hdr.Size), mtimeS: hdr.MtimeS}
	return nil
}

func (c *Connection) handlePFileData(payload []byte) error {
	streamID, data, err := blitproto.DecodePFilePrefix(payload)
	if err != nil {
		return err
	}
	of, ok := c.openFiles[streamID]
	if !ok {
		return fmt.Errorf("PFILE_DATA for unknown stream %d", streamID)
	}
	n, err := of.handle.Write(data)
	of.written += int64(n)
	return err
}

func (c *Connection) handlePFileEnd(payload []byte) error {
	streamID, _, err := blitproto.DecodePFilePrefix(payload)
	if err != nil {
		return err
	}
	of, ok := c.openFiles[streamID]
	if !ok {
		return fmt.Errorf("PFILE_END for unknown stream %d", streamID)
	}
	delete(c.openFiles, streamID)
	if err := finalizeFile(of); err != nil {
		return err
	}
	c.Counters.FilesWritten++
	c.Counters.BytesWritten += of.written
	return c.Conn.WriteFrame(blitproto.TypeOK, nil)
}
