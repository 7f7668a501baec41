package receiver

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/roethlar/blit/blitproto"
)

// sparseZeroThreshold is the minimum length of an all-zero chunk that gets
// seeked over instead of written (spec §4.9 FILE_RAW_START sparse rule).
const sparseZeroThreshold = 128 << 10

// transferPhase implements the Transfer state: dispatch frames until DONE.
func (c *Connection) transferPhase() error {
	for {
		f, err := c.Conn.ReadFrame()
		if err != nil {
			return err
		}
		switch f.Type {
		case blitproto.TypeDone:
			return nil
		case blitproto.TypeTarStart:
			if err := c.handleTarStart(); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeTarData:
			if err := c.handleTarData(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeTarEnd:
			if err := c.handleTarEnd(); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeFileStart:
			if err := c.handleFileStart(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeFileData:
			if err := c.handleFileData(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeFileEnd:
			if err := c.handleFileEnd(); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeFileRawStart:
			if err := c.handleFileRawStart(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypePFileStart:
			if err := c.handlePFileStart(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypePFileData:
			if err := c.handlePFileData(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypePFileEnd:
			if err := c.handlePFileEnd(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeSymlink:
			if err := c.handleSymlink(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeMkdir:
			if err := c.handleMkdir(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeSetAttr:
			if err := c.handleSetAttr(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeDeltaStart:
			if err := c.handleDeltaStart(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeDeltaSample:
			if err := c.handleDeltaSample(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeDeltaEnd:
			if err := c.handleDeltaEnd(); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeDeltaData:
			if err := c.handleDeltaData(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeDeltaDone:
			if err := c.handleDeltaDone(); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeVerifyReq:
			if err := c.handleVerifyReq(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeVerifyDone:
			if err := c.handleVerifyDone(); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeListReq:
			if err := c.handleListReq(f.Payload); err != nil {
				return c.sendError(err)
			}
		case blitproto.TypeRemoveTreeReq:
			if err := c.handleRemoveTreeReq(f.Payload); err != nil {
				return c.sendError(err)
			}
		default:
			return c.sendError(fmt.Errorf("receiver: unexpected frame %s in Transfer", f.Type))
		}
	}
}

func (c *Connection) createPreallocated(relpath string, size int64) (*os.File, string, error) {
	abs, err := c.abs(relpath)
	if err != nil {
		return nil, "", fmt.Errorf("path: %w", err)
	}
	if err := os.MkdirAll(parentDir(abs), 0o755); err != nil {
		return nil, "", fmt.Errorf("mkdir parent: %w", err)
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("create: %w", err)
	}
	preallocate(f, size)
	return f, abs, nil
}

// --- FILE_START / FILE_DATA / FILE_END ---

func (c *Connection) handleFileStart(payload []byte) error {
	hdr, err := blitproto.DecodeFileHeader(payload)
	if err != nil {
		return err
	}
	f, abs, err := c.createPreallocated(hdr.Relpath, int64(hdr.Size))
	if err != nil {
		return err
	}
	c.current = &openFile{path: abs, handle: f, declaredSize: int64(hdr.Size), mtimeS: hdr.MtimeS}
	return nil
}

func (c *Connection) handleFileData(payload []byte) error {
	if c.current == nil {
		return fmt.Errorf("FILE_DATA with no open file")
	}
	n, err := c.current.handle.Write(payload)
	c.current.written += int64(n)
	return err
}

func (c *Connection) handleFileEnd() error {
	if c.current == nil {
		return fmt.Errorf("FILE_END with no open file")
	}
	of := c.current
	c.current = nil
	if err := finalizeFile(of); err != nil {
		return err
	}
	c.Counters.FilesWritten++
	c.Counters.BytesWritten += of.written
	return c.Conn.WriteFrame(blitproto.TypeOK, nil)
}

// --- FILE_RAW_START: header, then exactly size raw (unframed) bytes ---

func (c *Connection) handleFileRawStart(payload []byte) error {
	hdr, err := blitproto.DecodeFileHeader(payload)
	if err != nil {
		return err
	}
	// A sender that opened DELTA_START for this path and then abandoned
	// delta (spec §4.5 fallback policy) sends FILE_RAW_START on the same
	// connection instead of DELTA_DATA/DELTA_DONE; discard the now-stale
	// delta state rather than leak its file handle.
	if c.delta != nil {
		c.delta.dst.Close()
		c.delta = nil
	}
	f, abs, err := c.createPreallocated(hdr.Relpath, int64(hdr.Size))
	if err != nil {
		return err
	}
	defer f.Close()

	if err := readRawBodySparse(c.Conn.NetConn, f, int64(hdr.Size)); err != nil {
		return fmt.Errorf("raw body %s: %w", hdr.Relpath, err)
	}
	if err := os.Chtimes(abs, time.Unix(hdr.MtimeS, 0), time.Unix(hdr.MtimeS, 0)); err != nil {
		return fmt.Errorf("chtimes %s: %w", hdr.Relpath, err)
	}
	c.Counters.FilesWritten++
	c.Counters.BytesWritten += int64(hdr.Size)
	return c.Conn.WriteFrame(blitproto.TypeOK, nil)
}

// readRawBodySparse reads exactly size bytes from r into f in reads of up to
// 256 KiB, seeking over each read that is all zero and at least
// sparseZeroThreshold bytes long instead of writing it, leaving the file
// sparse on filesystems that support holes. A zero run that spans reads is
// only skipped for the reads it fills entirely.
func readRawBodySparse(r io.Reader, f *os.File, size int64) error {
	buf := make([]byte, 256<<10)
	var remaining = size
	var pos int64
	for remaining > 0 {
		want := int64(len(buf))
		if want > remaining {
			want = remaining
		}
		n, err := io.ReadFull(r, buf[:want])
		if err != nil {
			return err
		}
		chunk := buf[:n]
		if isAllZero(chunk) && int64(n) >= sparseZeroThreshold {
			if _, err := f.Seek(int64(n), io.SeekCurrent); err != nil {
				return err
			}
		} else {
			if _, err := f.WriteAt(chunk, pos); err != nil {
				return err
			}
			if _, err := f.Seek(int64(n), io.SeekCurrent); err != nil {
				return err
			}
		}
		pos += int64(n)
		remaining -= int64(n)
	}
	return f.Truncate(size)
}

// writeRawBody streams exactly size bytes from f to w with io.CopyN, the
// sender-side counterpart used by the pull-mode role; the session package's
// raw senders use the same io.CopyN call.
func writeRawBody(w io.Writer, f *os.File, size int64) error {
	_, err := io.CopyN(w, f, size)
	return err
}

func isAllZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}

func finalizeFile(of *openFile) error {
	if err := of.handle.Truncate(of.written); err != nil {
		of.handle.Close()
		return fmt.Errorf("truncate: %w", err)
	}
	if err := of.handle.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	t := time.Unix(of.mtimeS, 0)
	return os.Chtimes(of.path, t, t)
}
