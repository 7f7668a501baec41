package session

import (
	"fmt"
	"io"
	"os"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/checksum"
	"github.com/roethlar/blit/delta"
	"github.com/roethlar/blit/ranges"
)

// sendDeltaFile runs the sample-granule delta sub-protocol for one large
// file over conn (spec §4.5 sample-granule mode, §4.8 step 6).
func sendDeltaFile(conn *blitproto.Conn, relpath, absPath string, size, mtimeS int64, chunkSize int) error {
	src, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	hdr := blitproto.FileHeader{Relpath: relpath, Size: uint64(size), MtimeS: mtimeS}
	if err := conn.WriteFrame(blitproto.TypeDeltaStart, hdr.Encode()); err != nil {
		return err
	}

	granules := delta.PlanGranules(size)
	for _, start := range granules {
		length := int64(delta.GranuleSize)
		if start+length > size {
			length = size - start
		}
		for _, off := range delta.SamplePositions(start, length, size) {
			h, err := delta.HashSample(src, off, checksum.BLAKE3)
			if err != nil {
				return fmt.Errorf("hash sample at %d: %w", off, err)
			}
			payload := blitproto.DeltaSamplePayload{Offset: off, Strong: h}.Encode()
			if err := conn.WriteFrame(blitproto.TypeDeltaSample, payload); err != nil {
				return err
			}
		}
	}
	if err := conn.WriteFrame(blitproto.TypeDeltaEnd, nil); err != nil {
		return err
	}

	needRanges, err := recvNeedRanges(conn)
	if err != nil {
		return err
	}

	neededGranules := int((needRanges.TotalSize() + delta.GranuleSize - 1) / delta.GranuleSize)
	if delta.ShouldAbandonDelta(neededGranules, size) {
		// Coverage is effectively the whole file: abandon the delta
		// sub-protocol and fall back to a full-body transfer (spec §4.5
		// fallback policy) instead of streaming DELTA_DATA ranges that
		// amount to the whole file anyway.
		return sendRawFallback(conn, relpath, src, size, mtimeS)
	}

	for _, r := range needRanges {
		if err := streamRange(conn, src, r, chunkSize); err != nil {
			return fmt.Errorf("stream range %d+%d: %w", r.Pos, r.Size, err)
		}
	}

	if err := conn.WriteFrame(blitproto.TypeDeltaDone, nil); err != nil {
		return err
	}
	_, err = conn.Expect(blitproto.TypeOK)
	return err
}

// sendRawFallback sends src's full body as FILE_RAW_START/raw-bytes, the
// fallback path out of an abandoned delta sub-protocol. The receiver's
// FILE_RAW_START handler tears down the in-progress delta state for the
// same path before processing this.
func sendRawFallback(conn *blitproto.Conn, relpath string, src *os.File, size, mtimeS int64) error {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek source: %w", err)
	}
	hdr := blitproto.FileHeader{Relpath: relpath, Size: uint64(size), MtimeS: mtimeS}
	if err := conn.WriteFrame(blitproto.TypeFileRawStart, hdr.Encode()); err != nil {
		return err
	}
	if _, err := io.CopyN(conn.NetConn, src, size); err != nil {
		return fmt.Errorf("write raw body: %w", err)
	}
	_, err := conn.Expect(blitproto.TypeOK)
	return err
}

func recvNeedRanges(conn *blitproto.Conn) (ranges.Ranges, error) {
	if _, err := conn.Expect(blitproto.TypeNeedRangesStart); err != nil {
		return nil, err
	}
	var rs ranges.Ranges
	for {
		f, err := conn.ReadFrame()
		if err != nil {
			return nil, err
		}
		if f.Type == blitproto.TypeNeedRangesEnd {
			return rs, nil
		}
		if f.Type != blitproto.TypeNeedRangesRange {
			return nil, blitproto.UnexpectedFrameError(blitproto.TypeNeedRangesRange, f.Type)
		}
		r, err := blitproto.DecodeRange(f.Payload)
		if err != nil {
			return nil, err
		}
		rs = append(rs, ranges.Range{Pos: r.Offset, Size: r.Length})
	}
}

func streamRange(conn *blitproto.Conn, src *os.File, r ranges.Range, chunkSize int) error {
	buf := make([]byte, chunkSize)
	remaining := r.Size
	pos := r.Pos
	for remaining > 0 {
		want := int64(len(buf))
		if want > remaining {
			want = remaining
		}
		n, err := src.ReadAt(buf[:want], pos)
		if err != nil && int64(n) != want {
			return fmt.Errorf("read source at %d: %w", pos, err)
		}
		payload := blitproto.DeltaDataPayload{Offset: pos, Bytes: buf[:n]}.Encode()
		if err := conn.WriteFrame(blitproto.TypeDeltaData, payload); err != nil {
			return err
		}
		pos += int64(n)
		remaining -= int64(n)
	}
	return nil
}
