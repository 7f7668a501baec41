package receiver

import (
	"fmt"
	"os"
	"time"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/checksum"
	"github.com/roethlar/blit/delta"
	"github.com/roethlar/blit/ranges"
)

// deltaState tracks one in-progress sample-granule delta (spec §3
// delta_state, §4.5 sample-granule mode).
type deltaState struct {
	relpath string
	dst     *os.File
	absPath string
	size    int64
	mtimeS  int64

	granuleStarts []int64
	curGranule    int // index into granuleStarts
	curSampleIdx  int // 0,1,2 within the current granule
	senderHashes  [3][checksum.StrongSize]byte

	needRanges ranges.Ranges
}

func (c *Connection) handleDeltaStart(payload []byte) error {
	hdr, err := blitproto.DecodeFileHeader(payload)
	if err != nil {
		return err
	}
	abs, err := c.abs(hdr.Relpath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(parentDir(abs), 0o755); err != nil {
		return fmt.Errorf("mkdir parent: %w", err)
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open for delta: %w", err)
	}
	if err := f.Truncate(int64(hdr.Size)); err != nil {
		f.Close()
		return fmt.Errorf("truncate for delta: %w", err)
	}
	c.delta = &deltaState{
		relpath:       hdr.Relpath,
		dst:           f,
		absPath:       abs,
		size:          int64(hdr.Size),
		mtimeS:        hdr.MtimeS,
		granuleStarts: delta.PlanGranules(int64(hdr.Size)),
	}
	return nil
}

// handleDeltaSample receives one of the three DELTA_SAMPLE probes for the
// current granule, hashes the receiver's corresponding local bytes, and
// once all three have arrived decides whether the whole granule is needed.
func (c *Connection) handleDeltaSample(payload []byte) error {
	ds := c.delta
	if ds == nil {
		return fmt.Errorf("DELTA_SAMPLE with no open delta")
	}
	s, err := blitproto.DecodeDeltaSample(payload)
	if err != nil {
		return err
	}
	if ds.curSampleIdx > 2 {
		return fmt.Errorf("DELTA_SAMPLE: more than 3 samples for granule %d", ds.curGranule)
	}
	ds.senderHashes[ds.curSampleIdx] = s.Strong
	ds.curSampleIdx++
	if ds.curSampleIdx < 3 {
		return nil
	}
	ds.curSampleIdx = 0

	granuleStart := ds.granuleStarts[ds.curGranule]
	granuleLen := int64(delta.GranuleSize)
	if granuleStart+granuleLen > ds.size {
		granuleLen = ds.size - granuleStart
	}
	var localHashes [3][checksum.StrongSize]byte
	positions := delta.SamplePositions(granuleStart, granuleLen, ds.size)
	for i, off := range positions {
		h, err := delta.HashSample(ds.dst, off, checksum.BLAKE3)
		if err != nil {
			return fmt.Errorf("hash local sample: %w", err)
		}
		localHashes[i] = h
	}
	if delta.GranuleNeeded(ds.senderHashes, localHashes) {
		ds.needRanges.Add(ranges.Range{Pos: granuleStart, Size: granuleLen})
	}
	ds.curGranule++
	return nil
}

// handleDeltaEnd coalesces and emits the needed byte ranges.
func (c *Connection) handleDeltaEnd() error {
	ds := c.delta
	if ds == nil {
		return fmt.Errorf("DELTA_END with no open delta")
	}
	if err := c.Conn.WriteFrame(blitproto.TypeNeedRangesStart, nil); err != nil {
		return err
	}
	for _, r := range ds.needRanges {
		payload := blitproto.RangePayload{Offset: r.Pos, Length: r.Size}.Encode()
		if err := c.Conn.WriteFrame(blitproto.TypeNeedRangesRange, payload); err != nil {
			return err
		}
	}
	return c.Conn.WriteFrame(blitproto.TypeNeedRangesEnd, nil)
}

// handleDeltaData seek-writes one DELTA_DATA(offset, bytes) range.
func (c *Connection) handleDeltaData(payload []byte) error {
	ds := c.delta
	if ds == nil {
		return fmt.Errorf("DELTA_DATA with no open delta")
	}
	d, err := blitproto.DecodeDeltaData(payload)
	if err != nil {
		return err
	}
	_, err = ds.dst.WriteAt(d.Bytes, d.Offset)
	return err
}

// handleDeltaDone finalizes mtime and replies OK.
func (c *Connection) handleDeltaDone() error {
	ds := c.delta
	if ds == nil {
		return fmt.Errorf("DELTA_DONE with no open delta")
	}
	c.delta = nil
	if err := ds.dst.Close(); err != nil {
		return fmt.Errorf("close delta target: %w", err)
	}
	t := time.Unix(ds.mtimeS, 0)
	if err := os.Chtimes(ds.absPath, t, t); err != nil {
		return fmt.Errorf("chtimes delta target: %w", err)
	}
	c.Counters.FilesWritten++
	c.Counters.BytesWritten += ds.needRanges.TotalSize()
	return c.Conn.WriteFrame(blitproto.TypeOK, nil)
}
