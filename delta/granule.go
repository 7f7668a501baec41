package delta

import (
	"io"

	"github.com/roethlar/blit/checksum"
	"github.com/roethlar/blit/ranges"
)

// Granule tuning constants from spec §4.5/§3.
const (
	GranuleSize  = 8 << 20  // 8 MiB
	SampleSize   = 64 << 10 // 64 KiB
	LargeFileMin = 100 << 20
)

// Sample is one of the three probes taken per granule.
type Sample struct {
	GranuleStart int64
	Offset       int64
	Strong       [checksum.StrongSize]byte
}

// SamplePositions returns the three sample offsets for a granule starting
// at granuleStart with the given granule and file size (spec §4.5: start,
// middle, end-aligned).
func SamplePositions(granuleStart, granuleLen, fileSize int64) [3]int64 {
	end := granuleStart + granuleLen
	if end > fileSize {
		end = fileSize
	}
	return [3]int64{
		granuleStart,
		granuleStart + granuleLen/2,
		end - SampleSize,
	}
}

// PlanGranules partitions a file of the given size into fixed GranuleSize
// granules (the final one may be shorter) and returns the start offset of
// each granule; SamplePositions gives the sample offsets within one.
func PlanGranules(fileSize int64) []int64 {
	var starts []int64
	for off := int64(0); off < fileSize; off += GranuleSize {
		starts = append(starts, off)
	}
	return starts
}

// HashSample reads SampleSize bytes at offset from r (a ReaderAt over the
// sender's source file) and returns its strong hash. If fewer bytes remain
// (sample window at EOF), it hashes what's available.
func HashSample(r io.ReaderAt, offset int64, algo checksum.Algorithm) ([checksum.StrongSize]byte, error) {
	if offset < 0 {
		offset = 0
	}
	buf := make([]byte, SampleSize)
	n, err := r.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return [checksum.StrongSize]byte{}, err
	}
	return checksum.Strong(algo, buf[:n]), nil
}

// GranuleNeeded reports whether any of the three samples for a granule
// mismatch between sender and receiver hashes, meaning the whole granule
// must be retransmitted (spec §4.5).
func GranuleNeeded(senderHashes, receiverHashes [3][checksum.StrongSize]byte) bool {
	for i := range senderHashes {
		if senderHashes[i] != receiverHashes[i] {
			return true
		}
	}
	return false
}

// CoalesceNeedRanges folds per-granule need decisions into a coalesced
// Ranges set, per spec §4.5 ("receiver coalesces adjacent/overlapping
// ranges").
func CoalesceNeedRanges(fileSize int64, needed func(granuleStart, granuleLen int64) bool) ranges.Ranges {
	var rs ranges.Ranges
	for _, start := range PlanGranules(fileSize) {
		length := int64(GranuleSize)
		if start+length > fileSize {
			length = fileSize - start
		}
		if needed(start, length) {
			rs.Add(ranges.Range{Pos: start, Size: length})
		}
	}
	return rs
}

// ShouldAbandonDelta implements the fallback policy from spec §4.5: "if the
// computed need-ranges cover effectively the entire file (heuristic:
// `count · granule < size` is false), the sender SHOULD abandon delta and
// send FILE_RAW_START instead." count is the number of granules marked
// needed.
func ShouldAbandonDelta(neededGranuleCount int, fileSize int64) bool {
	return !(int64(neededGranuleCount)*GranuleSize < fileSize)
}
