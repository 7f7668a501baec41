// Package delta implements the two delta-transfer modes from spec §4.5:
// classical rsync block-matching (small/medium files) and sample-granule
// probing (large files transferred over the wire).
package delta

import (
	"bytes"

	"github.com/roethlar/blit/checksum"
)

// BlockSize is the default fixed block size for block-match mode.
const BlockSize = 1024

// BlockChecksum is one entry of the destination's block-checksum table
// (spec §3).
type BlockChecksum struct {
	Offset  uint64
	Rolling uint32
	Strong  [checksum.StrongSize]byte
	Length  uint32
}

// GenerateBlockChecksums partitions dst into fixed blockSize blocks (the
// final block may be shorter) and computes rolling + strong checksums for
// each, as the receiver does over its existing copy of a file.
func GenerateBlockChecksums(dst []byte, blockSize int, algo checksum.Algorithm) []BlockChecksum {
	if blockSize <= 0 {
		blockSize = BlockSize
	}
	var out []BlockChecksum
	for off := 0; off < len(dst); off += blockSize {
		end := off + blockSize
		if end > len(dst) {
			end = len(dst)
		}
		block := dst[off:end]
		out = append(out, BlockChecksum{
			Offset:  uint64(off),
			Rolling: checksum.RollingChecksum(block),
			Strong:  checksum.Strong(algo, block),
			Length:  uint32(len(block)),
		})
	}
	return out
}

// EditKind tags a Match edit variant (spec §3).
type EditKind int

const (
	EditBlock EditKind = iota
	EditLiteral
)

// Edit is a tagged Block{source_off,target_off,length} or
// Literal{offset,bytes} edit.
type Edit struct {
	Kind      EditKind
	SourceOff int64  // Block
	TargetOff int64  // Block
	Length    int64  // Block
	Offset    int64  // Literal
	Bytes     []byte // Literal
}

// multimap indexes block checksums by rolling value for O(1) candidate
// lookup while scanning the source.
type multimap map[uint32][]*BlockChecksum

func buildMultimap(blocks []BlockChecksum) multimap {
	m := make(multimap, len(blocks))
	for i := range blocks {
		b := &blocks[i]
		m[b.Rolling] = append(m[b.Rolling], b)
	}
	return m
}

// ComputeEdits slides a window over source looking for matches against
// dst's block checksums, emitting a stream of Block/Literal edits that,
// applied left to right, exactly reconstruct source (spec §4.5, testable
// property §8.4).
func ComputeEdits(source []byte, blocks []BlockChecksum, algo checksum.Algorithm) []Edit {
	if len(blocks) == 0 {
		if len(source) == 0 {
			return nil
		}
		return []Edit{{Kind: EditLiteral, Offset: 0, Bytes: source}}
	}
	mm := buildMultimap(blocks)

	var edits []Edit
	n := len(source)
	pos := 0
	lastMatchEnd := 0

	blockSize := int(blocks[0].Length)
	if blockSize <= 0 {
		blockSize = BlockSize
	}

	flushLiteral := func(end int) {
		if end > lastMatchEnd {
			edits = append(edits, Edit{
				Kind:   EditLiteral,
				Offset: int64(lastMatchEnd),
				Bytes:  source[lastMatchEnd:end],
			})
		}
	}

	var roller *checksum.Rolling
	windowLen := 0
	initWindow := func(at int) {
		end := at + blockSize
		if end > n {
			end = n
		}
		windowLen = end - at
		if windowLen == 0 {
			roller = nil
			return
		}
		roller = checksum.InitRolling(source[at : at+windowLen])
	}

	initWindow(pos)
	for pos < n {
		if roller == nil || windowLen == 0 {
			break
		}
		rv := roller.Value()
		if candidates, ok := mm[rv]; ok {
			var match *BlockChecksum
			windowBytes := source[pos : pos+windowLen]
			for _, cand := range candidates {
				if int(cand.Length) != windowLen {
					continue
				}
				if checksum.Strong(algo, windowBytes) == cand.Strong {
					match = cand
					break
				}
			}
			if match != nil {
				flushLiteral(pos)
				edits = append(edits, Edit{
					Kind:      EditBlock,
					SourceOff: int64(pos),
					TargetOff: int64(match.Offset),
					Length:    int64(match.Length),
				})
				pos += int(match.Length)
				lastMatchEnd = pos
				if pos >= n {
					break
				}
				initWindow(pos)
				continue
			}
		}
		// Miss: roll by one byte.
		if pos+windowLen >= n {
			// Can't roll further with a full window; advance byte-by-byte
			// until we fall off the end, then flush the trailing literal.
			pos++
			if pos >= n {
				break
			}
			initWindow(pos)
			continue
		}
		oldByte := source[pos]
		newByte := source[pos+windowLen]
		roller.Roll(oldByte, newByte)
		pos++
	}
	flushLiteral(n)
	return edits
}

// ApplyEdits reconstructs the source byte stream given the edit stream and
// the destination bytes that Block edits reference via TargetOff (the
// offset in the receiver's existing file).
func ApplyEdits(edits []Edit, dst []byte) []byte {
	var out bytes.Buffer
	for _, e := range edits {
		switch e.Kind {
		case EditBlock:
			out.Write(dst[e.TargetOff : e.TargetOff+e.Length])
		case EditLiteral:
			out.Write(e.Bytes)
		}
	}
	return out.Bytes()
}
