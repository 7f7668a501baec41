package checksum

import (
	"golang.org/x/crypto/md4"
	"lukechampine.com/blake3"
)

// StrongSize is the fixed width of a BlockChecksum.strong field.
const StrongSize = 32

// Algorithm selects the strong-hash variant. BLAKE3 is the default and MUST
// be used for new implementations (spec §4.4); MD4 is kept only for
// interop with the legacy truncated variant some peers still emit.
type Algorithm int

const (
	BLAKE3 Algorithm = iota
	MD4Legacy
)

// Strong computes the 32-byte strong hash of data, truncating or
// zero-padding to StrongSize.
func Strong(algo Algorithm, data []byte) [StrongSize]byte {
	var out [StrongSize]byte
	switch algo {
	case MD4Legacy:
		h := md4.New()
		h.Write(data)
		sum := h.Sum(nil) // 16 bytes
		copy(out[:], sum)
	default:
		sum := blake3.Sum256(data)
		copy(out[:], sum[:])
	}
	return out
}
