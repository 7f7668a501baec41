// Package verify implements the batched content-verification protocol from
// spec §4.5/§4.9: VERIFY_REQ/VERIFY_HASH/VERIFY_DONE.
package verify

import (
	"fmt"
	"os"

	"github.com/roethlar/blit/checksum"
)

// Status is the per-path verification outcome (spec §4.9).
type Status uint8

const (
	StatusOK Status = iota
	StatusNotFound
	StatusError
)

// Result is one VERIFY_HASH response.
type Result struct {
	Relpath string
	Status  Status
	Digest  [checksum.StrongSize]byte
}

// HashFile computes the BLAKE3 digest of the file at path, reporting
// StatusNotFound for a missing file and StatusError for any other I/O
// failure, matching the {0 ok, 1 not-found, 2 error} encoding from spec
// §4.9.
func HashFile(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Status: StatusNotFound}
		}
		return Result{Status: StatusError}
	}
	return Result{Status: StatusOK, Digest: checksum.Strong(checksum.BLAKE3, data)}
}

// Error is VerifyError from spec §7. Implementations SHOULD key responses
// by relpath rather than assume request/response ordering (spec §9 open
// question), since the wire format already carries the path.
type Error struct {
	Relpath string
	Missing bool // true => FileMissingOnPeer, false => HashMismatch
}

func (e *Error) Error() string {
	if e.Missing {
		return fmt.Sprintf("verify: file missing on peer: %s", e.Relpath)
	}
	return fmt.Sprintf("verify: hash mismatch: %s", e.Relpath)
}

// Batch checks a set of local digests (by relpath) against the remote
// results, returning the first mismatch found. Lookups are by path key, not
// by response order (spec §9).
func Batch(local map[string][checksum.StrongSize]byte, remote []Result) error {
	for _, r := range remote {
		switch r.Status {
		case StatusNotFound:
			return &Error{Relpath: r.Relpath, Missing: true}
		case StatusError:
			return &Error{Relpath: r.Relpath}
		}
		want, ok := local[r.Relpath]
		if !ok {
			continue // peer verified a path we didn't ask about; ignore
		}
		if want != r.Digest {
			return &Error{Relpath: r.Relpath}
		}
	}
	return nil
}
