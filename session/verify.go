package session

import (
	"fmt"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/checksum"
	"github.com/roethlar/blit/manifest"
	"github.com/roethlar/blit/verify"
)

// verifyPhase sends a batched VERIFY_REQ/VERIFY_DONE and checks the
// receiver's VERIFY_HASH responses against local digests (spec §4.9).
func verifyPhase(conn *blitproto.Conn, p *plan, transferred []manifest.Entry) (ok, failed int, err error) {
	local := make(map[string][checksum.StrongSize]byte, len(transferred))
	for _, e := range transferred {
		r := verify.HashFile(p.absPath(e.Relpath))
		if r.Status == verify.StatusOK {
			local[e.Relpath] = r.Digest
		}
		if err := conn.WriteFrame(blitproto.TypeVerifyReq, blitproto.PutString(nil, e.Relpath)); err != nil {
			return 0, 0, fmt.Errorf("VERIFY_REQ %s: %w", e.Relpath, err)
		}
	}
	if err := conn.WriteFrame(blitproto.TypeVerifyDone, nil); err != nil {
		return 0, 0, fmt.Errorf("VERIFY_DONE: %w", err)
	}

	var results []verify.Result
	for {
		f, err := conn.ReadFrame()
		if err != nil {
			return 0, 0, err
		}
		if f.Type == blitproto.TypeDone {
			break
		}
		if f.Type != blitproto.TypeVerifyHash {
			return 0, 0, blitproto.UnexpectedFrameError(blitproto.TypeVerifyHash, f.Type)
		}
		vh, err := blitproto.DecodeVerifyHash(f.Payload)
		if err != nil {
			return 0, 0, err
		}
		results = append(results, verify.Result{
			Relpath: vh.Relpath,
			Status:  verify.Status(vh.Status),
			Digest:  vh.Digest,
		})
	}

	if err := verify.Batch(local, results); err != nil {
		return len(results) - 1, 1, nil
	}
	return len(results), 0, nil
}
