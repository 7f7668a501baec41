package receiver

import (
	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/verify"
)

func (c *Connection) handleVerifyReq(payload []byte) error {
	relpath, _, err := blitproto.GetString(payload, 0)
	if err != nil {
		return err
	}
	c.verifyBatch = append(c.verifyBatch, relpath)
	return nil
}

// handleVerifyDone computes BLAKE3 for every batched path and emits
// VERIFY_HASH per path, then DONE (spec §4.9: "then emit DONE").
func (c *Connection) handleVerifyDone() error {
	batch := c.verifyBatch
	c.verifyBatch = nil
	for _, relpath := range batch {
		abs, err := c.abs(relpath)
		var result verify.Result
		if err != nil {
			result = verify.Result{Relpath: relpath, Status: verify.StatusError}
		} else {
			result = verify.HashFile(abs)
			result.Relpath = relpath
		}
		payload := blitproto.VerifyHashPayload{
			Status:  uint8(result.Status),
			Relpath: result.Relpath,
			Digest:  result.Digest,
		}.Encode()
		if err := c.Conn.WriteFrame(blitproto.TypeVerifyHash, payload); err != nil {
			return err
		}
	}
	return c.Conn.WriteFrame(blitproto.TypeDone, nil)
}
