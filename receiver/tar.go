package receiver

import (
	"bytes"
	"fmt"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/tarbundle"
)

// handleTarStart begins accumulating the tar stream for the small-file
// bundle (spec §4.6).
func (c *Connection) handleTarStart() error {
	c.tarBuf = c.tarBuf[:0]
	return nil
}

func (c *Connection) handleTarData(payload []byte) error {
	c.tarBuf = append(c.tarBuf, payload...)
	return nil
}

// handleTarEnd unpacks the accumulated tar stream under BaseDir, rejecting
// any entry that would escape it, then acks with OK.
func (c *Connection) handleTarEnd() error {
	buf := c.tarBuf
	c.tarBuf = nil
	n, err := tarbundle.Unpack(bytes.NewReader(buf), c.BaseDir)
	if err != nil {
		return fmt.Errorf("tar unpack: %w", err)
	}
	c.Counters.FilesWritten += n
	return c.Conn.WriteFrame(blitproto.TypeOK, nil)
}
