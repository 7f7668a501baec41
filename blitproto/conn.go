package blitproto

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// Conn wraps a net.Conn (TLS or plaintext) with frame-level read/write
// helpers and the per-operation deadlines from spec §4.1. Plaintext and TLS
// carriers satisfy the same interface, so session code is parametric over
// the transport (spec §9 "polymorphic stream").
type Conn struct {
	NetConn net.Conn
}

// NewConn wraps an established connection.
func NewConn(nc net.Conn) *Conn { return &Conn{NetConn: nc} }

// ReadFrame reads one frame, applying the header and payload deadlines.
func (c *Conn) ReadFrame() (*Frame, error) {
	if err := c.NetConn.SetReadDeadline(time.Now().Add(HeaderReadTimeout)); err != nil {
		return nil, err
	}
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(c.NetConn, hdr[:]); err != nil {
		return nil, deadlineErr(err)
	}
	if string(hdr[0:4]) != Magic {
		return nil, &ProtocolError{Kind: BadMagic, Detail: fmt.Sprintf("got %q", hdr[0:4])}
	}
	version := binary.LittleEndian.Uint16(hdr[4:6])
	if version != Version {
		return nil, &ProtocolError{Kind: VersionMismatch, Detail: fmt.Sprintf("got %d", version)}
	}
	typ := Type(hdr[6])
	length := binary.LittleEndian.Uint32(hdr[7:11])
	if length > MaxPayload {
		return nil, &ProtocolError{Kind: FrameTooLarge, Detail: fmt.Sprintf("%d", length)}
	}
	if err := c.NetConn.SetReadDeadline(time.Now().Add(PayloadReadTimeout(int(length)))); err != nil {
		return nil, err
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(c.NetConn, payload); err != nil {
			return nil, deadlineErr(err)
		}
	}
	return &Frame{Type: typ, Payload: payload}, nil
}

// WriteFrame writes one frame, applying the write deadline.
func (c *Conn) WriteFrame(t Type, payload []byte) error {
	if len(payload) > MaxPayload {
		return &ProtocolError{Kind: FrameTooLarge, Detail: fmt.Sprintf("%d", len(payload))}
	}
	if err := c.NetConn.SetWriteDeadline(time.Now().Add(WriteTimeout(len(payload)))); err != nil {
		return err
	}
	return Encode(c.NetConn, t, payload)
}

// Expect reads a frame and verifies its type.
func (c *Conn) Expect(want Type) (*Frame, error) {
	f, err := c.ReadFrame()
	if err != nil {
		return nil, err
	}
	if f.Type != want {
		if f.Type == TypeError {
			return nil, fmt.Errorf("peer error: %s", string(f.Payload))
		}
		return nil, UnexpectedFrameError(want, f.Type)
	}
	return f, nil
}

func deadlineErr(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &ProtocolError{Kind: Timeout, Detail: err.Error()}
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &ProtocolError{Kind: ShortRead, Detail: err.Error()}
	}
	return err
}

// --- little-endian payload helpers, mirroring the teacher's rsyncwire style ---

func PutUint16(dst []byte, v uint16) { binary.LittleEndian.PutUint16(dst, v) }
func PutUint32(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func PutUint64(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }
func Uint16(b []byte) uint16         { return binary.LittleEndian.Uint16(b) }
func Uint32(b []byte) uint32         { return binary.LittleEndian.Uint32(b) }
func Uint64(b []byte) uint64         { return binary.LittleEndian.Uint64(b) }

// PutString appends a u16-length-prefixed UTF-8 string.
func PutString(buf []byte, s string) []byte {
	var lenb [2]byte
	PutUint16(lenb[:], uint16(len(s)))
	buf = append(buf, lenb[:]...)
	buf = append(buf, s...)
	return buf
}

// GetString reads a u16-length-prefixed string starting at buf[off], returning
// the string and the offset just past it.
func GetString(buf []byte, off int) (string, int, error) {
	if off+2 > len(buf) {
		return "", 0, &ProtocolError{Kind: BadPayload, Detail: "truncated string length"}
	}
	n := int(Uint16(buf[off : off+2]))
	off += 2
	if off+n > len(buf) {
		return "", 0, &ProtocolError{Kind: BadPayload, Detail: "truncated string body"}
	}
	return string(buf[off : off+n]), off + n, nil
}
