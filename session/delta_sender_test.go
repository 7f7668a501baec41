package session

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/delta"
	"github.com/roethlar/blit/manifest"
	"github.com/roethlar/blit/receiver"
)

// deltaPipe wires a sender-side control connection to a running
// receiver.Connection and drives it through Handshake and Manifest (one
// file entry for relpath/size) so the caller lands in the Transfer phase
// ready to speak the delta sub-protocol directly, the way a real worker
// connection does (spec §4.8 step 6, §4.9).
func deltaPipe(t *testing.T, destDir, relpath string, size int64) (*blitproto.Conn, <-chan error) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	rc := receiver.New(destDir, receiver.Options{}, nil, blitproto.NewConn(serverSide))
	done := make(chan error, 1)
	go func() { done <- rc.HandleConnection() }()

	conn := blitproto.NewConn(clientSide)
	if err := conn.WriteFrame(blitproto.TypeStart, blitproto.StartPayload{}.Encode()); err != nil {
		t.Fatalf("START: %v", err)
	}
	if _, err := conn.Expect(blitproto.TypeOK); err != nil {
		t.Fatalf("START ack: %v", err)
	}
	if err := sendManifest(conn, []manifest.Entry{{
		Kind:    manifest.KindFile,
		Relpath: relpath,
		Size:    size,
	}}); err != nil {
		t.Fatalf("send manifest: %v", err)
	}
	if _, err := recvNeedList(conn); err != nil {
		t.Fatalf("recv need-list: %v", err)
	}
	return conn, done
}

func finishDeltaPipe(t *testing.T, conn *blitproto.Conn, done <-chan error) {
	t.Helper()
	if err := conn.WriteFrame(blitproto.TypeDone, nil); err != nil {
		t.Fatalf("DONE: %v", err)
	}
	if _, err := conn.Expect(blitproto.TypeOK); err != nil {
		t.Fatalf("final OK: %v", err)
	}
	conn.NetConn.Close()
	if err := <-done; err != nil {
		t.Fatalf("receiver: %v", err)
	}
}

// TestSendDeltaFileGranuleMatch drives DELTA_START/SAMPLE/END -> NEED_RANGES
// -> DELTA_DATA/DELTA_DONE end-to-end between sendDeltaFile and receiver's
// delta handlers, matching spec §8 property 5 ("Delta reconstruction") and
// scenario E2: the destination differs from the source in exactly one
// granule, and only that granule's bytes should need to cross the wire.
func TestSendDeltaFileGranuleMatch(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	size := int64(delta.GranuleSize)*2 + 512<<10 // two full granules + a partial tail
	source := make([]byte, size)
	for i := range source {
		source[i] = byte(i)
	}
	dest := append([]byte(nil), source...)
	// Flip a run of bytes inside the first granule only.
	const flipStart = 1024
	for i := flipStart; i < flipStart+4096; i++ {
		dest[i] ^= 0xFF
	}

	srcPath := filepath.Join(srcDir, "big.bin")
	dstPath := filepath.Join(dstDir, "big.bin")
	if err := os.WriteFile(srcPath, source, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dstPath, dest, 0o644); err != nil {
		t.Fatal(err)
	}

	mtimeS := time.Now().Add(-time.Hour).Unix()

	conn, done := deltaPipe(t, dstDir, "big.bin", size)
	if err := sendDeltaFile(conn, "big.bin", srcPath, size, mtimeS, 4<<20); err != nil {
		t.Fatalf("sendDeltaFile: %v", err)
	}
	finishDeltaPipe(t, conn, done)

	got, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, source) {
		t.Fatalf("delta reconstruction mismatch: destination does not equal source byte-for-byte")
	}
	info, err := os.Stat(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.ModTime().Unix() != mtimeS {
		t.Fatalf("mtime = %d, want %d", info.ModTime().Unix(), mtimeS)
	}
}

// TestSendDeltaFileAbandonsOnFullRewrite covers the §4.5 fallback policy:
// when nearly every granule differs, the sender must abandon the delta
// sub-protocol and fall back to FILE_RAW_START rather than stream
// DELTA_DATA for effectively the whole file.
func TestSendDeltaFileAbandonsOnFullRewrite(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	size := int64(delta.GranuleSize)*3 + 1<<20
	source := make([]byte, size)
	for i := range source {
		source[i] = byte(i * 7)
	}
	// Every byte differs from source, so every granule's samples mismatch.
	dest := make([]byte, size)
	for i := range dest {
		dest[i] = byte(i*7) ^ 0xFF
	}

	srcPath := filepath.Join(srcDir, "big.bin")
	dstPath := filepath.Join(dstDir, "big.bin")
	if err := os.WriteFile(srcPath, source, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dstPath, dest, 0o644); err != nil {
		t.Fatal(err)
	}

	mtimeS := time.Now().Add(-2 * time.Hour).Unix()

	conn, done := deltaPipe(t, dstDir, "big.bin", size)
	if err := sendDeltaFile(conn, "big.bin", srcPath, size, mtimeS, 4<<20); err != nil {
		t.Fatalf("sendDeltaFile: %v", err)
	}
	finishDeltaPipe(t, conn, done)

	got, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, source) {
		t.Fatalf("abandoned-delta reconstruction mismatch: destination does not equal source byte-for-byte")
	}
	info, err := os.Stat(dstPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.ModTime().Unix() != mtimeS {
		t.Fatalf("mtime = %d, want %d", info.ModTime().Unix(), mtimeS)
	}
}
