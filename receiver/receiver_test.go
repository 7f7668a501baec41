package receiver

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/roethlar/blit/blitproto"
)

// driver wraps the client side of a net.Pipe connected to a Connection
// running on its own goroutine, so tests can script a sequence of frames a
// real sender would produce.
type driver struct {
	t    *testing.T
	conn *blitproto.Conn
	done chan error
}

func newDriver(t *testing.T, baseDir string, opts Options) *driver {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	rc := New(baseDir, opts, nil, blitproto.NewConn(serverSide))
	done := make(chan error, 1)
	go func() { done <- rc.HandleConnection() }()
	return &driver{t: t, conn: blitproto.NewConn(clientSide), done: done}
}

func (d *driver) send(typ blitproto.Type, payload []byte) {
	d.t.Helper()
	if err := d.conn.WriteFrame(typ, payload); err != nil {
		d.t.Fatalf("send %s: %v", typ, err)
	}
}

func (d *driver) expect(typ blitproto.Type) *blitproto.Frame {
	d.t.Helper()
	f, err := d.conn.Expect(typ)
	if err != nil {
		d.t.Fatalf("expect %s: %v", typ, err)
	}
	return f
}

// finish closes the client side and drains the server goroutine. By the
// time finish runs, HandleConnection has either returned nil after the
// DONE/OK exchange or already failed with the error the test provoked, so
// tests don't assert on its result.
func (d *driver) finish() {
	d.t.Helper()
	d.conn.NetConn.Close()
	<-d.done
}

func TestReceiverFullFileTransfer(t *testing.T) {
	base := t.TempDir()
	d := newDriver(t, base, Options{})

	d.send(blitproto.TypeStart, blitproto.StartPayload{Dest: base}.Encode())
	d.expect(blitproto.TypeOK)

	d.send(blitproto.TypeManifestStart, nil)
	d.send(blitproto.TypeManifestEnd, nil)
	needList := d.expect(blitproto.TypeNeedList)
	if needList == nil {
		t.Fatal("no NEED_LIST")
	}

	hdr := blitproto.FileHeader{Relpath: "hello.txt", Size: 5, MtimeS: 1700000000}
	d.send(blitproto.TypeFileStart, hdr.Encode())
	d.send(blitproto.TypeFileData, []byte("hello"))
	d.send(blitproto.TypeFileEnd, nil)
	d.expect(blitproto.TypeOK)

	d.send(blitproto.TypeMkdir, blitproto.MkdirPayload{Relpath: "subdir"}.Encode())

	d.send(blitproto.TypeDone, nil)
	d.expect(blitproto.TypeOK)
	d.finish()

	got, err := os.ReadFile(filepath.Join(base, "hello.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("content = %q", got)
	}
	if info, err := os.Stat(filepath.Join(base, "subdir")); err != nil || !info.IsDir() {
		t.Fatalf("subdir not created: %v", err)
	}
}

func TestReceiverSymlink(t *testing.T) {
	base := t.TempDir()
	d := newDriver(t, base, Options{})

	d.send(blitproto.TypeStart, blitproto.StartPayload{Dest: base}.Encode())
	d.expect(blitproto.TypeOK)
	d.send(blitproto.TypeManifestStart, nil)
	d.send(blitproto.TypeManifestEnd, nil)
	d.expect(blitproto.TypeNeedList)

	d.send(blitproto.TypeSymlink, blitproto.SymlinkPayload{Relpath: "link", Target: "hello.txt"}.Encode())

	d.send(blitproto.TypeDone, nil)
	d.expect(blitproto.TypeOK)
	d.finish()

	target, err := os.Readlink(filepath.Join(base, "link"))
	if err != nil {
		t.Fatal(err)
	}
	if target != "hello.txt" {
		t.Fatalf("symlink target = %q", target)
	}
}

func TestReceiverRejectsPathTraversal(t *testing.T) {
	base := t.TempDir()
	d := newDriver(t, base, Options{})

	d.send(blitproto.TypeStart, blitproto.StartPayload{Dest: base}.Encode())
	d.expect(blitproto.TypeOK)
	d.send(blitproto.TypeManifestStart, nil)
	d.send(blitproto.TypeManifestEnd, nil)
	d.expect(blitproto.TypeNeedList)

	hdr := blitproto.FileHeader{Relpath: "../escape.txt", Size: 4, MtimeS: 1700000000}
	d.send(blitproto.TypeFileStart, hdr.Encode())

	f, err := d.conn.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if f.Type != blitproto.TypeError {
		t.Fatalf("got %s, want ERROR", f.Type)
	}
	d.finish()

	if _, err := os.Stat(filepath.Join(filepath.Dir(base), "escape.txt")); err == nil {
		t.Fatal("traversal entry was materialized outside base")
	}
}

func TestMirrorDeletesExtraFiles(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "stale.txt"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := newDriver(t, base, Options{Mirror: true})
	d.send(blitproto.TypeStart, blitproto.StartPayload{Dest: base, Flags: blitproto.FlagMirror}.Encode())
	d.expect(blitproto.TypeOK)

	d.send(blitproto.TypeManifestStart, nil)
	d.send(blitproto.TypeManifestEntry, blitproto.ManifestEntryPayload{
		Kind: blitproto.MEKindFile, Relpath: "keep.txt", Size: 3, MtimeS: 1700000000,
	}.Encode())
	d.send(blitproto.TypeManifestEnd, nil)
	d.expect(blitproto.TypeNeedList)

	hdr := blitproto.FileHeader{Relpath: "keep.txt", Size: 3, MtimeS: 1700000000}
	d.send(blitproto.TypeFileStart, hdr.Encode())
	d.send(blitproto.TypeFileData, []byte("new"))
	d.send(blitproto.TypeFileEnd, nil)
	d.expect(blitproto.TypeOK)

	d.send(blitproto.TypeDone, nil)
	d.expect(blitproto.TypeOK)
	d.finish()

	if _, err := os.Stat(filepath.Join(base, "stale.txt")); !os.IsNotExist(err) {
		t.Fatal("stale.txt should have been mirror-deleted")
	}
	if _, err := os.Stat(filepath.Join(base, "keep.txt")); err != nil {
		t.Fatal("keep.txt should still exist")
	}
}
