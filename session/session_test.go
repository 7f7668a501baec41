package session

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/receiver"
)

// pipeConns returns a connected control-connection pair, with a
// receiver.Connection already running on the server side goroutine.
func pipeConns(t *testing.T, destDir string, opts receiver.Options) (*blitproto.Conn, <-chan error) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	rc := receiver.New(destDir, opts, nil, blitproto.NewConn(serverSide))
	done := make(chan error, 1)
	go func() { done <- rc.HandleConnection() }()
	return blitproto.NewConn(clientSide), done
}

func TestRunSmallFileAndSymlink(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	if err := os.MkdirAll(filepath.Join(src, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("sub/a.txt", filepath.Join(src, "link")); err != nil {
		t.Fatal(err)
	}

	control, done := pipeConns(t, dst, receiver.Options{})

	sum, err := Run(control, nil, src, dst, Options{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	control.NetConn.Close()
	<-done

	if sum.FilesTarred != 1 {
		t.Fatalf("FilesTarred = %d, want 1", sum.FilesTarred)
	}
	if sum.SymlinksMade != 1 {
		t.Fatalf("SymlinksMade = %d, want 1", sum.SymlinksMade)
	}
	if sum.DirsMade != 1 {
		t.Fatalf("DirsMade = %d, want 1", sum.DirsMade)
	}
	if sum.VerifyFailures != 0 {
		t.Fatalf("VerifyFailures = %d, want 0", sum.VerifyFailures)
	}

	got, err := os.ReadFile(filepath.Join(dst, "sub", "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("content = %q", got)
	}
	target, err := os.Readlink(filepath.Join(dst, "link"))
	if err != nil {
		t.Fatal(err)
	}
	if target != "sub/a.txt" {
		t.Fatalf("symlink target = %q", target)
	}
}

func TestRunSkipsUnneededFiles(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	if err := os.WriteFile(filepath.Join(src, "same.txt"), []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dst, "same.txt"), []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Match mtimes so the receiver's NeedList sees no difference.
	info, err := os.Stat(filepath.Join(src, "same.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(filepath.Join(dst, "same.txt"), info.ModTime(), info.ModTime()); err != nil {
		t.Fatal(err)
	}

	control, done := pipeConns(t, dst, receiver.Options{})
	sum, err := Run(control, nil, src, dst, Options{NoVerify: true}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	control.NetConn.Close()
	<-done

	if sum.FilesTarred != 0 {
		t.Fatalf("FilesTarred = %d, want 0 (file already up to date)", sum.FilesTarred)
	}
}
