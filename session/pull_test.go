package session

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/receiver"
)

func TestPullFetchesStaleFile(t *testing.T) {
	// Pull mode's manifest still describes the puller's own (destination)
	// inventory (spec §4.9: "switch into sender role and stream matching
	// entries" refers to entries the NeedList computation already flagged
	// from that manifest), so it refreshes paths the puller already knows
	// about rather than discovering brand-new remote-only paths.
	remoteRoot := t.TempDir() // plays the receiver.Connection's BaseDir
	localDest := t.TempDir()

	if err := os.WriteFile(filepath.Join(remoteRoot, "doc.txt"), []byte("new content"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(localDest, "doc.txt"), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	clientSide, serverSide := net.Pipe()
	rc := receiver.New(remoteRoot, receiver.Options{}, nil, blitproto.NewConn(serverSide))
	done := make(chan error, 1)
	go func() { done <- rc.HandleConnection() }()

	conn := blitproto.NewConn(clientSide)
	sum, err := Pull(conn, "", localDest, Options{}, nil)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	conn.NetConn.Close()
	<-done

	if sum.FilesStreamed != 1 {
		t.Fatalf("FilesStreamed = %d, want 1", sum.FilesStreamed)
	}
	got, err := os.ReadFile(filepath.Join(localDest, "doc.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new content" {
		t.Fatalf("content = %q", got)
	}
}

func TestPullSkipsAlreadyPresentFile(t *testing.T) {
	remoteRoot := t.TempDir()
	localDest := t.TempDir()

	if err := os.WriteFile(filepath.Join(remoteRoot, "same.txt"), []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(localDest, "same.txt"), []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(remoteRoot, "same.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(filepath.Join(localDest, "same.txt"), info.ModTime(), info.ModTime()); err != nil {
		t.Fatal(err)
	}

	clientSide, serverSide := net.Pipe()
	rc := receiver.New(remoteRoot, receiver.Options{}, nil, blitproto.NewConn(serverSide))
	done := make(chan error, 1)
	go func() { done <- rc.HandleConnection() }()

	conn := blitproto.NewConn(clientSide)
	sum, err := Pull(conn, "", localDest, Options{}, nil)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	conn.NetConn.Close()
	<-done

	if sum.FilesStreamed != 0 {
		t.Fatalf("FilesStreamed = %d, want 0 (already present)", sum.FilesStreamed)
	}
}
