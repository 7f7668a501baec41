package tarbundle

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildAndUnpackRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	contents := map[string]string{
		"a.txt":          "hello",
		"dir1/b.bin":     "world!!",
		"dir1/dir2/c.go": "package main\n",
	}
	for rel, data := range contents {
		p := filepath.Join(srcDir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var files []FileSource
	for rel, data := range contents {
		rel, data := rel, data
		files = append(files, FileSource{
			Relpath: rel,
			Size:    int64(len(data)),
			Mode:    0o644,
			Open: func() (io.ReadCloser, error) {
				return os.Open(filepath.Join(srcDir, rel))
			},
		})
	}

	b := NewBuilder(files, 2)
	fr := &FrameReader{Next: b.Next}

	destDir := t.TempDir()
	n, err := Unpack(fr, destDir)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if n != len(contents) {
		t.Fatalf("Unpack returned %d files, want %d", n, len(contents))
	}

	for rel, want := range contents {
		got, err := os.ReadFile(filepath.Join(destDir, rel))
		if err != nil {
			t.Fatalf("reading %s: %v", rel, err)
		}
		if string(got) != want {
			t.Errorf("%s: got %q, want %q", rel, got, want)
		}
	}
}

func TestUnpackRejectsTraversal(t *testing.T) {
	// Build a tar with a crafted "../etc/passwd" entry by exercising the
	// Builder with a maliciously-named FileSource; Unpack must reject it
	// without creating anything outside destDir (spec scenario E6).
	files := []FileSource{{
		Relpath: "../etc/passwd",
		Size:    4,
		Mode:    0o644,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("evil")), nil
		},
	}}
	b := NewBuilder(files, 1)
	fr := &FrameReader{Next: b.Next}

	destDir := t.TempDir()
	if _, err := Unpack(fr, destDir); err == nil {
		t.Fatal("expected traversal entry to be rejected")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(destDir), "etc", "passwd")); err == nil {
		t.Fatal("traversal entry was materialized outside destDir")
	}
}
