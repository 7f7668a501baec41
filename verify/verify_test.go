package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roethlar/blit/checksum"
)

func TestHashFileMatchesDirectHash(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	if err := os.WriteFile(p, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := HashFile(p)
	if r.Status != StatusOK {
		t.Fatalf("status = %v", r.Status)
	}
	want := checksum.Strong(checksum.BLAKE3, []byte("content"))
	if r.Digest != want {
		t.Fatal("digest mismatch")
	}
}

func TestHashFileNotFound(t *testing.T) {
	r := HashFile("/nonexistent/path/should/not/exist")
	if r.Status != StatusNotFound {
		t.Fatalf("status = %v, want StatusNotFound", r.Status)
	}
}

func TestBatchDetectsMismatch(t *testing.T) {
	local := map[string][checksum.StrongSize]byte{
		"a": checksum.Strong(checksum.BLAKE3, []byte("a-content")),
	}
	remote := []Result{{Relpath: "a", Status: StatusOK, Digest: checksum.Strong(checksum.BLAKE3, []byte("different"))}}
	if err := Batch(local, remote); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestBatchPassesOnMatch(t *testing.T) {
	digest := checksum.Strong(checksum.BLAKE3, []byte("same"))
	local := map[string][checksum.StrongSize]byte{"a": digest}
	remote := []Result{{Relpath: "a", Status: StatusOK, Digest: digest}}
	if err := Batch(local, remote); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBatchKeyedByPathNotOrder(t *testing.T) {
	da := checksum.Strong(checksum.BLAKE3, []byte("a"))
	db := checksum.Strong(checksum.BLAKE3, []byte("b"))
	local := map[string][checksum.StrongSize]byte{"a": da, "b": db}
	// Remote responses arrive out of request order; Batch must match by
	// relpath, not position.
	remote := []Result{
		{Relpath: "b", Status: StatusOK, Digest: db},
		{Relpath: "a", Status: StatusOK, Digest: da},
	}
	if err := Batch(local, remote); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
