package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestKnownHostsRoundTripsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")

	kh, err := LoadKnownHosts(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := kh.Record("127.0.0.1:9031", "deadbeef"); err != nil {
		t.Fatal(err)
	}

	kh2, err := LoadKnownHosts(path)
	if err != nil {
		t.Fatal(err)
	}
	fp, ok := kh2.Lookup("127.0.0.1:9031")
	if !ok || fp != "deadbeef" {
		t.Fatalf("got fp=%q ok=%v, want deadbeef/true", fp, ok)
	}
}

func TestKnownHostsHasVersionHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")
	kh, err := LoadKnownHosts(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := kh.Record("h:1", "fp"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), knownHostsHeader) {
		t.Fatalf("missing version header: %q", data)
	}
}

func TestKnownHostsFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permissions only")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts")
	kh, err := LoadKnownHosts(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := kh.Record("h:1", "fp"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("got mode %o, want 0600", info.Mode().Perm())
	}
}
