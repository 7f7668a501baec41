package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDaemonConfigParsesModules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blitd.toml")
	const data = `
listen_addr = "0.0.0.0:8873"

[modules.home]
path = "/srv/blit/home"
read_only = true
allow_hosts = ["10.0.0.5", "10.0.0.6"]
comment = "test module"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadDaemonConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != "0.0.0.0:8873" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	m, err := cfg.Module("home")
	if err != nil {
		t.Fatal(err)
	}
	if m.Path != "/srv/blit/home" || !m.ReadOnly {
		t.Fatalf("module = %+v", m)
	}
	if !m.HostAllowed("10.0.0.5") || m.HostAllowed("10.0.0.99") {
		t.Fatal("HostAllowed did not respect allow_hosts")
	}
}

func TestDaemonConfigUnknownModule(t *testing.T) {
	cfg := &DaemonConfig{Modules: map[string]Module{}}
	if _, err := cfg.Module("missing"); err == nil {
		t.Fatal("expected error for unknown module")
	}
}

func TestModuleHostAllowedEmptyMeansAny(t *testing.T) {
	m := Module{Path: "/x"}
	if !m.HostAllowed("anything") {
		t.Fatal("empty allow_hosts should permit any host")
	}
}
