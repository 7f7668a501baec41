// Package config implements known-hosts persistence (spec §4.7, §6):
// atomic file writes with restrictive permissions, plus the daemon's TOML
// module config. Server TLS credentials are loaded and persisted by the
// trust package.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
)

const knownHostsHeader = "# Blit TOFU known_hosts - format version 1"

// KnownHosts is a mapping from "host:port" to hex(SHA-256(cert-DER)),
// persisted atomically (write to temp + rename), mode 0600 on POSIX. It
// implements trust.Store.
type KnownHosts struct {
	path string

	mu sync.Mutex
	m  map[string]string
}

// LoadKnownHosts reads path if it exists, or returns an empty map ready to
// be populated and persisted on first use.
func LoadKnownHosts(path string) (*KnownHosts, error) {
	kh := &KnownHosts{path: path, m: map[string]string{}}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return kh, nil
		}
		return nil, fmt.Errorf("config: open known_hosts: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.LastIndex(line, "=")
		if idx < 0 {
			continue
		}
		kh.m[line[:idx]] = line[idx+1:]
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: scan known_hosts: %w", err)
	}
	return kh, nil
}

// Lookup implements trust.Store.
func (k *KnownHosts) Lookup(hostport string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	fp, ok := k.m[hostport]
	return fp, ok
}

// Record implements trust.Store: stores the fingerprint for hostport and
// persists the whole map atomically.
func (k *KnownHosts) Record(hostport, fingerprint string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[hostport] = fingerprint
	return k.persistLocked()
}

func (k *KnownHosts) persistLocked() error {
	if k.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir config dir: %w", err)
	}

	var b strings.Builder
	b.WriteString(knownHostsHeader)
	b.WriteByte('\n')
	keys := make([]string, 0, len(k.m))
	for hp := range k.m {
		keys = append(keys, hp)
	}
	sort.Strings(keys)
	for _, hp := range keys {
		fmt.Fprintf(&b, "%s=%s\n", hp, k.m[hp])
	}

	pf, err := renameio.NewPendingFile(k.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("config: create pending known_hosts: %w", err)
	}
	defer pf.Cleanup()
	if _, err := pf.Write([]byte(b.String())); err != nil {
		return fmt.Errorf("config: write known_hosts: %w", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("config: replace known_hosts: %w", err)
	}
	if runtime.GOOS != "windows" {
		_ = os.Chmod(k.path, 0o600)
	}
	return nil
}

// DefaultDir returns the platform config directory for blit
// ("%APPDATA%\Blit" or "$HOME/.config/blit").
func DefaultDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("config: APPDATA not set")
		}
		return filepath.Join(appData, "Blit"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "blit"), nil
}
