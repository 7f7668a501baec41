package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Module is one served root directory, keyed by name in DaemonConfig.Modules
// (analogous to an rsyncd.conf module stanza, reworked for blitd: spec §6
// daemon mode exposes named roots rather than a single --dest path).
type Module struct {
	Path       string   `toml:"path"`
	ReadOnly   bool     `toml:"read_only"`
	AllowHosts []string `toml:"allow_hosts"` // empty = allow any
	Comment    string   `toml:"comment"`
}

// DaemonConfig is the top-level blitd.toml shape.
type DaemonConfig struct {
	ListenAddr string            `toml:"listen_addr"`
	Modules    map[string]Module `toml:"modules"`
}

// LoadDaemonConfig reads and decodes a blitd.toml file.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	var cfg DaemonConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &cfg, nil
}

// Module looks up a served module by name.
func (c *DaemonConfig) Module(name string) (Module, error) {
	m, ok := c.Modules[name]
	if !ok {
		return Module{}, fmt.Errorf("config: no such module %q", name)
	}
	return m, nil
}

// HostAllowed reports whether host may use m, per its allow_hosts list
// (empty list permits any host, matching rsyncd.conf's unset "hosts allow").
func (m Module) HostAllowed(host string) bool {
	if len(m.AllowHosts) == 0 {
		return true
	}
	for _, h := range m.AllowHosts {
		if h == host {
			return true
		}
	}
	return false
}

// WriteExampleConfig writes a minimal commented blitd.toml to path.
func WriteExampleConfig(path string) error {
	const example = `# Blit daemon configuration.
listen_addr = "0.0.0.0:8873"

[modules.home]
path = "/srv/blit/home"
read_only = false
comment = "example module"
`
	return os.WriteFile(path, []byte(example), 0o644)
}
