// Package restrict sandboxes the daemon's filesystem access to its served
// module roots, on platforms that provide an API for it (spec §6 daemon
// mode: modules should not be able to read outside their configured path).
package restrict

import (
	"fmt"
	"log"

	"github.com/landlock-lsm/go-landlock/landlock"
)

// ExtraHook is set by tests to loosen the landlock rule set.
var ExtraHook func() []landlock.Rule

// dnsLookup files are read by the Go resolver; the daemon still needs them
// to serve TLS over a hostname-resolved listen address.
var dnsLookup = []string{
	"/etc/resolv.conf",
	"/etc/hosts",
	"/etc/services",
	"/etc/nsswitch.conf",
}

// MaybeFileSystem applies a best-effort landlock rule set. configDir holds
// the TLS cert/key and known-hosts files outside the served modules
// (config.DefaultDir), which must stay reachable independent of module
// read-only/read-write rules.
func MaybeFileSystem(configDir string, roDirs, rwDirs []string) error {
	re := ExtraHook
	if re == nil {
		re = func() []landlock.Rule { return nil }
	}
	log.Printf("restrict: setting up landlock ACL (config: %s, ro modules: %d, rw modules: %d)",
		configDir, len(roDirs), len(rwDirs))
	err := landlock.V3.BestEffort().RestrictPaths(
		append(re(), []landlock.Rule{
			landlock.ROFiles(dnsLookup...).IgnoreIfMissing(),
			landlock.RWDirs(configDir).IgnoreIfMissing().WithRefer(),
			landlock.RODirs(roDirs...).IgnoreIfMissing(),
			landlock.RWDirs(rwDirs...).WithRefer(),
		}...)...)
	if err != nil {
		return fmt.Errorf("landlock: %w", err)
	}
	return nil
}
