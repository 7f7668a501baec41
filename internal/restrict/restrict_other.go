//go:build !linux

package restrict

import "log"

// MaybeFileSystem is a no-op outside Linux: landlock has no equivalent on
// other platforms this module targets (spec §6 daemon mode sandboxing is
// best-effort, not a hard requirement of the wire protocol).
func MaybeFileSystem(configDir string, roDirs, rwDirs []string) error {
	log.Printf("restrict: no filesystem sandboxing API on this platform, running unrestricted")
	return nil
}
