package main

import (
	"fmt"
	"strconv"
	"strings"
)

// Remote is a parsed blit://HOST[:PORT]/PATH destination or source (spec §6
// supplemented feature, ported from original_source/src/url.rs).
type Remote struct {
	Host string
	Port int
	Path string // always leading-/, defaults to "/"
}

func (r Remote) String() string {
	return fmt.Sprintf("blit://%s:%d%s", r.Host, r.Port, r.Path)
}

func (r Remote) HostPort() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

const defaultRemotePort = 9031

// parseRemote parses s as a blit:// URL, scheme-case-insensitive, tolerant
// of a missing leading "/" before PATH. It returns ok=false (not an error)
// for any string that isn't a blit: URL, so callers can fall through to
// treating the argument as a local path.
func parseRemote(s string) (Remote, bool) {
	trimmed := strings.TrimSpace(s)
	scheme, rest, found := strings.Cut(trimmed, ":")
	if !found || !strings.EqualFold(scheme, "blit") {
		return Remote{}, false
	}
	rest = strings.TrimPrefix(rest, "//")
	hostport, path, _ := strings.Cut(rest, "/")
	if hostport == "" {
		return Remote{}, false
	}

	host, port := hostport, defaultRemotePort
	if h, p, ok := strings.Cut(hostport, ":"); ok {
		host = h
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	if path == "" {
		path = "/"
	} else {
		path = "/" + path
	}
	return Remote{Host: host, Port: port, Path: path}, true
}
