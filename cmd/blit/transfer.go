package main

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/config"
	"github.com/roethlar/blit/internal/log"
	"github.com/roethlar/blit/receiver"
	"github.com/roethlar/blit/session"
	"github.com/roethlar/blit/trust"
)

const dialTimeout = 10 * time.Second

// connFactory dials one transport connection to a destination, local or
// remote, for use as either the control connection or a worker connection.
type connFactory struct {
	dial    func() (*blitproto.Conn, error)
	closeFn func() error // waits for any in-process receiver goroutines this factory spawned
}

// newConnFactory builds a connFactory for dst: a local filesystem path runs
// an in-process receiver.Connection over net.Pipe (spec's core never
// describes a non-networked transfer, so this keeps the sender/receiver
// state machines identical for local and remote destinations); a blit://
// URL dials out over TLS (or plaintext under --never-tell-me-the-odds).
func newConnFactory(dst string, recvOpts receiver.Options, logger log.Logger, odds bool) (*connFactory, string, error) {
	if remote, ok := parseRemote(dst); ok {
		return remoteConnFactory(remote, odds, logger), remote.Path, nil
	}
	return localConnFactory(dst, recvOpts, logger), "", nil
}

func localConnFactory(destDir string, recvOpts receiver.Options, logger log.Logger) *connFactory {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	return &connFactory{
		dial: func() (*blitproto.Conn, error) {
			clientSide, serverSide := net.Pipe()
			rc := receiver.New(destDir, recvOpts, logger, blitproto.NewConn(serverSide))
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := rc.HandleConnection(); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}()
			return blitproto.NewConn(clientSide), nil
		},
		closeFn: func() error {
			wg.Wait()
			return firstErr
		},
	}
}

func remoteConnFactory(remote Remote, odds bool, logger log.Logger) *connFactory {
	return &connFactory{
		dial: func() (*blitproto.Conn, error) {
			nc, err := dialRemote(remote.HostPort(), odds, logger)
			if err != nil {
				return nil, err
			}
			return blitproto.NewConn(nc), nil
		},
		closeFn: func() error { return nil },
	}
}

func dialRemote(hostport string, odds bool, logger log.Logger) (net.Conn, error) {
	if odds {
		logger.Printf("never-tell-me-the-odds: connecting to %s without TLS", hostport)
		return net.DialTimeout("tcp", hostport, dialTimeout)
	}
	dir, err := config.DefaultDir()
	if err != nil {
		return nil, fmt.Errorf("blit: resolve config dir: %w", err)
	}
	kh, err := config.LoadKnownHosts(filepath.Join(dir, "known_hosts"))
	if err != nil {
		return nil, fmt.Errorf("blit: load known_hosts: %w", err)
	}
	tlsConf := trust.ClientConfig(hostport, kh)
	d := &net.Dialer{Timeout: dialTimeout}
	conn, err := tls.DialWithDialer(d, "tcp", hostport, tlsConf)
	if err != nil {
		return nil, fmt.Errorf("blit: tls dial %s: %w", hostport, err)
	}
	return conn, nil
}

// runPush drives a copy/mirror from a local srcRoot to dst (local or
// blit://), per session.Run's contract.
func runPush(srcRoot, dst string, opts session.Options, f *transferFlags, logger log.Logger) (session.Summary, error) {
	recvOpts := receiver.Options{Mirror: opts.Mirror, IncludeEmptyDirs: opts.IncludeEmptyDirs, NoVerify: opts.NoVerify}
	factory, destRelpath, err := newConnFactory(dst, recvOpts, logger, f.odds)
	if err != nil {
		return session.Summary{}, err
	}
	control, err := factory.dial()
	if err != nil {
		return session.Summary{}, fmt.Errorf("blit: connect to %s: %w", dst, err)
	}
	sum, runErr := session.Run(control, factory.dial, srcRoot, destRelpath, opts, logger)
	control.NetConn.Close()
	if waitErr := factory.closeFn(); waitErr != nil && runErr == nil {
		runErr = waitErr
	}
	return sum, runErr
}

// runPull drives a copy from a remote blit:// source into a local destDir.
func runPull(src, destDir string, opts session.Options, f *transferFlags, logger log.Logger) (session.Summary, error) {
	remote, ok := parseRemote(src)
	if !ok {
		return session.Summary{}, fmt.Errorf("blit: %s is not a blit:// URL", src)
	}
	nc, err := dialRemote(remote.HostPort(), f.odds, logger)
	if err != nil {
		return session.Summary{}, fmt.Errorf("blit: connect to %s: %w", src, err)
	}
	conn := blitproto.NewConn(nc)
	defer conn.NetConn.Close()
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return session.Summary{}, fmt.Errorf("blit: mkdir %s: %w", destDir, err)
	}
	return session.Pull(conn, remote.Path, destDir, opts, logger)
}

// runTransfer is the shared body of copy/mirror: local-source push, or
// remote-source pull, chosen by which side (if either) is a blit:// URL.
func runTransfer(src, dst string, mirror bool, f *transferFlags) error {
	logger := buildLogger(f)
	opts := f.sessionOptions(mirror)

	if f.listOnly {
		return listTransfer(src, dst, opts, logger)
	}

	var sum session.Summary
	var err error
	if _, isRemoteSrc := parseRemote(src); isRemoteSrc {
		sum, err = runPull(src, dst, opts, f, logger)
	} else {
		sum, err = runPush(src, dst, opts, f, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "blit: transfer failed: %v\n", err)
		return err
	}
	fmt.Printf("sent %d files tarred, %d files streamed, %d symlinks, %d dirs\n",
		sum.FilesTarred, sum.FilesStreamed, sum.SymlinksMade, sum.DirsMade)
	return nil
}

func buildLogger(f *transferFlags) log.Logger {
	if f.logFile == "" {
		if f.verbose {
			return log.New(os.Stderr)
		}
		return log.Discard
	}
	out, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "blit: open log file %s: %v\n", f.logFile, err)
		return log.Discard
	}
	return log.New(out)
}
