// Command blitd is a thin receiver daemon binary: no CLI subcommand tree,
// just flags wrapping the receiver package directly (spec §6 "daemon --bind
// HOST:PORT --root DIR"), for deployments that want a single-purpose
// executable rather than the full blit CLI.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/config"
	"github.com/roethlar/blit/internal/log"
	"github.com/roethlar/blit/internal/restrict"
	"github.com/roethlar/blit/receiver"
	"github.com/roethlar/blit/trust"
)

func main() {
	bind := flag.String("bind", "0.0.0.0:9031", "listen address HOST:PORT")
	root := flag.String("root", "", "served root directory")
	mirror := flag.Bool("mirror", false, "always apply mirror deletion semantics")
	noVerify := flag.Bool("no-verify", false, "skip the verification phase")
	plaintext := flag.Bool("never-tell-me-the-odds", false, "accept plaintext TCP instead of TLS (explicit opt-in only)")
	flag.Parse()

	if *root == "" {
		fmt.Fprintln(os.Stderr, "blitd: --root is required")
		os.Exit(1)
	}

	logger := log.New(os.Stderr)
	if err := run(*bind, *root, *mirror, *noVerify, *plaintext, logger); err != nil {
		logger.Printf("blitd: %v", err)
		os.Exit(1)
	}
}

func run(bind, root string, mirror, noVerify, plaintext bool, logger log.Logger) error {
	configDir, err := config.DefaultDir()
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	if err := restrict.MaybeFileSystem(configDir, nil, []string{root}); err != nil {
		logger.Printf("sandbox setup failed, continuing unrestricted: %v", err)
	}

	ln, err := listen(bind, configDir, plaintext, logger)
	if err != nil {
		return err
	}
	defer ln.Close()
	logger.Printf("listening on %s (root=%s, plaintext=%v)", bind, root, plaintext)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Printf("shutting down")
		ln.Close()
	}()

	opts := receiver.Options{Mirror: mirror, NoVerify: noVerify}
	for {
		nc, err := ln.Accept()
		if err != nil {
			return nil
		}
		go func() {
			defer nc.Close()
			rc := receiver.New(root, opts, logger, blitproto.NewConn(nc))
			if err := rc.HandleConnection(); err != nil {
				logger.Printf("connection %s: %v", rc.ID, err)
			}
		}()
	}
}

func listen(bind, configDir string, plaintext bool, logger log.Logger) (net.Listener, error) {
	if plaintext {
		logger.Printf("never-tell-me-the-odds: listening on %s without TLS", bind)
		return net.Listen("tcp", bind)
	}
	cert, err := trust.LoadOrGenerateServerCreds(
		filepath.Join(configDir, "server-cert.pem"),
		filepath.Join(configDir, "server-key.pem"),
	)
	if err != nil {
		return nil, fmt.Errorf("load server credentials: %w", err)
	}
	return tls.Listen("tcp", bind, &tls.Config{Certificates: []tls.Certificate{cert}})
}
