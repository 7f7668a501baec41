package main

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/config"
	"github.com/roethlar/blit/internal/log"
	"github.com/roethlar/blit/internal/restrict"
	"github.com/roethlar/blit/receiver"
	"github.com/roethlar/blit/trust"
)

var (
	daemonBind      string
	daemonRoot      string
	daemonConfig    string
	daemonMirror    bool
	daemonNoVerify  bool
	daemonPlaintext bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the blit receiver daemon",
	Long: `daemon starts a TLS-capable blit receiver, either serving a single
root directory (--root) or a set of named modules (--config blitd.toml).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func init() {
	daemonCmd.Flags().StringVar(&daemonBind, "bind", "0.0.0.0:9031", "listen address HOST:PORT")
	daemonCmd.Flags().StringVar(&daemonRoot, "root", "", "served root directory (single-root mode)")
	daemonCmd.Flags().StringVar(&daemonConfig, "config", "", "blitd.toml path (named-module mode)")
	daemonCmd.Flags().BoolVar(&daemonMirror, "mirror", false, "always apply mirror deletion semantics")
	daemonCmd.Flags().BoolVar(&daemonNoVerify, "no-verify", false, "skip the verification phase")
	daemonCmd.Flags().BoolVar(&daemonPlaintext, "never-tell-me-the-odds", false, "accept plaintext TCP instead of TLS (explicit opt-in only)")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon() error {
	logger := log.New(os.Stderr)
	if daemonRoot == "" && daemonConfig == "" {
		return fmt.Errorf("blit daemon: one of --root or --config is required")
	}

	var dcfg *config.DaemonConfig
	if daemonConfig != "" {
		var err error
		dcfg, err = config.LoadDaemonConfig(daemonConfig)
		if err != nil {
			return fmt.Errorf("blit daemon: %w", err)
		}
	}

	configDir, err := config.DefaultDir()
	if err != nil {
		return fmt.Errorf("blit daemon: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("blit daemon: mkdir config dir: %w", err)
	}

	roDirs, rwDirs := sandboxDirs(dcfg)
	if err := restrict.MaybeFileSystem(configDir, roDirs, rwDirs); err != nil {
		logger.Printf("daemon: sandbox setup failed, continuing unrestricted: %v", err)
	}

	ln, err := listen(daemonBind, configDir, logger)
	if err != nil {
		return fmt.Errorf("blit daemon: %w", err)
	}
	defer ln.Close()
	logger.Printf("daemon: listening on %s (plaintext=%v)", daemonBind, daemonPlaintext)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Printf("daemon: shutting down")
		ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			return nil // listener closed during shutdown
		}
		go serveDaemonConn(nc, dcfg, logger)
	}
}

func sandboxDirs(dcfg *config.DaemonConfig) (roDirs, rwDirs []string) {
	if dcfg != nil {
		for _, m := range dcfg.Modules {
			if m.ReadOnly {
				roDirs = append(roDirs, m.Path)
			} else {
				rwDirs = append(rwDirs, m.Path)
			}
		}
		return roDirs, rwDirs
	}
	return nil, []string{daemonRoot}
}

func listen(bind, configDir string, logger log.Logger) (net.Listener, error) {
	if daemonPlaintext {
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

func serveDaemonConn(nc net.Conn, dcfg *config.DaemonConfig, logger log.Logger) {
	defer nc.Close()
	baseDir := daemonRoot
	rc := receiver.New(baseDir, receiver.Options{Mirror: daemonMirror, NoVerify: daemonNoVerify}, logger, blitproto.NewConn(nc))
	if dcfg != nil {
		rc.ResolveBaseDir = func(dest, peerAddr string) (string, error) {
			return resolveModule(dcfg, dest, peerAddr)
		}
	}
	if err := rc.HandleConnection(); err != nil {
		logger.Printf("daemon: connection %s: %v", rc.ID, err)
	}
}

// resolveModule treats the START frame's Dest as "moduleName/subpath" and
// resolves it against dcfg, enforcing per-module host allow-lists (spec §6
// daemon module-serving mode).
func resolveModule(dcfg *config.DaemonConfig, dest, peerAddr string) (string, error) {
	name, sub, _ := strings.Cut(dest, "/")
	mod, err := dcfg.Module(name)
	if err != nil {
		return "", err
	}
	host, _, err := net.SplitHostPort(peerAddr)
	if err != nil {
		host = peerAddr
	}
	if !mod.HostAllowed(host) {
		return "", fmt.Errorf("host %s not permitted for module %q", host, name)
	}
	if sub == "" {
		return mod.Path, nil
	}
	return filepath.Join(mod.Path, filepath.FromSlash(sub)), nil
}
