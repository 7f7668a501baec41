package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/session"
)

var moveFlags transferFlags

var moveCmd = &cobra.Command{
	Use:   "move SRC DST",
	Short: "Copy SRC to DST, then delete SRC on success",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMove(args[0], args[1], &moveFlags)
	},
}

func init() {
	registerTransferFlags(moveCmd, &moveFlags)
	rootCmd.AddCommand(moveCmd)
}

func runMove(src, dst string, f *transferFlags) error {
	logger := buildLogger(f)
	opts := f.sessionOptions(false)

	if remote, ok := parseRemote(src); ok {
		nc, err := dialRemote(remote.HostPort(), f.odds, logger)
		if err != nil {
			return fmt.Errorf("blit: connect to %s: %w", src, err)
		}
		conn := blitproto.NewConn(nc)
		defer conn.NetConn.Close()
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return fmt.Errorf("blit: mkdir %s: %w", dst, err)
		}
		sum, err := session.Pull(conn, remote.Path, dst, opts, logger)
		if err != nil {
			return fmt.Errorf("blit: pull failed: %w", err)
		}
		if err := session.RemoveRemoteTree(conn, remote.Path); err != nil {
			return fmt.Errorf("blit: pulled %d files but could not remove source: %w", sum.FilesStreamed, err)
		}
		fmt.Printf("moved %d files from %s\n", sum.FilesStreamed, src)
		return nil
	}

	sum, err := runPush(src, dst, opts, f, logger)
	if err != nil {
		return fmt.Errorf("blit: move failed: %w", err)
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("blit: transferred %d files but could not remove source %s: %w", sum.FilesTarred+sum.FilesStreamed, src, err)
	}
	fmt.Printf("moved %d files tarred, %d files streamed from %s\n", sum.FilesTarred, sum.FilesStreamed, src)
	return nil
}
