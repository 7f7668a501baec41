package main

import (
	"github.com/spf13/cobra"

	"github.com/roethlar/blit/fsenum"
	"github.com/roethlar/blit/session"
)

// transferFlags mirrors the reference CLI's Args struct (spec §6 "Common
// flags"), bound to pflag vars in registerTransferFlags and shared by copy,
// mirror, and move.
type transferFlags struct {
	verbose    bool
	progress   bool
	threads    int
	emptyDirs  bool
	noEmptyDir bool
	update     bool
	listOnly   bool
	excludeF   []string
	excludeD   []string
	checksum   bool
	forceTar   bool
	noTar      bool
	noVerify   bool
	noRestart  bool
	logFile    string
	netWorkers int
	netChunkMB int
	preserveSL bool
	preserveSJ bool
	xj         bool
	xjd        bool
	xjf        bool
	ludicrous  bool
	odds       bool
}

func registerTransferFlags(cmd *cobra.Command, f *transferFlags) {
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "verbose output")
	cmd.Flags().BoolVarP(&f.progress, "progress", "p", false, "accepted; has no effect (no progress output is produced)")
	cmd.Flags().IntVarP(&f.threads, "threads", "t", 0, "accepted; has no effect (see --net-workers)")
	cmd.Flags().BoolVar(&f.emptyDirs, "empty-dirs", false, "include empty directories")
	cmd.Flags().BoolVar(&f.noEmptyDir, "no-empty-dirs", false, "exclude empty directories")
	cmd.Flags().BoolVar(&f.update, "update", false, "accepted; has no effect (files newer on the destination are not skipped)")
	cmd.Flags().BoolVarP(&f.listOnly, "list-only", "l", false, "list what would transfer without transferring")
	cmd.Flags().StringArrayVar(&f.excludeF, "xf", nil, "exclude files matching glob (repeatable)")
	cmd.Flags().StringArrayVar(&f.excludeD, "xd", nil, "exclude directories matching glob (repeatable)")
	cmd.Flags().BoolVarP(&f.checksum, "checksum", "c", false, "accepted; has no effect (need is decided by size and mtime)")
	cmd.Flags().BoolVar(&f.forceTar, "force-tar", false, "accepted; has no effect (tar bundling follows the size tier)")
	cmd.Flags().BoolVar(&f.noTar, "no-tar", false, "accepted; has no effect (small files are always tar-bundled)")
	cmd.Flags().BoolVar(&f.noVerify, "no-verify", false, "skip the post-transfer verification batch")
	cmd.Flags().BoolVar(&f.noRestart, "no-restart", false, "disable delta mode, always send full bodies")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "append session log lines to PATH")
	cmd.Flags().IntVar(&f.netWorkers, "net-workers", 0, "worker connection count (0 = auto)")
	cmd.Flags().IntVar(&f.netChunkMB, "net-chunk-mb", 0, "streaming chunk size in MiB (0 = profile default)")
	cmd.Flags().BoolVar(&f.preserveSL, "sl", false, "accepted; has no effect (symlinks are always sent as links)")
	cmd.Flags().BoolVar(&f.preserveSJ, "sj", false, "accepted; has no effect")
	cmd.Flags().BoolVar(&f.xj, "xj", false, "exclude all symlinks")
	cmd.Flags().BoolVar(&f.xjd, "xjd", false, "exclude symlinks that resolve to a directory")
	cmd.Flags().BoolVar(&f.xjf, "xjf", false, "exclude symlinks that resolve to a regular file")
	cmd.Flags().BoolVar(&f.ludicrous, "ludicrous-speed", false, "double the default streaming chunk size (4 MiB to 8 MiB)")
	cmd.Flags().BoolVar(&f.odds, "never-tell-me-the-odds", false, "dial blit:// peers over plaintext TCP instead of TLS (explicit opt-in only; path-safety checks stay on)")
}

// sessionOptions converts the bound flags into session.Options, for the
// mirror flag plus whatever the caller's subcommand always implies.
func (f *transferFlags) sessionOptions(mirror bool) session.Options {
	return session.Options{
		Mirror:           mirror,
		IncludeEmptyDirs: f.emptyDirs && !f.noEmptyDir,
		NoVerify:         f.noVerify,
		NoRestart:        f.noRestart,
		Checksum:         f.checksum,
		SpeedProfile:     f.ludicrous,
		NetWorkers:       f.netWorkers,
		NetChunkMB:       f.netChunkMB,
		Filter: fsenum.Filter{
			ExcludeDirs:         f.excludeD,
			ExcludeFiles:        f.excludeF,
			IncludeEmptyDirs:    f.emptyDirs && !f.noEmptyDir,
			PreserveSymlinks:    f.preserveSL,
			PreserveJunctions:   f.preserveSJ,
			ExcludeSymlinks:     f.xj,
			ExcludeDirSymlinks:  f.xjd,
			ExcludeFileSymlinks: f.xjf,
		},
	}
}
