package main

import (
	"github.com/spf13/cobra"
)

// rootCmd is the blit CLI entrypoint, invoked by the UI collaborator as a
// child process (spec §1 contract item (i), §6 "CLI subcommands").
var rootCmd = &cobra.Command{
	Use:   "blit",
	Short: "blit replicates a directory tree to a local path or a blit:// daemon",
	Long: `blit is a file-synchronization engine: rsync-style delta transfer,
small-file tar bundling, and parallel large-file streaming over a framed,
TLS-capable transport.

Use "blit [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command; called once from main.
func Execute() error {
	return rootCmd.Execute()
}
