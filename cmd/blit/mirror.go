package main

import (
	"github.com/spf13/cobra"
)

var mirrorFlags transferFlags

var mirrorCmd = &cobra.Command{
	Use:     "mirror SRC DST",
	Aliases: []string{"mir"},
	Short:   "Replicate SRC into DST and delete extras in DST",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(args[0], args[1], true, &mirrorFlags)
	},
}

// del and purge are the robocopy-compatibility aliases spec §6 names
// alongside --mir; they carry no extra state, so they're just bool flags
// that also force mirror semantics when set on the copy command's flag set
// is unnecessary here since mirror already implies deletion.
var delFlag, purgeFlag bool

func init() {
	registerTransferFlags(mirrorCmd, &mirrorFlags)
	mirrorCmd.Flags().BoolVar(&delFlag, "del", false, "alias for mirror semantics (always on for this command)")
	mirrorCmd.Flags().BoolVar(&purgeFlag, "purge", false, "alias for mirror semantics (always on for this command)")
	rootCmd.AddCommand(mirrorCmd)
}
