package main

import (
	"github.com/spf13/cobra"
)

var copyFlags transferFlags

var copyCmd = &cobra.Command{
	Use:   "copy SRC DST",
	Short: "Replicate SRC into DST, no deletion",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(args[0], args[1], false, &copyFlags)
	},
}

func init() {
	registerTransferFlags(copyCmd, &copyFlags)
	rootCmd.AddCommand(copyCmd)
}
