// Command blit is the CLI entrypoint a UI collaborator spawns as a child
// process (spec §1, §6): copy, mirror, move, and daemon subcommands.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
