package main

import (
	"fmt"

	"github.com/roethlar/blit/fsenum"
	"github.com/roethlar/blit/internal/log"
	"github.com/roethlar/blit/session"
)

// listTransfer implements --list-only: walk the source tree and print what
// would be sent, without opening any connection (spec §6 "--list-only").
func listTransfer(src, dst string, opts session.Options, logger log.Logger) error {
	if _, isRemote := parseRemote(src); isRemote {
		return fmt.Errorf("blit: --list-only does not support a remote source")
	}
	entries, err := fsenum.Walk(src, &opts.Filter)
	if err != nil {
		return fmt.Errorf("blit: walk %s: %w", src, err)
	}
	for _, e := range entries {
		fmt.Println(e.Relpath)
	}
	fmt.Printf("%d entries would transfer to %s\n", len(entries), dst)
	return nil
}
