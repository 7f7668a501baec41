package receiver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/roethlar/blit/blitproto"
)

// handleListReq answers LIST_REQ with a single directory's children, for
// the UI's remote browser (spec §6 supplemented feature).
func (c *Connection) handleListReq(payload []byte) error {
	req, err := blitproto.DecodeListReq(payload)
	if err != nil {
		return err
	}
	abs, err := c.abs(req.Relpath)
	if err != nil {
		return c.Conn.WriteFrame(blitproto.TypeListResp, blitproto.ListRespPayload{}.Encode())
	}
	items, err := os.ReadDir(abs)
	if err != nil {
		return c.Conn.WriteFrame(blitproto.TypeListResp, blitproto.ListRespPayload{}.Encode())
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name() < items[j].Name() })

	var entries []blitproto.ListEntry
	for _, it := range items {
		info, err := it.Info()
		if err != nil {
			continue
		}
		entries = append(entries, blitproto.ListEntry{Name: it.Name(), IsDir: it.IsDir(), Size: uint64(info.Size())})
	}
	return c.Conn.WriteFrame(blitproto.TypeListResp, blitproto.ListRespPayload{Entries: entries}.Encode())
}

// handleRemoveTreeReq recursively removes relpath (files then directories
// bottom-up), used by the `move` subcommand to delete the source tree after
// a successful copy (spec §4.9, §6).
func (c *Connection) handleRemoveTreeReq(payload []byte) error {
	req, err := blitproto.DecodeRemoveTreeReq(payload)
	if err != nil {
		return err
	}
	abs, err := c.abs(req.Relpath)
	if err != nil {
		return c.Conn.WriteFrame(blitproto.TypeRemoveTreeResp,
			blitproto.RemoveTreeRespPayload{Status: 1, Msg: err.Error()}.Encode())
	}
	if err := removeTreeBottomUp(abs); err != nil {
		return c.Conn.WriteFrame(blitproto.TypeRemoveTreeResp,
			blitproto.RemoveTreeRespPayload{Status: 1, Msg: err.Error()}.Encode())
	}
	return c.Conn.WriteFrame(blitproto.TypeRemoveTreeResp, blitproto.RemoveTreeRespPayload{Status: 0}.Encode())
}

// removeTreeBottomUp deletes every file/symlink under root, then every
// directory bottom-up, rather than calling os.RemoveAll directly, so a
// partial failure leaves the tree in the same "files gone, empty dirs
// remain" state the mirror-deletion path produces (spec §4.9 transaction
// discipline).
func removeTreeBottomUp(root string) error {
	info, err := os.Lstat(root)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if !info.IsDir() {
		return os.Remove(root)
	}

	var dirs []string
	err = filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		return os.Remove(path)
	})
	if err != nil {
		return err
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Remove(dirs[i]); err != nil {
			return err
		}
	}
	return nil
}
