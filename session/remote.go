package session

import (
	"fmt"

	"github.com/roethlar/blit/blitproto"
)

// ListRemote asks the peer at the other end of conn to list relpath's
// immediate children, for the UI's remote browser and for `move`'s
// pre-flight checks (spec §6 supplemented feature).
func ListRemote(conn *blitproto.Conn, relpath string) ([]blitproto.ListEntry, error) {
	if err := conn.WriteFrame(blitproto.TypeListReq, blitproto.ListReqPayload{Relpath: relpath}.Encode()); err != nil {
		return nil, fmt.Errorf("session: send LIST_REQ: %w", err)
	}
	f, err := conn.Expect(blitproto.TypeListResp)
	if err != nil {
		return nil, fmt.Errorf("session: LIST_RESP: %w", err)
	}
	resp, err := blitproto.DecodeListResp(f.Payload)
	if err != nil {
		return nil, fmt.Errorf("session: decode LIST_RESP: %w", err)
	}
	return resp.Entries, nil
}

// RemoveRemoteTree asks the peer to recursively delete relpath, used by
// `move` once a pull from a remote source has verified successfully (spec
// §6: "move SRC DST — copy then delete SRC on success", where SRC is a
// blit:// URL served by the peer rather than a local path).
func RemoveRemoteTree(conn *blitproto.Conn, relpath string) error {
	if err := conn.WriteFrame(blitproto.TypeRemoveTreeReq, blitproto.RemoveTreeReqPayload{Relpath: relpath}.Encode()); err != nil {
		return fmt.Errorf("session: send REMOVE_TREE_REQ: %w", err)
	}
	f, err := conn.Expect(blitproto.TypeRemoveTreeResp)
	if err != nil {
		return fmt.Errorf("session: REMOVE_TREE_RESP: %w", err)
	}
	resp, err := blitproto.DecodeRemoveTreeResp(f.Payload)
	if err != nil {
		return fmt.Errorf("session: decode REMOVE_TREE_RESP: %w", err)
	}
	if resp.Status != 0 {
		return fmt.Errorf("session: remote remove %s: %s", relpath, resp.Msg)
	}
	return nil
}
