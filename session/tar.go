package session

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/manifest"
	"github.com/roethlar/blit/tarbundle"
)

// sendTarPhase bundles every small file into a tar stream, sends it as
// TAR_START/DATA*/END, expects OK, then emits one SET_ATTR per file for the
// readonly bit (Windows) or POSIX mode (spec §4.8 step 4).
func sendTarPhase(conn *blitproto.Conn, p *plan, files []manifest.Entry) (int, error) {
	sources := make([]tarbundle.FileSource, 0, len(files))
	for _, e := range files {
		e := e
		abs := p.absPath(e.Relpath)
		info, err := os.Stat(abs)
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", e.Relpath, err)
		}
		sources = append(sources, tarbundle.FileSource{
			Relpath: e.Relpath,
			Size:    e.Size,
			ModTime: e.MtimeS,
			Mode:    info.Mode(),
			Open:    func() (io.ReadCloser, error) { return os.Open(abs) },
		})
	}

	builder := tarbundle.NewBuilder(sources, 4)
	if err := conn.WriteFrame(blitproto.TypeTarStart, nil); err != nil {
		return 0, err
	}
	for {
		chunk, err := builder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("tar build: %w", err)
		}
		if err := conn.WriteFrame(blitproto.TypeTarData, chunk); err != nil {
			return 0, err
		}
	}
	if err := conn.WriteFrame(blitproto.TypeTarEnd, nil); err != nil {
		return 0, err
	}
	if _, err := conn.Expect(blitproto.TypeOK); err != nil {
		return 0, fmt.Errorf("tar OK: %w", err)
	}

	for _, e := range files {
		abs := p.absPath(e.Relpath)
		info, err := os.Stat(abs)
		if err != nil {
			return 0, fmt.Errorf("stat for attrs %s: %w", e.Relpath, err)
		}
		attr := attrPayloadFor(e.Relpath, info)
		if err := conn.WriteFrame(blitproto.TypeSetAttr, attr.Encode()); err != nil {
			return 0, fmt.Errorf("SET_ATTR %s: %w", e.Relpath, err)
		}
	}
	return len(files), nil
}

// attrPayloadFor builds the SET_ATTR payload the receiver expects: the
// readonly bit on Windows, the POSIX mode elsewhere (spec §4.9).
func attrPayloadFor(relpath string, info os.FileInfo) blitproto.SetAttrPayload {
	if runtime.GOOS == "windows" {
		var flags blitproto.SetAttrFlag
		if info.Mode().Perm()&0o200 == 0 {
			flags |= blitproto.AttrReadonly
		}
		return blitproto.SetAttrPayload{Relpath: relpath, Flags: flags}
	}
	return blitproto.SetAttrPayload{
		Relpath: relpath,
		Flags:   blitproto.AttrPosixMode,
		Mode:    uint32(info.Mode().Perm()),
	}
}
