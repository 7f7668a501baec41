package session

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roethlar/blit/blitproto"
	"github.com/roethlar/blit/fsenum"
	"github.com/roethlar/blit/internal/log"
	"github.com/roethlar/blit/manifest"
)

// jobQueue is the mutex-protected LIFO the worker pool pops from (spec
// §4.10's "shared-resource" distribution policy: whichever worker finishes
// first takes the next job, newest-pushed first).
type jobQueue struct {
	mu    sync.Mutex
	items []manifest.Entry
}

func newJobQueue(entries []manifest.Entry) *jobQueue {
	return &jobQueue{items: append([]manifest.Entry(nil), entries...)}
}

func (q *jobQueue) pop() (manifest.Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return manifest.Entry{}, false
	}
	last := len(q.items) - 1
	e := q.items[last]
	q.items = q.items[:last]
	return e, true
}

// runWorkerPool distributes files across opts.WorkerCount(len(files))
// connections, each dialed fresh and driven through its own
// handshake/manifest/transfer/done sequence (spec §4.8 step 6, §4.10).
func runWorkerPool(dial Dialer, p *plan, files []manifest.Entry, opts Options, logger log.Logger) (int, error) {
	if logger == nil {
		logger = log.Discard
	}
	n := opts.WorkerCount(len(files))
	if n <= 0 {
		n = 1
	}
	if n > len(files) {
		n = len(files)
	}

	queue := newJobQueue(files)
	var transferred int64 // guarded by mu
	var mu sync.Mutex

	eg := errgroup.Group{}
	for i := 0; i < n; i++ {
		worker := i
		eg.Go(func() error {
			count, err := runWorker(dial, p, queue, opts)
			mu.Lock()
			transferred += int64(count)
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("worker %d: %w", worker, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return int(transferred), err
	}
	return int(transferred), nil
}

// runWorker opens one dedicated connection and drains jobs from queue until
// empty, streaming each file by raw copy, PFILE, or delta depending on tier.
func runWorker(dial Dialer, p *plan, queue *jobQueue, opts Options) (int, error) {
	conn, err := dial()
	if err != nil {
		return 0, fmt.Errorf("dial: %w", err)
	}
	defer conn.NetConn.Close()

	flags := opts.startFlags() &^ (blitproto.FlagMirror | blitproto.FlagPull)
	if err := conn.WriteFrame(blitproto.TypeStart, blitproto.StartPayload{Dest: "", Flags: flags}.Encode()); err != nil {
		return 0, fmt.Errorf("START: %w", err)
	}
	if _, err := conn.Expect(blitproto.TypeOK); err != nil {
		return 0, fmt.Errorf("START handshake: %w", err)
	}

	// The receiver expects a manifest phase before Transfer; jobs are popped
	// one at a time below, so a worker connection's manifest is empty.
	if err := sendManifest(conn, nil); err != nil {
		return 0, fmt.Errorf("send manifest: %w", err)
	}
	if _, err := recvNeedList(conn); err != nil {
		return 0, fmt.Errorf("recv need-list: %w", err)
	}

	chunkSize := opts.ChunkSize()
	count := 0
	for {
		e, ok := queue.pop()
		if !ok {
			break
		}
		abs := p.absPath(e.Relpath)
		tier := fsenum.ClassifySize(e.Size)
		var ferr error
		switch {
		case tier == fsenum.TierLarge && !opts.NoRestart:
			ferr = sendDeltaFile(conn, e.Relpath, abs, e.Size, e.MtimeS, chunkSize)
		case tier == fsenum.TierMedium:
			ferr = sendPFile(conn, e.Relpath, abs, e.Size, e.MtimeS, chunkSize)
		default:
			ferr = sendRawFile(conn, e.Relpath, abs, e.Size, e.MtimeS)
		}
		if ferr != nil {
			return count, fmt.Errorf("%s: %w", e.Relpath, ferr)
		}
		count++
	}

	if err := conn.WriteFrame(blitproto.TypeDone, nil); err != nil {
		return count, fmt.Errorf("send DONE: %w", err)
	}
	if _, err := conn.Expect(blitproto.TypeOK); err != nil {
		return count, fmt.Errorf("final OK: %w", err)
	}
	return count, nil
}

// sendRawFile streams a whole file unframed as FILE_RAW_START + body, for
// large files with delta disabled (spec §4.8 step 6 "otherwise").
func sendRawFile(conn *blitproto.Conn, relpath, abs string, size, mtimeS int64) error {
	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	hdr := blitproto.FileHeader{Relpath: relpath, Size: uint64(size), MtimeS: mtimeS}
	if err := conn.WriteFrame(blitproto.TypeFileRawStart, hdr.Encode()); err != nil {
		return err
	}
	if _, err := io.CopyN(conn.NetConn, f, size); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	_, err = conn.Expect(blitproto.TypeOK)
	return err
}

// sendPFile streams a medium file as the framed PFILE_START/DATA*/END
// sequence (spec §4.8 step 6). Each worker connection handles one file at a
// time, so stream_id is always 0; the prefix exists for wire uniformity with
// the multiplexed receiver-side decode path.
func sendPFile(conn *blitproto.Conn, relpath, abs string, size, mtimeS int64, chunkSize int) error {
	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	const streamID = 0
	hdr := blitproto.FileHeader{Relpath: relpath, Size: uint64(size), MtimeS: mtimeS}
	if err := conn.WriteFrame(blitproto.TypePFileStart, blitproto.EncodePFilePrefix(streamID, hdr.Encode())); err != nil {
		return err
	}

	buf := make([]byte, chunkSize)
	remaining := size
	for remaining > 0 {
		want := int64(len(buf))
		if want > remaining {
			want = remaining
		}
		n, err := io.ReadFull(f, buf[:want])
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if err := conn.WriteFrame(blitproto.TypePFileData, blitproto.EncodePFilePrefix(streamID, buf[:n])); err != nil {
			return err
		}
		remaining -= int64(n)
	}

	if err := conn.WriteFrame(blitproto.TypePFileEnd, blitproto.EncodePFilePrefix(streamID, nil)); err != nil {
		return err
	}
	_, err = conn.Expect(blitproto.TypeOK)
	return err
}
