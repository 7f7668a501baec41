// Package tarbundle packs small files into a tar stream for bulk transfer
// (spec §4.6) and unpacks one rooted safely under a base directory. The
// producer/consumer handoff is a bounded channel of byte buffers feeding a
// reader adapter (spec §9 "producer-consumer tar streaming"), giving
// natural back-pressure from channel capacity instead of the teacher's
// bounded-byte-queue-plus-worker-thread shape.
package tarbundle

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roethlar/blit/pathsafe"
)

// ChunkSize is the size of each TAR_DATA frame payload the builder hands
// off once its internal buffer fills.
const ChunkSize = 256 << 10 // 256 KiB

// FileSource is one small file to bundle.
type FileSource struct {
	Relpath string
	Size    int64
	ModTime int64 // unix seconds
	Mode    os.FileMode
	Open    func() (io.ReadCloser, error)
}

// Builder streams tar-formatted bytes for a set of small files onto a
// bounded channel of chunks, one TAR_DATA frame payload at a time.
type Builder struct {
	chunks chan []byte
	errc   chan error
}

// NewBuilder starts a producer goroutine that tars files into chunks of
// ChunkSize bytes (the final chunk may be shorter), writing them to an
// internal channel with capacity bufDepth (the channel IS the bounded
// byte queue from spec §4.6; back-pressure falls out of its capacity).
func NewBuilder(files []FileSource, bufDepth int) *Builder {
	if bufDepth <= 0 {
		bufDepth = 4
	}
	b := &Builder{
		chunks: make(chan []byte, bufDepth),
		errc:   make(chan error, 1),
	}
	go b.produce(files)
	return b
}

type chunkedWriter struct {
	out chan<- []byte
	buf []byte
}

func (w *chunkedWriter) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		room := ChunkSize - len(w.buf)
		n := len(p)
		if n > room {
			n = room
		}
		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		if len(w.buf) >= ChunkSize {
			w.out <- w.buf
			w.buf = make([]byte, 0, ChunkSize)
		}
	}
	return total, nil
}

func (w *chunkedWriter) Flush() {
	if len(w.buf) > 0 {
		w.out <- w.buf
		w.buf = nil
	}
}

func (b *Builder) produce(files []FileSource) {
	defer close(b.chunks)
	cw := &chunkedWriter{out: b.chunks, buf: make([]byte, 0, ChunkSize)}
	tw := tar.NewWriter(cw)
	for _, f := range files {
		hdr := &tar.Header{
			Name:    filepath.ToSlash(f.Relpath),
			Size:    f.Size,
			Mode:    int64(f.Mode.Perm()),
			ModTime: time.Unix(f.ModTime, 0),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			b.errc <- fmt.Errorf("tarbundle: header %s: %w", f.Relpath, err)
			return
		}
		rc, err := f.Open()
		if err != nil {
			b.errc <- fmt.Errorf("tarbundle: open %s: %w", f.Relpath, err)
			return
		}
		_, err = io.Copy(tw, rc)
		rc.Close()
		if err != nil {
			b.errc <- fmt.Errorf("tarbundle: copy %s: %w", f.Relpath, err)
			return
		}
	}
	if err := tw.Close(); err != nil {
		b.errc <- fmt.Errorf("tarbundle: close: %w", err)
		return
	}
	cw.Flush()
	b.errc <- nil
}

// Next returns the next TAR_DATA chunk, or io.EOF once the stream is
// exhausted. Mirrors a pull-style reader over the frame stream.
func (b *Builder) Next() ([]byte, error) {
	chunk, ok := <-b.chunks
	if !ok {
		if err := <-b.errc; err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return chunk, nil
}

// FrameReader adapts a pull-style frame stream (TAR_DATA chunks terminated
// by TAR_END) into an io.Reader, for feeding directly into Unpack.
type FrameReader struct {
	Next func() ([]byte, error) // returns io.EOF after TAR_END
	buf  []byte
}

func (r *FrameReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		chunk, err := r.Next()
		if err != nil {
			return 0, err
		}
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// Unpack reads a tar stream from r and materializes entries under baseDir,
// returning the count of regular files written. Every entry is
// path-safety checked via pathsafe.Resolve; entries whose path escapes
// baseDir are rejected without writing anything.
func Unpack(r io.Reader, baseDir string) (int, error) {
	tr := tar.NewReader(r)
	files := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return files, fmt.Errorf("tarbundle: read entry: %w", err)
		}
		name := strings.TrimPrefix(filepath.ToSlash(hdr.Name), "./")
		dest, err := pathsafe.Resolve(baseDir, name)
		if err != nil {
			return files, fmt.Errorf("tarbundle: unsafe entry %q: %w", hdr.Name, err)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return files, err
			}
		case tar.TypeSymlink:
			// Materialized explicitly rather than via the unpacker on
			// platforms without symlink privilege (spec §4.6); Go's
			// os.Symlink already performs the underlying platform call, so
			// there is only one code path here, not a privilege branch.
			os.Remove(dest)
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				return files, err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return files, err
			}
			out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return files, err
			}
			if _, err := io.CopyN(out, tr, hdr.Size); err != nil && err != io.EOF {
				out.Close()
				return files, err
			}
			out.Close()
			os.Chtimes(dest, hdr.ModTime, hdr.ModTime)
			files++
		}
	}
}
