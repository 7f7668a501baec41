package blitproto

import "fmt"

// This file defines payload encodings for the frame types in the §4.1
// registry, shared by the sender-side session package and the receiver so
// both speak exactly the same wire format.

// StartFlag bits (spec §4.1).
type StartFlag uint8

const (
	FlagMirror StartFlag = 1 << iota
	FlagPull
	FlagIncludeEmptyDirs
	FlagSpeedProfile
)

// StartPayload is frame type START.
type StartPayload struct {
	Dest  string
	Flags StartFlag
}

func (p StartPayload) Encode() []byte {
	buf := PutString(nil, p.Dest)
	return append(buf, byte(p.Flags))
}

func DecodeStart(payload []byte) (StartPayload, error) {
	dest, off, err := GetString(payload, 0)
	if err != nil {
		return StartPayload{}, err
	}
	if off >= len(payload) {
		return StartPayload{}, &ProtocolError{Kind: BadPayload, Detail: "missing flags byte"}
	}
	return StartPayload{Dest: dest, Flags: StartFlag(payload[off])}, nil
}

// FileHeader is the common header used by FILE_START, FILE_RAW_START, and
// DELTA_START: relpath + size + mtime.
type FileHeader struct {
	Relpath string
	Size    uint64
	MtimeS  int64
}

func (h FileHeader) Encode() []byte {
	buf := PutString(nil, h.Relpath)
	var sz, mt [8]byte
	PutUint64(sz[:], h.Size)
	PutUint64(mt[:], uint64(h.MtimeS))
	buf = append(buf, sz[:]...)
	buf = append(buf, mt[:]...)
	return buf
}

func DecodeFileHeader(payload []byte) (FileHeader, error) {
	relpath, off, err := GetString(payload, 0)
	if err != nil {
		return FileHeader{}, err
	}
	if off+16 > len(payload) {
		return FileHeader{}, &ProtocolError{Kind: BadPayload, Detail: "truncated file header"}
	}
	size := Uint64(payload[off : off+8])
	mtime := int64(Uint64(payload[off+8 : off+16]))
	return FileHeader{Relpath: relpath, Size: size, MtimeS: mtime}, nil
}

// EncodePFilePrefix prefixes a stream_id byte onto a PFILE_* frame.
func EncodePFilePrefix(streamID uint8, rest []byte) []byte {
	return append([]byte{streamID}, rest...)
}

func DecodePFilePrefix(payload []byte) (streamID uint8, rest []byte, err error) {
	if len(payload) < 1 {
		return 0, nil, &ProtocolError{Kind: BadPayload, Detail: "missing stream_id"}
	}
	return payload[0], payload[1:], nil
}

// ManifestEntryKind matches manifest.Kind without importing it (blitproto
// stays a leaf package).
type ManifestEntryKind uint8

const (
	MEKindFile ManifestEntryKind = iota
	MEKindSymlink
	MEKindDirectory
)

// ManifestEntryPayload is one MANIFEST_ENTRY frame.
type ManifestEntryPayload struct {
	Kind    ManifestEntryKind
	Relpath string
	Size    uint64 // files
	MtimeS  int64  // files, symlinks
	Target  string // symlinks
}

func (e ManifestEntryPayload) Encode() []byte {
	buf := []byte{byte(e.Kind)}
	buf = PutString(buf, e.Relpath)
	switch e.Kind {
	case MEKindFile:
		var sz, mt [8]byte
		PutUint64(sz[:], e.Size)
		PutUint64(mt[:], uint64(e.MtimeS))
		buf = append(buf, sz[:]...)
		buf = append(buf, mt[:]...)
	case MEKindSymlink:
		var mt [8]byte
		PutUint64(mt[:], uint64(e.MtimeS))
		buf = append(buf, mt[:]...)
		buf = PutString(buf, e.Target)
	case MEKindDirectory:
		// no extra fields
	}
	return buf
}

func DecodeManifestEntry(payload []byte) (ManifestEntryPayload, error) {
	if len(payload) < 1 {
		return ManifestEntryPayload{}, &ProtocolError{Kind: BadPayload, Detail: "empty manifest entry"}
	}
	kind := ManifestEntryKind(payload[0])
	relpath, off, err := GetString(payload, 1)
	if err != nil {
		return ManifestEntryPayload{}, err
	}
	e := ManifestEntryPayload{Kind: kind, Relpath: relpath}
	switch kind {
	case MEKindFile:
		if off+16 > len(payload) {
			return e, &ProtocolError{Kind: BadPayload, Detail: "truncated file entry"}
		}
		e.Size = Uint64(payload[off : off+8])
		e.MtimeS = int64(Uint64(payload[off+8 : off+16]))
	case MEKindSymlink:
		if off+8 > len(payload) {
			return e, &ProtocolError{Kind: BadPayload, Detail: "truncated symlink entry"}
		}
		e.MtimeS = int64(Uint64(payload[off : off+8]))
		target, _, err := GetString(payload, off+8)
		if err != nil {
			return e, err
		}
		e.Target = target
	case MEKindDirectory:
		// nothing else to read
	default:
		return e, &ProtocolError{Kind: BadPayload, Detail: fmt.Sprintf("unknown manifest entry kind %d", kind)}
	}
	return e, nil
}

// NeedListPayload is frame type NEED_LIST: a sequence of length-prefixed
// relpaths.
type NeedListPayload struct {
	Relpaths []string
}

func (p NeedListPayload) Encode() []byte {
	var buf []byte
	for _, r := range p.Relpaths {
		buf = PutString(buf, r)
	}
	return buf
}

func DecodeNeedList(payload []byte) (NeedListPayload, error) {
	var out NeedListPayload
	off := 0
	for off < len(payload) {
		s, next, err := GetString(payload, off)
		if err != nil {
			return out, err
		}
		out.Relpaths = append(out.Relpaths, s)
		off = next
	}
	return out, nil
}

// SymlinkPayload is frame type SYMLINK.
type SymlinkPayload struct {
	Relpath string
	Target  string
}

func (p SymlinkPayload) Encode() []byte {
	buf := PutString(nil, p.Relpath)
	return PutString(buf, p.Target)
}

func DecodeSymlink(payload []byte) (SymlinkPayload, error) {
	relpath, off, err := GetString(payload, 0)
	if err != nil {
		return SymlinkPayload{}, err
	}
	target, _, err := GetString(payload, off)
	if err != nil {
		return SymlinkPayload{}, err
	}
	return SymlinkPayload{Relpath: relpath, Target: target}, nil
}

// MkdirPayload is frame type MKDIR.
type MkdirPayload struct {
	Relpath string
}

func (p MkdirPayload) Encode() []byte { return PutString(nil, p.Relpath) }

func DecodeMkdir(payload []byte) (MkdirPayload, error) {
	relpath, _, err := GetString(payload, 0)
	return MkdirPayload{Relpath: relpath}, err
}

// SetAttrFlag bits for SET_ATTR.
type SetAttrFlag uint8

const (
	AttrReadonly SetAttrFlag = 1 << iota
	AttrPosixMode
)

// SetAttrPayload is frame type SET_ATTR.
type SetAttrPayload struct {
	Relpath string
	Flags   SetAttrFlag
	Mode    uint32 // valid iff Flags&AttrPosixMode
}

func (p SetAttrPayload) Encode() []byte {
	buf := PutString(nil, p.Relpath)
	buf = append(buf, byte(p.Flags))
	if p.Flags&AttrPosixMode != 0 {
		var m [4]byte
		PutUint32(m[:], p.Mode)
		buf = append(buf, m[:]...)
	}
	return buf
}

func DecodeSetAttr(payload []byte) (SetAttrPayload, error) {
	relpath, off, err := GetString(payload, 0)
	if err != nil {
		return SetAttrPayload{}, err
	}
	if off >= len(payload) {
		return SetAttrPayload{}, &ProtocolError{Kind: BadPayload, Detail: "missing flag byte"}
	}
	p := SetAttrPayload{Relpath: relpath, Flags: SetAttrFlag(payload[off])}
	off++
	if p.Flags&AttrPosixMode != 0 {
		if off+4 > len(payload) {
			return p, &ProtocolError{Kind: BadPayload, Detail: "truncated mode"}
		}
		p.Mode = Uint32(payload[off : off+4])
	}
	return p, nil
}

// DeltaSamplePayload is frame type DELTA_SAMPLE.
type DeltaSamplePayload struct {
	Offset int64
	Strong [32]byte
}

func (p DeltaSamplePayload) Encode() []byte {
	var off [8]byte
	PutUint64(off[:], uint64(p.Offset))
	buf := append(off[:], p.Strong[:]...)
	return buf
}

func DecodeDeltaSample(payload []byte) (DeltaSamplePayload, error) {
	if len(payload) < 8+32 {
		return DeltaSamplePayload{}, &ProtocolError{Kind: BadPayload, Detail: "truncated delta sample"}
	}
	var p DeltaSamplePayload
	p.Offset = int64(Uint64(payload[0:8]))
	copy(p.Strong[:], payload[8:40])
	return p, nil
}

// RangePayload is frame type NEED_RANGES_RANGE.
type RangePayload struct {
	Offset int64
	Length int64
}

func (p RangePayload) Encode() []byte {
	var buf [16]byte
	PutUint64(buf[0:8], uint64(p.Offset))
	PutUint64(buf[8:16], uint64(p.Length))
	return buf[:]
}

func DecodeRange(payload []byte) (RangePayload, error) {
	if len(payload) < 16 {
		return RangePayload{}, &ProtocolError{Kind: BadPayload, Detail: "truncated range"}
	}
	return RangePayload{
		Offset: int64(Uint64(payload[0:8])),
		Length: int64(Uint64(payload[8:16])),
	}, nil
}

// DeltaDataPayload is frame type DELTA_DATA: offset + bytes.
type DeltaDataPayload struct {
	Offset int64
	Bytes  []byte
}

func (p DeltaDataPayload) Encode() []byte {
	var off [8]byte
	PutUint64(off[:], uint64(p.Offset))
	return append(off[:], p.Bytes...)
}

func DecodeDeltaData(payload []byte) (DeltaDataPayload, error) {
	if len(payload) < 8 {
		return DeltaDataPayload{}, &ProtocolError{Kind: BadPayload, Detail: "truncated delta data"}
	}
	return DeltaDataPayload{
		Offset: int64(Uint64(payload[0:8])),
		Bytes:  payload[8:],
	}, nil
}

// VerifyHashPayload is frame type VERIFY_HASH.
type VerifyHashPayload struct {
	Status  uint8
	Relpath string
	Digest  [32]byte
}

func (p VerifyHashPayload) Encode() []byte {
	buf := []byte{p.Status}
	buf = PutString(buf, p.Relpath)
	return append(buf, p.Digest[:]...)
}

func DecodeVerifyHash(payload []byte) (VerifyHashPayload, error) {
	if len(payload) < 1 {
		return VerifyHashPayload{}, &ProtocolError{Kind: BadPayload, Detail: "empty verify hash"}
	}
	status := payload[0]
	relpath, off, err := GetString(payload, 1)
	if err != nil {
		return VerifyHashPayload{}, err
	}
	if off+32 > len(payload) {
		return VerifyHashPayload{}, &ProtocolError{Kind: BadPayload, Detail: "truncated digest"}
	}
	var p VerifyHashPayload
	p.Status = status
	p.Relpath = relpath
	copy(p.Digest[:], payload[off:off+32])
	return p, nil
}

// ListReqPayload/ListRespPayload implement the remote-listing frames used
// by the UI's remote browser (spec §6 supplemented feature).
type ListReqPayload struct {
	Relpath string
}

func (p ListReqPayload) Encode() []byte { return PutString(nil, p.Relpath) }

func DecodeListReq(payload []byte) (ListReqPayload, error) {
	relpath, _, err := GetString(payload, 0)
	return ListReqPayload{Relpath: relpath}, err
}

type ListEntry struct {
	Name  string
	IsDir bool
	Size  uint64
}

type ListRespPayload struct {
	Entries []ListEntry
}

func (p ListRespPayload) Encode() []byte {
	var buf []byte
	var n [4]byte
	PutUint32(n[:], uint32(len(p.Entries)))
	buf = append(buf, n[:]...)
	for _, e := range p.Entries {
		buf = PutString(buf, e.Name)
		isDir := byte(0)
		if e.IsDir {
			isDir = 1
		}
		buf = append(buf, isDir)
		var sz [8]byte
		PutUint64(sz[:], e.Size)
		buf = append(buf, sz[:]...)
	}
	return buf
}

func DecodeListResp(payload []byte) (ListRespPayload, error) {
	if len(payload) < 4 {
		return ListRespPayload{}, &ProtocolError{Kind: BadPayload, Detail: "truncated list resp count"}
	}
	n := int(Uint32(payload[0:4]))
	off := 4
	var out ListRespPayload
	for i := 0; i < n; i++ {
		name, next, err := GetString(payload, off)
		if err != nil {
			return out, err
		}
		off = next
		if off+9 > len(payload) {
			return out, &ProtocolError{Kind: BadPayload, Detail: "truncated list entry"}
		}
		isDir := payload[off] != 0
		off++
		size := Uint64(payload[off : off+8])
		off += 8
		out.Entries = append(out.Entries, ListEntry{Name: name, IsDir: isDir, Size: size})
	}
	return out, nil
}

// RemoveTreeReqPayload/RemoveTreeRespPayload implement recursive removal
// for the `move` subcommand (spec §6 supplemented feature).
type RemoveTreeReqPayload struct {
	Relpath string
}

func (p RemoveTreeReqPayload) Encode() []byte { return PutString(nil, p.Relpath) }

func DecodeRemoveTreeReq(payload []byte) (RemoveTreeReqPayload, error) {
	relpath, _, err := GetString(payload, 0)
	return RemoveTreeReqPayload{Relpath: relpath}, err
}

type RemoveTreeRespPayload struct {
	Status uint8 // 0 ok, 1 error
	Msg    string
}

func (p RemoveTreeRespPayload) Encode() []byte {
	buf := []byte{p.Status}
	return PutString(buf, p.Msg)
}

func DecodeRemoveTreeResp(payload []byte) (RemoveTreeRespPayload, error) {
	if len(payload) < 1 {
		return RemoveTreeRespPayload{}, &ProtocolError{Kind: BadPayload, Detail: "empty response"}
	}
	msg, _, err := GetString(payload, 1)
	return RemoveTreeRespPayload{Status: payload[0], Msg: msg}, err
}
