package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/run-llama/semtools/pkg/types"
)

// SchemaVersion is the artifact schema this build reads and writes.
const SchemaVersion = 1

// magic marks a semtools embedding artifact.
var magic = [4]byte{'S', 'E', 'M', 'B'}

// headerSize is the fixed-length prefix before the variable-length path:
// magic(4) + schema(2) + dim(2) + n(4) + fingerprint(32) + opts(16) + path_len(2).
const headerSize = 4 + 2 + 2 + 4 + types.FingerprintSize + types.OptionsFingerprintSize + 2

// Encode serializes a FileEmbedding into the artifact byte layout.
func Encode(fe *types.FileEmbedding) ([]byte, error) {
	if err := fe.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to encode invalid embedding: %w", err)
	}
	if len(fe.Path) > math.MaxUint16 {
		return nil, fmt.Errorf("path length %d exceeds artifact limit", len(fe.Path))
	}
	if fe.Dim > math.MaxUint16 {
		return nil, fmt.Errorf("dimension %d exceeds artifact limit", fe.Dim)
	}

	n := len(fe.Windows)
	size := headerSize + len(fe.Path) + 8*n + 4*n*fe.Dim
	buf := bytes.NewBuffer(make([]byte, 0, size))

	buf.Write(magic[:])
	writeU16(buf, SchemaVersion)
	writeU16(buf, uint16(fe.Dim))
	writeU32(buf, uint32(n))
	buf.Write(fe.Fingerprint[:])
	buf.Write(fe.Options[:])
	writeU16(buf, uint16(len(fe.Path)))
	buf.WriteString(fe.Path)

	for _, w := range fe.Windows {
		writeU32(buf, uint32(int32(w.StartLine)))
		writeU32(buf, uint32(int32(w.EndLine)))
	}
	for _, v := range fe.Vectors {
		writeU32(buf, math.Float32bits(v))
	}

	return buf.Bytes(), nil
}

// Decode parses an artifact back into a FileEmbedding.
func Decode(data []byte) (*types.FileEmbedding, error) {
	meta, rest, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	n := meta.Windows
	want := 8*n + 4*n*meta.Dim
	if len(rest) != want {
		return nil, fmt.Errorf("%w: body holds %d bytes, want %d", types.ErrCorruptArtifact, len(rest), want)
	}

	fe := &types.FileEmbedding{
		Path:        meta.Path,
		Fingerprint: meta.Fingerprint,
		Options:     meta.Options,
		Dim:         meta.Dim,
		Windows:     make([]types.Window, n),
		Vectors:     make([]float32, n*meta.Dim),
	}

	off := 0
	for i := 0; i < n; i++ {
		fe.Windows[i].StartLine = int(int32(binary.LittleEndian.Uint32(rest[off:])))
		fe.Windows[i].EndLine = int(int32(binary.LittleEndian.Uint32(rest[off+4:])))
		off += 8
	}
	for i := range fe.Vectors {
		fe.Vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(rest[off:]))
		off += 4
	}

	return fe, nil
}

// EntryMeta is the decoded artifact header, enough for staleness checks
// and catalog rows without touching the vector matrix.
type EntryMeta struct {
	Path        string
	Fingerprint types.Fingerprint
	Options     types.OptionsFingerprint
	Dim         int
	Windows     int
}

// DecodeMeta parses only the artifact header.
func DecodeMeta(data []byte) (*EntryMeta, error) {
	meta, _, err := decodeHeader(data)
	return meta, err
}

func decodeHeader(data []byte) (*EntryMeta, []byte, error) {
	if len(data) < headerSize {
		return nil, nil, fmt.Errorf("%w: %d bytes is shorter than the header", types.ErrCorruptArtifact, len(data))
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return nil, nil, fmt.Errorf("%w: bad magic", types.ErrCorruptArtifact)
	}

	off := 4
	schema := binary.LittleEndian.Uint16(data[off:])
	off += 2
	if schema != SchemaVersion {
		return nil, nil, fmt.Errorf("%w: schema %d, want %d", types.ErrCorruptArtifact, schema, SchemaVersion)
	}

	meta := &EntryMeta{}
	meta.Dim = int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	meta.Windows = int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	copy(meta.Fingerprint[:], data[off:])
	off += types.FingerprintSize
	copy(meta.Options[:], data[off:])
	off += types.OptionsFingerprintSize

	pathLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	if len(data) < off+pathLen {
		return nil, nil, fmt.Errorf("%w: truncated path", types.ErrCorruptArtifact)
	}
	meta.Path = string(data[off : off+pathLen])
	off += pathLen

	if meta.Dim <= 0 {
		return nil, nil, fmt.Errorf("%w: non-positive dimension", types.ErrCorruptArtifact)
	}

	return meta, data[off:], nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
