package tuf

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

// testNode describes one node record plus its payload for testArchive.
//
// The payload is written verbatim so tests can declare sizes that disagree with it.
type testNode struct {
	path           string
	flags          uint16
	subKind        uint8
	compressed     uint8
	originalSize   uint32
	compressedSize uint32
	padding        uint32
	payload        []byte
}

// testArchive builds archives in memory. Archive creation is not part of the package.
type testArchive struct {
	order     binary.ByteOrder
	signature string
	// nodeTableOffset defaults to HeaderSize if zero; gap bytes are zero-filled.
	nodeTableOffset int32
	info, date      string
	nodes           []testNode
}

func (a testArchive) bytes(t *testing.T) []byte {
	t.Helper()

	order := a.order
	if order == nil {
		order = binary.LittleEndian
	}

	sig := a.signature
	if sig == "" {
		sig = Signature
	}

	offset := a.nodeTableOffset
	if offset == 0 {
		offset = HeaderSize
	}

	var h Header
	copy(h.Signature[:], sig)
	h.NodeTableOffset = offset
	copy(h.Info[:], a.info)
	copy(h.Date[:], a.date)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, order, h))

	if gap := int(offset) - buf.Len(); gap > 0 {
		buf.Write(make([]byte, gap))
	}

	for _, n := range a.nodes {
		var path [MaxPathLen]byte
		copy(path[:], n.path)

		require.NoError(t, binary.Write(&buf, order, struct {
			Path           [MaxPathLen]byte
			Flags          uint16
			SubKind        uint8
			Compressed     uint8
			OriginalSize   uint32
			CompressedSize uint32
			Padding        uint32
		}{path, n.flags, n.subKind, n.compressed, n.originalSize, n.compressedSize, n.padding}))

		buf.Write(n.payload)
		buf.Write(bytes.Repeat([]byte{0xAA}, int(n.padding)))
	}

	return buf.Bytes()
}

func dirNode(path string) testNode {
	return testNode{path: path}
}

func plainNode(path, content string) testNode {
	return testNode{path: path, originalSize: uint32(len(content)), payload: []byte(content)}
}

func zlibNode(t *testing.T, path, content string) testNode {
	data := zlibBytes(t, []byte(content))
	return testNode{path: path, compressed: 1, originalSize: uint32(len(content)), compressedSize: uint32(len(data)), payload: data}
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func deflateBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// forwardOnly hides io.Seeker and the Size method of the underlying reader.
type forwardOnly struct {
	r io.Reader
}

func (f forwardOnly) Read(p []byte) (int, error) {
	return f.r.Read(p)
}
