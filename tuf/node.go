package tuf

import (
	"bytes"
	"encoding/binary"
)

const (
	// NodeSize is the size in bytes of a node record.
	NodeSize = 144

	// MaxPathLen is the size of the path field of a node record, including its terminating NUL.
	MaxPathLen = 128

	// ZlibKind is the kind word of nodes whose destination file gets ZlibSuffix appended.
	//
	// The word includes the compressed byte, so matching nodes are always compressed. The suffix is kept even though
	// Extract writes the inflated content unless ExtractOptions.Raw is set.
	ZlibKind uint32 = 0x01010000

	// ZlibSuffix is appended to the destination file name of nodes whose kind word equals ZlibKind.
	ZlibSuffix = ".zz"
)

// Node is a node record.
//
// Each record is followed in the archive by exactly EffectiveSize bytes of payload, then Padding bytes of filler,
// then the next record.
type Node struct {
	Path           [MaxPathLen]byte
	Flags          uint16
	SubKind        uint8
	Compressed     uint8
	OriginalSize   uint32
	CompressedSize uint32
	Padding        uint32

	// kind is the 32-bit word made of Flags, SubKind, and Compressed in archive byte order.
	kind uint32
}

// decodeNode parses a NodeSize-long record. It panics if buf is shorter.
func decodeNode(buf []byte, order binary.ByteOrder) (n Node) {
	copy(n.Path[:], buf[0:128])
	n.Flags = order.Uint16(buf[128:130])
	n.SubKind = buf[130]
	n.Compressed = buf[131]
	n.OriginalSize = order.Uint32(buf[132:136])
	n.CompressedSize = order.Uint32(buf[136:140])
	n.Padding = order.Uint32(buf[140:144])
	n.kind = order.Uint32(buf[128:132])
	return
}

// IsCompressed returns true if the payload is stored compressed.
func (n *Node) IsCompressed() bool {
	return n.Compressed != 0
}

// EffectiveSize returns the number of payload bytes following the record.
func (n *Node) EffectiveSize() uint32 {
	if n.IsCompressed() {
		return n.CompressedSize
	}

	return n.OriginalSize
}

// IsDir returns true if the node has no payload, which means it is a directory.
func (n *Node) IsDir() bool {
	return n.EffectiveSize() == 0
}

// Kind returns the flags, sub-kind, and compressed bytes read as one 32-bit word in the archive's byte order.
func (n *Node) Kind() uint32 {
	return n.kind
}

// RawPath returns the stored path up to the first NUL.
//
// The boolean return value is false if the field holds no NUL at all.
func (n *Node) RawPath() (string, bool) {
	i := bytes.IndexByte(n.Path[:], 0)
	if i == -1 {
		return string(n.Path[:]), false
	}

	return string(n.Path[:i]), true
}
