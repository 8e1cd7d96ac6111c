package tuf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// HeaderSize is the size in bytes of the archive header.
	HeaderSize = 32

	// Signature is the text expected at the start of every archive.
	Signature = "TUF"
)

// Header is the fixed-size header at the start of every archive.
type Header struct {
	Signature [4]byte
	// NodeTableOffset is the absolute offset of the first node record.
	NodeTableOffset int32
	Info            [8]byte
	Date            [16]byte
}

// SignatureString returns the signature as text, i.e. up to the first NUL.
func (h Header) SignatureString() string {
	return cstring(h.Signature[:])
}

// InfoString returns the descriptive info text. It has no meaning other than for display.
func (h Header) InfoString() string {
	return cstring(h.Info[:])
}

// DateString returns the descriptive date text. It has no meaning other than for display.
func (h Header) DateString() string {
	return cstring(h.Date[:])
}

// ReadHeader reads and validates the header from src using the given byte order.
//
// The returned error matches ErrFormat if the header is short or its signature is not "TUF".
func ReadHeader(src io.Reader, order binary.ByteOrder) (h Header, err error) {
	buf := make([]byte, HeaderSize)
	if _, err = io.ReadFull(src, buf); err != nil {
		return h, formatError("read header", 0, fmt.Errorf("short header: %w", err))
	}

	copy(h.Signature[:], buf[0:4])
	h.NodeTableOffset = int32(order.Uint32(buf[4:8]))
	copy(h.Info[:], buf[8:16])
	copy(h.Date[:], buf[16:32])

	if sig := h.SignatureString(); sig != Signature {
		return h, formatError("read header", 0, fmt.Errorf("%w: got %q", ErrBadSignature, sig))
	}

	return h, nil
}

// cstring returns the text in b up to but excluding the first NUL.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i != -1 {
		return string(b[:i])
	}

	return string(b)
}
