package tuf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

// Codec selects the framing of compressed payloads.
type Codec int

const (
	// CodecAuto uses zlib if the payload starts with a valid zlib header, raw DEFLATE otherwise.
	//
	// If zlib decoding fails, the payload is tried again as raw DEFLATE.
	CodecAuto Codec = iota
	// CodecZlib expects zlib (RFC 1950) framing.
	CodecZlib
	// CodecDeflate expects raw DEFLATE (RFC 1951) data.
	CodecDeflate
)

func (c Codec) String() string {
	switch c {
	case CodecAuto:
		return "auto"
	case CodecZlib:
		return "zlib"
	case CodecDeflate:
		return "deflate"
	default:
		return fmt.Sprintf("Codec(%d)", int(c))
	}
}

// ParseCodec parses the result of Codec.String.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "auto":
		return CodecAuto, nil
	case "zlib":
		return CodecZlib, nil
	case "deflate", "raw":
		return CodecDeflate, nil
	default:
		return CodecAuto, fmt.Errorf("unknown codec %q", s)
	}
}

var (
	errOutputOverflow = errors.New("output exceeds expected size")
	errTrailingInput  = errors.New("trailing bytes after end of compressed stream")
)

// Inflate decompresses src into dst in one pass.
//
// Succeeds only if the entire src is consumed and exactly len(dst) bytes are produced; dst must not be used if an
// error is returned. The returned error always matches ErrDecompress.
func Inflate(dst, src []byte, codec Codec) error {
	if err := inflateCodec(dst, src, codec); err != nil {
		return &Error{Kind: ErrDecompress, Op: "inflate", Offset: -1, Err: err}
	}

	return nil
}

func inflateCodec(dst, src []byte, codec Codec) (err error) {
	switch codec {
	case CodecZlib:
		return inflate(dst, src, true)
	case CodecDeflate:
		return inflate(dst, src, false)
	case CodecAuto:
		if !isZlibHeader(src) {
			return inflate(dst, src, false)
		}

		if err = inflate(dst, src, true); err != nil && inflate(dst, src, false) == nil {
			return nil
		}

		return err
	default:
		return fmt.Errorf("unknown codec %v", codec)
	}
}

func inflate(dst, src []byte, zlibFramed bool) (err error) {
	br := bytes.NewReader(src)

	var r io.ReadCloser
	if zlibFramed {
		if r, err = zlib.NewReader(br); err != nil {
			return fmt.Errorf("read zlib header error: %w", err)
		}
	} else {
		r = flate.NewReader(br)
	}
	defer r.Close()

	n, err := io.ReadFull(r, dst)
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return fmt.Errorf("output too short: got %d bytes, expected %d", n, len(dst))
	case err != nil:
		return err
	}

	// the stream must end exactly here: any further output means dst was too small.
	var extra [1]byte
	switch m, err := r.Read(extra[:]); {
	case m != 0:
		return errOutputOverflow
	case err == nil:
		// some readers need one more call to report io.EOF.
		if m, err = r.Read(extra[:]); m != 0 {
			return errOutputOverflow
		}
		if err != io.EOF {
			return fmt.Errorf("compressed stream did not end: %v", err)
		}
	case err != io.EOF:
		return err
	}

	if br.Len() != 0 {
		return fmt.Errorf("%w: %d bytes", errTrailingInput, br.Len())
	}

	return nil
}

// isZlibHeader checks the CMF and FLG bytes of RFC 1950: deflate method, window size up to 32K, valid check bits, and
// no preset dictionary.
func isZlibHeader(b []byte) bool {
	if len(b) < 2 {
		return false
	}

	cmf, flg := b[0], b[1]
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0 && flg&0x20 == 0
}
