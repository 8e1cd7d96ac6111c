package source

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/mholt/archives"
	"github.com/nguyengg/untuf/tuf"
	"github.com/ulikunitz/xz"
)

// CompressionExt returns the extension of the outer compression recognised from the name, or empty string.
//
// Only the last extension counts, so "fw.tuf.gz" returns ".gz" while "fw.tuf" returns "".
func CompressionExt(name string) string {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".gz", ".gzip", ".xz", ".zst", ".zstd":
		return ext
	default:
		return ""
	}
}

// decompress wraps r with a decompressor picked by file extension, falling back to content detection.
func (s *Source) decompress(ctx context.Context, name string, r io.Reader) (io.Reader, error) {
	switch ext := CompressionExt(name); ext {
	case ".gz", ".gzip":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader error: %w", err)
		}

		s.Compression = ".gz"
		s.closers = append(s.closers, gr.Close)
		return gr, nil
	case ".xz":
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create xz reader error: %w", err)
		}

		s.Compression = ".xz"
		return xr, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create zstd reader error: %w", err)
		}

		s.Compression = ".zst"
		s.closers = append(s.closers, func() error {
			zr.Close()
			return nil
		})
		return zr, nil
	}

	r, ok, err := hasSignature(r)
	switch {
	case err != nil:
		return nil, fmt.Errorf("read signature error: %w", err)
	case ok:
		return r, nil
	}

	// the stream returned by Identify reads from the same point as r did.
	format, stream, err := archives.Identify(ctx, path.Base(name), r)
	switch {
	case errors.Is(err, archives.NoMatch):
		return stream, nil
	case err != nil:
		return nil, fmt.Errorf("identify format error: %w", err)
	}

	dec, ok := format.(archives.Decompressor)
	if !ok {
		return nil, fmt.Errorf("not a TUF archive: detected %s", format.Extension())
	}

	rc, err := dec.OpenReader(stream)
	if err != nil {
		return nil, fmt.Errorf("create %s reader error: %w", format.Extension(), err)
	}

	s.Compression = format.Extension()
	s.closers = append(s.closers, rc.Close)
	return rc, nil
}

// hasSignature peeks at the start of r for the TUF signature, which no compression format starts with.
//
// The returned reader reads from the same point as r did. If r is an io.Seeker, it is r itself.
func hasSignature(r io.Reader) (io.Reader, bool, error) {
	sig := []byte(tuf.Signature + "\x00")

	if sk, ok := r.(io.Seeker); ok {
		start, err := sk.Seek(0, io.SeekCurrent)
		if err == nil {
			b := make([]byte, len(sig))
			n, err := io.ReadFull(r, b)
			if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				return r, false, err
			}
			if _, err = sk.Seek(start, io.SeekStart); err != nil {
				return r, false, err
			}

			return r, bytes.Equal(b[:n], sig), nil
		}
	}

	br := bufio.NewReader(r)
	b, err := br.Peek(len(sig))
	if err != nil && !errors.Is(err, io.EOF) {
		return br, false, err
	}

	return br, bytes.Equal(b, sig), nil
}
