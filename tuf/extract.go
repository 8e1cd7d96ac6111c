package tuf

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

const (
	// DefaultBufferSize is the default value of [ExtractOptions.BufferSize].
	DefaultBufferSize = 32 * 1024

	// DefaultMaxBufferSize is the default value of [ExtractOptions.MaxBufferSize].
	DefaultMaxBufferSize int64 = 1 << 30
)

// ExtractOptions customises Extract.
type ExtractOptions struct {
	// ByteOrder is used to decode all integer fields.
	//
	// By default, binary.LittleEndian is used.
	ByteOrder binary.ByteOrder

	// Codec is the framing of compressed payloads.
	//
	// By default, CodecAuto is used.
	Codec Codec

	// BufferSize is the length of the buffer used to copy uncompressed payloads.
	//
	// BufferSize indirectly controls how frequently ProgressReporter is called. Default to DefaultBufferSize.
	BufferSize int

	// MaxBufferSize is the largest compressed or original size of a compressed node that Extract agrees to allocate
	// buffers for. Larger nodes fail with ErrResource.
	//
	// Default to DefaultMaxBufferSize.
	MaxBufferSize int64

	// Strict turns the two recoverable failures into fatal ones.
	//
	// By default, failing to create a directory and a short read while copying an uncompressed payload are only
	// logged as warnings and extraction moves on to the next node. With Strict, both abort extraction with ErrIO.
	Strict bool

	// Raw copies compressed payloads verbatim instead of inflating them.
	Raw bool

	// Logger receives warnings.
	//
	// By default, log.Default is used.
	Logger *log.Logger

	// Listing, if given, receives the decoded header info and one line per node.
	Listing io.Writer

	// ProgressReporter controls how progress is reported.
	//
	// By default, no progress is reported.
	ProgressReporter ProgressReporter
}

// Result summarises a finished or aborted extraction.
type Result struct {
	Header Header
	// Dirs is the number of directory nodes processed, including those that could not be created.
	Dirs int
	// Files is the number of files created.
	Files int
	// Written is the total number of bytes written to files.
	Written int64
	// Warnings is the number of recoverable failures that were logged.
	Warnings int
}

// Extract extracts all nodes of the archive read from src into directory dir.
//
// dir is created if it does not exist, but only after the header has been validated so that an archive with a bad
// signature leaves the filesystem untouched. Stored paths are relative to dir; leading separators are removed, and
// paths escaping dir fail with ErrFormat.
//
// Extraction stops at the first fatal error, which is returned along with the Result so far. See ExtractOptions.Strict
// for the only failures that are not fatal.
func Extract(ctx context.Context, src io.Reader, dir string, optFns ...func(*ExtractOptions)) (res Result, err error) {
	opts := &ExtractOptions{
		ByteOrder:     binary.LittleEndian,
		Codec:         CodecAuto,
		BufferSize:    DefaultBufferSize,
		MaxBufferSize: DefaultMaxBufferSize,
		Logger:        log.Default(),
	}
	for _, fn := range optFns {
		fn(opts)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	r, err := NewReader(src, func(o *ReaderOptions) {
		o.ByteOrder = opts.ByteOrder
		o.Logger = opts.Logger
	})
	if err != nil {
		return res, err
	}
	res.Header = r.Header

	if opts.Listing != nil {
		_, _ = fmt.Fprintf(opts.Listing, "fileinfo: %s, %s\n", r.Header.InfoString(), r.Header.DateString())
	}

	if err = os.MkdirAll(dir, 0777); err != nil {
		return res, ioError("create output directory", dir, -1, err)
	}

	x := &extractor{opts: opts, buf: make([]byte, opts.BufferSize), res: &res}

	for e, err := range r.All() {
		if err != nil {
			return res, err
		}

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		if opts.Listing != nil {
			_, _ = fmt.Fprintln(opts.Listing, e)
		}

		path, err := SafeJoin(dir, e.Name)
		if err != nil {
			return res, formatError("resolve node path", e.Offset, err)
		}

		if e.IsDir() {
			err = x.mkdir(e, path)
		} else {
			err = x.createFile(ctx, e, path)
		}
		if err != nil {
			return res, err
		}
	}

	return res, nil
}

// extractor materialises one node at a time.
type extractor struct {
	opts *ExtractOptions
	buf  []byte
	res  *Result
}

func (x *extractor) warn(format string, v ...any) {
	x.res.Warnings++
	x.opts.Logger.Printf(format, v...)
}

func (x *extractor) report(name string, written, size int64, done bool) {
	if x.opts.ProgressReporter != nil {
		x.opts.ProgressReporter(name, written, size, done)
	}
}

func (x *extractor) mkdir(e *Entry, path string) error {
	x.res.Dirs++

	if err := os.MkdirAll(path, 0777); err != nil {
		if x.opts.Strict {
			return ioError("create directory", path, e.Offset, err)
		}

		x.warn(`create directory (path=%s) error: %v`, path, err)
		return nil
	}

	x.report(e.Name, 0, 0, true)
	return nil
}

func (x *extractor) createFile(ctx context.Context, e *Entry, path string) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return ioError("create parent directories", path, e.Offset, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return ioError("create file", path, e.Offset, err)
	}
	x.res.Files++

	var written int64
	if e.IsCompressed() && !x.opts.Raw {
		written, err = x.inflateTo(f, e, path)
	} else {
		written, err = x.copyTo(ctx, f, e, path)
	}

	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = ioError("close file", path, e.Offset, closeErr)
	}

	x.res.Written += written

	if errors.Is(err, ErrTruncated) && !x.opts.Strict {
		x.warn(`extract file (path=%s) error: %v`, path, err)
		x.report(e.Name, written, written, true)
		return nil
	}
	if err == nil {
		x.report(e.Name, written, written, true)
	}

	return err
}

// copyTo copies the payload verbatim in BufferSize chunks.
//
// The returned error wraps ErrTruncated if the archive ends before the whole payload is copied.
func (x *extractor) copyTo(ctx context.Context, dst io.Writer, e *Entry, path string) (written int64, err error) {
	size := int64(e.EffectiveSize())
	src := e.Payload()

	for written < size {
		nr, readErr := src.Read(x.buf)

		if nr > 0 {
			nw, writeErr := dst.Write(x.buf[:nr])
			written += int64(nw)

			switch {
			case writeErr != nil:
				return written, ioError("write file", path, e.Offset, writeErr)
			case nw != nr:
				return written, ioError("write file", path, e.Offset, io.ErrShortWrite)
			}

			if written < size {
				x.report(e.Name, written, size, false)
			}

			select {
			case <-ctx.Done():
				return written, ctx.Err()
			default:
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, ioError("read payload", path, e.Offset, readErr)
		}
	}

	if written < size {
		return written, ioError("read payload", path, e.Offset, fmt.Errorf("%w: got %d of %d bytes", ErrTruncated, written, size))
	}

	return written, nil
}

// inflateTo reads the whole compressed payload, inflates it, then writes the result in one call.
func (x *extractor) inflateTo(dst io.Writer, e *Entry, path string) (int64, error) {
	if limit := x.opts.MaxBufferSize; int64(e.CompressedSize) > limit || int64(e.OriginalSize) > limit {
		return 0, &Error{Kind: ErrResource, Op: "allocate buffers", Path: path, Offset: e.Offset,
			Err: fmt.Errorf("compressed size %d or original size %d exceeds limit %d", e.CompressedSize, e.OriginalSize, limit)}
	}

	in := make([]byte, e.CompressedSize)
	if _, err := io.ReadFull(e.Payload(), in); err != nil {
		return 0, ioError("read compressed payload", path, e.Offset, err)
	}

	out := make([]byte, e.OriginalSize)
	if err := inflateCodec(out, in, x.opts.Codec); err != nil {
		return 0, &Error{Kind: ErrDecompress, Op: "inflate", Path: path, Offset: e.Offset, Err: err}
	}

	n, err := dst.Write(out)
	if err != nil {
		return int64(n), ioError("write file", path, e.Offset, err)
	}

	return int64(n), nil
}
