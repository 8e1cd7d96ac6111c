package tuf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
)

// ErrReaderUsed is returned by the iterator of Reader.All if it has already been consumed.
var ErrReaderUsed = errors.New("node records can only be iterated once")

// ReaderOptions customises NewReader.
type ReaderOptions struct {
	// ByteOrder is used to decode all integer fields.
	//
	// By default, binary.LittleEndian is used.
	ByteOrder binary.ByteOrder

	// Logger receives warnings such as a trailing partial node record.
	//
	// By default, log.Default is used.
	Logger *log.Logger
}

// Reader iterates over the node records of an archive.
//
// Reader is not safe for use across multiple goroutines, and can be iterated only once since the archive is a
// forward-only stream without an index.
type Reader struct {
	// Header is the validated archive header.
	Header Header

	s      *stream
	order  binary.ByteOrder
	logger *log.Logger
	used   bool
}

// NewReader reads and validates the header from src, then moves src to the first node record.
//
// src must be positioned at the start of the archive. If src implements io.Seeker, seeking is used to move past
// payloads and padding; otherwise those bytes are read and discarded.
//
// The returned error matches ErrFormat if the header is invalid, or ErrIO if the node table cannot be reached.
func NewReader(src io.Reader, optFns ...func(*ReaderOptions)) (*Reader, error) {
	opts := &ReaderOptions{
		ByteOrder: binary.LittleEndian,
		Logger:    log.Default(),
	}
	for _, fn := range optFns {
		fn(opts)
	}

	r := &Reader{s: newStream(src), order: opts.ByteOrder, logger: opts.Logger}

	h, err := ReadHeader(r.s, r.order)
	if err != nil {
		return nil, err
	}
	r.Header = h

	if err = r.s.seekTo(int64(h.NodeTableOffset)); err != nil {
		return nil, ioError("seek node table", "", int64(h.NodeTableOffset), err)
	}

	return r, nil
}

// Offset returns the current absolute read offset.
func (r *Reader) Offset() int64 {
	return r.s.off
}

// All returns an iterator over the remaining node records.
//
// The iterator stops cleanly at end of archive, including when fewer than NodeSize bytes remain. Every yielded Entry
// is valid only until the next iteration: at that point, whatever remains unread of its payload is skipped, followed
// by its padding bytes. Any non-nil error stops the iterator.
func (r *Reader) All() iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		if r.used {
			yield(nil, ioError("iterate nodes", "", r.s.off, ErrReaderUsed))
			return
		}
		r.used = true

		buf := make([]byte, NodeSize)

		for {
			offset := r.s.off

			switch n, err := io.ReadFull(r.s, buf); {
			case err == nil:
			case errors.Is(err, io.EOF):
				return
			case errors.Is(err, io.ErrUnexpectedEOF):
				r.logger.Printf("ignoring %d trailing bytes at offset 0x%08x: too short for a node record", n, offset)
				return
			default:
				yield(nil, ioError("read node", "", offset, err))
				return
			}

			e := &Entry{Node: decodeNode(buf, r.order), Offset: offset}

			name, err := entryName(&e.Node, offset)
			if err != nil {
				yield(nil, err)
				return
			}

			e.Name = name
			e.payload = io.LimitedReader{R: r.s, N: int64(e.EffectiveSize())}

			if !yield(e, nil) {
				return
			}

			if err = r.s.skip(e.payload.N); err != nil {
				yield(nil, ioError("skip payload", e.Name, offset, err))
				return
			}

			if err = r.s.skip(int64(e.Padding)); err != nil {
				yield(nil, ioError("skip padding", e.Name, offset, err))
				return
			}
		}
	}
}

// Entry is a node record along with its position in the archive.
type Entry struct {
	Node

	// Offset is the absolute offset of the node record.
	Offset int64

	// Name is the sanitized relative path, including ZlibSuffix if applicable.
	Name string

	payload io.LimitedReader
}

// Payload returns the reader over the EffectiveSize bytes following the node record.
//
// The reader is valid only until the iterator advances.
func (e *Entry) Payload() io.Reader {
	return &e.payload
}

// String formats the entry the same way for both listing and extracting.
func (e *Entry) String() string {
	raw, _ := e.RawPath()
	return fmt.Sprintf("0x%08x: %s, 0x%04x, 0x%02x, 0x%02x, %d, %d, %d",
		e.Offset, raw, e.Flags, e.SubKind, e.Compressed, e.OriginalSize, e.CompressedSize, e.Padding)
}

// List writes the header and one line per node record to w without extracting anything.
func List(src io.Reader, w io.Writer, optFns ...func(*ReaderOptions)) (n int, err error) {
	r, err := NewReader(src, optFns...)
	if err != nil {
		return 0, err
	}

	if _, err = fmt.Fprintf(w, "fileinfo: %s, %s\n", r.Header.InfoString(), r.Header.DateString()); err != nil {
		return 0, err
	}

	for e, err := range r.All() {
		if err != nil {
			return n, err
		}

		if _, err = fmt.Fprintln(w, e); err != nil {
			return n, err
		}
		n++
	}

	return n, nil
}
