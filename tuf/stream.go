package tuf

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// stream tracks the absolute read offset of the archive.
//
// If the source implements io.Seeker, skips are relative seeks. Otherwise, skipped bytes are read and discarded, so a
// forward-only source such as standard input works as long as the node table does not start before the current
// offset.
type stream struct {
	r    io.Reader
	s    io.Seeker
	size int64
	off  int64
}

func newStream(src io.Reader) *stream {
	s := &stream{r: src, size: -1}

	if sk, ok := src.(io.Seeker); ok {
		if off, err := sk.Seek(0, io.SeekCurrent); err == nil {
			s.s, s.off = sk, off
		}
	}

	switch v := src.(type) {
	case interface{ Size() int64 }:
		// S3 read seekers and bytes.Reader.
		s.size = v.Size()
	case interface {
		Stat() (os.FileInfo, error)
	}:
		if fi, err := v.Stat(); err == nil && fi.Mode().IsRegular() {
			s.size = fi.Size()
		}
	}

	// a non-seekable source (e.g. a pipe) reports offsets relative to where we started.
	if s.s == nil {
		s.size = -1
	}

	return s
}

func (s *stream) Read(p []byte) (n int, err error) {
	n, err = s.r.Read(p)
	s.off += int64(n)
	return
}

// seekTo moves to the absolute offset.
func (s *stream) seekTo(off int64) error {
	if off < 0 {
		return fmt.Errorf("negative offset %d", off)
	}
	if s.size >= 0 && off > s.size {
		return fmt.Errorf("offset %d is past end of archive (size %d)", off, s.size)
	}

	if s.s != nil {
		n, err := s.s.Seek(off, io.SeekStart)
		if err != nil {
			return err
		}

		s.off = n
		return nil
	}

	if off < s.off {
		return fmt.Errorf("cannot seek backwards from %d to %d on a forward-only stream", s.off, off)
	}

	want := off - s.off
	m, err := s.discard(want)
	switch {
	case err != nil:
		return err
	case m < want:
		return fmt.Errorf("offset %d is past end of archive (size %d): %w", off, s.off, io.ErrUnexpectedEOF)
	default:
		return nil
	}
}

// skip moves forward n bytes relative to the current offset.
//
// Skipping past the end of the source is not an error; the next read will report io.EOF instead.
func (s *stream) skip(n int64) error {
	if n <= 0 {
		return nil
	}

	if s.s != nil {
		off, err := s.s.Seek(n, io.SeekCurrent)
		if err != nil {
			return err
		}

		s.off = off
		return nil
	}

	_, err := s.discard(n)
	return err
}

// discard reads and drops up to n bytes. Reaching io.EOF early is not an error.
func (s *stream) discard(n int64) (int64, error) {
	m, err := io.CopyN(io.Discard, s.r, n)
	s.off += m
	if errors.Is(err, io.EOF) {
		err = nil
	}

	return m, err
}
