package tuf

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is matched by errors caused by malformed archive content such as a bad signature or an invalid
	// stored path.
	ErrFormat = errors.New("format error")
	// ErrIO is matched by errors from seeking, reading or writing either the archive or the extracted files.
	ErrIO = errors.New("io error")
	// ErrDecompress is matched by errors from inflating a compressed payload.
	ErrDecompress = errors.New("decompress error")
	// ErrResource is matched by errors from refusing to allocate a payload buffer.
	ErrResource = errors.New("resource error")

	// ErrBadSignature is returned (wrapped in ErrFormat) if the header signature is not "TUF".
	ErrBadSignature = errors.New("signature is not TUF")
	// ErrPathTooLong is returned (wrapped in ErrFormat) if a stored path fills its field without a terminating NUL.
	ErrPathTooLong = errors.New("stored path is not NUL-terminated")
	// ErrUnsafePath is returned (wrapped in ErrFormat) if a stored path would escape the extraction directory.
	ErrUnsafePath = errors.New("stored path escapes extraction directory")
	// ErrEmptyPath is returned (wrapped in ErrFormat) if a file entry has no name after sanitizing.
	ErrEmptyPath = errors.New("stored path is empty")
	// ErrTruncated is the cause of a short read while copying an uncompressed payload.
	ErrTruncated = errors.New("truncated read")
)

// Error is the error type returned by every operation of this package.
//
// Use errors.Is with ErrFormat, ErrIO, ErrDecompress, or ErrResource to find out the kind of failure.
type Error struct {
	// Kind is one of ErrFormat, ErrIO, ErrDecompress, or ErrResource.
	Kind error
	// Op describes what was being done, such as "read header" or "create file".
	Op string
	// Path is the destination path if there is one.
	Path string
	// Offset is the absolute offset of the node record being processed, or -1 if not applicable.
	Offset int64
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	var kind string
	if e.Kind != nil {
		kind = e.Kind.Error() + ": "
	}

	switch {
	case e.Path != "" && e.Offset >= 0:
		return fmt.Sprintf(`%s%s (path=%s, offset=0x%08x) error: %v`, kind, e.Op, e.Path, e.Offset, e.Err)
	case e.Path != "":
		return fmt.Sprintf(`%s%s (path=%s) error: %v`, kind, e.Op, e.Path, e.Err)
	case e.Offset >= 0:
		return fmt.Sprintf(`%s%s (offset=0x%08x) error: %v`, kind, e.Op, e.Offset, e.Err)
	default:
		return fmt.Sprintf(`%s%s error: %v`, kind, e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func formatError(op string, offset int64, err error) *Error {
	return &Error{Kind: ErrFormat, Op: op, Offset: offset, Err: err}
}

func ioError(op, path string, offset int64, err error) *Error {
	return &Error{Kind: ErrIO, Op: op, Path: path, Offset: offset, Err: err}
}
