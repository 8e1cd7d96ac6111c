// Package source opens archives from local files, standard input, or S3, removing any outer compression.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Stdin is the name that stands for standard input.
const Stdin = "-"

// ErrNotSeekable is returned by Source.Seek if the archive is read through a decompressor or from a pipe.
var ErrNotSeekable = errors.New("source is not seekable")

// Options customises Open.
type Options struct {
	// ClientFn returns the client to read S3 objects from the given bucket. Required to open S3 URIs.
	ClientFn func(ctx context.Context, bucket string) (Client, error)

	// ExpectedBucketOwner is passed to every S3 call if given.
	ExpectedBucketOwner *string

	// Download makes S3 objects be downloaded in their entirety to a temporary file with manager.Downloader before
	// being read, instead of being read with ranged GetObject calls.
	Download bool

	// TempDir is where downloaded S3 objects are stored. By default, os.TempDir is used.
	TempDir string

	// ReadAheadSize is the minimum number of bytes fetched by every ranged GetObject call.
	//
	// Default to DefaultReadAheadSize.
	ReadAheadSize int

	// Stdin is the reader used for the name "-". By default, os.Stdin is used.
	Stdin io.Reader

	// Logger, if given, receives progress messages while S3 objects are downloaded.
	Logger *log.Logger
}

// Source is an opened archive.
type Source struct {
	// Name is the name that was passed to Open.
	Name string
	// Compression is the file extension of the outer compression that is being removed, such as ".gz", or empty.
	Compression string

	io.Reader
	seeker  io.Seeker
	size    int64
	closers []func() error
}

// Seek implements io.Seeker by forwarding to the archive if no outer compression was removed.
//
// Returns ErrNotSeekable otherwise, which callers such as tuf.NewReader take to mean the Source is forward-only.
func (s *Source) Seek(offset int64, whence int) (int64, error) {
	if s.seeker == nil {
		return 0, ErrNotSeekable
	}

	return s.seeker.Seek(offset, whence)
}

// Size returns the number of bytes that can be read from the start of the Source, or -1 if not known.
//
// The size is only known if the Source is seekable.
func (s *Source) Size() int64 {
	if s.seeker == nil {
		return -1
	}

	return s.size
}

// Close releases everything opened by Open in reverse order, returning the first error.
func (s *Source) Close() (err error) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if cerr := s.closers[i](); cerr != nil && err == nil {
			err = cerr
		}
	}

	s.closers = nil
	return
}

// Open opens the named archive.
//
// The name can be a local path, Stdin, or an S3 URI in format s3://bucket/key. If the archive is wrapped in gzip, xz,
// or zstd (detected by file extension first, then by content), the returned Source reads the decompressed stream,
// which is not seekable. Otherwise, the returned Source reads the archive directly and is seekable if the underlying
// file or S3 object is; standard input is seekable only when redirected from a regular file.
//
// Caller must always call Source.Close upon a successful return.
func Open(ctx context.Context, name string, optFns ...func(*Options)) (*Source, error) {
	opts := &Options{
		ReadAheadSize: DefaultReadAheadSize,
		Stdin:         os.Stdin,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	src := &Source{Name: name, size: -1}

	var (
		r   io.Reader
		err error
	)
	switch {
	case name == Stdin:
		r = opts.Stdin
		if f, ok := r.(*os.File); ok {
			r, src.size = stdin(f)
		}
	case strings.HasPrefix(name, "s3://"):
		r, err = src.openS3(ctx, name, opts)
	default:
		var f *os.File
		if f, err = os.Open(name); err != nil {
			return nil, fmt.Errorf(`open file "%s" error: %w`, name, err)
		}

		src.closers = append(src.closers, f.Close)
		if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
			src.size = fi.Size()
		}
		r = f
	}
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	if src.Reader, err = src.decompress(ctx, name, r); err != nil {
		_ = src.Close()
		return nil, err
	}

	// content detection hands back the original reader when it is seekable and nothing matched.
	if sk, ok := src.Reader.(io.Seeker); ok && src.Compression == "" {
		src.seeker = sk
		if src.size < 0 {
			src.size = seekSize(sk)
		}
	}

	return src, nil
}

// seekSize finds the size by seeking to the end and back, returning -1 on any error.
func seekSize(sk io.Seeker) int64 {
	cur, err := sk.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1
	}

	end, err := sk.Seek(0, io.SeekEnd)
	if err != nil {
		return -1
	}

	if _, err = sk.Seek(cur, io.SeekStart); err != nil {
		return -1
	}

	return end
}

// stdin hides io.Seeker from a pipe or terminal, whose Seek always fails.
func stdin(f *os.File) (io.Reader, int64) {
	if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
		if _, err = f.Seek(0, io.SeekCurrent); err == nil {
			return f, fi.Size()
		}
	}

	return struct{ io.Reader }{f}, -1
}

func (s *Source) openS3(ctx context.Context, name string, opts *Options) (io.Reader, error) {
	bucket, key, err := ParseS3URI(name)
	if err != nil {
		return nil, err
	}

	if opts.ClientFn == nil {
		return nil, fmt.Errorf(`no S3 client to open "%s"`, name)
	}

	client, err := opts.ClientFn(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("create S3 client error: %w", err)
	}

	if !opts.Download {
		rs, err := newReadSeeker(ctx, client, bucket, key, opts)
		if err != nil {
			return nil, err
		}

		s.size = rs.Size()
		return rs, nil
	}

	f, err := os.CreateTemp(opts.TempDir, "untuf-*")
	if err != nil {
		return nil, fmt.Errorf("create temporary file error: %w", err)
	}
	s.closers = append(s.closers, func() error {
		_ = f.Close()
		return os.Remove(f.Name())
	})

	if s.size, err = newDownloader(client, opts.Logger).Download(ctx, f, &s3.GetObjectInput{
		Bucket:              aws.String(bucket),
		Key:                 aws.String(key),
		ExpectedBucketOwner: opts.ExpectedBucketOwner,
	}); err != nil {
		return nil, fmt.Errorf(`download "%s" error: %w`, name, err)
	}

	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek start error: %w", err)
	}

	return f, nil
}
