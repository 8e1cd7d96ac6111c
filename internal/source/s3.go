package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client abstracts the S3 APIs needed to read an archive from S3.
//
// *s3.Client satisfies this interface.
type Client interface {
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// DefaultReadAheadSize is the default value for Options.ReadAheadSize.
//
// Node records are small and read one at a time, so every GetObject fetches this much to avoid one call per record.
const DefaultReadAheadSize = 1024 * 1024

// ErrSeekBeforeFirstByte is returned when seeking to a negative offset.
var ErrSeekBeforeFirstByte = errors.New("seek ends up before first byte")

// ParseS3URI parses S3 URIs in format s3://bucket/key.
func ParseS3URI(text string) (bucket, key string, err error) {
	if !strings.HasPrefix(text, "s3://") {
		return "", "", fmt.Errorf(`"%s" does not start with s3://`, text)
	}

	bucket, key, _ = strings.Cut(strings.TrimPrefix(text, "s3://"), "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf(`"%s" must have both bucket and key`, text)
	}

	return
}

// readSeeker uses ranged GetObject to implement io.ReadSeeker over an S3 object.
//
// Seeking past the last byte is allowed; subsequent reads return io.EOF the same way an os.File does.
type readSeeker struct {
	ctx                 context.Context
	client              Client
	bucket, key         string
	expectedBucketOwner *string
	off, size           int64
	// buf holds the bytes starting at off that have been fetched but not yet read.
	buf           bytes.Buffer
	readAheadSize int
}

func newReadSeeker(ctx context.Context, client Client, bucket, key string, opts *Options) (*readSeeker, error) {
	headObjectOutput, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:              aws.String(bucket),
		Key:                 aws.String(key),
		ExpectedBucketOwner: opts.ExpectedBucketOwner,
	})
	if err != nil {
		return nil, fmt.Errorf("determine size of s3://%s/%s error: %w", bucket, key, err)
	}

	return &readSeeker{
		ctx:                 ctx,
		client:              client,
		bucket:              bucket,
		key:                 key,
		expectedBucketOwner: opts.ExpectedBucketOwner,
		size:                aws.ToInt64(headObjectOutput.ContentLength),
		readAheadSize:       opts.ReadAheadSize,
	}, nil
}

// Size returns the size of the S3 object that was determined from the initial HeadObject.
func (r *readSeeker) Size() int64 {
	return r.size
}

func (r *readSeeker) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.off >= r.size {
		return 0, io.EOF
	}

	if r.buf.Len() == 0 {
		rangeEnd := min(r.size, r.off+int64(max(len(p), r.readAheadSize))) - 1
		getObjectOutput, err := r.client.GetObject(r.ctx, &s3.GetObjectInput{
			Bucket:              aws.String(r.bucket),
			Key:                 aws.String(r.key),
			ExpectedBucketOwner: r.expectedBucketOwner,
			Range:               aws.String(fmt.Sprintf("bytes=%d-%d", r.off, rangeEnd)),
		})
		if err != nil {
			return 0, fmt.Errorf("get object range error: %w", err)
		}

		_, err = r.buf.ReadFrom(getObjectOutput.Body)
		if _ = getObjectOutput.Body.Close(); err != nil {
			r.buf.Reset()
			return 0, fmt.Errorf("read object range error: %w", err)
		}
		if r.buf.Len() == 0 {
			return 0, io.ErrUnexpectedEOF
		}
	}

	n, _ = r.buf.Read(p)
	r.off += int64(n)
	return n, nil
}

func (r *readSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.off + offset
	case io.SeekEnd:
		abs = r.size + offset
	default:
		return r.off, fmt.Errorf("invalid whence %d", whence)
	}

	if abs < 0 {
		return r.off, ErrSeekBeforeFirstByte
	}

	// keep whatever was fetched if seeking forward within it.
	if d := abs - r.off; d >= 0 && d <= int64(r.buf.Len()) {
		r.buf.Next(int(d))
	} else {
		r.buf.Reset()
	}

	r.off = abs
	return abs, nil
}
