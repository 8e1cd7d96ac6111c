package config

import (
	"github.com/aws/aws-sdk-go-v2/aws"
)

// ExtractConfig contains the [extract] settings.
//
// Zero values mean the setting is absent, in which case command-line flags or built-in defaults apply.
type ExtractConfig struct {
	ByteOrder     string
	Codec         string
	Strict        bool
	Raw           bool
	BufferSize    int
	MaxBufferSize int64
}

// ForExtract returns configuration for extraction.
func (l *Loader) ForExtract() (c ExtractConfig) {
	if l.cfg == nil {
		return
	}

	sec, err := l.cfg.GetSection("extract")
	if err != nil {
		return c
	}

	c.ByteOrder = sec.Key("byte-order").String()
	c.Codec = sec.Key("codec").String()
	c.Strict = sec.Key("strict").MustBool(false)
	c.Raw = sec.Key("raw").MustBool(false)
	c.BufferSize = sec.Key("buffer-size").MustInt(0)
	c.MaxBufferSize = sec.Key("max-buffer-size").MustInt64(0)
	return
}

// ForExtract calls Loader.ForExtract on the DefaultLoader instance.
func ForExtract() ExtractConfig {
	return DefaultLoader.ForExtract()
}

// BucketConfig contains configuration settings for a specific bucket.
type BucketConfig struct {
	Bucket              string
	AWSProfile          string
	ExpectedBucketOwner *string
	// Download is true if archives in this bucket should be downloaded to a temporary file before extraction.
	Download bool
}

// ForBucket returns configuration for a specific bucket from section [s3://bucket].
func (l *Loader) ForBucket(bucket string) (c BucketConfig) {
	c.Bucket = bucket
	if l.cfg == nil {
		return
	}

	sec, err := l.cfg.GetSection("s3://" + bucket)
	if err != nil {
		return c
	}

	c.AWSProfile = sec.Key("aws-profile").String()
	if sec.HasKey("expected-bucket-owner") {
		c.ExpectedBucketOwner = aws.String(sec.Key("expected-bucket-owner").String())
	}
	c.Download = sec.Key("mode").In("stream", []string{"stream", "download"}) == "download"

	return
}

// ForBucket calls Loader.ForBucket on the DefaultLoader instance.
func ForBucket(bucket string) BucketConfig {
	return DefaultLoader.ForBucket(bucket)
}
