package cmd

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/untuf/internal/config"
	"github.com/nguyengg/untuf/internal/source"
	"github.com/nguyengg/untuf/tuf"
)

// Untuf is the root of the command line.
type Untuf struct {
	Profile string  `short:"p" long:"profile" description:"override the AWS profile used for every S3 archive"`
	Extract Extract `command:"extract" alias:"x" description:"extract TUF archives"`
	List    List    `command:"list" alias:"ls" description:"list the nodes of TUF archives without extracting them"`
}

// NewParser returns the parser for the command line.
//
// The returned parser loads the .untuf config file before executing any command.
func NewParser() *flags.Parser {
	opts := &Untuf{}

	p := flags.NewParser(opts, flags.Default)
	p.Name = "untuf"
	p.CommandHandler = func(command flags.Commander, args []string) error {
		if command == nil {
			return nil
		}

		if _, err := config.Load(context.Background()); err != nil {
			return fmt.Errorf("load config error: %w", err)
		}
		if opts.Profile != "" {
			config.DefaultLoader.Profile = opts.Profile
		}

		return command.Execute(args)
	}

	return p
}

// Decoding contains the settings shared by all commands that decode archives.
type Decoding struct {
	ByteOrder string `long:"byte-order" choice:"little" choice:"big" choice:"native" description:"byte order of all integer fields; default to little"`
	Download  bool   `long:"download" description:"download S3 archives to a temporary file instead of streaming them with ranged GETs"`
}

// byteOrder returns the byte order from command line if given, from config otherwise.
func (d *Decoding) byteOrder(cfg config.ExtractConfig) (binary.ByteOrder, error) {
	if d.ByteOrder != "" {
		return tuf.ParseByteOrder(d.ByteOrder)
	}

	return tuf.ParseByteOrder(cfg.ByteOrder)
}

// open opens the named archive, applying the [s3://bucket] settings for S3 URIs.
func (d *Decoding) open(ctx context.Context, name string, logger *log.Logger) (*source.Source, error) {
	return source.Open(ctx, name, func(opts *source.Options) {
		opts.Download = d.Download
		opts.Logger = logger
		opts.ClientFn = func(ctx context.Context, bucket string) (source.Client, error) {
			return config.NewS3ClientForBucket(ctx, bucket)
		}

		if bucket, _, err := source.ParseS3URI(name); err == nil {
			c := config.ForBucket(bucket)
			opts.ExpectedBucketOwner = c.ExpectedBucketOwner
			opts.Download = opts.Download || c.Download
		}
	})
}
