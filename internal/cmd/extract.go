package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/untuf/internal"
	"github.com/nguyengg/untuf/internal/config"
	"github.com/nguyengg/untuf/tuf"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

type Extract struct {
	Decoding
	Dir      flags.Filename `short:"C" long:"directory" description:"extract into this directory instead of the working directory" default:"."`
	Strict   bool           `long:"strict" description:"fail instead of warning when a directory cannot be created or an uncompressed node is truncated"`
	Raw      bool           `long:"raw" description:"write compressed payloads as-is instead of inflating them"`
	Codec    string         `long:"codec" choice:"auto" choice:"zlib" choice:"deflate" description:"framing of compressed payloads; default to auto"`
	Quiet    bool           `short:"q" long:"quiet" description:"do not print the header and node listing to stdout"`
	Progress bool           `long:"progress" description:"show a progress spinner instead of periodic log messages"`
	Verbose  bool           `short:"v" long:"verbose" description:"log every extracted node instead of periodic log messages"`

	Args struct {
		Archives []flags.Filename `positional-arg-name:"archive" description:"local path, - for stdin, or s3://bucket/key" required:"yes"`
	} `positional-args:"yes"`

	stdout io.Writer
}

func (c *Extract) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	optFn, err := c.options(config.ForExtract())
	if err != nil {
		return err
	}

	success := 0
	n := len(c.Args.Archives)
	for i, name := range c.Args.Archives {
		logger := internal.NewLogger(i, n, name)

		if err = c.extract(ctx, logger, string(name), optFn); err == nil {
			success++
			continue
		}

		if errors.Is(err, context.Canceled) {
			return err
		}

		logger.Printf("extract error: %v", err)
	}

	if success != n {
		return fmt.Errorf("failed to extract %d/%d archives", n-success, n)
	}

	return nil
}

// options merges command line flags with the [extract] section of the config file, flags taking precedence.
func (c *Extract) options(cfg config.ExtractConfig) (func(*tuf.ExtractOptions), error) {
	order, err := c.byteOrder(cfg)
	if err != nil {
		return nil, err
	}

	codecName := cfg.Codec
	if c.Codec != "" {
		codecName = c.Codec
	}
	codec, err := tuf.ParseCodec(codecName)
	if err != nil {
		return nil, err
	}

	return func(opts *tuf.ExtractOptions) {
		opts.ByteOrder = order
		opts.Codec = codec
		opts.Strict = c.Strict || cfg.Strict
		opts.Raw = c.Raw || cfg.Raw
		if cfg.BufferSize > 0 {
			opts.BufferSize = cfg.BufferSize
		}
		if cfg.MaxBufferSize > 0 {
			opts.MaxBufferSize = cfg.MaxBufferSize
		}
	}, nil
}

func (c *Extract) extract(ctx context.Context, logger *log.Logger, name string, optFn func(*tuf.ExtractOptions)) error {
	src, err := c.open(ctx, name, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	if src.Compression != "" {
		logger.Printf("removing outer %s compression", src.Compression)
	}

	var (
		bar   *progressbar.ProgressBar
		total int64
	)
	res, err := tuf.Extract(ctx, src, string(c.Dir), optFn, func(opts *tuf.ExtractOptions) {
		opts.Logger = logger

		if !c.Quiet {
			opts.Listing = c.stdout
			if opts.Listing == nil {
				opts.Listing = os.Stdout
			}
		}

		switch {
		case c.Progress:
			bar = internal.NewBytesSpinner("extracting")
			opts.ProgressReporter = tuf.NewProgressBarReporter(bar)
			return
		case c.Verbose:
			opts.ProgressReporter = tuf.NewLogProgressReporter(logger)
			return
		}

		sometimes := rate.Sometimes{Interval: 5 * time.Second}
		opts.ProgressReporter = func(name string, written, size int64, done bool) {
			sometimes.Do(func() {
				logger.Printf(`extracted %s so far, now at "%s"`, humanize.IBytes(uint64(total+written)), name)
			})
			if done {
				total += written
			}
		}
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	logger.Printf("extracted %d files (%s), %d directories, %d warnings",
		res.Files, humanize.IBytes(uint64(res.Written)), res.Dirs, res.Warnings)
	return nil
}
