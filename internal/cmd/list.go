package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/untuf/internal"
	"github.com/nguyengg/untuf/internal/config"
	"github.com/nguyengg/untuf/tuf"
)

type List struct {
	Decoding

	Args struct {
		Archives []flags.Filename `positional-arg-name:"archive" description:"local path, - for stdin, or s3://bucket/key" required:"yes"`
	} `positional-args:"yes"`

	stdout io.Writer
}

func (c *List) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	order, err := c.byteOrder(config.ForExtract())
	if err != nil {
		return err
	}

	w := c.stdout
	if w == nil {
		w = os.Stdout
	}

	n := len(c.Args.Archives)
	for i, name := range c.Args.Archives {
		logger := internal.NewLogger(i, n, name)

		m, err := c.list(ctx, string(name), w, logger, func(opts *tuf.ReaderOptions) {
			opts.ByteOrder = order
			opts.Logger = logger
		})
		if err != nil {
			return fmt.Errorf(`list "%s" error: %w`, name, err)
		}

		logger.Printf("listed %d nodes", m)
	}

	return nil
}

func (c *List) list(ctx context.Context, name string, w io.Writer, logger *log.Logger, optFn func(*tuf.ReaderOptions)) (int, error) {
	src, err := c.open(ctx, name, logger)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	return tuf.List(src, w, optFn)
}
