package internal

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// NewBytesSpinner returns a byte-counting spinner to stderr for extraction.
//
// The number of bytes written to disk is only known once every node has been read, so unlike progressbar.DefaultBytes
// there is no max. Rendering is throttled to once per second.
func NewBytesSpinner(description string, options ...progressbar.Option) *progressbar.ProgressBar {
	return newBytesSpinner(os.Stderr, description, options...)
}

func newBytesSpinner(w io.Writer, description string, options ...progressbar.Option) *progressbar.ProgressBar {
	return progressbar.NewOptions64(-1,
		append([]progressbar.Option{
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(w),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(10),
			progressbar.OptionThrottle(1 * time.Second),
			progressbar.OptionOnCompletion(func() {
				_, _ = fmt.Fprint(w, "\n")
			}),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true)},
			options...)...)
}
