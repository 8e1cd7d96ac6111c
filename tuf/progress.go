package tuf

import (
	"log"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// ProgressReporter is called to provide update on extracting individual nodes.
//
//   - name: sanitized relative path of the node being extracted
//   - written: number of bytes of the destination file that have been written so far
//   - size: the expected size of the destination file (zero for directories)
//   - done: is true only when the node has been extracted in its entirety
//
// The method is called at least once for every node. Nodes that fit into one buffer (see DefaultBufferSize), and all
// directories, produce exactly one call with done being true.
type ProgressReporter func(name string, written, size int64, done bool)

// NewLogProgressReporter creates a progress reporter that logs every node upon it being successfully extracted.
func NewLogProgressReporter(logger *log.Logger) ProgressReporter {
	return func(name string, written, size int64, done bool) {
		switch {
		case !done:
		case size == 0:
			logger.Printf(`created directory "%s"`, name)
		default:
			logger.Printf(`extracted "%s" (%s)`, name, humanize.IBytes(uint64(written)))
		}
	}
}

// NewProgressBarReporter creates a progress reporter that adds the bytes written to the given bar.
//
// The bar counts bytes written to disk which can be more than the size of the archive due to compressed nodes, so it is
// usually created with an unknown max of -1.
func NewProgressBarReporter(bar *progressbar.ProgressBar) ProgressReporter {
	// previous is the number of bytes of the current node already added to the bar. Nodes may share a name, so a new
	// node starts after every done call.
	var previous int64

	return func(name string, written, size int64, done bool) {
		_ = bar.Add64(written - previous)
		if previous = written; done {
			previous = 0
		}
	}
}
