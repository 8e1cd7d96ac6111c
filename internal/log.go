package internal

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
)

// Prefix creates a consistent prefix for all archive-based commands to use.
//
// i and n are the zero-based ordinal and expected count.
func Prefix(i, n int, name flags.Filename) string {
	base := string(name)
	if !strings.HasPrefix(base, "s3://") && base != "-" {
		base = filepath.Base(base)
	}

	return fmt.Sprintf(`[%d/%d] "%s" - `, i+1, n, TruncateRightWithSuffix(base, 30, "..."))
}

// NewLogger returns a new logger to stderr using the prefix from Prefix.
func NewLogger(i, n int, name flags.Filename) *log.Logger {
	return log.New(os.Stderr, Prefix(i, n, name), 0)
}

// TruncateRightWithSuffix keeps at most maxLen runes of s, replacing the tail with suffix if s had to be truncated.
func TruncateRightWithSuffix(s string, maxLen int, suffix string) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}

	if n := maxLen - len([]rune(suffix)); n > 0 {
		return string(r[:n]) + suffix
	}

	return string(r[:maxLen])
}
