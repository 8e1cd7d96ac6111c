//go:build !windows

package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

// exit exits with status 1 if err is not nil, unless it is only the help message.
func exit(err error) {
	if err != nil && !flags.WroteHelp(err) {
		os.Exit(1)
	}
}
