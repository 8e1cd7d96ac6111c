package main

import (
	"github.com/nguyengg/untuf/internal/cmd"
)

func main() {
	_, err := cmd.NewParser().Parse()
	exit(err)
}
