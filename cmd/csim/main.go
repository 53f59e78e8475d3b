// Package main provides the csim command line tool, a set-associative LRU
// cache simulator that replays valgrind memory traces.
package main

import (
	"os"

	"github.com/tebeka/atexit"
)

func main() {
	a := newApp(os.Stdout, os.Stderr)
	if err := a.execute(os.Args[1:]); err != nil {
		a.logger.Error(err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
