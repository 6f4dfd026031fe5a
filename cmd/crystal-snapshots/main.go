package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/xtal-snapshots/crystal-snapshots/internal/cli"
	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

func main() {
	// Recover from panics to ensure graceful exits with stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(snapshots.ExitPanic)
		}
	}()

	if err := cli.Execute(); err != nil {
		os.Exit(snapshots.ExitCodeForError(err))
	}
}
