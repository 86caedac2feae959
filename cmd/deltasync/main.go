// Command deltasync drives the delta synchronization engine from the
// command line: a demo run against an in-memory source/target, and a
// history viewer for the relational backend.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
