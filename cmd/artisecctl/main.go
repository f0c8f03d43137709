// Command artisecctl inspects and drives the authorization engine: it
// resolves what a user's grants imply at a given artifact path, reports
// a named cache's configured tuning and persisted entry count, and runs
// as a long-lived process that writes status files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "artisecctl",
		Short:   "Inspect and drive the artisec authorization engine",
		Version: version,
	}
	root.AddCommand(newGrantsCommand())
	root.AddCommand(newCacheCommand())
	root.AddCommand(newServeCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
