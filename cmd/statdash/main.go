package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rshade/statdash/internal/cli"
	"github.com/rshade/statdash/pkg/version"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

// run executes the root command and returns the process exit code.
func run(ctx context.Context, args []string) int {
	root := cli.NewRootCmd(version.GetVersion())
	root.SetArgs(args)
	root.SilenceErrors = true
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
