package main

import (
	"fmt"
	"os"

	"github.com/roach88/distance/internal/cli"
)

// Version information - set during build
var version = "dev"

func main() {
	root := cli.NewRootCommand()
	root.Version = version

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "distance: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
