package main

import (
	"fmt"
	"os"

	"github.com/sandeepkv93/dailyd/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dailyd failed: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
