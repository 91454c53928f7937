// Package main is the entry point for the quill CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/quillsql/quill/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
