// cmd/intakectl/main.go
package main

import (
	"fmt"
	"os"

	"lead-intake/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
