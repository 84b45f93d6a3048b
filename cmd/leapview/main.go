// Package main provides the leapview CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapview/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
