// Package main provides the CLI for LeapReport scheduled warehouse reports.
package main

import (
	"os"

	"github.com/leapstack-labs/leapreport/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
