// Package main is the lspcore command line probe: it launches configured
// language servers, runs catalog operations against them, and prints the
// results. Useful for verifying a server definition before wiring the
// engine into an editing surface.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
