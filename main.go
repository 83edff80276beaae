// Package main is the entry point for the stream-replay transmitter.
package main

import (
	"fmt"
	"os"

	"github.com/QianrenLi/stream-replay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
