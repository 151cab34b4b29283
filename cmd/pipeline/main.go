// Package main is the feedback-pipeline CLI: serve the intake API,
// run one batch, or submit a piece of feedback from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/loopwire/feedback-pipeline/cmd/pipeline/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
