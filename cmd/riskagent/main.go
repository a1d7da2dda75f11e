// Package main provides the entry point for the riskagent CLI.
package main

import (
	"os"

	"github.com/shohbitgupta/contract-risk-agent/cmd/riskagent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
