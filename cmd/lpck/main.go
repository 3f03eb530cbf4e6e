package main

import (
	"os"

	"github.com/fbkclanna/lpck/internal/ui"
)

// Set with go build -ldflags "-X main.version=<tag>" ./cmd/lpck.
var version = "dev"

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		ui.Error(os.Stderr, "%v", err)
		os.Exit(1)
	}
}
