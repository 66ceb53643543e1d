package main

import (
	"os"

	"github.com/heimdex/overlay-editor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
