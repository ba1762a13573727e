package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/3leaps/bucketnav/internal/cmd"
	"github.com/3leaps/bucketnav/internal/observability"
)

// Set by -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	err := cmd.Execute()
	observability.Sync()
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	var exitErr *cmd.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(1)
}
