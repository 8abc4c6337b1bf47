// Package main provides the golden CLI.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/born-ml/golden/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		log.Debug().Msgf(format, args...)
	}))
	defer undo()
	if err != nil {
		log.Warn().Err(err).Msg("failed to set GOMAXPROCS")
	}

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "golden:", err)
		return 1
	}
	return 0
}
