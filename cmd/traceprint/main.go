package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/traceprint/traceprint/cmd/traceprint/commands"
	"github.com/traceprint/traceprint/pkg/engine"
)

func main() {
	cmd := commands.NewCommand()
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Str("code", engine.ErrorCode(err)).Msg("command failed")
		os.Exit(engine.ExitCode(err))
	}
}
