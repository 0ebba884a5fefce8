package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"doctorwang-backend/internal/config"
	"doctorwang-backend/internal/logging"
)

var cfg *config.Config

func newRootCommand() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "doctorwang",
		Short:         "AI health assistant chat server and terminal client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			return logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(newServeCommand(), newChatCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
