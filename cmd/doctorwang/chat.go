package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"doctorwang-backend/internal/client"
	"doctorwang-backend/internal/conversation"
	"doctorwang-backend/internal/tui"
)

func newChatCommand() *cobra.Command {
	var (
		server string
		plain  bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant through a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("server") {
				cfg.ServerURL = server
			}
			return runChat(cmd.Context(), plain)
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "Base URL of the relay server")
	cmd.Flags().BoolVar(&plain, "plain", false, "Line mode even when attached to a terminal")

	return cmd
}

func runChat(ctx context.Context, plain bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay, err := client.NewRelayClient(cfg.ServerURL)
	if err != nil {
		return err
	}
	log.Debug().Str("server", relay.Server()).Msg("Chat client configured")

	opts := []conversation.Option{
		conversation.WithTickInterval(cfg.RevealInterval),
		conversation.WithGreeting(conversation.Greeting(cfg.AssistantName)),
	}

	interactive := isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
	if plain || !interactive {
		view := conversation.NewView(relay, opts...)
		defer view.Close()
		return tui.RunPlain(ctx, view, cfg.AssistantName, os.Stdin, os.Stdout)
	}

	// the alt screen owns the terminal, view logs would tear it
	view := conversation.NewView(relay, append(opts, conversation.WithLogger(zerolog.Nop()))...)
	defer view.Close()

	if err := tui.NewChatProgram(ctx, view, cfg.AssistantName).Run(); err != nil {
		return errors.Wrap(err, "chat interface failed")
	}
	return nil
}
