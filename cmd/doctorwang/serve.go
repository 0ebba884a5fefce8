package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"doctorwang-backend/internal/handlers"
	"doctorwang-backend/internal/middleware"
	"doctorwang-backend/internal/router"
	"doctorwang-backend/internal/services"
	"doctorwang-backend/internal/web"
	"doctorwang-backend/internal/websocket"
)

func newServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay endpoint, websocket sessions and the chat widget",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return runServer(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&port, "port", "8080", "HTTP listen port")

	return cmd
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg.RequireGeminiKey()

	// ──── Gemini Client ────
	geminiService, err := services.NewGeminiService(
		cfg.GeminiAPIKey,
		cfg.GeminiModel,
		cfg.GeminiTemperature,
		cfg.GeminiConcurrentReqs,
		cfg.AssistantName,
	)
	if err != nil {
		return errors.Wrap(err, "gemini client initialization failed")
	}
	defer geminiService.Close()
	log.Info().Str("model", cfg.GeminiModel).Int("concurrency", cfg.GeminiConcurrentReqs).Msg("Gemini client initialized")

	// ──── Handlers ────
	chatHandler := handlers.NewChatHandler(geminiService, cfg.AssistantName)
	wsHub := websocket.NewHub(geminiService, cfg.AssistantName, cfg.RevealInterval)

	var limiter *middleware.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		defer limiter.Stop()
	}

	r := router.New(chatHandler, wsHub, web.Handler(), cfg.FrontendURL, limiter)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	eg, egCtx := errgroup.WithContext(sigCtx)

	eg.Go(func() error {
		<-egCtx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		wsHub.CloseAll()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
			return err
		}
		log.Info().Msg("Server shutdown complete")
		return nil
	})

	eg.Go(func() error {
		log.Info().
			Str("addr", server.Addr).
			Str("widget", fmt.Sprintf("http://localhost:%s/", cfg.Port)).
			Str("ws", fmt.Sprintf("ws://localhost:%s/api/ws", cfg.Port)).
			Msg("Doctor Wang backend ready")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "server listen error")
		}
		return nil
	})

	return eg.Wait()
}
