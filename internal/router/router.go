package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"doctorwang-backend/internal/handlers"
	"doctorwang-backend/internal/middleware"
	"doctorwang-backend/internal/websocket"
)

func New(
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	static http.Handler,
	frontendURL string,
	limiter *middleware.RateLimiter,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter.Middleware)
			}
			r.Post("/chat", chatHandler.Relay)
		})
		r.Get("/presets", chatHandler.Presets)

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	// ──── Widget ────
	r.Handle("/*", static)

	return r
}
