package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"kyro-backend/internal/handlers"
	"kyro-backend/internal/middleware"
)

// New builds the HTTP surface. jwtAuth may be nil, in which case chat routes are public.
func New(
	jwtAuth *middleware.JWTAuth,
	chatLimiter *middleware.RateLimiter,
	chatHandler *handlers.ChatHandler,
	systemHandler *handlers.SystemHandler,
	wsHandler http.HandlerFunc,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	// ──── System Routes (public) ────
	r.Get("/health", systemHandler.Health)
	r.Get("/list-models", systemHandler.ListModels)

	// ──── Chat Routes ────
	r.Group(func(r chi.Router) {
		r.Use(chatLimiter.Middleware)
		if jwtAuth != nil {
			r.Use(jwtAuth.Middleware)
		}
		r.Post("/chat", chatHandler.Chat)
		r.Post("/clear-chat", chatHandler.ClearChat)
	})

	// ──── WebSocket ────
	r.Get("/ws", wsHandler)

	return r
}
