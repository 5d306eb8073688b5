package router

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"gemchat/internal/handlers"
	"gemchat/internal/middleware"
)

func New(chatHandler *handlers.ChatHandler, frontendURL, staticPath string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// API rate limiter (60 req/min per IP)
	apiLimiter := middleware.NewRateLimiter(60, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLimiter.Middleware)
		r.Post("/chat", chatHandler.Chat)
		r.Post("/chat-with-files", chatHandler.ChatWithFiles)
	})

	// Serve the browser client when a static dir is present
	if info, err := os.Stat(staticPath); err == nil && info.IsDir() {
		r.Handle("/*", http.FileServer(http.Dir(staticPath)))
	}

	return r
}
