package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-auth/internal/web/handlers"
	"github.com/kozaktomas/face-auth/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	faceHandler := handlers.NewFaceAuthHandler(s.service, s.obs)
	healthHandler := handlers.NewHealthHandler(s.service)

	// Health check (no auth required)
	s.router.Get("/api/health", healthHandler.Health)

	s.router.Route("/api/auth", func(r chi.Router) {
		r.Post("/face-login", faceHandler.Login)

		// Registration is open unless a token is configured
		r.Group(func(r chi.Router) {
			if token := s.config.Auth.RegisterToken; token != "" {
				r.Use(middleware.RequireBearerToken(token))
			}
			r.Post("/register-face", faceHandler.Register)
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "not found"}`))
	})
}
