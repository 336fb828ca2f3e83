// Package devserver implements the support chat backend for local
// development and end-to-end tests of the client.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Rrens/support-chat/internal/config"
	customMiddleware "github.com/Rrens/support-chat/internal/devserver/middleware"
	"github.com/Rrens/support-chat/internal/devserver/storage"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/llm"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

const requestTimeout = 30 * time.Second

// Server bundles the backend state, token issuer and live hub
type Server struct {
	cfg        config.DevServerConfig
	backend    *Backend
	jwtManager *security.JWTManager
	hub        *Hub
	bot        *llm.Router
}

// NewServer creates a server over in-memory storage
func NewServer(cfg config.DevServerConfig) (*Server, error) {
	return NewServerWithRepository(context.Background(), cfg, storage.NewMemory())
}

// NewServerWithRepository creates a server over repo and seeds the admin
// account and default settings when they are missing
func NewServerWithRepository(ctx context.Context, cfg config.DevServerConfig, repo storage.Repository) (*Server, error) {
	jwtManager := security.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	s := &Server{
		cfg:        cfg,
		backend:    NewBackend(repo),
		jwtManager: jwtManager,
		hub:        NewHub(jwtManager),
		bot:        newBotRouter(cfg.Bot),
	}

	if err := s.backend.seedSetting(ctx, domain.SettingLicenseDuration, "365",
		"Default license duration in days for new users"); err != nil {
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}
	if err := s.backend.seedSetting(ctx, domain.SettingBotName, cfg.BotName,
		"Default bot name for new users"); err != nil {
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}

	if cfg.AdminUser != "" {
		_, err := s.backend.CreateUser(ctx, domain.CreateUserRequest{
			Username: "admin",
			Email:    cfg.AdminUser,
			Password: cfg.AdminPass,
			IsAdmin:  true,
			IsActive: true,
		})
		switch {
		case errors.Is(err, ErrEmailTaken):
			log.Debug().Str("email", cfg.AdminUser).Msg("admin account already present")
		case err != nil:
			return nil, fmt.Errorf("failed to seed admin: %w", err)
		default:
			log.Info().Str("email", cfg.AdminUser).Msg("seeded admin account")
		}
	}

	return s, nil
}

// Backend exposes the account, message and settings service
func (s *Server) Backend() *Backend {
	return s.backend
}

// Hub exposes the live connection hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router creates and configures the HTTP router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMiddleware := customMiddleware.NewAuthMiddleware(s.jwtManager)

	// Live channel; long lived, so no request timeout
	r.Handle("/ws", s.hub)

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		// Public routes
		r.Post("/login", s.login)
		r.Post("/register", s.register)
		r.Get("/config", s.config)
		r.Get("/version", s.version)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/user/me", s.me)
			r.Put("/user/username", s.updateProfile)
			r.Put("/user/password", s.changePassword)

			r.Get("/messages", s.listMessages)
			r.Post("/messages", s.sendMessage)

			r.Route("/admin", func(r chi.Router) {
				r.Use(customMiddleware.RequireAdmin)

				r.Get("/users", s.listUsers)
				r.Post("/users", s.createUser)
				r.Put("/users/{id}", s.updateUser)
				r.Delete("/users/{id}", s.deleteUser)

				r.Get("/messages", s.allMessages)
				r.Get("/messages/{id}", s.userMessages)

				r.Get("/settings", s.listSettings)
				r.Get("/settings/{key}", s.getSetting)
				r.Put("/settings/{key}", s.putSetting)
				r.Delete("/settings/{key}", s.deleteSetting)
			})
		})
	})

	return r
}
