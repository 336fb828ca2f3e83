package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/devserver"
	"github.com/Rrens/support-chat/internal/devserver/storage"
	"github.com/Rrens/support-chat/internal/devserver/storage/postgres"
	"github.com/Rrens/support-chat/internal/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file - try multiple locations
	envLoaded := false
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		fmt.Println("Warning: .env file not found in any standard location")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	if _, err := logger.Setup(cfg.Logging, cfg.IsProduction(), false); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to set up logging:", err)
		os.Exit(1)
	}

	repo, err := openRepository(context.Background(), cfg.DevServer.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DevServer.Store.Driver).Msg("Failed to open backend storage")
	}
	defer repo.Close()

	srv, err := devserver.NewServerWithRepository(context.Background(), cfg.DevServer, repo)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize development backend")
	}

	log.Info().
		Str("host", cfg.DevServer.Host).
		Int("port", cfg.DevServer.Port).
		Str("admin", cfg.DevServer.AdminUser).
		Str("store", cfg.DevServer.Store.Driver).
		Msg("Starting support chat development backend")

	server := &http.Server{
		Addr:              cfg.DevServer.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// openRepository selects the backend storage. Postgres is migrated on open.
func openRepository(ctx context.Context, cfg config.StoreConfig) (storage.Repository, error) {
	if cfg.Driver != "postgres" {
		return storage.NewMemory(), nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Database).Msg("Connected to database")

	if err := postgres.RunMigrations(cfg.Database.DSN()); err != nil {
		db.Close()
		return nil, err
	}
	return postgres.NewRepository(db.Pool), nil
}
