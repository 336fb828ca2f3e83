package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rrens/support-chat/internal/app"
	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/logger"
	"github.com/Rrens/support-chat/internal/repository"
	"github.com/Rrens/support-chat/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The terminal belongs to the UI, so logs go to a file
	closer, err := logger.Setup(cfg.Logging, cfg.IsProduction(), true)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := repository.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open client storage: %w", err)
	}
	defer storage.Close()

	a, err := app.New(ctx, cfg, storage)
	if err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}
	defer a.Close()

	log.Info().
		Str("api", cfg.API.BaseURL).
		Str("storage", cfg.Storage.Backend).
		Msg("Starting chat client")

	model := tui.New(ctx, a, cfg.UI)
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}

	log.Info().Msg("Chat client stopped")
	return nil
}
