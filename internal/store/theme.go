package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/pubsub"
	"github.com/rs/zerolog/log"
)

// ThemeStore holds the persisted color scheme preference
type ThemeStore struct {
	storage domain.LocalStorage
	state   *pubsub.Value[domain.Theme]
	mu      sync.Mutex
}

// NewThemeStore loads the saved theme, falling back to dark
func NewThemeStore(ctx context.Context, storage domain.LocalStorage) *ThemeStore {
	theme := domain.ThemeDark
	saved, ok, err := storage.Get(ctx, domain.ThemeKey)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("failed to read saved theme")
	case ok && domain.Theme(saved).Valid():
		theme = domain.Theme(saved)
	}

	return &ThemeStore{
		storage: storage,
		state:   pubsub.NewValue(theme),
	}
}

// Current returns the active theme
func (s *ThemeStore) Current() domain.Theme {
	return s.state.Get()
}

// Subscribe returns the active theme and a channel of later themes
func (s *ThemeStore) Subscribe() (domain.Theme, <-chan domain.Theme, func()) {
	return s.state.Subscribe()
}

// Set activates and persists theme
func (s *ThemeStore) Set(ctx context.Context, theme domain.Theme) error {
	if !theme.Valid() {
		return fmt.Errorf("unknown theme %q", theme)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Set(theme)
	if err := s.storage.Set(ctx, domain.ThemeKey, string(theme)); err != nil {
		return fmt.Errorf("failed to save theme: %w", err)
	}
	return nil
}

// Toggle switches between light and dark and returns the new theme
func (s *ThemeStore) Toggle(ctx context.Context) (domain.Theme, error) {
	next := s.Current().Toggle()
	return next, s.Set(ctx, next)
}
