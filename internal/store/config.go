package store

import (
	"context"
	"sync"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/pubsub"
)

// ConfigStore caches the public application configuration for the session
type ConfigStore struct {
	api            ConfigAPI
	defaultBotName string
	state          *pubsub.Value[domain.AppConfig]

	mu     sync.Mutex
	loaded bool
	gen    uint64
}

// NewConfigStore creates a config store. defaultBotName is used until the
// configuration is loaded or when the server leaves it empty.
func NewConfigStore(api ConfigAPI, defaultBotName string) *ConfigStore {
	return &ConfigStore{
		api:            api,
		defaultBotName: defaultBotName,
		state:          pubsub.NewValue(domain.AppConfig{BotName: defaultBotName}),
	}
}

// Load fetches the configuration once; later calls return the cached value
func (s *ConfigStore) Load(ctx context.Context) (domain.AppConfig, error) {
	s.mu.Lock()
	if s.loaded {
		defer s.mu.Unlock()
		return s.state.Get(), nil
	}
	s.mu.Unlock()
	return s.Reload(ctx)
}

// Reload fetches the configuration even when it is cached
func (s *ConfigStore) Reload(ctx context.Context) (domain.AppConfig, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	cfg, err := s.api.Config(ctx)
	if err != nil {
		return s.state.Get(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return s.state.Get(), ErrSuperseded
	}

	out := *cfg
	if out.BotName == "" {
		out.BotName = s.defaultBotName
	}
	s.loaded = true
	s.state.Set(out)
	return out, nil
}

// Snapshot returns the cached configuration
func (s *ConfigStore) Snapshot() domain.AppConfig {
	return s.state.Get()
}

// Subscribe returns the configuration and a channel of later versions
func (s *ConfigStore) Subscribe() (domain.AppConfig, <-chan domain.AppConfig, func()) {
	return s.state.Subscribe()
}

// BotName returns the display name of the bot
func (s *ConfigStore) BotName() string {
	return s.state.Get().BotName
}

// Version returns the backend version string
func (s *ConfigStore) Version(ctx context.Context) (string, error) {
	v, err := s.api.Version(ctx)
	if err != nil {
		return "", err
	}
	return v.Version, nil
}
