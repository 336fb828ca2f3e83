package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/Rrens/support-chat/internal/api"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/pubsub"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Settings defaults used when the server has no value
const (
	DefaultLicenseDays = 365
	maskedToken        = "****"
)

// AdminSettings is the admin view of the server settings
type AdminSettings struct {
	Settings        []domain.Setting
	LicenseDuration int
	WebhookToken    string
	BotName         string
	// GeneratedToken is a webhook token that has not been saved yet
	GeneratedToken string
	Loading        bool
}

// ConfigReloader refreshes the application configuration
type ConfigReloader interface {
	Reload(ctx context.Context) (domain.AppConfig, error)
}

// SettingsStore manages the admin settings screen
type SettingsStore struct {
	api            SettingsAPI
	config         ConfigReloader
	notify         Notifier
	defaultBotName string
	state          *pubsub.Value[AdminSettings]

	mu  sync.Mutex
	gen uint64
}

// NewSettingsStore creates a settings store
func NewSettingsStore(api SettingsAPI, config ConfigReloader, notify Notifier, defaultBotName string) *SettingsStore {
	return &SettingsStore{
		api:            api,
		config:         config,
		notify:         notify,
		defaultBotName: defaultBotName,
		state: pubsub.NewValue(AdminSettings{
			LicenseDuration: DefaultLicenseDays,
			BotName:         defaultBotName,
		}),
	}
}

// Snapshot returns the current settings view
func (s *SettingsStore) Snapshot() AdminSettings {
	return s.state.Get()
}

// Subscribe returns the settings view and a channel of later views
func (s *SettingsStore) Subscribe() (AdminSettings, <-chan AdminSettings, func()) {
	return s.state.Subscribe()
}

// Load fetches all settings and extracts the known keys
func (s *SettingsStore) Load(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state.Update(func(v AdminSettings) AdminSettings {
		v.Loading = true
		return v
	})
	s.mu.Unlock()

	settings, err := s.api.Settings(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return ErrSuperseded
	}

	if err != nil {
		s.state.Update(func(v AdminSettings) AdminSettings {
			v.Loading = false
			return v
		})
		s.notify.Error("failed to load settings")
		return err
	}

	s.state.Update(func(v AdminSettings) AdminSettings {
		v.Settings = settings
		v.Loading = false
		for _, setting := range settings {
			switch setting.Key {
			case domain.SettingLicenseDuration:
				days, err := strconv.Atoi(setting.Value)
				if err != nil || days == 0 {
					days = DefaultLicenseDays
				}
				v.LicenseDuration = days
			case domain.SettingWebhookToken:
				v.WebhookToken = setting.Value
			case domain.SettingBotName:
				v.BotName = setting.Value
				if v.BotName == "" {
					v.BotName = s.defaultBotName
				}
			}
		}
		return v
	})
	return nil
}

// Update writes a setting
func (s *SettingsStore) Update(ctx context.Context, key, value, description string) error {
	return s.api.UpdateSetting(ctx, key, domain.UpdateSettingRequest{
		Value:       value,
		Description: description,
	})
}

// Delete removes a setting and refreshes the list
func (s *SettingsStore) Delete(ctx context.Context, key string) error {
	if err := s.api.DeleteSetting(ctx, key); err != nil {
		s.notify.Error(api.UserMessage(err))
		return err
	}
	s.notify.Success("setting deleted")
	return s.Load(ctx)
}

// SaveLicenseDuration stores the default license length in days for new users
func (s *SettingsStore) SaveLicenseDuration(ctx context.Context, days int) error {
	if days < 1 {
		err := &api.Error{
			Kind:    api.KindValidation,
			Message: "license duration must be at least 1 day",
			Fields:  map[string]string{"LicenseDuration": "must be at least 1"},
		}
		s.notify.Error(err.Message)
		return err
	}

	err := s.Update(ctx, domain.SettingLicenseDuration, strconv.Itoa(days), "Default license duration in days for new users")
	if err != nil {
		s.notify.Error("failed to save license duration")
		return err
	}

	s.state.Update(func(v AdminSettings) AdminSettings {
		v.LicenseDuration = days
		return v
	})
	s.notify.Success("license duration saved")
	return nil
}

// SaveBotName stores the default bot name and reloads the application configuration
func (s *SettingsStore) SaveBotName(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		err := &api.Error{
			Kind:    api.KindValidation,
			Message: "bot name cannot be empty",
			Fields:  map[string]string{"BotName": "field is required"},
		}
		s.notify.Error(err.Message)
		return err
	}

	if err := s.Update(ctx, domain.SettingBotName, name, "Default bot name for new users"); err != nil {
		s.notify.Error("failed to save bot name")
		return err
	}

	s.state.Update(func(v AdminSettings) AdminSettings {
		v.BotName = name
		return v
	})
	s.notify.Success("bot name saved")

	if _, err := s.config.Reload(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		log.Warn().Err(err).Msg("failed to reload config after bot name change")
	}
	return nil
}

// GenerateWebhookToken creates a new unsaved webhook token
func (s *SettingsStore) GenerateWebhookToken() string {
	token := uuid.NewString()
	s.state.Update(func(v AdminSettings) AdminSettings {
		v.GeneratedToken = token
		return v
	})
	return token
}

// CancelWebhookToken discards the unsaved webhook token
func (s *SettingsStore) CancelWebhookToken() {
	s.state.Update(func(v AdminSettings) AdminSettings {
		v.GeneratedToken = ""
		return v
	})
}

// SaveWebhookToken stores the generated token. Once saved it is only shown masked.
func (s *SettingsStore) SaveWebhookToken(ctx context.Context) error {
	token := s.state.Get().GeneratedToken
	if token == "" {
		err := &api.Error{Kind: api.KindValidation, Message: "no token generated"}
		s.notify.Error(err.Message)
		return err
	}

	if err := s.Update(ctx, domain.SettingWebhookToken, token, "Security token for authenticating webhooks"); err != nil {
		s.notify.Error("failed to save webhook token")
		return err
	}

	s.state.Update(func(v AdminSettings) AdminSettings {
		v.WebhookToken = maskedToken
		v.GeneratedToken = ""
		return v
	})
	s.notify.Success("webhook token saved")
	return nil
}

// VersionLabel classifies a version string for display
func VersionLabel(version string) string {
	switch {
	case strings.Contains(strings.ToUpper(version), "RC"):
		return "Release Candidate"
	case strings.Contains(version, "beta"):
		return "Beta"
	case strings.Contains(version, "alpha"):
		return "Alpha"
	default:
		return "Stable"
	}
}

// IsStableVersion reports whether version carries no pre-release suffix
func IsStableVersion(version string) bool {
	return !strings.Contains(version, "-")
}
