// Package app wires the client stores, the REST client and the realtime
// channel together and turns command failures into notifications.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Rrens/support-chat/internal/api"
	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/pubsub"
	"github.com/Rrens/support-chat/internal/realtime"
	"github.com/Rrens/support-chat/internal/store"
	"github.com/rs/zerolog/log"
)

const pushBuffer = 64

// App is the client composition root
type App struct {
	API           *api.Client
	Channel       *realtime.Channel
	Session       *store.SessionStore
	Timeline      *store.TimelineStore
	Admin         *store.AdminStore
	Config        *store.ConfigStore
	Settings      *store.SettingsStore
	Theme         *store.ThemeStore
	Notifications *store.NotificationStore
	Guard         *store.Guard

	cfg    *config.Config
	pushes *pubsub.Subscription[domain.ChatMessage]
	wg     sync.WaitGroup
}

// New builds every store and connects their lifecycles
func New(ctx context.Context, cfg *config.Config, storage domain.LocalStorage) (*App, error) {
	wsURL, err := realtime.URLFromBase(cfg.API.BaseURL, cfg.Realtime.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to derive realtime URL: %w", err)
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	notifications := store.NewNotificationStore()
	session := store.NewSessionStore(client, storage)
	configStore := store.NewConfigStore(client, cfg.UI.DefaultBotName)

	a := &App{
		API:           client,
		Channel:       realtime.NewChannel(wsURL, session, cfg.Realtime.DialTimeout),
		Session:       session,
		Timeline:      store.NewTimelineStore(client, session),
		Admin:         store.NewAdminStore(client, notifications, cfg.UI.AdminPageSize),
		Config:        configStore,
		Settings:      store.NewSettingsStore(client, configStore, notifications, cfg.UI.DefaultBotName),
		Theme:         store.NewThemeStore(ctx, storage),
		Notifications: notifications,
		Guard:         store.NewGuard(session),
		cfg:           cfg,
	}

	client.SetTokenSource(session)
	client.OnAuthFailure(a.authFailed)
	session.OnAuthenticated(a.authenticated)
	session.OnSignedOut(a.signedOut)

	// Pushed bot messages flow into the timeline in server order
	a.pushes = a.Channel.Messages(pushBuffer)
	a.wg.Add(1)
	go a.forwardPushes()

	return a, nil
}

// Start restores a persisted session and loads the application configuration
func (a *App) Start(ctx context.Context) domain.SessionState {
	if _, err := a.Config.Load(ctx); err != nil {
		a.report(err)
	}

	state, err := a.Session.Restore(ctx)
	if err != nil && !errors.Is(err, store.ErrSuperseded) {
		log.Info().Err(err).Msg("stored session is no longer valid")
	}
	if state == domain.Authenticated {
		a.LoadHistory(ctx)
	}
	return state
}

// Login signs in and loads the chat history
func (a *App) Login(ctx context.Context, email, password string) error {
	if _, err := a.Session.Login(ctx, email, password); err != nil {
		a.report(err)
		return err
	}
	a.LoadHistory(ctx)
	return nil
}

// Register creates an account, signs in and loads the chat history
func (a *App) Register(ctx context.Context, input domain.RegisterRequest) error {
	if _, err := a.Session.Register(ctx, input); err != nil {
		a.report(err)
		return err
	}
	a.LoadHistory(ctx)
	return nil
}

// Logout ends the session
func (a *App) Logout() {
	a.Session.Logout()
}

// LoadHistory reloads the timeline, reporting failures
func (a *App) LoadHistory(ctx context.Context) {
	if err := a.Timeline.LoadHistory(ctx); err != nil {
		a.report(err)
	}
}

// SendMessage posts a chat message
func (a *App) SendMessage(ctx context.Context, content string) error {
	err := a.Timeline.SendUserMessage(ctx, content)
	if err != nil {
		a.report(err)
	}
	return err
}

// UpdateProfile changes the username and theme, applying the theme locally on success
func (a *App) UpdateProfile(ctx context.Context, input domain.UpdateProfileRequest) error {
	user, err := a.Session.UpdateProfile(ctx, input)
	if err != nil {
		a.report(err)
		return err
	}
	if t := domain.Theme(user.Theme); t.Valid() && t != a.Theme.Current() {
		if err := a.Theme.Set(ctx, t); err != nil {
			log.Warn().Err(err).Msg("failed to apply profile theme")
		}
	}
	a.Notifications.Success("profile updated")
	return nil
}

// ChangePassword changes the current user's password
func (a *App) ChangePassword(ctx context.Context, current, next string) error {
	if err := a.Session.ChangePassword(ctx, current, next); err != nil {
		a.report(err)
		return err
	}
	a.Notifications.Success("password changed")
	return nil
}

// Close stops background work and drops the live connection
func (a *App) Close() error {
	a.pushes.Cancel()
	a.wg.Wait()
	a.Channel.Disconnect()
	a.Notifications.Close()
	return a.API.Close()
}

func (a *App) forwardPushes() {
	defer a.wg.Done()
	for {
		select {
		case msg := <-a.pushes.C:
			a.Timeline.ReceivePushedMessage(msg)
		case <-a.pushes.Done():
			return
		}
	}
}

func (a *App) authenticated(domain.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Realtime.DialTimeout)
	defer cancel()

	if err := a.Channel.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("live updates unavailable")
		a.Notifications.Warning("live updates unavailable")
	}
}

func (a *App) signedOut() {
	a.Channel.Disconnect()
	a.Timeline.Clear()
}

// authFailed runs when a protected call is rejected for an invalid token
func (a *App) authFailed(err error) {
	if !a.Session.Snapshot().HasToken() {
		return
	}
	log.Info().Err(err).Msg("session rejected by server")
	a.Session.Logout()
	a.Notifications.Warning("your session has expired, please sign in again")
}

// report turns a command failure into a notification
func (a *App) report(err error) {
	if errors.Is(err, store.ErrSuperseded) {
		return
	}
	switch api.KindOf(err) {
	case api.KindAuth:
		// authFailed already tore the session down
		return
	case "":
		log.Error().Err(err).Msg("unexpected client error")
	}
	a.Notifications.Error(api.UserMessage(err))
}
