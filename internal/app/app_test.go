package app

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rrens/support-chat/internal/api"
	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/devserver"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server  *devserver.Server
	ts      *httptest.Server
	cfg     *config.Config
	storage *memory.Storage
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	srv, err := devserver.NewServer(config.DevServerConfig{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
		Version:   "1.0.0",
		BotName:   "Helper",
		AdminUser: "admin@example.com",
		AdminPass: "admin123",
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	cfg := &config.Config{
		API:      config.APIConfig{BaseURL: ts.URL, Timeout: 5 * time.Second},
		Realtime: config.RealtimeConfig{Path: "/ws", DialTimeout: 5 * time.Second},
		Storage:  config.StorageConfig{Backend: "memory"},
		UI:       config.UIConfig{DefaultBotName: "Assistant", DesktopMinWidth: 100, AdminPageSize: 10},
	}
	return &testEnv{server: srv, ts: ts, cfg: cfg, storage: memory.NewStorage()}
}

func (e *testEnv) newApp(t *testing.T) *App {
	t.Helper()
	a, err := New(context.Background(), e.cfg, e.storage)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func (e *testEnv) seedUser(t *testing.T, email string) domain.User {
	t.Helper()
	user, err := e.server.Backend().Register(context.Background(), domain.RegisterRequest{Username: "A", Email: email, Password: "secret"})
	require.NoError(t, err)
	return user
}

func TestApp_LoginConnectsRealtime(t *testing.T) {
	env := newEnv(t)
	env.seedUser(t, "a@b.com")
	a := env.newApp(t)
	ctx := context.Background()

	assert.Equal(t, domain.Unauthenticated, a.Start(ctx))
	assert.Equal(t, "Helper", a.Config.BotName())

	require.NoError(t, a.Login(ctx, "a@b.com", "secret"))

	session := a.Session.Snapshot()
	require.NotNil(t, session.User)
	assert.False(t, session.User.IsAdmin)
	assert.True(t, a.Channel.Connected())

	token, ok, err := env.storage.Get(ctx, domain.TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, session.Token, token)
}

func TestApp_ChatRoundTrip(t *testing.T) {
	env := newEnv(t)
	user := env.seedUser(t, "a@b.com")
	a := env.newApp(t)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, "a@b.com", "secret"))
	assert.Eventually(t, func() bool {
		return env.server.Hub().Connections(user.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.SendMessage(ctx, "hello"))

	// The server echoes the user message too; only the bot reply is appended
	assert.Eventually(t, func() bool {
		return len(a.Timeline.Snapshot().Messages) == 2
	}, 2*time.Second, 10*time.Millisecond)

	messages := a.Timeline.Snapshot().Messages
	assert.Equal(t, domain.SenderUser, messages[0].Sender)
	assert.True(t, messages[0].Local())
	assert.Equal(t, domain.SenderBot, messages[1].Sender)
	assert.Equal(t, "Helper received: hello", messages[1].Content)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, a.Timeline.Snapshot().Messages, 2)

	a.LoadHistory(ctx)
	history := a.Timeline.Snapshot().Messages
	require.Len(t, history, 2)
	assert.False(t, history[0].Local())
}

func TestApp_RestoreSession(t *testing.T) {
	env := newEnv(t)
	env.seedUser(t, "a@b.com")
	ctx := context.Background()

	first := env.newApp(t)
	require.NoError(t, first.Login(ctx, "a@b.com", "secret"))
	require.NoError(t, first.Close())

	second := env.newApp(t)
	assert.Equal(t, domain.Authenticated, second.Start(ctx))
	assert.True(t, second.Channel.Connected())
	assert.Equal(t, "a@b.com", second.Session.Snapshot().User.Email)
}

func TestApp_InvalidStoredToken(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	require.NoError(t, env.storage.Set(ctx, domain.TokenKey, "expired"))

	a := env.newApp(t)
	assert.Equal(t, domain.Unauthenticated, a.Start(ctx))
	assert.Nil(t, a.Session.Snapshot().User)
	assert.False(t, a.Channel.Connected())

	_, ok, err := env.storage.Get(ctx, domain.TokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApp_LogoutTearsDown(t *testing.T) {
	env := newEnv(t)
	user := env.seedUser(t, "a@b.com")
	a := env.newApp(t)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, "a@b.com", "secret"))
	assert.Eventually(t, func() bool {
		return env.server.Hub().Connections(user.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, a.SendMessage(ctx, "hello"))
	assert.Eventually(t, func() bool {
		return len(a.Timeline.Snapshot().Messages) == 2
	}, 2*time.Second, 10*time.Millisecond)

	a.Logout()
	assert.False(t, a.Channel.Connected())
	assert.Empty(t, a.Timeline.Snapshot().Messages)

	assert.Equal(t, domain.Unauthenticated, a.Start(ctx))
	assert.Equal(t, domain.Session{State: domain.Unauthenticated}, a.Session.Snapshot())
}

func TestApp_LoginReplacesSession(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	alice, err := env.server.Backend().Register(ctx, domain.RegisterRequest{Username: "alice", Email: "alice@b.com", Password: "secret"})
	require.NoError(t, err)
	bob, err := env.server.Backend().Register(ctx, domain.RegisterRequest{Username: "bob", Email: "bob@b.com", Password: "secret"})
	require.NoError(t, err)
	a := env.newApp(t)

	require.NoError(t, a.Login(ctx, "alice@b.com", "secret"))
	require.NoError(t, a.SendMessage(ctx, "from alice"))
	assert.Eventually(t, func() bool {
		return len(a.Timeline.Snapshot().Messages) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Login(ctx, "bob@b.com", "secret"))
	assert.Equal(t, bob.ID, a.Session.Snapshot().User.ID)
	assert.True(t, a.Channel.Connected())
	assert.Empty(t, a.Timeline.Snapshot().Messages)

	assert.Eventually(t, func() bool {
		return env.server.Hub().Connections(alice.ID) == 0 && env.server.Hub().Connections(bob.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.SendMessage(ctx, "from bob"))
	assert.Eventually(t, func() bool {
		return len(a.Timeline.Snapshot().Messages) == 2
	}, 2*time.Second, 10*time.Millisecond)
	for _, msg := range a.Timeline.Snapshot().Messages {
		assert.NotContains(t, msg.Content, "from alice")
	}
}

func TestApp_AuthFailureForcesLogout(t *testing.T) {
	env := newEnv(t)
	user := env.seedUser(t, "a@b.com")
	a := env.newApp(t)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, "a@b.com", "secret"))
	require.NoError(t, env.server.Backend().DeleteUser(ctx, user.ID))

	err := a.Guard.RequireAuthenticated(ctx)
	assert.ErrorIs(t, err, api.ErrAuth)
	assert.False(t, a.Session.Snapshot().HasToken())
	assert.False(t, a.Channel.Connected())

	var warned bool
	for _, n := range a.Notifications.Snapshot() {
		if n.Type == domain.NotifyWarning {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestApp_ErrorsBecomeNotifications(t *testing.T) {
	env := newEnv(t)
	a := env.newApp(t)
	ctx := context.Background()

	err := a.Login(ctx, "a@b.com", "wrong")
	assert.ErrorIs(t, err, api.ErrInvalidCredentials)

	notes := a.Notifications.Snapshot()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyError, notes[0].Type)
	assert.Equal(t, "invalid credentials", notes[0].Message)
	assert.Equal(t, domain.Unauthenticated, a.Session.Snapshot().State)

	env.ts.Close()
	err = a.Login(ctx, "a@b.com", "secret")
	assert.ErrorIs(t, err, api.ErrNetwork)
	assert.Len(t, a.Notifications.Snapshot(), 2)
}

func TestApp_AdminCreateConflict(t *testing.T) {
	env := newEnv(t)
	env.seedUser(t, "a@b.com")
	a := env.newApp(t)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, "admin@example.com", "admin123"))
	require.NoError(t, a.Guard.RequireAdmin(ctx))
	require.NoError(t, a.Admin.LoadUsers(ctx))
	before := a.Admin.Snapshot()
	require.Len(t, before.Users, 2)

	err := a.Admin.CreateUser(ctx, domain.CreateUserRequest{
		Username: "dup", Email: "a@b.com", Password: "secret1", IsActive: true,
	})
	assert.ErrorIs(t, err, api.ErrConflict)
	assert.Equal(t, before, a.Admin.Snapshot())
}

func TestApp_SaveBotNameReloadsConfig(t *testing.T) {
	env := newEnv(t)
	a := env.newApp(t)
	ctx := context.Background()

	a.Start(ctx)
	require.NoError(t, a.Login(ctx, "admin@example.com", "admin123"))
	require.NoError(t, a.Settings.Load(ctx))
	assert.Equal(t, "Helper", a.Settings.Snapshot().BotName)

	require.NoError(t, a.Settings.SaveBotName(ctx, "Concierge"))
	assert.Equal(t, "Concierge", a.Config.BotName())
}
