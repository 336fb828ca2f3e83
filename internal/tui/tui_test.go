package tui

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rrens/support-chat/internal/app"
	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/devserver"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/repository/memory"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendsOnEnter(t *testing.T) {
	assert.True(t, SendsOnEnter(120, 100))
	assert.True(t, SendsOnEnter(100, 100))
	assert.False(t, SendsOnEnter(99, 100))
}

func TestSendAndNewlineKeys(t *testing.T) {
	tests := []struct {
		key         string
		sendOnEnter bool
		send        bool
		newline     bool
	}{
		{"enter", true, true, false},
		{"alt+enter", true, false, true},
		{"enter", false, false, true},
		{"alt+enter", false, true, false},
		{"a", true, false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.send, isSendKey(tt.key, tt.sendOnEnter), tt.key)
		assert.Equal(t, tt.newline, isNewlineKey(tt.key, tt.sendOnEnter), tt.key)
	}
}

func TestParseSlash(t *testing.T) {
	tests := []struct {
		input string
		want  slashCommand
		ok    bool
	}{
		{"/logout", slashCommand{name: "logout"}, true},
		{"  /Users  bob  ", slashCommand{name: "users", arg: "bob"}, true},
		{"/", slashCommand{}, false},
		{"//not a command", slashCommand{}, false},
		{"hello /theme", slashCommand{}, false},
	}
	for _, tt := range tests {
		got, ok := parseSlash(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestScreenFor(t *testing.T) {
	assert.Equal(t, screenChat, screenFor(domain.Authenticated, screenLogin))
	assert.Equal(t, screenUsers, screenFor(domain.Authenticated, screenUsers))
	assert.Equal(t, screenLogin, screenFor(domain.Unauthenticated, screenUsers))
	assert.Equal(t, screenChat, screenFor(domain.Validating, screenChat))
}

func TestUserRow(t *testing.T) {
	expires := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)
	user := domain.ManagedUser{ID: 7, Username: "bob", Email: "bob@example.com", IsActive: false, LicenseExpiresAt: &expires}

	row := userRow(user, expires.Add(-time.Hour))
	assert.Contains(t, row, "bob@example.com")
	assert.Contains(t, row, "inactive")
	assert.Contains(t, row, "license 2030-01-02")
	assert.NotContains(t, row, "expired")

	assert.Contains(t, userRow(user, expires.Add(time.Hour)), "(expired)")
}

func TestParseLicenseDays(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	expires, err := parseLicenseDays("", now)
	require.NoError(t, err)
	assert.Nil(t, expires)

	expires, err = parseLicenseDays("30", now)
	require.NoError(t, err)
	require.NotNil(t, expires)
	assert.Equal(t, now.AddDate(0, 0, 30), *expires)

	for _, bad := range []string{"0", "-3", "soon"} {
		_, err := parseLicenseDays(bad, now)
		assert.Error(t, err, bad)
	}
}

func TestParseYesNo(t *testing.T) {
	for _, in := range []string{"y", "YES", "true", "1"} {
		v, err := parseYesNo(in)
		require.NoError(t, err, in)
		assert.True(t, v, in)
	}
	for _, in := range []string{"n", "No", "false", "0"} {
		v, err := parseYesNo(in)
		require.NoError(t, err, in)
		assert.False(t, v, in)
	}
	_, err := parseYesNo("maybe")
	assert.Error(t, err)
}

type harness struct {
	app    *app.App
	server *devserver.Server
	model  Model
}

func newHarness(t *testing.T) *harness {
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
	ctx := context.Background()
	a, err := app.New(ctx, cfg, memory.NewStorage())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	m := New(ctx, a, cfg.UI)
	t.Cleanup(m.Close)

	h := &harness{app: a, server: srv, model: m}
	h.update(startDoneMsg{state: a.Start(ctx)})
	h.update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return h
}

// update feeds msg to the model and returns the command it produced
func (h *harness) update(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

func (h *harness) typeText(s string) {
	h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// run executes a command produced by a key press and feeds back its result
func (h *harness) run(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			h.run(t, c)
		}
		return
	}
	h.update(msg)
}

// syncSession pushes the latest session snapshot as the listener would
func (h *harness) syncSession() {
	h.update(sessionMsg(h.app.Session.Snapshot()))
}

func (h *harness) login(t *testing.T, email, password string) {
	t.Helper()
	h.typeText(email)
	h.update(tea.KeyMsg{Type: tea.KeyTab})
	h.typeText(password)
	h.run(t, h.update(tea.KeyMsg{Type: tea.KeyEnter}))
	h.syncSession()
}

// press types s and returns the command the key produced
func (h *harness) press(s string) tea.Cmd {
	return h.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (h *harness) key(k tea.KeyType) tea.Cmd {
	return h.update(tea.KeyMsg{Type: k})
}

// command types a slash command into the chat input and submits it
func (h *harness) command(line string) tea.Cmd {
	h.typeText(line)
	return h.key(tea.KeyEnter)
}

func (h *harness) syncAdmin() {
	h.update(directoryMsg(h.app.Admin.Snapshot()))
	h.update(settingsMsg(h.app.Settings.Snapshot()))
}

// selectUser moves the users list cursor onto id
func (h *harness) selectUser(t *testing.T, id int64) {
	t.Helper()
	for h.model.cursor > 0 {
		h.key(tea.KeyUp)
	}
	for {
		user, ok := h.model.selectedUser()
		require.True(t, ok, "user %d not listed", id)
		if user.ID == id {
			return
		}
		before := h.model.cursor
		h.key(tea.KeyDown)
		require.NotEqual(t, before, h.model.cursor, "user %d not listed", id)
	}
}

func (h *harness) notificationMessages() []string {
	var messages []string
	for _, n := range h.app.Notifications.Snapshot() {
		messages = append(messages, n.Message)
	}
	return messages
}

func findUser(users []domain.User, email string) (domain.User, bool) {
	for _, u := range users {
		if u.Email == email {
			return u, true
		}
	}
	return domain.User{}, false
}

func TestModel_LoginScreen(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, screenLogin, h.model.screen)
	assert.True(t, h.model.sendOnEnter)
	assert.Contains(t, h.model.View(), "Sign in")

	h.update(tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.True(t, h.model.registering)
	assert.Contains(t, h.model.View(), "Create account")
}

func TestModel_LoginAndSend(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.server.Backend().Register(ctx, domain.RegisterRequest{Username: "alice", Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)

	h.login(t, "a@b.com", "secret")
	require.Equal(t, domain.Authenticated, h.app.Session.Snapshot().State)
	assert.Equal(t, screenChat, h.model.screen)

	h.typeText("hello there")
	h.run(t, h.update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Empty(t, h.model.input.Value())

	timeline := h.app.Timeline.Snapshot()
	require.NotEmpty(t, timeline.Messages)
	assert.Equal(t, "hello there", timeline.Messages[0].Content)

	h.update(timelineMsg(timeline))
	assert.Contains(t, h.model.renderTimeline(), "hello there")
	assert.Contains(t, h.model.renderTimeline(), "You")
}

func TestModel_NarrowTerminalUsesAltEnter(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.server.Backend().Register(ctx, domain.RegisterRequest{Username: "alice", Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)
	h.login(t, "a@b.com", "secret")

	h.update(tea.WindowSizeMsg{Width: 60, Height: 30})
	require.False(t, h.model.sendOnEnter)

	h.typeText("line one")
	h.update(tea.KeyMsg{Type: tea.KeyEnter})
	h.typeText("line two")
	assert.Equal(t, "line one\nline two", h.model.input.Value())
	assert.Empty(t, h.app.Timeline.Snapshot().Messages)

	h.run(t, h.update(tea.KeyMsg{Type: tea.KeyEnter, Alt: true}))
	messages := h.app.Timeline.Snapshot().Messages
	require.NotEmpty(t, messages)
	assert.Equal(t, "line one\nline two", messages[0].Content)
}

func TestModel_SlashCommands(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin@example.com", "admin123")
	require.True(t, h.model.session.IsAdmin())

	h.typeText("/theme")
	h.run(t, h.update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, domain.ThemeLight, h.app.Theme.Current())

	h.typeText("/users admin")
	h.run(t, h.update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, screenUsers, h.model.screen)
	dir := h.app.Admin.Snapshot()
	assert.Equal(t, "admin", dir.Query)
	require.Len(t, dir.Visible, 1)

	h.update(directoryMsg(dir))
	assert.Contains(t, h.model.View(), "admin@example.com")

	h.update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, screenChat, h.model.screen)

	h.typeText("/logout")
	h.update(tea.KeyMsg{Type: tea.KeyEnter})
	h.syncSession()
	assert.Equal(t, screenLogin, h.model.screen)
	assert.Equal(t, domain.Unauthenticated, h.app.Session.Snapshot().State)
}

func TestModel_UsersRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.server.Backend().Register(ctx, domain.RegisterRequest{Username: "alice", Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)
	h.login(t, "a@b.com", "secret")

	h.typeText("/users")
	h.run(t, h.update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, screenChat, h.model.screen)
	assert.Contains(t, h.notificationMessages(), "admin access required")

	h.run(t, h.command("/settings"))
	assert.Equal(t, screenChat, h.model.screen)

	h.run(t, h.command("/messages"))
	assert.Equal(t, screenChat, h.model.screen)
	assert.Empty(t, h.model.conversation.messages)
}

func TestModel_ProfileAndPassword(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.server.Backend().Register(ctx, domain.RegisterRequest{Username: "alice", Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)
	h.login(t, "a@b.com", "secret")

	h.command("/profile")
	require.Equal(t, screenForm, h.model.screen)
	assert.Contains(t, h.model.View(), "Edit profile")
	assert.Equal(t, "alice", h.model.form.inputs[0].Value())

	h.model.form.inputs[0].SetValue("alice2")
	h.run(t, h.key(tea.KeyEnter))
	assert.Equal(t, screenChat, h.model.screen)
	assert.Equal(t, "alice2", h.app.Session.Snapshot().User.Username)
	assert.Contains(t, h.notificationMessages(), "profile updated")

	h.command("/password")
	require.Equal(t, screenForm, h.model.screen)
	h.typeText("secret")
	h.key(tea.KeyTab)
	h.typeText("newsecret")
	h.key(tea.KeyTab)
	h.typeText("different")
	assert.NotContains(t, h.model.View(), "newsecret")

	h.run(t, h.key(tea.KeyEnter))
	assert.Equal(t, screenForm, h.model.screen)
	assert.Contains(t, h.notificationMessages(), "passwords do not match")

	h.model.form.inputs[2].SetValue("newsecret")
	h.run(t, h.key(tea.KeyEnter))
	assert.Equal(t, screenChat, h.model.screen)

	_, err = h.server.Backend().Authenticate(ctx, "a@b.com", "newsecret")
	assert.NoError(t, err)
}

func TestModel_FormEscapeCancels(t *testing.T) {
	h := newHarness(t)
	h.login(t, "admin@example.com", "admin123")

	h.command("/profile")
	require.Equal(t, screenForm, h.model.screen)
	h.key(tea.KeyEsc)
	assert.Equal(t, screenChat, h.model.screen)
	assert.Nil(t, h.model.form)
	assert.Equal(t, "admin", h.app.Session.Snapshot().User.Username)
}

func TestModel_AdminManagesUsers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login(t, "admin@example.com", "admin123")
	backend := h.server.Backend()

	h.run(t, h.command("/users"))
	require.Equal(t, screenUsers, h.model.screen)
	h.syncAdmin()

	h.key(tea.KeyTab)
	require.True(t, h.model.listFocus)
	h.typeText("a")
	require.Equal(t, screenForm, h.model.screen)
	assert.Contains(t, h.model.View(), "New user")

	values := []string{"carol", "carol@b.com", "secret1", "30", "n", "y"}
	for i, v := range values {
		h.model.form.inputs[i].SetValue(v)
	}
	h.run(t, h.key(tea.KeyEnter))
	require.Equal(t, screenUsers, h.model.screen)
	assert.True(t, h.model.listFocus)

	users, err := backend.Users(ctx)
	require.NoError(t, err)
	carol, ok := findUser(users, "carol@b.com")
	require.True(t, ok)
	assert.True(t, carol.IsActive)
	assert.False(t, carol.IsAdmin)
	require.NotNil(t, carol.LicenseExpiresAt)

	h.syncAdmin()
	h.selectUser(t, carol.ID)
	assert.Contains(t, h.model.View(), "> ")
	h.run(t, h.press("t"))
	carol, err = backend.User(ctx, carol.ID)
	require.NoError(t, err)
	assert.False(t, carol.IsActive)

	h.syncAdmin()
	h.selectUser(t, carol.ID)
	h.typeText("e")
	require.Equal(t, screenForm, h.model.screen)
	assert.Equal(t, "carol@b.com", h.model.form.inputs[1].Value())
	h.model.form.inputs[0].SetValue("caroline")
	h.run(t, h.key(tea.KeyEnter))
	require.Equal(t, screenUsers, h.model.screen)
	carol, err = backend.User(ctx, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, "caroline", carol.Username)
	assert.False(t, carol.IsActive)

	h.syncAdmin()
	h.selectUser(t, carol.ID)
	h.typeText("d")
	assert.Contains(t, h.model.View(), "delete caroline?")
	h.typeText("n")
	_, err = backend.User(ctx, carol.ID)
	require.NoError(t, err)

	h.typeText("d")
	h.run(t, h.press("y"))
	_, err = backend.User(ctx, carol.ID)
	assert.Error(t, err)
	assert.Contains(t, h.notificationMessages(), "user deleted")
}

func TestModel_AdminConversations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	backend := h.server.Backend()
	alice, err := backend.Register(ctx, domain.RegisterRequest{Username: "alice", Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)
	_, err = backend.AddMessage(ctx, alice.ID, domain.SenderUser, "help me please")
	require.NoError(t, err)
	_, err = backend.AddMessage(ctx, alice.ID, domain.SenderBot, "sure thing")
	require.NoError(t, err)
	h.login(t, "admin@example.com", "admin123")

	h.run(t, h.command("/messages"))
	require.Equal(t, screenConversation, h.model.screen)
	view := h.model.View()
	assert.Contains(t, view, "all conversations")
	assert.Contains(t, view, "help me please")
	assert.Contains(t, view, fmt.Sprintf("#%d", alice.ID))

	h.key(tea.KeyEsc)
	require.Equal(t, screenChat, h.model.screen)

	h.run(t, h.command(fmt.Sprintf("/messages %d", alice.ID)))
	require.Equal(t, screenConversation, h.model.screen)
	assert.Contains(t, h.model.View(), "sure thing")
	h.key(tea.KeyEsc)

	h.command("/messages someone")
	assert.Equal(t, screenChat, h.model.screen)
	assert.Contains(t, h.notificationMessages(), "usage: /messages [user id]")

	h.run(t, h.command("/users alice"))
	require.Equal(t, screenUsers, h.model.screen)
	h.syncAdmin()
	h.key(tea.KeyTab)
	h.selectUser(t, alice.ID)
	h.run(t, h.key(tea.KeyEnter))
	require.Equal(t, screenConversation, h.model.screen)
	assert.Contains(t, h.model.View(), "help me please")

	h.key(tea.KeyEsc)
	assert.Equal(t, screenUsers, h.model.screen)
}

func TestModel_AdminSettings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.login(t, "admin@example.com", "admin123")

	h.run(t, h.command("/settings"))
	require.Equal(t, screenSettings, h.model.screen)
	h.syncAdmin()
	assert.Contains(t, h.model.View(), "1.0.0 (Stable)")

	h.typeText("g")
	token := h.app.Settings.Snapshot().GeneratedToken
	require.NotEmpty(t, token)
	h.syncAdmin()
	assert.Contains(t, h.model.View(), token)

	h.run(t, h.press("s"))
	assert.Equal(t, "****", h.app.Settings.Snapshot().WebhookToken)
	assert.Equal(t, token, h.server.Backend().SettingValue(ctx, domain.SettingWebhookToken, ""))

	h.typeText("l")
	require.Equal(t, screenForm, h.model.screen)
	h.model.form.inputs[0].SetValue("30")
	h.run(t, h.key(tea.KeyEnter))
	require.Equal(t, screenSettings, h.model.screen)
	assert.Equal(t, 30, h.app.Settings.Snapshot().LicenseDuration)
	assert.Equal(t, "30", h.server.Backend().SettingValue(ctx, domain.SettingLicenseDuration, ""))

	h.typeText("b")
	require.Equal(t, screenForm, h.model.screen)
	h.model.form.inputs[0].SetValue("Robo")
	h.run(t, h.key(tea.KeyEnter))
	require.Equal(t, screenSettings, h.model.screen)
	assert.Equal(t, "Robo", h.app.Config.BotName())

	h.key(tea.KeyEsc)
	assert.Equal(t, screenChat, h.model.screen)
}
