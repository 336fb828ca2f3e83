package tui

import (
	"context"
	"strconv"

	"github.com/Rrens/support-chat/internal/app"
	"github.com/Rrens/support-chat/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
)

type conversationMsg struct {
	title    string
	back     screen
	messages []domain.ChatMessage
	err      error
}

type settingsReadyMsg struct {
	version string
	err     error
}

// requireAdmin checks the session with the server before an admin screen opens
func requireAdmin(ctx context.Context, a *app.App) error {
	if err := a.Guard.RequireAdmin(ctx); err != nil {
		a.Notifications.Error("admin access required")
		return err
	}
	return nil
}

func (m Model) updateUsers(msg tea.KeyMsg) (Model, tea.Cmd) {
	key := msg.String()
	a := m.app

	if m.confirmDelete != nil {
		user := *m.confirmDelete
		m.confirmDelete = nil
		if key != "y" {
			return m, nil
		}
		return m, m.action(func(ctx context.Context) error {
			return a.Admin.DeleteUser(ctx, user.ID)
		})
	}

	switch key {
	case "esc":
		m.applyScreen(screenChat)
		return m, nil
	case "pgdown", "right":
		a.Admin.SetPage(m.directory.Page + 1)
		return m, nil
	case "pgup", "left":
		a.Admin.SetPage(m.directory.Page - 1)
		return m, nil
	case "up":
		m.cursor = maxInt(0, m.cursor-1)
		return m, nil
	case "down":
		m.cursor = minInt(m.cursor+1, maxInt(0, len(m.directory.Visible)-1))
		return m, nil
	case "tab":
		m.setListFocus(!m.listFocus)
		return m, nil
	case "ctrl+r":
		return m, m.action(func(ctx context.Context) error {
			return a.Admin.LoadUsers(ctx)
		})
	}

	if !m.listFocus {
		if key == "enter" {
			m.setListFocus(true)
			return m, nil
		}
		var cmd tea.Cmd
		before := m.search.Value()
		m.search, cmd = m.search.Update(msg)
		if m.search.Value() != before {
			a.Admin.Search(m.search.Value())
		}
		return m, cmd
	}

	if key == "/" {
		m.setListFocus(false)
		return m, nil
	}
	if key == "a" {
		return m.openForm(createUserForm(a, a.Settings.Snapshot().LicenseDuration))
	}

	selected, ok := m.selectedUser()
	if !ok {
		return m, nil
	}
	switch key {
	case "e":
		return m.openForm(editUserForm(a, selected))
	case "d":
		m.confirmDelete = &selected
	case "t":
		active := !selected.IsActive
		return m, m.action(func(ctx context.Context) error {
			return a.Admin.UpdateUser(ctx, selected.ID, domain.UpdateUserRequest{IsActive: &active})
		})
	case "m", "enter":
		id := selected.ID
		return m, m.openConversation(selected.Username, screenUsers, func(ctx context.Context) ([]domain.ChatMessage, error) {
			return a.Admin.UserMessages(ctx, id)
		})
	}
	return m, nil
}

func (m *Model) setListFocus(on bool) {
	m.listFocus = on
	if on {
		m.search.Blur()
	} else {
		m.search.Focus()
	}
}

func (m Model) selectedUser() (domain.ManagedUser, bool) {
	if m.cursor < 0 || m.cursor >= len(m.directory.Visible) {
		return domain.ManagedUser{}, false
	}
	return m.directory.Visible[m.cursor], true
}

// messagesCommand handles "/messages [user id]"
func (m Model) messagesCommand(arg string) (Model, tea.Cmd) {
	a := m.app
	if arg == "" {
		return m, m.openConversation("all conversations", screenChat, a.Admin.AllMessages)
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		a.Notifications.Warning("usage: /messages [user id]")
		return m, nil
	}
	return m, m.openConversation("user "+arg, screenChat, func(ctx context.Context) ([]domain.ChatMessage, error) {
		return a.Admin.UserMessages(ctx, id)
	})
}

func (m *Model) openConversation(title string, back screen, load func(context.Context) ([]domain.ChatMessage, error)) tea.Cmd {
	m.inflight = true
	ctx, a := m.ctx, m.app
	return func() tea.Msg {
		if err := requireAdmin(ctx, a); err != nil {
			return conversationMsg{err: err}
		}
		messages, err := load(ctx)
		return conversationMsg{title: title, back: back, messages: messages, err: err}
	}
}

func (m *Model) showConversation(msg conversationMsg) {
	m.inflight = false
	if msg.err != nil || !m.session.IsAdmin() {
		return
	}
	m.conversation = msg
	m.transcript.SetContent(m.renderConversation())
	m.transcript.GotoBottom()
	m.applyScreen(screenConversation)
}

func (m Model) updateConversation(msg tea.KeyMsg) (Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.applyScreen(m.conversation.back)
		return m, nil
	}
	var cmd tea.Cmd
	m.transcript, cmd = m.transcript.Update(msg)
	return m, cmd
}

func (m *Model) settingsCommand() tea.Cmd {
	m.inflight = true
	ctx, a := m.ctx, m.app
	return func() tea.Msg {
		if err := requireAdmin(ctx, a); err != nil {
			return settingsReadyMsg{err: err}
		}
		if err := a.Settings.Load(ctx); err != nil {
			return settingsReadyMsg{err: err}
		}
		version, err := a.Config.Version(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to fetch backend version")
		}
		return settingsReadyMsg{version: version}
	}
}

func (m Model) updateSettings(msg tea.KeyMsg) (Model, tea.Cmd) {
	a := m.app
	switch msg.String() {
	case "esc":
		m.applyScreen(screenChat)
	case "l":
		return m.openForm(licenseForm(a, m.settings.LicenseDuration))
	case "b":
		return m.openForm(botNameForm(a, m.settings.BotName))
	case "g":
		a.Settings.GenerateWebhookToken()
	case "x":
		a.Settings.CancelWebhookToken()
	case "s":
		return m, m.action(a.Settings.SaveWebhookToken)
	case "ctrl+r":
		return m, m.action(a.Settings.Load)
	}
	return m, nil
}
