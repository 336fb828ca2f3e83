package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/markup"
	"github.com/Rrens/support-chat/internal/store"
	"github.com/charmbracelet/lipgloss"
)

const timeLayout = "15:04"

func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}
	if !m.started || m.session.State == domain.Validating {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeader(),
			"",
			m.spinner.View()+" checking session...",
		)
	}

	var body string
	switch m.screen {
	case screenLogin:
		body = m.renderLogin()
	case screenUsers:
		body = m.renderUsers()
	case screenForm:
		body = m.renderForm()
	case screenSettings:
		body = m.renderSettings()
	case screenConversation:
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.theme.title.Render(m.conversation.title),
			m.transcript.View(),
		)
	default:
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.messages.View(),
			m.theme.inputPanel.Render(m.input.View()),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderNotifications(),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	parts := []string{m.botName}
	if m.session.User != nil {
		parts = append(parts, m.session.User.Username)
		if m.session.IsAdmin() {
			parts = append(parts, "admin")
		}
	}
	status := m.theme.offline.Render("offline")
	if m.live {
		status = m.theme.live.Render("live")
	}
	line := strings.Join(parts, " · ") + "  " + status
	return m.theme.header.Width(maxInt(0, m.width)).Render(line)
}

func (m Model) renderFooter() string {
	var hint string
	switch m.screen {
	case screenLogin:
		if m.registering {
			hint = "enter register · tab next field · ctrl+r back to sign in · esc quit"
		} else {
			hint = "enter sign in · tab next field · ctrl+r create account · esc quit"
		}
	case screenUsers:
		switch {
		case m.confirmDelete != nil:
			hint = "delete " + m.confirmDelete.Username + "? y to confirm, any other key cancels"
		case m.listFocus:
			hint = pageLabel(m.directory) + " · ↑/↓ select · a add · e edit · t toggle active · d delete · m messages · / search · esc back"
		default:
			hint = pageLabel(m.directory) + " · ←/→ page · tab select users · ctrl+r reload · esc back"
		}
	case screenForm:
		hint = "enter save · tab next field · esc cancel"
	case screenSettings:
		hint = "l license · b bot name · g generate token · s save token · x discard token · esc back"
	case screenConversation:
		hint = "pgup/pgdown scroll · esc back"
	default:
		if m.sendOnEnter {
			hint = "enter send · alt+enter new line · /help"
		} else {
			hint = "alt+enter send · enter new line · /help"
		}
	}
	if m.inflight {
		hint = m.spinner.View() + " " + hint
	}
	return m.theme.footer.Render(hint)
}

func (m Model) renderNotifications() string {
	lines := make([]string, 0, notifyLines)
	start := maxInt(0, len(m.notifications)-notifyLines)
	for _, n := range m.notifications[start:] {
		style, ok := m.theme.notify[n.Type]
		if !ok {
			style = m.theme.muted
		}
		lines = append(lines, style.Render(n.Message))
	}
	for len(lines) < notifyLines {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderLogin() string {
	title := "Sign in"
	if m.registering {
		title = "Create account"
	}
	rows := []string{m.theme.title.Render(title), ""}
	for _, f := range m.loginFields() {
		rows = append(rows, m.fields[f].View())
	}
	return m.theme.panel.Render(strings.Join(rows, "\n"))
}

func (m Model) renderTimeline() string {
	if m.timeline.Loading && len(m.timeline.Messages) == 0 {
		return m.theme.muted.Render("loading history...")
	}
	if len(m.timeline.Messages) == 0 {
		text := fmt.Sprintf("No messages yet. Say hello to %s.", m.botName)
		if m.timeline.Error != "" {
			text = m.theme.errorText.Render(m.timeline.Error)
		}
		return m.theme.muted.Render(text)
	}

	width := maxInt(20, m.messages.Width-2)
	var b strings.Builder
	for _, msg := range m.timeline.Messages {
		b.WriteString(m.renderMessageHeader(msg))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(markup.Normalize(msg.Content)))
		b.WriteString("\n\n")
	}
	if m.timeline.Error != "" {
		b.WriteString(m.theme.errorText.Render(m.timeline.Error))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderMessageHeader(msg domain.ChatMessage) string {
	label := m.theme.userLabel.Render("You")
	if msg.Sender == domain.SenderBot {
		label = m.theme.botLabel.Render(m.botName)
	}
	stamp := ""
	if !msg.Timestamp.IsZero() {
		stamp = m.theme.muted.Render(" " + msg.Timestamp.Local().Format(timeLayout))
	}
	return label + stamp
}

func (m Model) renderUsers() string {
	d := m.directory
	rows := []string{m.search.View(), ""}
	switch {
	case d.Loading && len(d.Users) == 0:
		rows = append(rows, m.theme.muted.Render("loading users..."))
	case d.Error != "":
		rows = append(rows, m.theme.errorText.Render(d.Error))
	case len(d.Visible) == 0:
		rows = append(rows, m.theme.muted.Render("no matching users"))
	}
	now := time.Now()
	for i, u := range d.Visible {
		row := "  " + userRow(u, now)
		if m.listFocus && i == m.cursor {
			row = m.theme.focused.Render("> " + userRow(u, now))
		}
		rows = append(rows, row)
	}
	return m.theme.panel.Render(strings.Join(rows, "\n"))
}

func userRow(u domain.ManagedUser, now time.Time) string {
	role := "user"
	if u.IsAdmin {
		role = "admin"
	}
	status := "active"
	if !u.IsActive {
		status = "inactive"
	}
	license := "no expiry"
	if u.LicenseExpiresAt != nil {
		license = "license " + u.LicenseExpiresAt.Format("2006-01-02")
		if u.LicenseExpired(now) {
			license += " (expired)"
		}
	}
	return fmt.Sprintf("%-4d %-20s %-30s %-5s %-8s %s", u.ID, u.Username, u.Email, role, status, license)
}

func (m Model) renderForm() string {
	if m.form == nil {
		return ""
	}
	rows := []string{m.theme.title.Render(m.form.title), ""}
	for _, in := range m.form.inputs {
		rows = append(rows, in.View())
	}
	return m.theme.panel.Render(strings.Join(rows, "\n"))
}

func (m Model) renderSettings() string {
	s := m.settings
	if s.Loading && len(s.Settings) == 0 {
		return m.theme.panel.Render(m.theme.muted.Render("loading settings..."))
	}

	version := "unknown"
	if m.version != "" {
		version = m.version + " (" + store.VersionLabel(m.version) + ")"
	}
	token := "not set"
	switch {
	case s.GeneratedToken != "":
		token = s.GeneratedToken + m.theme.muted.Render("  unsaved")
	case s.WebhookToken != "":
		token = s.WebhookToken
	}

	rows := []string{
		m.theme.title.Render("Settings"),
		"",
		fmt.Sprintf("%-18s %s", "version", version),
		fmt.Sprintf("%-18s %d days", "license duration", s.LicenseDuration),
		fmt.Sprintf("%-18s %s", "bot name", s.BotName),
		fmt.Sprintf("%-18s %s", "webhook token", token),
	}
	for _, setting := range s.Settings {
		switch setting.Key {
		case domain.SettingLicenseDuration, domain.SettingBotName, domain.SettingWebhookToken:
			continue
		}
		rows = append(rows, fmt.Sprintf("%-18s %s", setting.Key, setting.Value))
	}
	return m.theme.panel.Render(strings.Join(rows, "\n"))
}

// renderConversation lists admin-visible history, tagging each line with its owner
func (m Model) renderConversation() string {
	if len(m.conversation.messages) == 0 {
		return m.theme.muted.Render("no messages")
	}
	width := maxInt(20, m.transcript.Width-2)
	var b strings.Builder
	for _, msg := range m.conversation.messages {
		label := m.theme.userLabel.Render("user")
		if msg.Sender == domain.SenderBot {
			label = m.theme.botLabel.Render(m.botName)
		}
		if msg.UserID != nil {
			label += m.theme.muted.Render(fmt.Sprintf(" #%d", *msg.UserID))
		}
		if !msg.Timestamp.IsZero() {
			label += m.theme.muted.Render(" " + msg.Timestamp.Local().Format("2006-01-02 " + timeLayout))
		}
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(markup.Normalize(msg.Content)))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
