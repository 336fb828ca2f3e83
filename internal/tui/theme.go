package tui

import (
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type uiTheme struct {
	header     lipgloss.Style
	title      lipgloss.Style
	footer     lipgloss.Style
	muted      lipgloss.Style
	userLabel  lipgloss.Style
	botLabel   lipgloss.Style
	errorText  lipgloss.Style
	panel      lipgloss.Style
	inputPanel lipgloss.Style
	focused    lipgloss.Style
	live       lipgloss.Style
	offline    lipgloss.Style
	notify     map[domain.NotificationType]lipgloss.Style
}

func newTheme(t domain.Theme) uiTheme {
	fg := lipgloss.Color("#e6e6e6")
	bg := lipgloss.Color("#1f2430")
	muted := lipgloss.Color("#7f8796")
	accent := lipgloss.Color("#5fafff")
	bot := lipgloss.Color("#87d787")
	if t == domain.ThemeLight {
		fg = lipgloss.Color("#1c1c1c")
		bg = lipgloss.Color("#eeeeee")
		muted = lipgloss.Color("#6c6c6c")
		accent = lipgloss.Color("#005fd7")
		bot = lipgloss.Color("#008700")
	}
	green := lipgloss.Color("#00af5f")
	red := lipgloss.Color("#d75f5f")
	yellow := lipgloss.Color("#d7af00")

	return uiTheme{
		header:     lipgloss.NewStyle().Foreground(fg).Background(bg).Bold(true).Padding(0, 1),
		title:      lipgloss.NewStyle().Foreground(accent).Bold(true),
		footer:     lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		muted:      lipgloss.NewStyle().Foreground(muted),
		userLabel:  lipgloss.NewStyle().Foreground(accent).Bold(true),
		botLabel:   lipgloss.NewStyle().Foreground(bot).Bold(true),
		errorText:  lipgloss.NewStyle().Foreground(red),
		panel:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1),
		inputPanel: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent),
		focused:    lipgloss.NewStyle().Foreground(accent),
		live:       lipgloss.NewStyle().Foreground(green),
		offline:    lipgloss.NewStyle().Foreground(muted),
		notify: map[domain.NotificationType]lipgloss.Style{
			domain.NotifySuccess: lipgloss.NewStyle().Foreground(green),
			domain.NotifyError:   lipgloss.NewStyle().Foreground(red).Bold(true),
			domain.NotifyInfo:    lipgloss.NewStyle().Foreground(accent),
			domain.NotifyWarning: lipgloss.NewStyle().Foreground(yellow),
		},
	}
}
