// Package tui is the terminal front end of the chat client.
package tui

import (
	"context"
	"strconv"
	"strings"

	"github.com/Rrens/support-chat/internal/app"
	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/realtime"
	"github.com/Rrens/support-chat/internal/store"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type screen int

const (
	screenLogin screen = iota
	screenChat
	screenUsers
	screenForm
	screenSettings
	screenConversation
)

const (
	fieldEmail = iota
	fieldPassword
	fieldUsername
)

const (
	headerLines = 1
	notifyLines = 2
	footerLines = 1
	inputLines  = 3
)

type (
	sessionMsg       domain.Session
	timelineMsg      domain.Timeline
	notificationsMsg []domain.Notification
	themeMsg         domain.Theme
	directoryMsg     store.Directory
	configMsg        domain.AppConfig
	channelMsg       realtime.State
	settingsMsg      store.AdminSettings
)

type startDoneMsg struct {
	state domain.SessionState
}

type actionDoneMsg struct {
	err error
}

type directoryReadyMsg struct {
	err error
}

// feeds holds the store subscriptions the model listens on
type feeds struct {
	session       <-chan domain.Session
	timeline      <-chan domain.Timeline
	notifications <-chan []domain.Notification
	theme         <-chan domain.Theme
	directory     <-chan store.Directory
	config        <-chan domain.AppConfig
	channel       <-chan realtime.State
	settings      <-chan store.AdminSettings
	cancels       []func()
}

// Model is the bubbletea model of the chat client
type Model struct {
	ctx   context.Context
	app   *app.App
	ui    config.UIConfig
	feeds *feeds

	screen        screen
	session       domain.Session
	timeline      domain.Timeline
	notifications []domain.Notification
	directory     store.Directory
	settings      store.AdminSettings
	version       string
	conversation  conversationMsg
	botName       string
	live          bool
	themeName     domain.Theme
	theme         uiTheme
	registering   bool
	inflight      bool
	started       bool

	width       int
	height      int
	sendOnEnter bool

	fields     []textinput.Model
	focus      int
	input      textarea.Model
	search     textinput.Model
	messages   viewport.Model
	transcript viewport.Model
	spinner    spinner.Model

	form          *form
	cursor        int
	listFocus     bool
	confirmDelete *domain.ManagedUser
}

// New subscribes to the application stores and builds the initial model
func New(ctx context.Context, a *app.App, ui config.UIConfig) Model {
	f := &feeds{}
	session, sessionCh, cancel := a.Session.Subscribe()
	f.session, f.cancels = sessionCh, append(f.cancels, cancel)
	timeline, timelineCh, cancel := a.Timeline.Subscribe()
	f.timeline, f.cancels = timelineCh, append(f.cancels, cancel)
	notes, notesCh, cancel := a.Notifications.Subscribe()
	f.notifications, f.cancels = notesCh, append(f.cancels, cancel)
	theme, themeCh, cancel := a.Theme.Subscribe()
	f.theme, f.cancels = themeCh, append(f.cancels, cancel)
	dir, dirCh, cancel := a.Admin.Subscribe()
	f.directory, f.cancels = dirCh, append(f.cancels, cancel)
	cfg, cfgCh, cancel := a.Config.Subscribe()
	f.config, f.cancels = cfgCh, append(f.cancels, cancel)
	state, stateCh, cancel := a.Channel.State().Subscribe()
	f.channel, f.cancels = stateCh, append(f.cancels, cancel)
	settings, settingsCh, cancel := a.Settings.Subscribe()
	f.settings, f.cancels = settingsCh, append(f.cancels, cancel)

	email := textinput.New()
	email.Placeholder = "email"
	email.Prompt = "email    "
	email.CharLimit = 255
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "password "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 72

	username := textinput.New()
	username.Placeholder = "username"
	username.Prompt = "username "
	username.CharLimit = 100

	input := textarea.New()
	input.Placeholder = "Type a message or /help"
	input.ShowLineNumbers = false
	input.Prompt = ""
	input.CharLimit = 4000
	input.SetHeight(inputLines)
	input.KeyMap.InsertNewline.SetEnabled(false)

	search := textinput.New()
	search.Prompt = "search "
	search.Placeholder = "username or email"

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	botName := cfg.BotName
	if botName == "" {
		botName = ui.DefaultBotName
	}

	return Model{
		ctx:           ctx,
		app:           a,
		ui:            ui,
		feeds:         f,
		screen:        screenFor(session.State, screenLogin),
		session:       session,
		timeline:      timeline,
		notifications: notes,
		directory:     dir,
		settings:      settings,
		botName:       botName,
		live:          state == realtime.Connected,
		themeName:     theme,
		theme:         newTheme(theme),
		fields:        []textinput.Model{email, password, username},
		input:         input,
		search:        search,
		messages:      viewport.New(0, 0),
		transcript:    viewport.New(0, 0),
		spinner:       sp,
	}
}

// Close cancels the store subscriptions
func (m Model) Close() {
	for _, cancel := range m.feeds.cancels {
		cancel()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.startCmd(),
		listen(m.feeds.session, func(v domain.Session) tea.Msg { return sessionMsg(v) }),
		listen(m.feeds.timeline, func(v domain.Timeline) tea.Msg { return timelineMsg(v) }),
		listen(m.feeds.notifications, func(v []domain.Notification) tea.Msg { return notificationsMsg(v) }),
		listen(m.feeds.theme, func(v domain.Theme) tea.Msg { return themeMsg(v) }),
		listen(m.feeds.directory, func(v store.Directory) tea.Msg { return directoryMsg(v) }),
		listen(m.feeds.config, func(v domain.AppConfig) tea.Msg { return configMsg(v) }),
		listen(m.feeds.channel, func(v realtime.State) tea.Msg { return channelMsg(v) }),
		listen(m.feeds.settings, func(v store.AdminSettings) tea.Msg { return settingsMsg(v) }),
	)
}

// listen waits for the next value of a store subscription.
// A closed subscription yields no message.
func listen[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(v)
	}
}

func (m Model) startCmd() tea.Cmd {
	ctx, a := m.ctx, m.app
	return func() tea.Msg {
		return startDoneMsg{state: a.Start(ctx)}
	}
}

// action runs fn off the UI goroutine. Failures are already reported
// as notifications by the app layer.
func (m *Model) action(fn func(ctx context.Context) error) tea.Cmd {
	m.inflight = true
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case startDoneMsg:
		m.started = true
		m.applyScreen(screenFor(msg.state, m.screen))
	case actionDoneMsg:
		m.inflight = false
	case directoryReadyMsg:
		m.inflight = false
		if msg.err == nil && m.session.IsAdmin() {
			m.applyScreen(screenUsers)
		}
	case formDoneMsg:
		m.inflight = false
		if msg.err == nil && m.screen == screenForm {
			m.closeForm()
		}
	case conversationMsg:
		m.showConversation(msg)
	case settingsReadyMsg:
		m.inflight = false
		if msg.err == nil && m.session.IsAdmin() {
			m.version = msg.version
			m.applyScreen(screenSettings)
		}
	case sessionMsg:
		m.session = domain.Session(msg)
		m.applyScreen(screenFor(m.session.State, m.screen))
		cmds = append(cmds, listen(m.feeds.session, func(v domain.Session) tea.Msg { return sessionMsg(v) }))
	case timelineMsg:
		m.timeline = domain.Timeline(msg)
		m.renderMessages()
		cmds = append(cmds, listen(m.feeds.timeline, func(v domain.Timeline) tea.Msg { return timelineMsg(v) }))
	case notificationsMsg:
		m.notifications = msg
		cmds = append(cmds, listen(m.feeds.notifications, func(v []domain.Notification) tea.Msg { return notificationsMsg(v) }))
	case themeMsg:
		m.themeName = domain.Theme(msg)
		m.theme = newTheme(m.themeName)
		m.renderMessages()
		cmds = append(cmds, listen(m.feeds.theme, func(v domain.Theme) tea.Msg { return themeMsg(v) }))
	case directoryMsg:
		m.directory = store.Directory(msg)
		m.cursor = minInt(m.cursor, maxInt(0, len(m.directory.Visible)-1))
		cmds = append(cmds, listen(m.feeds.directory, func(v store.Directory) tea.Msg { return directoryMsg(v) }))
	case configMsg:
		if msg.BotName != "" {
			m.botName = msg.BotName
		}
		m.renderMessages()
		cmds = append(cmds, listen(m.feeds.config, func(v domain.AppConfig) tea.Msg { return configMsg(v) }))
	case channelMsg:
		m.live = realtime.State(msg) == realtime.Connected
		cmds = append(cmds, listen(m.feeds.channel, func(v realtime.State) tea.Msg { return channelMsg(v) }))
	case settingsMsg:
		m.settings = store.AdminSettings(msg)
		cmds = append(cmds, listen(m.feeds.settings, func(v store.AdminSettings) tea.Msg { return settingsMsg(v) }))
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sendOnEnter = SendsOnEnter(m.width, m.ui.DesktopMinWidth)
		m.resize()
		m.renderMessages()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		switch m.screen {
		case screenLogin:
			m, cmd = m.updateLogin(msg)
		case screenChat:
			m, cmd = m.updateChat(msg)
		case screenUsers:
			m, cmd = m.updateUsers(msg)
		case screenForm:
			m, cmd = m.updateForm(msg)
		case screenSettings:
			m, cmd = m.updateSettings(msg)
		case screenConversation:
			m, cmd = m.updateConversation(msg)
		}
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// screenFor maps a session state onto the screen to show
func screenFor(state domain.SessionState, current screen) screen {
	switch state {
	case domain.Authenticated:
		if current == screenLogin {
			return screenChat
		}
		return current
	case domain.Unauthenticated:
		return screenLogin
	default:
		return current
	}
}

func (m *Model) applyScreen(next screen) {
	if next == m.screen {
		return
	}
	m.screen = next
	m.confirmDelete = nil
	switch next {
	case screenLogin:
		for i := range m.fields {
			m.fields[i].Reset()
		}
		m.focusField(fieldEmail)
		m.input.Blur()
		m.search.Blur()
		m.form = nil
	case screenChat:
		m.fields[m.focus].Blur()
		m.search.Blur()
		m.input.Focus()
	case screenUsers:
		m.input.Blur()
		m.setListFocus(m.listFocus)
	default:
		m.input.Blur()
		m.search.Blur()
	}
}

func (m Model) updateLogin(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "ctrl+r":
		m.registering = !m.registering
		if !m.registering && m.focus == fieldUsername {
			m.focusField(fieldEmail)
		}
		return m, nil
	case "tab", "down":
		m.focusField(m.nextField(1))
		return m, nil
	case "shift+tab", "up":
		m.focusField(m.nextField(-1))
		return m, nil
	case "enter":
		if m.inflight {
			return m, nil
		}
		return m, m.submitLogin()
	}

	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	return m, cmd
}

func (m Model) loginFields() []int {
	if m.registering {
		return []int{fieldUsername, fieldEmail, fieldPassword}
	}
	return []int{fieldEmail, fieldPassword}
}

func (m Model) nextField(step int) int {
	order := m.loginFields()
	pos := 0
	for i, f := range order {
		if f == m.focus {
			pos = i
		}
	}
	return order[(pos+step+len(order))%len(order)]
}

func (m *Model) focusField(field int) {
	for i := range m.fields {
		m.fields[i].Blur()
	}
	m.focus = field
	m.fields[field].Focus()
}

func (m *Model) submitLogin() tea.Cmd {
	email := strings.TrimSpace(m.fields[fieldEmail].Value())
	password := m.fields[fieldPassword].Value()
	a := m.app
	if m.registering {
		input := domain.RegisterRequest{
			Username: strings.TrimSpace(m.fields[fieldUsername].Value()),
			Email:    email,
			Password: password,
		}
		return m.action(func(ctx context.Context) error {
			return a.Register(ctx, input)
		})
	}
	return m.action(func(ctx context.Context) error {
		return a.Login(ctx, email, password)
	})
}

func (m Model) updateChat(msg tea.KeyMsg) (Model, tea.Cmd) {
	key := msg.String()
	switch {
	case key == "pgup" || key == "pgdown":
		var cmd tea.Cmd
		m.messages, cmd = m.messages.Update(msg)
		return m, cmd
	case isNewlineKey(key, m.sendOnEnter):
		m.input.InsertString("\n")
		return m, nil
	case isSendKey(key, m.sendOnEnter):
		content := m.input.Value()
		if strings.TrimSpace(content) == "" {
			return m, nil
		}
		m.input.Reset()
		if cmd, ok := parseSlash(content); ok {
			return m.runSlash(cmd)
		}
		a := m.app
		return m, m.action(func(ctx context.Context) error {
			return a.SendMessage(ctx, content)
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) runSlash(cmd slashCommand) (Model, tea.Cmd) {
	a := m.app
	switch cmd.name {
	case "logout":
		a.Logout()
	case "quit", "exit":
		return m, tea.Quit
	case "theme":
		return m, m.action(func(ctx context.Context) error {
			_, err := a.Theme.Toggle(ctx)
			return err
		})
	case "reload":
		return m, m.action(func(ctx context.Context) error {
			if _, err := a.Config.Reload(ctx); err != nil {
				a.Notifications.Error("failed to reload configuration")
				return err
			}
			a.LoadHistory(ctx)
			return nil
		})
	case "users":
		query := cmd.arg
		m.search.SetValue(query)
		m.listFocus, m.cursor = false, 0
		m.inflight = true
		ctx := m.ctx
		return m, func() tea.Msg {
			if err := a.Guard.RequireAdmin(ctx); err != nil {
				a.Notifications.Error("admin access required")
				return directoryReadyMsg{err: err}
			}
			a.Admin.Search(query)
			return directoryReadyMsg{err: a.Admin.LoadUsers(ctx)}
		}
	case "profile":
		username := cmd.arg
		if username == "" && m.session.User != nil {
			username = m.session.User.Username
		}
		return m.openForm(profileForm(a, username))
	case "password":
		return m.openForm(passwordForm(a))
	case "messages":
		return m.messagesCommand(cmd.arg)
	case "settings":
		return m, m.settingsCommand()
	case "help":
		a.Notifications.Info(helpText)
	default:
		a.Notifications.Warning("unknown command /" + cmd.name)
	}
	return m, nil
}

func (m *Model) resize() {
	width := maxInt(20, m.width-2)
	for i := range m.fields {
		m.fields[i].Width = maxInt(10, width-12)
	}
	m.search.Width = maxInt(10, width-10)
	m.input.SetWidth(maxInt(10, width-2))
	m.messages.Width = width
	m.messages.Height = maxInt(1, m.height-headerLines-notifyLines-footerLines-(inputLines+2))
	m.transcript.Width = width
	m.transcript.Height = maxInt(1, m.height-headerLines-notifyLines-footerLines-2)
}

func (m *Model) renderMessages() {
	if m.messages.Width == 0 {
		return
	}
	atBottom := m.messages.AtBottom()
	m.messages.SetContent(m.renderTimeline())
	if atBottom || m.timeline.Loading {
		m.messages.GotoBottom()
	}
}

func pageLabel(d store.Directory) string {
	return "page " + strconv.Itoa(d.Page) + "/" + strconv.Itoa(d.TotalPages) +
		" · " + strconv.Itoa(d.Matches) + " users"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
