package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Rrens/support-chat/internal/api"
	"github.com/Rrens/support-chat/internal/app"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type formDoneMsg struct {
	err error
}

type formField struct {
	label       string
	value       string
	placeholder string
	secret      bool
}

// form is a small multi-field input screen. submit runs off the UI goroutine
// and the form closes when it succeeds.
type form struct {
	title  string
	inputs []textinput.Model
	focus  int
	back   screen
	submit func(ctx context.Context, values []string) error
}

func newForm(title string, back screen, fields []formField, submit func(context.Context, []string) error) *form {
	width := 0
	for _, f := range fields {
		width = maxInt(width, len(f.label))
	}

	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		in := textinput.New()
		in.Prompt = fmt.Sprintf("%-*s ", width, f.label)
		in.Placeholder = f.placeholder
		in.CharLimit = 255
		in.SetValue(f.value)
		if f.secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		inputs[i] = in
	}

	fm := &form{title: title, inputs: inputs, back: back, submit: submit}
	fm.focusOn(0)
	return fm
}

func (f *form) focusOn(i int) {
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
	f.focus = (i + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

// values returns the field contents. Secrets are kept verbatim.
func (f *form) values() []string {
	out := make([]string, len(f.inputs))
	for i, in := range f.inputs {
		if in.EchoMode == textinput.EchoPassword {
			out[i] = in.Value()
			continue
		}
		out[i] = strings.TrimSpace(in.Value())
	}
	return out
}

func (m Model) openForm(f *form) (Model, tea.Cmd) {
	m.form = f
	m.applyScreen(screenForm)
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (Model, tea.Cmd) {
	f := m.form
	switch msg.String() {
	case "esc":
		m.closeForm()
		return m, nil
	case "tab", "down":
		f.focusOn(f.focus + 1)
		return m, nil
	case "shift+tab", "up":
		f.focusOn(f.focus - 1)
		return m, nil
	case "enter":
		if m.inflight {
			return m, nil
		}
		m.inflight = true
		ctx, values, submit := m.ctx, f.values(), f.submit
		return m, func() tea.Msg {
			return formDoneMsg{err: submit(ctx, values)}
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return m, cmd
}

func (m *Model) closeForm() {
	back := screenChat
	if m.form != nil {
		back = m.form.back
	}
	m.form = nil
	m.applyScreen(back)
}

// invalid reports a form input the server never sees
func invalid(a *app.App, message string) error {
	a.Notifications.Error(message)
	return &api.Error{Kind: api.KindValidation, Message: message}
}

func profileForm(a *app.App, username string) *form {
	fields := []formField{{label: "username", value: username}}
	return newForm("Edit profile", screenChat, fields, func(ctx context.Context, v []string) error {
		return a.UpdateProfile(ctx, domain.UpdateProfileRequest{
			Username: v[0],
			Theme:    string(a.Theme.Current()),
		})
	})
}

func passwordForm(a *app.App) *form {
	fields := []formField{
		{label: "current password", secret: true},
		{label: "new password", secret: true},
		{label: "confirm", secret: true},
	}
	return newForm("Change password", screenChat, fields, func(ctx context.Context, v []string) error {
		if v[1] != v[2] {
			return invalid(a, "passwords do not match")
		}
		return a.ChangePassword(ctx, v[0], v[1])
	})
}

func createUserForm(a *app.App, licenseDays int) *form {
	fields := []formField{
		{label: "username"},
		{label: "email"},
		{label: "password", secret: true},
		{label: "license days", value: strconv.Itoa(licenseDays), placeholder: "blank for no expiry"},
		{label: "admin", value: "n", placeholder: "y/n"},
		{label: "active", value: "y", placeholder: "y/n"},
	}
	return newForm("New user", screenUsers, fields, func(ctx context.Context, v []string) error {
		expires, err := parseLicenseDays(v[3], time.Now())
		if err != nil {
			return invalid(a, err.Error())
		}
		isAdmin, err := parseYesNo(v[4])
		if err != nil {
			return invalid(a, "admin: "+err.Error())
		}
		isActive, err := parseYesNo(v[5])
		if err != nil {
			return invalid(a, "active: "+err.Error())
		}
		return a.Admin.CreateUser(ctx, domain.CreateUserRequest{
			Username:         v[0],
			Email:            v[1],
			Password:         v[2],
			LicenseExpiresAt: expires,
			IsAdmin:          isAdmin,
			IsActive:         isActive,
		})
	})
}

func editUserForm(a *app.App, u domain.ManagedUser) *form {
	current := "no expiry"
	if u.LicenseExpiresAt != nil {
		current = u.LicenseExpiresAt.Format("2006-01-02")
	}
	fields := []formField{
		{label: "username", value: u.Username},
		{label: "email", value: u.Email},
		{label: "license days", placeholder: "unchanged (" + current + ")"},
		{label: "admin", value: yesNo(u.IsAdmin), placeholder: "y/n"},
		{label: "active", value: yesNo(u.IsActive), placeholder: "y/n"},
	}
	return newForm("Edit "+u.Username, screenUsers, fields, func(ctx context.Context, v []string) error {
		expires, err := parseLicenseDays(v[2], time.Now())
		if err != nil {
			return invalid(a, err.Error())
		}
		isAdmin, err := parseYesNo(v[3])
		if err != nil {
			return invalid(a, "admin: "+err.Error())
		}
		isActive, err := parseYesNo(v[4])
		if err != nil {
			return invalid(a, "active: "+err.Error())
		}

		input := domain.UpdateUserRequest{LicenseExpiresAt: expires}
		if v[0] != u.Username {
			input.Username = &v[0]
		}
		if v[1] != u.Email {
			input.Email = &v[1]
		}
		if isAdmin != u.IsAdmin {
			input.IsAdmin = &isAdmin
		}
		if isActive != u.IsActive {
			input.IsActive = &isActive
		}
		return a.Admin.UpdateUser(ctx, u.ID, input)
	})
}

func licenseForm(a *app.App, days int) *form {
	fields := []formField{{label: "days", value: strconv.Itoa(days)}}
	return newForm("Default license duration", screenSettings, fields, func(ctx context.Context, v []string) error {
		days, err := strconv.Atoi(v[0])
		if err != nil {
			return invalid(a, "license duration must be a number of days")
		}
		return a.Settings.SaveLicenseDuration(ctx, days)
	})
}

func botNameForm(a *app.App, name string) *form {
	fields := []formField{{label: "bot name", value: name}}
	return newForm("Default bot name", screenSettings, fields, func(ctx context.Context, v []string) error {
		return a.Settings.SaveBotName(ctx, v[0])
	})
}

// parseLicenseDays turns a day count into an expiry. Blank means none.
func parseLicenseDays(s string, now time.Time) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	days, err := strconv.Atoi(s)
	if err != nil || days < 1 {
		return nil, errors.New("license days must be a positive number")
	}
	expires := now.AddDate(0, 0, days)
	return &expires, nil
}

func parseYesNo(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "y", "yes", "true", "1":
		return true, nil
	case "n", "no", "false", "0":
		return false, nil
	}
	return false, errors.New("answer y or n")
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}
