package ui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/desertthunder/igloo/internal/app"
	"github.com/desertthunder/igloo/internal/models"
)

const formWidth = 60

// accelerations are the hardware transcoding backends the server accepts.
var accelerations = []string{"none", "vaapi", "nvenc", "qsv", "videotoolbox"}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func absolute(s string) error {
	if s != "" && !strings.HasPrefix(s, "/") {
		return errors.New("must be an absolute path")
	}
	return nil
}

func newForm(groups ...*huh.Group) *huh.Form {
	return huh.NewForm(groups...).
		WithTheme(formTheme()).
		WithWidth(formWidth).
		WithShowHelp(true)
}

func (m *Model) loginForm() *huh.Form {
	m.creds = models.Credentials{}
	return newForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&m.creds.Username).
				Validate(required("username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.creds.Password).
				Validate(required("password")),
		).Title("Sign in"),
	)
}

func (m *Model) settingsForm(s models.Settings) *huh.Form {
	if s.HardwareAcceleration == "" {
		s.HardwareAcceleration = "none"
	}
	m.settings = s
	return newForm(
		huh.NewGroup(
			huh.NewInput().Title("Server name").Value(&m.settings.ServerName).Validate(required("server name")),
			huh.NewInput().Title("Movies directory").Value(&m.settings.MoviesDir).Validate(absolute),
			huh.NewInput().Title("Shows directory").Value(&m.settings.ShowsDir).Validate(absolute),
			huh.NewInput().Title("Music directory").Value(&m.settings.MusicDir).Validate(absolute),
			huh.NewInput().Title("Transcode directory").Value(&m.settings.TranscodeDir).Validate(absolute),
		).Title("Library"),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Hardware acceleration").
				Options(huh.NewOptions(accelerations...)...).
				Value(&m.settings.HardwareAcceleration),
			huh.NewInput().
				Title("TMDB API key").
				EchoMode(huh.EchoModePassword).
				Value(&m.settings.TMDBAPIKey),
		).Title("Metadata"),
	)
}

// userForm edits m.user. Creating requires a password; editing keeps the current one when left blank.
func (m *Model) userForm(in models.UserInput, creating bool) *huh.Form {
	m.user = in
	password := huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&m.user.Password)
	if creating {
		password = password.Validate(required("password"))
	} else {
		password = password.Description("Leave blank to keep the current password")
	}

	return newForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&m.user.Name).Validate(required("name")),
			huh.NewInput().Title("Email").Value(&m.user.Email).Validate(required("email")),
			huh.NewInput().Title("Username").Value(&m.user.Username).Validate(required("username")),
			password,
		).Title("Account"),
		huh.NewGroup(
			huh.NewConfirm().Title("Administrator").Value(&m.user.IsAdmin),
			huh.NewConfirm().Title("Active").Value(&m.user.IsActive),
		).Title("Access"),
	)
}

// submit runs the mutation behind the active form.
func (m *Model) submit() tea.Cmd {
	ctx := m.ctx
	p := m.provider

	switch m.match.Name() {
	case app.RouteLogin:
		creds := m.creds
		return func() tea.Msg {
			_, err := p.Login(ctx, creds)
			return loggedInMsg(err)
		}
	case app.RouteSettings:
		s := m.settings
		return func() tea.Msg {
			_, err := p.UpdateSettings(ctx, s)
			return submittedMsg("", "Settings saved", err)
		}
	case app.RouteUserNew:
		in := m.user
		return func() tea.Msg {
			u, err := p.CreateUser(ctx, in)
			if err != nil {
				return submittedMsg("", "", err)
			}
			return submittedMsg(userItem{user: *u}.href(), fmt.Sprintf("Created %s", u.Username), nil)
		}
	case app.RouteUserDetail:
		in, id := m.user, m.editing
		return func() tea.Msg {
			u, err := p.UpdateUser(ctx, id, in)
			if err != nil {
				return submittedMsg("", "", err)
			}
			return submittedMsg(userItem{user: *u}.href(), fmt.Sprintf("Saved %s", u.Username), nil)
		}
	}
	return nil
}
