package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/desertthunder/igloo/internal/app"
	"github.com/desertthunder/igloo/internal/auth"
	"github.com/desertthunder/igloo/internal/formatter"
	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/player"
	"github.com/desertthunder/igloo/internal/query"
	"github.com/desertthunder/igloo/internal/repositories"
	"github.com/desertthunder/igloo/internal/router"
	"github.com/desertthunder/igloo/internal/services"
	"github.com/desertthunder/igloo/internal/shared"
	"github.com/desertthunder/igloo/internal/views"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// tab is a top-level location reachable with a number key.
type tab struct {
	binding key.Binding
	label   string
	href    string
	admin   bool
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	provider *app.Provider
	width    int
	height   int

	// href is the location on screen; loading is the one being resolved, empty when idle.
	href    string
	loading string
	match   *router.Match
	// err is a loader failure rendered in place of the view.
	err error
	// navErr is a navigation that resolved no route at all.
	navErr error
	// playErr keeps the player error screen up until the user goes back.
	playErr error

	list     list.Model
	form     *huh.Form
	creds    models.Credentials
	settings models.Settings
	user     models.UserInput
	editing  int

	authenticated bool
	signingOut    bool
	refresh       auth.State
	sessions      <-chan auth.Snapshot
	states        <-chan auth.State
	unsubscribe   []func()

	spinner spinner.Model
	help    help.Model
	keys    keyMap
	tabs    []tab
}

// NewModel creates a TUI over p. The provider should already be booted.
func NewModel(ctx context.Context, p *app.Provider) *Model {
	keys := newKeyMap()
	m := &Model{
		ctx:      ctx,
		provider: p,
		width:    defaultWidth,
		height:   defaultHeight,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.logo)),
		help:     help.New(),
		keys:     keys,
		refresh:  p.Refresher.State(),
		tabs: []tab{
			{keys.home, "Home", "/", false},
			{keys.movies, "Movies", "/movies", false},
			{keys.history, "History", "/history", false},
			{keys.profile, "Profile", "/profile", false},
			{keys.settings, "Settings", "/settings", true},
			{keys.users, "Users", "/users", true},
		},
	}
	m.authenticated = p.Session.Snapshot().IsAuthenticated

	sessions, stopSessions := p.Session.Subscribe()
	states, stopStates := p.Refresher.Subscribe()
	m.sessions, m.states = sessions, states
	m.unsubscribe = []func(){stopSessions, stopStates}
	return m
}

// Close stops the session subscriptions.
func (m *Model) Close() {
	for _, stop := range m.unsubscribe {
		stop()
	}
	m.unsubscribe = nil
}

// Init opens the last visited location and starts listening for session changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.navigate(m.provider.LastLocation(m.ctx)),
		m.waitForSession(),
		m.waitForRefresh(),
	)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.isList() {
			m.list.SetSize(m.listSize())
		}
		if m.form != nil {
			m.form = m.form.WithWidth(min(formWidth, msg.Width-4))
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if m.loading == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateActive(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgNavigated:
		return m, m.handleNavigated(msg.data.(navigated))

	case MsgLoggedIn:
		if err, _ := msg.data.(error); err != nil {
			m.form = m.loginForm()
			return m, tea.Batch(m.showBanner(m.provider.Banners.Error(err)), m.form.Init())
		}
		return m, m.navigate(router.AfterLogin(m.match))

	case MsgSubmitted:
		return m, m.handleSubmitted(msg.data.(submitted))

	case MsgPlayerExited:
		exit := msg.data.(playerExited)
		if exit.err != nil {
			m.playErr = exit.err
			return m, m.showBanner(m.provider.Banners.Error(exit.err))
		}
		m.provider.Queries.Invalidate(app.MovieKey(exit.movieID))
		return m, m.navigate(fmt.Sprintf("/movies/%d", exit.movieID))

	case MsgSessionChanged:
		snap := msg.data.(auth.Snapshot)
		was := m.authenticated
		m.authenticated = snap.IsAuthenticated
		cmds := []tea.Cmd{m.waitForSession()}
		if was && !snap.IsAuthenticated && !m.signingOut && m.match.Name() != app.RouteLogin {
			cmds = append(cmds, m.showBanner(m.provider.Banners.Show(views.BannerInfo, "Your session ended. Please sign in again.")))
			cmds = append(cmds, m.navigate(m.href))
		}
		return m, tea.Batch(cmds...)

	case MsgRefreshState:
		m.refresh = msg.data.(auth.State)
		return m, m.waitForRefresh()

	case MsgBannerExpired:
		m.provider.Banners.Dismiss(msg.data.(int))
		return m, nil
	}
	return m, nil
}

func (m *Model) handleNavigated(n navigated) tea.Cmd {
	if n.href != m.loading {
		return nil
	}
	m.loading = ""
	m.form = nil
	m.playErr = nil

	if n.err != nil {
		m.navErr = n.err
		m.match = nil
		m.err = nil
		m.href = n.href
		return nil
	}

	nav := n.nav
	m.navErr = nil
	m.match = nav.Match
	m.href = nav.Href
	m.err = nav.Err

	var cmds []tea.Cmd
	if nav.Cause != nil && !errors.Is(nav.Cause, shared.ErrNotAuthenticated) {
		cmds = append(cmds, m.showBanner(m.provider.Banners.Error(nav.Cause)))
	}
	if m.match.Name() != app.RouteLogin {
		m.provider.SaveLocation(m.ctx, m.href)
	}
	if m.err == nil {
		cmds = append(cmds, m.enter())
	}
	return tea.Batch(cmds...)
}

// enter builds the screen for the current match.
func (m *Model) enter() tea.Cmd {
	data := m.match.Data

	switch m.match.Name() {
	case app.RouteLogin:
		m.form = m.loginForm()
		return m.form.Init()

	case app.RouteHome:
		page, _ := data.(app.HomePage)
		seen := make(map[int]bool, len(page.NowPlaying))
		movies := append([]models.Movie(nil), page.NowPlaying...)
		for _, mv := range page.NowPlaying {
			seen[mv.ID] = true
		}
		for _, mv := range page.Latest {
			if !seen[mv.ID] {
				movies = append(movies, mv)
			}
		}
		m.setList("Continue watching & recently added", movieItems(movies))

	case app.RouteMovies:
		movies, _ := data.([]models.Movie)
		m.setList("Movies", movieItems(movies))

	case app.RouteHistory:
		entries, _ := data.([]repositories.HistoryEntry)
		m.setList("Recently played", historyItems(entries))

	case app.RouteUsers:
		users, _ := data.([]models.User)
		m.setList("Users", userItems(users))

	case app.RouteSettings:
		if s, ok := data.(*models.Settings); ok {
			m.form = m.settingsForm(*s)
			return m.form.Init()
		}

	case app.RouteUserNew:
		m.form = m.userForm(models.UserInput{IsActive: true}, true)
		return m.form.Init()

	case app.RouteUserDetail:
		if u, ok := data.(*models.User); ok {
			m.editing = u.ID
			m.form = m.userForm(models.InputFromUser(*u), false)
			return m.form.Init()
		}

	case app.RoutePlay:
		if target, ok := data.(app.PlayTarget); ok {
			return m.play(target)
		}
	}
	return nil
}

// play hands the terminal to the external player and reports back when it exits.
func (m *Model) play(target app.PlayTarget) tea.Cmd {
	id := target.Movie.ID
	cmd, err := m.provider.Player.Command(m.ctx, target.URL)
	if err != nil {
		return func() tea.Msg { return playerExitedMsg(id, err) }
	}
	m.provider.RecordPlay(m.ctx, target.Movie)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return playerExitedMsg(id, player.Failed(err))
	})
}

func (m *Model) handleSubmitted(s submitted) tea.Cmd {
	m.signingOut = false
	if s.err != nil {
		if errors.Is(s.err, shared.ErrNotAuthenticated) {
			return m.navigate(m.href)
		}
		switch m.match.Name() {
		case app.RouteSettings:
			m.form = m.settingsForm(m.settings)
		case app.RouteUserNew:
			m.form = m.userForm(m.user, true)
		case app.RouteUserDetail:
			m.form = m.userForm(m.user, false)
		}
		b := m.provider.Banners.Show(views.BannerError, services.ErrorMessage(s.err))
		if m.form != nil {
			return tea.Batch(m.showBanner(b), m.form.Init())
		}
		return m.showBanner(b)
	}

	var cmds []tea.Cmd
	if s.success != "" {
		cmds = append(cmds, m.showBanner(m.provider.Banners.Success(s.success)))
	}
	next := s.next
	if next == "" {
		next = m.href
	}
	cmds = append(cmds, m.navigate(next))
	return tea.Batch(cmds...)
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.form != nil {
		if key.Matches(msg, m.keys.back) && m.match.Name() != app.RouteLogin {
			return m, m.back()
		}
		return m.updateForm(msg)
	}

	filtering := m.isList() && m.list.FilterState() == list.Filtering
	if filtering {
		return m.updateActive(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		return m, m.back()
	case key.Matches(msg, m.keys.reload):
		m.provider.Queries.Invalidate(query.Key{})
		return m, m.navigate(m.href)
	case key.Matches(msg, m.keys.logout) && m.authenticated:
		return m, m.logout()
	}

	if m.authenticated {
		for _, t := range m.tabs {
			if key.Matches(msg, t.binding) && (!t.admin || m.isAdmin()) {
				return m, m.navigate(t.href)
			}
		}
	}

	switch m.match.Name() {
	case app.RouteMovie:
		if key.Matches(msg, m.keys.play) {
			return m, m.navigate(strings.TrimSuffix(m.href, "/") + "/play")
		}
	case app.RouteUsers:
		if key.Matches(msg, m.keys.create) {
			return m, m.navigate("/users/new")
		}
	}

	if m.isList() && key.Matches(msg, m.keys.enter) {
		if item, ok := m.list.SelectedItem().(linkItem); ok {
			return m, m.navigate(item.href())
		}
	}

	return m.updateActive(msg)
}

func (m *Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.submit()
	case huh.StateAborted:
		return m, m.back()
	}
	return m, cmd
}

func (m *Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.form != nil {
		return m.updateForm(msg)
	}
	if m.isList() {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

// back goes to the parent of the current location.
func (m *Model) back() tea.Cmd {
	m.form = nil
	switch m.match.Name() {
	case app.RouteMovie:
		return m.navigate("/movies")
	case app.RoutePlay:
		return m.navigate(strings.TrimSuffix(m.href, "/play"))
	case app.RouteUserNew, app.RouteUserDetail:
		return m.navigate("/users")
	case app.RouteHome, app.RouteLogin:
		return nil
	}
	return m.navigate("/")
}

func (m *Model) logout() tea.Cmd {
	m.signingOut = true
	ctx, p := m.ctx, m.provider
	return func() tea.Msg {
		err := p.Logout(ctx)
		return submittedMsg(router.LoginPath, "Signed out", err)
	}
}

// navigate starts resolving href. Results for superseded navigations are dropped.
func (m *Model) navigate(href string) tea.Cmd {
	m.loading = href
	return tea.Batch(m.spinner.Tick, m.load(href))
}

func (m *Model) load(href string) tea.Cmd {
	ctx, p := m.ctx, m.provider
	return func() tea.Msg {
		nav, err := p.Navigate(ctx, href)
		return navigatedMsg(href, nav, err)
	}
}

func (m *Model) waitForSession() tea.Cmd {
	ch := m.sessions
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return sessionChangedMsg(snap)
	}
}

func (m *Model) waitForRefresh() tea.Cmd {
	ch := m.states
	return func() tea.Msg {
		state, ok := <-ch
		if !ok {
			return nil
		}
		return refreshStateMsg(state)
	}
}

func (m *Model) showBanner(b views.Banner) tea.Cmd {
	return tea.Tick(m.provider.Banners.Timeout(), func(time.Time) tea.Msg {
		return bannerExpiredMsg(b.ID)
	})
}

func (m *Model) setList(title string, items []list.Item) {
	w, h := m.listSize()
	m.list = list.New(items, list.NewDefaultDelegate(), w, h)
	m.list.Title = title
	m.list.SetShowHelp(false)
}

func (m *Model) listSize() (int, int) {
	return max(m.width-4, 20), max(m.height-8, 5)
}

func (m *Model) isList() bool {
	switch m.match.Name() {
	case app.RouteHome, app.RouteMovies, app.RouteHistory, app.RouteUsers:
		return m.err == nil
	}
	return false
}

func (m *Model) isAdmin() bool {
	snap := m.provider.Session.Snapshot()
	return snap.User != nil && snap.User.IsAdmin
}

// View renders the UI based on the current location.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if banner, ok := m.provider.Banners.Current(); ok {
		b.WriteString(styles.banner(banner.Kind).Render(banner.Text))
		b.WriteString("\n")
	}
	if m.loading != "" {
		b.WriteString(m.spinner.View() + " Loading…\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderBody())
	b.WriteString("\n\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m *Model) renderHeader() string {
	if !m.authenticated {
		return styles.title.Render("Igloo")
	}

	parts := make([]string, 0, len(m.tabs)+1)
	for _, t := range m.tabs {
		if t.admin && !m.isAdmin() {
			continue
		}
		label := fmt.Sprintf("%s %s", t.binding.Help().Key, t.label)
		if m.activeTab() == t.href {
			parts = append(parts, styles.active.Render(label))
		} else {
			parts = append(parts, styles.tab.Render(label))
		}
	}

	status := ""
	if snap := m.provider.Session.Snapshot(); snap.User != nil {
		status = snap.User.DisplayName()
	}
	if m.refresh == auth.StateRefreshing {
		status += " (refreshing)"
	}
	return strings.Join(parts, "") + "  " + styles.help.Render(status)
}

func (m *Model) activeTab() string {
	switch m.match.Name() {
	case app.RouteMovies, app.RouteMovie, app.RoutePlay:
		return "/movies"
	case app.RouteUsers, app.RouteUserNew, app.RouteUserDetail:
		return "/users"
	case app.RouteHistory:
		return "/history"
	case app.RouteProfile:
		return "/profile"
	case app.RouteSettings:
		return "/settings"
	case app.RouteHome:
		return "/"
	}
	return ""
}

func (m *Model) renderBody() string {
	if m.navErr != nil {
		return styles.err.Render("Error: "+services.ErrorMessage(m.navErr)) + "\n\nPress esc to go home"
	}
	if m.match == nil {
		return ""
	}
	if m.playErr != nil {
		return styles.err.Render("Playback failed") + "\n\n" + services.ErrorMessage(m.playErr) + "\n\nPress esc to go back"
	}
	if m.err != nil {
		state := views.Failure[any](m.err)
		return styles.err.Render("Error: "+state.Message()) + "\n\nPress r to retry"
	}

	switch m.match.Name() {
	case app.RouteLogin:
		return styles.logo.Render(shared.Banner("igloo")) + "\n" + m.form.View()
	case app.RouteHome:
		if page, ok := m.match.Data.(app.HomePage); ok && len(page.NowPlaying) == 0 && len(page.Latest) == 0 {
			return styles.help.Render(views.EmptyHome)
		}
	case app.RouteMovies:
		if views.IsEmpty(views.FromAny[[]models.Movie](m.match.Data, nil)) {
			return styles.help.Render(views.EmptyLibrary)
		}
	case app.RouteHistory:
		if views.IsEmpty(views.FromAny[[]repositories.HistoryEntry](m.match.Data, nil)) {
			return styles.help.Render(views.EmptyHistory)
		}
	case app.RouteUsers:
		if views.IsEmpty(views.FromAny[[]models.User](m.match.Data, nil)) {
			return styles.help.Render(views.EmptyUsers)
		}
	case app.RouteMovie:
		return m.renderMovie()
	case app.RoutePlay:
		return m.renderPlay()
	case app.RouteProfile:
		return m.renderProfile()
	case app.RouteUserDetail, app.RouteUserNew, app.RouteSettings:
		if m.form != nil {
			return styles.title.Render(m.formTitle()) + "\n" + m.form.View()
		}
	}

	if m.isList() {
		return m.list.View()
	}
	return ""
}

func (m *Model) formTitle() string {
	switch m.match.Name() {
	case app.RouteSettings:
		return "Server settings"
	case app.RouteUserNew:
		return "New user"
	default:
		return fmt.Sprintf("Edit %s", m.user.Username)
	}
}

func (m *Model) renderMovie() string {
	state := views.FromAny[*models.Movie](m.match.Data, nil)
	if !state.IsSuccess() {
		return m.spinner.View()
	}
	mv := state.Data

	var b strings.Builder
	b.WriteString(styles.title.Render(mv.Label()))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Runtime   %s\n", formatter.FormatRuntime(mv.Runtime))
	if len(mv.Genres) > 0 {
		fmt.Fprintf(&b, "Genres    %s\n", strings.Join(mv.Genres, ", "))
	}
	if mv.Rating > 0 {
		fmt.Fprintf(&b, "Rating    %.1f\n", mv.Rating)
	}
	fmt.Fprintf(&b, "Added     %s\n", formatter.FormatAge(mv.AddedAt))
	if progress := formatter.FormatProgress(*mv); progress != "" {
		fmt.Fprintf(&b, "Progress  %s\n", styles.ok.Render(progress))
	}
	if mv.Overview != "" {
		b.WriteString("\n" + mv.Overview + "\n")
	}
	return b.String()
}

func (m *Model) renderPlay() string {
	state := views.FromAny[app.PlayTarget](m.match.Data, nil)
	if !state.IsSuccess() {
		return ""
	}
	return fmt.Sprintf("Playing %s\n%s", state.Data.Movie.Label(), styles.help.Render(state.Data.URL))
}

func (m *Model) renderProfile() string {
	state := views.FromAny[*models.User](m.match.Data, nil)
	if !state.IsSuccess() || state.Data == nil {
		return ""
	}
	u := state.Data
	return fmt.Sprintf("%s\n@%s\n%s\nRole: %s",
		styles.title.Render(u.DisplayName()), u.Username, u.Email, u.Role())
}

func (m *Model) renderHelp() string {
	if m.form != nil {
		return m.help.ShortHelpView([]key.Binding{m.keys.back})
	}

	bindings := []key.Binding{}
	if m.isList() {
		bindings = append(bindings, m.keys.up, m.keys.down, m.keys.enter)
	}
	switch m.match.Name() {
	case app.RouteMovie:
		bindings = append(bindings, m.keys.play)
	case app.RouteUsers:
		bindings = append(bindings, m.keys.create)
	}
	bindings = append(bindings, m.keys.reload)
	if m.authenticated {
		bindings = append(bindings, m.keys.logout)
	}
	bindings = append(bindings, m.keys.back, m.keys.quit)
	return m.help.ShortHelpView(bindings)
}

// Location returns the location on screen.
func (m *Model) Location() string { return m.href }
