package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	enter    key.Binding
	back     key.Binding
	home     key.Binding
	movies   key.Binding
	history  key.Binding
	profile  key.Binding
	settings key.Binding
	users    key.Binding
	play     key.Binding
	create   key.Binding
	edit     key.Binding
	reload   key.Binding
	logout   key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		home:     key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "home")),
		movies:   key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "movies")),
		history:  key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "history")),
		profile:  key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "profile")),
		settings: key.NewBinding(key.WithKeys("5"), key.WithHelp("5", "settings")),
		users:    key.NewBinding(key.WithKeys("6"), key.WithHelp("6", "users")),
		play:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "play")),
		create:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new user")),
		edit:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		logout:   key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log out")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.back, k.logout, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.home, k.movies, k.history, k.profile, k.settings, k.users},
		{k.play, k.create, k.edit, k.reload},
		{k.logout, k.quit},
	}
}
