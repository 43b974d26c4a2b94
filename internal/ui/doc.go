// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI is a frontend over [app.Provider] and renders the same route tree as the web frontend:
//  1. Home, Movies, History and Profile tabs for every signed-in user
//  2. Settings and Users tabs for administrators, edited with huh forms
//  3. A movie detail view that hands the terminal to the external player
//
// Every location change goes through [app.Provider.Navigate], so route guards run before a
// screen is built and a missing session lands on the login form with the original location
// preserved. The (view) [Model] subscribes to the session store and the refresh loop and
// re-navigates when the session ends in the background.
//
// Loading screens show a spinner; banners come from [views.Banners] and are dismissed with a
// tick after the configured timeout. Keyboard navigation uses vim-style bindings with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
