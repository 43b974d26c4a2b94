package ui

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/igloo/internal/views"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF5F87", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title  lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
	tab    lipgloss.Style
	active lipgloss.Style
	logo   lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:  NewBold(t).MarginBottom(1),
		ok:     NewBold(s),
		err:    NewBold(e),
		warn:   NewStyle(w),
		help:   NewEm(h),
		tab:    NewStyle(h).Padding(0, 1),
		active: NewBold("#FFFFFF").Background(lipgloss.Color(t)).Padding(0, 1),
		logo:   NewStyle(t),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// banner picks the style for a banner kind.
func (p *Palette) banner(kind views.BannerKind) lipgloss.Style {
	switch kind {
	case views.BannerSuccess:
		return p.ok
	case views.BannerError:
		return p.err
	default:
		return p.warn
	}
}

// formTheme returns the huh theme used by every form, tinted with the palette's accent.
func formTheme() *huh.Theme {
	t := huh.ThemeBase()

	accent := lipgloss.Color("#7D56F4")
	muted := lipgloss.Color("#626262")
	red := lipgloss.Color("#FF5F87")

	t.Focused.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(accent)
	t.Focused.Title = lipgloss.NewStyle().Foreground(accent).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(muted)
	t.Focused.ErrorIndicator = lipgloss.NewStyle().Foreground(red).SetString(" *")
	t.Focused.ErrorMessage = lipgloss.NewStyle().Foreground(red)
	t.Focused.SelectSelector = lipgloss.NewStyle().Foreground(accent).SetString("> ")
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(accent).Bold(true)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(accent)

	t.Blurred = t.Focused
	t.Blurred.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.HiddenBorder()).
		BorderLeft(true)
	t.Blurred.Title = lipgloss.NewStyle().Foreground(muted)

	return t
}
