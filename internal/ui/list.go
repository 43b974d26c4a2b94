package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/igloo/internal/formatter"
	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/repositories"
	"github.com/dustin/go-humanize"
)

var (
	_ list.Item = movieItem{}
	_ list.Item = userItem{}
	_ list.Item = historyItem{}
)

// linkItem is a list row that opens a location when selected.
type linkItem interface {
	list.Item
	href() string
}

// movieItem wraps [models.Movie] to implement [list.Item].
type movieItem struct {
	movie models.Movie
}

func (i movieItem) FilterValue() string { return i.movie.Title }
func (i movieItem) Title() string       { return i.movie.Label() }
func (i movieItem) href() string        { return fmt.Sprintf("/movies/%d", i.movie.ID) }
func (i movieItem) Description() string {
	parts := []string{formatter.FormatRuntime(i.movie.Runtime)}
	if progress := formatter.FormatProgress(i.movie); progress != "" {
		parts = append(parts, progress)
	}
	if len(i.movie.Genres) > 0 {
		parts = append(parts, strings.Join(i.movie.Genres, ", "))
	}
	return strings.Join(parts, " • ")
}

// userItem wraps [models.User] to implement [list.Item].
type userItem struct {
	user models.User
}

func (i userItem) FilterValue() string { return i.user.Username }
func (i userItem) Title() string       { return i.user.DisplayName() }
func (i userItem) href() string        { return fmt.Sprintf("/users/%d", i.user.ID) }
func (i userItem) Description() string {
	desc := fmt.Sprintf("@%s • %s", i.user.Username, i.user.Role())
	if !i.user.IsActive {
		desc += " • inactive"
	}
	return desc
}

// historyItem wraps [repositories.HistoryEntry] to implement [list.Item].
type historyItem struct {
	entry repositories.HistoryEntry
}

func (i historyItem) FilterValue() string { return i.entry.Title }
func (i historyItem) Title() string       { return i.entry.Title }
func (i historyItem) href() string        { return fmt.Sprintf("/movies/%d", i.entry.MovieID) }
func (i historyItem) Description() string {
	return "played " + humanize.Time(i.entry.StartedAt)
}

func movieItems(movies []models.Movie) []list.Item {
	items := make([]list.Item, len(movies))
	for i, m := range movies {
		items[i] = movieItem{movie: m}
	}
	return items
}

func userItems(users []models.User) []list.Item {
	items := make([]list.Item, len(users))
	for i, u := range users {
		items[i] = userItem{user: u}
	}
	return items
}

func historyItems(entries []repositories.HistoryEntry) []list.Item {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = historyItem{entry: e}
	}
	return items
}
