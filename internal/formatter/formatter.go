// package formatter renders library, user and history listings as text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/repositories"
	"github.com/desertthunder/igloo/internal/shared"
	"github.com/desertthunder/igloo/internal/views"
	"github.com/dustin/go-humanize"
)

// Format is an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatMarkdown, FormatCSV, FormatJSON}

// ParseFormat accepts a format name or a common alias ("md", "txt").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// FormatRuntime renders minutes as "2h 50m".
func FormatRuntime(minutes int) string {
	if minutes <= 0 {
		return "-"
	}
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// FormatProgress renders how much of a movie was watched, e.g. "26%", or "" if unwatched.
func FormatProgress(m models.Movie) string {
	w := m.Watched()
	switch {
	case w == 0:
		return ""
	case w >= 1:
		return "watched"
	}
	return strconv.Itoa(int(w*100)) + "%"
}

// FormatAge renders a timestamp relative to now, e.g. "3 days ago".
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// Movies renders a movie listing in format.
func Movies(format Format, title string, movies []models.Movie) ([]byte, error) {
	switch format {
	case FormatCSV:
		return MoviesToCSV(movies)
	case FormatMarkdown:
		return MoviesToMarkdown(title, movies), nil
	case FormatJSON:
		return toJSON(movies)
	}
	return MoviesToText(title, movies), nil
}

// MoviesToCSV writes columns ID, Title, Year, Runtime, Genres, Rating, Added, Progress.
func MoviesToCSV(movies []models.Movie) ([]byte, error) {
	records := [][]string{{"ID", "Title", "Year", "Runtime", "Genres", "Rating", "Added", "Progress"}}
	for _, m := range movies {
		records = append(records, []string{
			strconv.Itoa(m.ID),
			m.Title,
			yearString(m.Year),
			strconv.Itoa(m.Runtime),
			strings.Join(m.Genres, ";"),
			strconv.FormatFloat(m.Rating, 'f', -1, 64),
			m.AddedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(m.Progress),
		})
	}
	return writeCSV(records)
}

// MoviesToMarkdown renders a heading and a numbered list.
func MoviesToMarkdown(title string, movies []models.Movie) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Movies**: %s\n\n", humanize.Comma(int64(len(movies))))

	for i, m := range movies {
		fmt.Fprintf(&buf, "%d. **%s** [%s]", i+1, m.Label(), FormatRuntime(m.Runtime))
		if len(m.Genres) > 0 {
			fmt.Fprintf(&buf, " _%s_", strings.Join(m.Genres, ", "))
		}
		if p := FormatProgress(m); p != "" {
			fmt.Fprintf(&buf, " (%s)", p)
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// MoviesToText renders one line per movie.
func MoviesToText(title string, movies []models.Movie) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s: %d\n\n", title, len(movies))
	if len(movies) == 0 {
		buf.WriteString("No movies.\n")
		return buf.Bytes()
	}

	for _, m := range movies {
		fmt.Fprintf(&buf, "%4d  %-40s %8s  added %s", m.ID, m.Label(), FormatRuntime(m.Runtime), FormatAge(m.AddedAt))
		if p := FormatProgress(m); p != "" {
			fmt.Fprintf(&buf, "  %s", p)
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// Movie renders a single movie's details.
func Movie(format Format, m models.Movie) ([]byte, error) {
	switch format {
	case FormatCSV:
		return MoviesToCSV([]models.Movie{m})
	case FormatJSON:
		return toJSON(m)
	}

	var buf bytes.Buffer
	if format == FormatMarkdown {
		fmt.Fprintf(&buf, "# %s\n\n", m.Label())
	} else {
		fmt.Fprintf(&buf, "%s\n\n", m.Label())
	}
	fmt.Fprintf(&buf, "Runtime: %s\n", FormatRuntime(m.Runtime))
	if len(m.Genres) > 0 {
		fmt.Fprintf(&buf, "Genres: %s\n", strings.Join(m.Genres, ", "))
	}
	if m.Rating > 0 {
		fmt.Fprintf(&buf, "Rating: %.1f\n", m.Rating)
	}
	fmt.Fprintf(&buf, "Added: %s\n", FormatAge(m.AddedAt))
	if p := FormatProgress(m); p != "" {
		fmt.Fprintf(&buf, "Progress: %s\n", p)
	}
	if m.Overview != "" {
		fmt.Fprintf(&buf, "\n%s\n", m.Overview)
	}
	return buf.Bytes(), nil
}

// Users renders a user listing in format.
func Users(format Format, users []models.User) ([]byte, error) {
	switch format {
	case FormatCSV:
		records := [][]string{{"ID", "Username", "Name", "Email", "Role", "Active"}}
		for _, u := range users {
			records = append(records, []string{
				strconv.Itoa(u.ID), u.Username, u.Name, u.Email, u.Role(), strconv.FormatBool(u.IsActive),
			})
		}
		return writeCSV(records)
	case FormatJSON:
		return toJSON(users)
	}

	var buf bytes.Buffer
	if format == FormatMarkdown {
		buf.WriteString("# Users\n\n")
		for _, u := range users {
			fmt.Fprintf(&buf, "- **%s** (@%s) %s%s\n", u.DisplayName(), u.Username, u.Role(), inactive(u))
		}
		return buf.Bytes(), nil
	}

	for _, u := range users {
		fmt.Fprintf(&buf, "%4d  %-20s %-30s %s%s\n", u.ID, u.Username, u.Email, u.Role(), inactive(u))
	}
	return buf.Bytes(), nil
}

// User renders a single user's details.
func User(format Format, u models.User) ([]byte, error) {
	switch format {
	case FormatCSV:
		return Users(format, []models.User{u})
	case FormatJSON:
		return toJSON(u)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Name: %s\n", u.DisplayName())
	fmt.Fprintf(&buf, "Username: %s\n", u.Username)
	fmt.Fprintf(&buf, "Email: %s\n", u.Email)
	fmt.Fprintf(&buf, "Role: %s\n", u.Role())
	fmt.Fprintf(&buf, "Active: %t\n", u.IsActive)
	return buf.Bytes(), nil
}

// History renders watch history in format.
func History(format Format, entries []repositories.HistoryEntry) ([]byte, error) {
	switch format {
	case FormatCSV:
		records := [][]string{{"MovieID", "Title", "StartedAt"}}
		for _, e := range entries {
			records = append(records, []string{
				strconv.Itoa(e.MovieID), e.Title, e.StartedAt.UTC().Format(time.RFC3339),
			})
		}
		return writeCSV(records)
	case FormatJSON:
		return toJSON(entries)
	}

	var buf bytes.Buffer
	if len(entries) == 0 {
		buf.WriteString(views.EmptyHistory + "\n")
		return buf.Bytes(), nil
	}
	if format == FormatMarkdown {
		buf.WriteString("# History\n\n")
	}
	for i, e := range entries {
		fmt.Fprintf(&buf, "%d. %s (%s)\n", i+1, e.Title, FormatAge(e.StartedAt))
	}
	return buf.Bytes(), nil
}

// Settings renders server settings as "key: value" lines, or JSON.
func Settings(format Format, s models.Settings) ([]byte, error) {
	if format == FormatJSON {
		return toJSON(s)
	}

	rows := [][2]string{
		{"serverName", s.ServerName},
		{"moviesDir", s.MoviesDir},
		{"showsDir", s.ShowsDir},
		{"musicDir", s.MusicDir},
		{"transcodeDir", s.TranscodeDir},
		{"hardwareAcceleration", s.HardwareAcceleration},
		{"tmdbApiKey", maskSecret(s.TMDBAPIKey)},
	}

	if format == FormatCSV {
		records := [][]string{{"Key", "Value"}}
		for _, r := range rows {
			records = append(records, []string{r[0], r[1]})
		}
		return writeCSV(records)
	}

	var buf bytes.Buffer
	for _, r := range rows {
		fmt.Fprintf(&buf, "%-22s %s\n", r[0]+":", r[1])
	}
	return buf.Bytes(), nil
}

// WriteExport writes data to path. It does nothing when path is empty.
func WriteExport(path string, data []byte) error {
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeCSV(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func toJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

func yearString(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}

func inactive(u models.User) string {
	if u.IsActive {
		return ""
	}
	return " (inactive)"
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
