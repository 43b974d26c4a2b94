package server

import (
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/desertthunder/igloo/internal/app"
	"github.com/desertthunder/igloo/internal/formatter"
	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/shared"
	"github.com/desertthunder/igloo/internal/views"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageNotFound = "notfound"
	pageError    = "error"
)

// pageFiles maps route names to their template file.
var pageFiles = map[string]string{
	app.RouteLogin:      "login.html",
	app.RouteHome:       "home.html",
	app.RouteMovies:     "movies.html",
	app.RouteMovie:      "movie.html",
	app.RoutePlay:       "play.html",
	app.RouteHistory:    "history.html",
	app.RouteProfile:    "profile.html",
	app.RouteSettings:   "settings.html",
	app.RouteUsers:      "users.html",
	app.RouteUserNew:    "user_new.html",
	app.RouteUserDetail: "user.html",
	pageNotFound:        "notfound.html",
	pageError:           "error.html",
}

var funcs = template.FuncMap{
	"runtime":  formatter.FormatRuntime,
	"progress": formatter.FormatProgress,
	"age":      formatter.FormatAge,
	"join":     strings.Join,
	"logo":     func() string { return shared.Banner("igloo") },
	"empty":    emptyMessage,
	"accelerations": func() []string {
		return []string{"none", "vaapi", "nvenc", "qsv", "videotoolbox"}
	},
	"fieldError": func(fields map[string]string, name string) string { return fields[name] },
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageFiles))
	for name, file := range pageFiles {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/user_form.html", "templates/"+file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", file, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// fieldErrors indexes a validation error's messages by field name.
func fieldErrors(err *models.ValidationError) map[string]string {
	if err == nil {
		return nil
	}
	fields := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		fields[f.Field] = f.String()
	}
	return fields
}

// emptyMessage returns the empty-state text for a page section.
func emptyMessage(section string) string {
	switch section {
	case "library":
		return views.EmptyLibrary
	case "latest":
		return views.EmptyLatest
	case "now-playing":
		return views.EmptyNowPlaying
	case "history":
		return views.EmptyHistory
	case "users":
		return views.EmptyUsers
	}
	return ""
}
