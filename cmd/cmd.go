// submodule cmd contains command definitions
package main

import (
	"fmt"
	"strings"

	"github.com/desertthunder/igloo/internal/formatter"
	"github.com/urfave/cli/v3"
)

func formatFlags() []cli.Flag {
	names := make([]string, len(formatter.Formats))
	for i, f := range formatter.Formats {
		names[i] = string(f)
	}
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   fmt.Sprintf("Output format (%s)", strings.Join(names, ", ")),
			Value:   string(formatter.FormatText),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to a file instead of stdout",
		},
	}
}

func userFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "Display name"},
		&cli.StringFlag{Name: "email", Usage: "Email address"},
		&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Login name"},
		&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password (at least 8 characters)"},
		&cli.BoolFlag{Name: "admin", Usage: "Grant administrator access"},
		&cli.BoolFlag{Name: "active", Usage: "Allow the user to log in", Value: true},
	}
}

// setupCommand handles first-run setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and initialize the state database",
		Action: r.Setup,
	}
}

// authCommand handles session operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the login session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in and store a refresh token; prompts for missing credentials",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Username"},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password"},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Revoke the refresh token and clear the session",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show whether a session is stored and when it expires",
				Action: r.AuthStatus,
			},
			{
				Name:   "whoami",
				Usage:  "Confirm the session with the server and print the user",
				Flags:  formatFlags()[:1],
				Action: r.AuthWhoAmI,
			},
		},
	}
}

// moviesCommand handles library browsing
func moviesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "movies",
		Aliases: []string{"m"},
		Usage:   "Browse the movie library",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List every movie",
				Flags:  formatFlags(),
				Action: r.MoviesList,
			},
			{
				Name:   "latest",
				Usage:  "List recently added movies",
				Flags:  formatFlags(),
				Action: r.MoviesLatest,
			},
			{
				Name:    "now-playing",
				Aliases: []string{"continue"},
				Usage:   "List movies with playback in progress",
				Flags:   formatFlags(),
				Action:  r.MoviesNowPlaying,
			},
			{
				Name:      "get",
				Usage:     "Show one movie",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     formatFlags(),
				Action:    r.MoviesGet,
			},
		},
	}
}

// playCommand hands a movie stream to the external player
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play a movie with the configured player",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "print", Usage: "Print the stream URL instead of playing"},
			&cli.BoolFlag{Name: "browser", Usage: "Open the stream in the default browser"},
		},
		Action: r.Play,
	}
}

// historyCommand shows local watch history
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show movies played from this machine",
		Flags: append([]cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of entries", Value: 20},
			&cli.BoolFlag{Name: "clear", Usage: "Delete the watch history"},
		}, formatFlags()...),
		Action: r.History,
	}
}

// exportCommand writes the library to disk
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the library, history and profile to a directory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Output directory (default: igloo_export_{epoch})"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format (text, markdown, csv, json)", Value: "json"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Concurrent workers", Value: 4},
			&cli.BoolFlag{Name: "details", Usage: "Also write one file per movie"},
		},
		Action: r.Export,
	}
}

// usersCommand handles user administration
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Administer user accounts (admin only)",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List users",
				Flags:  formatFlags(),
				Action: r.UsersList,
			},
			{
				Name:      "get",
				Usage:     "Show one user",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     formatFlags()[:1],
				Action:    r.UsersGet,
			},
			{
				Name:   "create",
				Usage:  "Create a user",
				Flags:  userFlags(),
				Action: r.UsersCreate,
			},
			{
				Name:      "update",
				Usage:     "Update a user; only the flags given are changed",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     userFlags(),
				Action:    r.UsersUpdate,
			},
		},
	}
}

// settingsCommand handles server settings
func settingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "View and change server settings (admin only)",
		Commands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "Print the server settings",
				Flags:  formatFlags(),
				Action: r.SettingsGet,
			},
			{
				Name:      "set",
				Usage:     "Change settings, e.g. `igloo settings set serverName=den moviesDir=/media/movies`",
				ArgsUsage: "key=value...",
				Action:    r.SettingsSet,
			},
		},
	}
}

// apiCommand handles direct API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls to the Igloo backend",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET with the current session, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive terminal interface",
		Action:  r.TUI,
	}
}

// webCommand serves the local web frontend.
func webCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the web frontend on localhost",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address; defaults to web.host:web.port from the config"},
			&cli.BoolFlag{Name: "open", Usage: "Open the frontend in the default browser"},
		},
		Action: r.Web,
	}
}
