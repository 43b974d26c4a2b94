package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/igloo/internal/app"
	"github.com/desertthunder/igloo/internal/auth"
	"github.com/desertthunder/igloo/internal/formatter"
	"github.com/desertthunder/igloo/internal/router"
	"github.com/desertthunder/igloo/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	tokens     auth.TokenStore
	logger     *log.Logger
	output     io.Writer
	provider   *app.Provider
	db         *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	// Tokens overrides where the refresh token is kept. It defaults to the state database.
	Tokens auth.TokenStore
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		tokens:     opts.Tokens,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the logger. It must be called before the provider is built.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the state database.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.provider = nil
	return err
}

// root builds the top-level igloo command.
func (r *Runner) root() *cli.Command {
	return &cli.Command{
		Name:    "igloo",
		Usage:   "Browse and play an Igloo media library from the terminal",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error); defaults to log.level from the config",
			},
		},
		Writer:   r.output,
		Before:   r.configure,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, moviesCommand, playCommand, historyCommand, exportCommand,
		usersCommand, settingsCommand, apiCommand, tuiCommand, webCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configure loads the config file named by --config when it exists and applies the log level.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	level := cmd.String("log-level")
	if level == "" {
		level = r.config.Log.Level
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))
	return ctx, nil
}

// app returns the booted provider, building it on first use.
func (r *Runner) app(ctx context.Context) (*app.Provider, error) {
	if r.provider != nil {
		return r.provider, nil
	}

	if r.db == nil {
		db, err := shared.OpenStateDatabase(r.config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open state database (run `igloo setup` first?): %w", err)
		}
		r.db = db
	}

	p, err := app.New(app.Options{
		Config:     r.config,
		Logger:     r.logger,
		HTTPClient: r.httpClient,
		Tokens:     r.tokens,
		DB:         r.db,
	})
	if err != nil {
		return nil, err
	}

	state := p.Boot(ctx)
	if err := p.Refresher.Err(); err != nil && state == auth.StateUnauthenticated {
		r.logger.Debug("stored session could not be restored", "err", err)
	}
	r.provider = p
	return p, nil
}

// visit navigates to href and returns the loaded match. Guards that redirect become errors:
// a login redirect means the session is missing, any other redirect means access was denied.
func (r *Runner) visit(ctx context.Context, href string) (*router.Match, error) {
	p, err := r.app(ctx)
	if err != nil {
		return nil, err
	}

	nav, err := p.Navigate(ctx, href)
	if err != nil {
		return nil, err
	}
	if nav.Redirected {
		if nav.Match.Name() == app.RouteLogin {
			return nil, fmt.Errorf("%w: run `igloo auth login` first", shared.ErrNotAuthenticated)
		}
		return nil, fmt.Errorf("%w: %s requires an administrator", shared.ErrForbidden, href)
	}
	if nav.Err != nil {
		return nil, nav.Err
	}
	return nav.Match, nil
}

// format reads the --format flag.
func (r *Runner) format(cmd *cli.Command) (formatter.Format, error) {
	return formatter.ParseFormat(cmd.String("format"))
}

// export writes rendered data to --output when set, or to the runner's output.
func (r *Runner) export(cmd *cli.Command, data []byte, what string) error {
	path := cmd.String("output")
	if path == "" {
		_, err := r.output.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := formatter.WriteExport(path, data); err != nil {
		return err
	}
	r.logger.Info("exported", "what", what, "path", path)
	return r.writePlain("✓ Wrote %s to %s\n", what, path)
}

// requireArg returns the named positional argument or an error naming it.
func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return "", fmt.Errorf("%w: <%s>", shared.ErrMissingArgument, name)
	}
	return v, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// isUsage reports errors caused by how the command was invoked rather than by the server.
func isUsage(err error) bool {
	return errors.Is(err, shared.ErrMissingArgument) || errors.Is(err, shared.ErrInvalidArgument)
}
