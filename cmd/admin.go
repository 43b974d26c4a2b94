package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/igloo/internal/formatter"
	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/shared"
	"github.com/urfave/cli/v3"
)

// UsersList prints every user.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}

	m, err := r.visit(ctx, "/users")
	if err != nil {
		return err
	}
	users, _ := m.Data.([]models.User)

	data, err := formatter.Users(format, users)
	if err != nil {
		return err
	}
	return r.export(cmd, data, fmt.Sprintf("%d users", len(users)))
}

// UsersGet prints one user.
func (r *Runner) UsersGet(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}

	user, err := r.loadUser(ctx, cmd)
	if err != nil {
		return err
	}

	data, err := formatter.User(format, *user)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// UsersCreate creates a user from flags.
func (r *Runner) UsersCreate(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.visit(ctx, "/users/new"); err != nil {
		return err
	}

	in := models.UserInput{IsActive: true}
	applyUserFlags(cmd, &in)

	p, _ := r.app(ctx)
	user, err := p.CreateUser(ctx, in)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Created user %s (id %d)\n", user.Username, user.ID)
}

// UsersUpdate changes only the fields whose flags were given.
func (r *Runner) UsersUpdate(ctx context.Context, cmd *cli.Command) error {
	user, err := r.loadUser(ctx, cmd)
	if err != nil {
		return err
	}

	in := models.InputFromUser(*user)
	if !applyUserFlags(cmd, &in) {
		return fmt.Errorf("%w: nothing to update", shared.ErrMissingArgument)
	}

	p, _ := r.app(ctx)
	updated, err := p.UpdateUser(ctx, user.ID, in)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Updated user %s\n", updated.Username)
}

func (r *Runner) loadUser(ctx context.Context, cmd *cli.Command) (*models.User, error) {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return nil, err
	}

	m, err := r.visit(ctx, "/users/"+id)
	if err != nil {
		return nil, err
	}
	user, ok := m.Data.(*models.User)
	if !ok {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, id)
	}
	return user, nil
}

// applyUserFlags copies explicitly set flags into in and reports whether any were set.
func applyUserFlags(cmd *cli.Command, in *models.UserInput) bool {
	changed := false
	for name, dst := range map[string]*string{
		"name":     &in.Name,
		"email":    &in.Email,
		"username": &in.Username,
		"password": &in.Password,
	} {
		if cmd.IsSet(name) {
			*dst = cmd.String(name)
			changed = true
		}
	}
	if cmd.IsSet("admin") {
		in.IsAdmin = cmd.Bool("admin")
		changed = true
	}
	if cmd.IsSet("active") {
		in.IsActive = cmd.Bool("active")
		changed = true
	}
	return changed
}

// SettingsGet prints the server settings.
func (r *Runner) SettingsGet(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}

	settings, err := r.loadSettings(ctx)
	if err != nil {
		return err
	}

	data, err := formatter.Settings(format, *settings)
	if err != nil {
		return err
	}
	return r.export(cmd, data, "settings")
}

// SettingsSet applies key=value pairs to the current settings and saves them.
func (r *Runner) SettingsSet(ctx context.Context, cmd *cli.Command) error {
	pairs := cmd.Args().Slice()
	if len(pairs) == 0 {
		return fmt.Errorf("%w: key=value", shared.ErrMissingArgument)
	}

	settings, err := r.loadSettings(ctx)
	if err != nil {
		return err
	}

	next := *settings
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%w: %q is not key=value", shared.ErrInvalidArgument, pair)
		}
		if err := setSetting(&next, key, value); err != nil {
			return err
		}
	}

	p, _ := r.app(ctx)
	if _, err := p.UpdateSettings(ctx, next); err != nil {
		return err
	}
	return r.writePlain("✓ Saved %d %s\n", len(pairs), plural(len(pairs), "setting", "settings"))
}

func (r *Runner) loadSettings(ctx context.Context) (*models.Settings, error) {
	m, err := r.visit(ctx, "/settings")
	if err != nil {
		return nil, err
	}
	settings, ok := m.Data.(*models.Settings)
	if !ok {
		return nil, fmt.Errorf("%w: settings", shared.ErrNotFound)
	}
	return settings, nil
}

// setSetting assigns value to the field whose JSON name is key.
func setSetting(s *models.Settings, key, value string) error {
	fields := map[string]*string{
		"serverName":           &s.ServerName,
		"moviesDir":            &s.MoviesDir,
		"showsDir":             &s.ShowsDir,
		"musicDir":             &s.MusicDir,
		"transcodeDir":         &s.TranscodeDir,
		"hardwareAcceleration": &s.HardwareAcceleration,
		"tmdbApiKey":           &s.TMDBAPIKey,
	}
	dst, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", shared.ErrInvalidArgument, key)
	}
	*dst = value
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
