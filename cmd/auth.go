package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/desertthunder/igloo/internal/formatter"
	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/repositories"
	"github.com/desertthunder/igloo/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// AuthLogin logs in with --username/--password, prompting for whichever is missing.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	creds := models.Credentials{
		Username: cmd.String("username"),
		Password: cmd.String("password"),
	}

	if creds.Username == "" || creds.Password == "" {
		if err := promptCredentials(ctx, &creds); err != nil {
			return err
		}
	}

	p, err := r.app(ctx)
	if err != nil {
		return err
	}

	user, err := p.Login(ctx, creds)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	r.logger.Info("logged in", "user", user.Username)
	return r.writePlain("✓ Logged in as %s (%s)\n", user.DisplayName(), user.Role())
}

func promptCredentials(ctx context.Context, creds *models.Credentials) error {
	required := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("required")
		}
		return nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Username").Value(&creds.Username).Validate(required),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&creds.Password).Validate(required),
		).Title("Sign in to Igloo"),
	).WithTheme(huh.ThemeBase())

	if err := form.RunWithContext(ctx); err != nil {
		return fmt.Errorf("login canceled: %w", err)
	}
	return nil
}

// AuthLogout revokes the stored refresh token and clears the session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	p, err := r.app(ctx)
	if err != nil {
		return err
	}

	if !p.Session.Snapshot().IsAuthenticated {
		return r.writePlain("Not logged in\n")
	}

	if err := p.Logout(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

// AuthStatus reports the restored session without asking the server who the user is.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	p, err := r.app(ctx)
	if err != nil {
		return err
	}

	snap := p.Session.Snapshot()
	r.writePlainHeader("Igloo session")
	r.writePlain("Server: %s\n", r.config.Server.URL)

	if !snap.IsAuthenticated || snap.User == nil {
		r.writePlain("Authentication: ✗ Not logged in\n")
		if err := p.Refresher.Err(); err != nil {
			r.writePlain("Last refresh: %s\n", describe(err))
		}
		return nil
	}

	r.writePlain("Authentication: ✓ %s (@%s, %s)\n", snap.User.DisplayName(), snap.User.Username, snap.User.Role())
	if !snap.ExpiresAt.IsZero() {
		r.writePlain("Access token expires: %s\n", humanize.Time(snap.ExpiresAt))
	}
	if p.State != nil {
		if at, err := p.State.UpdatedAt(ctx, repositories.RefreshTokenKey); err == nil && !at.IsZero() {
			r.writePlain("Refresh token stored: %s\n", humanize.Time(at))
		}
	}
	return nil
}

// AuthWhoAmI confirms the session with the server.
func (r *Runner) AuthWhoAmI(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}

	m, err := r.visit(ctx, "/profile")
	if err != nil {
		return err
	}

	data, err := formatter.User(format, *m.User)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}
