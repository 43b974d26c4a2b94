package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/igloo/internal/server"
	"github.com/desertthunder/igloo/internal/shared"
	"github.com/desertthunder/igloo/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal interface.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	p, err := r.app(ctx)
	if err != nil {
		return err
	}
	p.Start(ctx)

	model := ui.NewModel(ctx, p)
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// Web serves the browser frontend until interrupted.
func (r *Runner) Web(ctx context.Context, cmd *cli.Command) error {
	p, err := r.app(ctx)
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Web.Addr()
	}

	srv, err := server.New(p, addr, r.logger)
	if err != nil {
		return err
	}
	ln, err := srv.Listen()
	if err != nil {
		return err
	}

	url := "http://" + ln.Addr().String()
	r.writePlain("Serving Igloo at %s (ctrl+c to stop)\n", url)
	if cmd.Bool("open") {
		if err := shared.OpenBrowser(url); err != nil {
			r.logger.Warn("failed to open browser", "err", err)
		}
	}

	p.Start(ctx)
	return srv.Serve(ctx, ln)
}
