package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/igloo/internal/app"
	"github.com/desertthunder/igloo/internal/formatter"
	"github.com/desertthunder/igloo/internal/models"
	"github.com/desertthunder/igloo/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// MoviesList prints the whole library.
func (r *Runner) MoviesList(ctx context.Context, cmd *cli.Command) error {
	m, err := r.visit(ctx, "/movies")
	if err != nil {
		return err
	}
	movies, _ := m.Data.([]models.Movie)
	return r.writeMovies(cmd, "Movies", movies)
}

// MoviesLatest prints recently added movies.
func (r *Runner) MoviesLatest(ctx context.Context, cmd *cli.Command) error {
	page, err := r.home(ctx)
	if err != nil {
		return err
	}
	return r.writeMovies(cmd, "Recently added", page.Latest)
}

// MoviesNowPlaying prints movies with playback in progress.
func (r *Runner) MoviesNowPlaying(ctx context.Context, cmd *cli.Command) error {
	page, err := r.home(ctx)
	if err != nil {
		return err
	}
	return r.writeMovies(cmd, "Continue watching", page.NowPlaying)
}

// MoviesGet prints one movie.
func (r *Runner) MoviesGet(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	m, err := r.visit(ctx, "/movies/"+id)
	if err != nil {
		return err
	}
	movie, ok := m.Data.(*models.Movie)
	if !ok {
		return fmt.Errorf("%w: movie %s", shared.ErrNotFound, id)
	}

	data, err := formatter.Movie(format, *movie)
	if err != nil {
		return err
	}
	return r.export(cmd, data, movie.Label())
}

func (r *Runner) home(ctx context.Context) (app.HomePage, error) {
	m, err := r.visit(ctx, "/")
	if err != nil {
		return app.HomePage{}, err
	}
	page, _ := m.Data.(app.HomePage)
	return page, nil
}

func (r *Runner) writeMovies(cmd *cli.Command, title string, movies []models.Movie) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}
	data, err := formatter.Movies(format, title, movies)
	if err != nil {
		return err
	}
	return r.export(cmd, data, fmt.Sprintf("%s movies", humanize.Comma(int64(len(movies)))))
}

// Play starts the external player, or prints or opens the stream URL.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	m, err := r.visit(ctx, "/movies/"+id+"/play")
	if err != nil {
		return err
	}
	target, ok := m.Data.(app.PlayTarget)
	if !ok {
		return fmt.Errorf("%w: movie %s", shared.ErrNotFound, id)
	}

	p, _ := r.app(ctx)
	switch {
	case cmd.Bool("print"):
		return r.writePlain("%s\n", target.URL)
	case cmd.Bool("browser"):
		p.RecordPlay(ctx, target.Movie)
		if err := shared.OpenBrowser(target.URL); err != nil {
			return err
		}
		return r.writePlain("✓ Opened %s in the browser\n", target.Movie.Label())
	}

	r.writePlain("▶ Playing %s\n", target.Movie.Label())
	return p.Play(ctx, target.Movie)
}

// History prints or clears the local watch history.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	p, err := r.app(ctx)
	if err != nil {
		return err
	}
	if p.History == nil {
		return fmt.Errorf("%w: watch history needs the state database", shared.ErrMissingConfig)
	}

	if cmd.Bool("clear") {
		if err := p.History.Clear(ctx); err != nil {
			return err
		}
		return r.writePlain("✓ Cleared watch history\n")
	}

	format, err := r.format(cmd)
	if err != nil {
		return err
	}

	limit := int(cmd.Int("limit"))
	if limit < 0 {
		return fmt.Errorf("%w: --limit must not be negative", shared.ErrInvalidArgument)
	}
	entries, err := p.History.Recent(ctx, limit)
	if err != nil {
		return err
	}

	data, err := formatter.History(format, entries)
	if err != nil {
		return err
	}
	return r.export(cmd, data, fmt.Sprintf("%d history entries", len(entries)))
}
