package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/igloo/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes a direct GET request to the Igloo API with the stored session.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, "path")
	if err != nil {
		return err
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: path must start with /", shared.ErrInvalidArgument)
	}

	p, err := r.app(ctx)
	if err != nil {
		return err
	}

	r.logger.Debug("GET request", "path", path)
	resp, err := p.API.Get(ctx, path)
	if err != nil {
		return err
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, cmd.Bool("pretty"))
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}
