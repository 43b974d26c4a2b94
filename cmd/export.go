package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/igloo/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Export writes the library to a directory, printing progress as sections finish.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	format, err := r.format(cmd)
	if err != nil {
		return err
	}

	p, err := r.app(ctx)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range progress {
			if u.Total > 1 {
				r.writePlain("[%d/%d] %s\n", u.Step, u.Total, u.Message)
			} else {
				r.writePlain("%s\n", u.Message)
			}
		}
	}()

	exporter := tasks.NewExporter(p, r.logger)
	summary, err := exporter.Export(ctx, progress, tasks.ExportOpts{
		Format:     format,
		OutputDir:  cmd.String("dir"),
		NumWorkers: int(cmd.Int("workers")),
		Details:    cmd.Bool("details"),
	})
	close(progress)
	wg.Wait()
	if err != nil {
		return err
	}

	r.writePlainln("✓ Exported %d of %d sections to %s", summary.Succeeded, summary.TotalSections, summary.OutputDirectory)
	if summary.Failed > 0 {
		return fmt.Errorf("%d sections failed, see %s", summary.Failed, summary.ManifestPath)
	}
	return nil
}
