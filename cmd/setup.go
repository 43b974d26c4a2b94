package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/igloo/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing and initializes the state database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return err
		}
		r.config = config
		r.writePlain("✓ Created %s\n", r.configPath)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := shared.OpenStateDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Point server.url in %s at your Igloo server (currently %s)\n", r.configPath, r.config.Server.URL)
	r.writePlain("2. Run 'igloo auth login' to sign in\n")
	return nil
}
