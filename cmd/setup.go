package main

import (
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/zylofm/internal/shared"
)

// SetupDatabase creates the config file when it is missing, then runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			} else if config, err := shared.LoadConfig(r.configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				r.config = config
			}
		}
	}

	r.logger.Info("initializing database", "driver", r.config.Database.Driver, "dsn", r.config.Database.DSN)
	store, err := r.database()
	if err != nil {
		return err
	}

	r.logger.Info("running database migrations")
	applied, err := shared.RunMigrations(store.DB)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, err := shared.CurrentVersion(store.DB)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	return r.writePlain("✓ Applied %d migration(s), schema at version %d\n", applied, version)
}

// SetupRollback reverts the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	store, err := r.database()
	if err != nil {
		return err
	}

	version, err := shared.RollbackMigration(store.DB)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Rolled back migration %d\n", version)
}

// SetupConfig writes the default config file, or prints the resolved config with --print.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("print") {
		if err := toml.NewEncoder(r.output).Encode(r.config); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return nil
	}

	if r.configPath == "" {
		return fmt.Errorf("%w: config path is empty", shared.ErrMissingArgument)
	}
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	return r.writePlain("✓ Wrote %s\n", r.configPath)
}
