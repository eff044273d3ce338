package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes a config.toml from the embedded template.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", configPath)

	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.youtube.client_id and client_secret (or %s / %s)\n", shared.EnvClientID, shared.EnvClientSecret)
	r.writePlain("2. Run 'cratedig setup database'\n")
	r.writePlain("3. Run 'cratedig library import <export.csv>'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			return err
		}
		loaded.ApplyEnv()
		config = loaded
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using current settings", "error", err)
		}
	}
	r.config = config

	path, err := shared.ResolveDataPath(config.Database.Path, "cratedig.db")
	if err != nil {
		return err
	}
	r.logger.Info("initializing database", "path", path)

	db, err := r.database()
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	status, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", path)
	return r.writePlain("✓ Database ready at %s (schema %04d, %d/%d migrations)\n",
		path, status.Latest, status.Applied, status.Available)
}

// SetupRollback reverts the newest schema migration. Without --yes it only reports the version.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	status, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}
	if status.Applied == 0 {
		return r.writePlainln("Nothing to roll back.")
	}
	if !cmd.Bool("yes") {
		return r.writePlain("Would roll back migration %04d. Re-run with --yes to drop its tables.\n", status.Latest)
	}

	m, err := shared.RollbackMigration(db)
	if err != nil {
		return err
	}
	r.logger.Warn("rolled back migration", "version", m.Version, "name", m.Name)
	return r.writePlain("✓ Rolled back %04d_%s\n", m.Version, m.Name)
}
