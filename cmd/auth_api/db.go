// File: cmd/auth_api/db.go
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"auth_api/internal/config"
	"auth_api/internal/migrations"
	"auth_api/internal/platform/database"
	"auth_api/internal/platform/readiness"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	dirFlag = "dir"
)

var upgradeFlags = map[string]cobraflags.Flag{
	dirFlag: &cobraflags.StringFlag{
		Name:  dirFlag,
		Value: "",
		Usage: "Directory holding <dialect>/NNNN_name.{up,down}.sql files (default: migrations embedded in the binary)",
	},
}

var migrateFlags = map[string]cobraflags.Flag{
	dirFlag: &cobraflags.StringFlag{
		Name:  dirFlag,
		Value: "",
		Usage: "Directory to write the new migration into (default: MIGRATIONS_DIR)",
	},
}

func newDBCommand() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database schema management",
	}
	dbCmd.AddCommand(
		newUpgradeCommand(),
		newDowngradeCommand(),
		newStatusCommand(),
		newMigrateCommand(),
	)
	return dbCmd
}

func newUpgradeCommand() *cobra.Command {
	var (
		wait        bool
		waitTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, appLogger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = appLogger.Sync() }()

			if wait && cfg.DBDriver == config.DriverPostgres {
				opts := readiness.Options{Address: cfg.DBAddress(), Timeout: waitTimeout}
				if err := readiness.Wait(cmd.Context(), opts, appLogger); err != nil {
					return err
				}
			}

			return withMigrator(cmd.Context(), cfg, appLogger, upgradeFlags[dirFlag].GetString(), func(m *migrations.Migrator) error {
				applied, err := m.MigrateUp(cmd.Context())
				if err != nil {
					return err
				}
				current, err := m.CurrentVersion(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Printf("Applied %d migration(s); database is at version %d\n", applied, current)
				return nil
			})
		},
	}
	cobraflags.RegisterMap(cmd, upgradeFlags)
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the database port to accept connections first")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 0, "Give up waiting after this long (0 waits forever)")
	return cmd
}

func newDowngradeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "downgrade",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, appLogger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = appLogger.Sync() }()

			return withMigrator(cmd.Context(), cfg, appLogger, "", func(m *migrations.Migrator) error {
				version, err := m.MigrateDown(cmd.Context())
				if errors.Is(err, migrations.ErrNoAppliedMigrations) {
					cmd.Println("Nothing to roll back")
					return nil
				}
				if err != nil {
					return err
				}
				cmd.Printf("Rolled back migration %d\n", version)
				return nil
			})
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current version and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, appLogger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = appLogger.Sync() }()

			return withMigrator(cmd.Context(), cfg, appLogger, "", func(m *migrations.Migrator) error {
				status, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Print(formatStatus(status))
				return nil
			})
		},
	}
}

func formatStatus(status *migrations.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current version: %d\n", status.CurrentVersion)
	fmt.Fprintf(&b, "Applied: %d of %d\n", len(status.AppliedMigrations), status.TotalMigrations)
	if !status.HasPendingChanges {
		b.WriteString("No pending migrations\n")
		return b.String()
	}
	b.WriteString("Pending:\n")
	for _, v := range status.PendingMigrations {
		fmt.Fprintf(&b, "  %d\n", v)
	}
	return b.String()
}

func newMigrateCommand() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Generate an empty migration for every dialect",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := migrateFlags[dirFlag].GetString()
			if dir == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				dir = cfg.MigrationsDir
			}
			files, err := migrations.GenerateFiles(dir, message, time.Now())
			if err != nil {
				return err
			}
			for _, f := range files {
				cmd.Printf("Created %s\n", f)
			}
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, migrateFlags)
	cmd.Flags().StringVarP(&message, "message", "m", "", "Short description used in the file names")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

// withMigrator opens the database, builds a migrator over the right dialect and closes the connection afterwards.
func withMigrator(ctx context.Context, cfg *config.Config, logger *zap.Logger, dir string, fn func(*migrations.Migrator) error) error {
	db, err := database.NewGORM(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close(db, logger)

	fsys, err := migrations.SourceFS(dir, database.Dialect(db))
	if err != nil {
		return err
	}
	m, err := migrations.NewFSMigrator(db, fsys, logger)
	if err != nil {
		return err
	}
	if err := m.Initialize(ctx); err != nil {
		return err
	}
	return fn(m)
}
