package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/connhub/internal/infrastructure/config"
	"github.com/erp/connhub/internal/infrastructure/logger"
	"github.com/erp/connhub/internal/infrastructure/migration"
	"github.com/erp/connhub/migrations"
)

func main() {
	var (
		migrationsDir string
		logLevel      string
		log           *zap.Logger
	)

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply connhub database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			var err error
			log, err = logger.New(&logger.Config{
				Level:      logLevel,
				Format:     "console",
				Output:     "stdout",
				TimeFormat: "2006-01-02 15:04:05",
			})
			return err
		},
	}
	root.PersistentFlags().StringVar(&migrationsDir, "path", "", "Read migrations from this directory instead of the embedded set")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// withMigrator opens the database, runs fn and releases everything afterwards
	withMigrator := func(fn func(m *migration.Migrator) error) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}

		var m *migration.Migrator
		if migrationsDir != "" {
			m, err = migration.NewFromDir(db, migrationsDir, log)
		} else {
			m, err = migration.New(db, migrations.FS, log)
		}
		if err != nil {
			return err
		}
		defer m.Close()

		return fn(m)
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *migration.Migrator) error { return m.Up() })
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *migration.Migrator) error { return m.Down() })
			},
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations (negative N rolls back)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return withMigrator(func(m *migration.Migrator) error { return m.Steps(n) })
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current migration version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *migration.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					if version == 0 {
						log.Info("No migrations applied")
						return nil
					}
					log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "force V",
			Short: "Set the migration version without running migrations (clears a dirty state)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return withMigrator(func(m *migration.Migrator) error { return m.Force(version) })
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the embedded migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				names, err := migration.List(migrations.FS)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	if log != nil {
		_ = log.Sync()
	}
}
