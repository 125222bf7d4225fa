package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/liamcoop/ratebook/internal/logger"
)

var (
	databaseURL    string
	migrationsPath string
)

func newMigrate() (*migrate.Migrate, error) {
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return nil, eris.New("database URL is required, use --database or DATABASE_URL")
	}

	logger.Info("connecting to database", "migrations", migrationsPath)
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "create migration instance")
	}
	return m, nil
}

// withMigrate opens a migration instance for the duration of fn
func withMigrate(fn func(m *migrate.Migrate, args []string) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		m, err := newMigrate()
		if err != nil {
			return err
		}
		defer m.Close()
		return fn(m, args)
	}
}

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Apply the rule set and workflow schema to Postgres",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: withMigrate(func(m *migrate.Migrate, _ []string) error {
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to run, database is up to date")
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "run migrations")
		}
		logger.Info("migrations completed")
		return nil
	}),
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration",
	Args:  cobra.NoArgs,
	RunE: withMigrate(func(m *migrate.Migrate, _ []string) error {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return eris.Wrap(err, "roll back migrations")
		}
		logger.Info("rollback completed")
		return nil
	}),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: withMigrate(func(m *migrate.Migrate, _ []string) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "get version")
		}
		fmt.Printf("version %d (dirty: %v)\n", version, dirty)
		return nil
	}),
}

var forceCmd = &cobra.Command{
	Use:   "force VERSION",
	Short: "Set the schema version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: withMigrate(func(m *migrate.Migrate, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return eris.Wrapf(err, "invalid version %q", args[0])
		}
		if err := m.Force(version); err != nil {
			return eris.Wrap(err, "force version")
		}
		logger.Info("forced version", "version", version)
		return nil
	}),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database", "", "database URL (default $DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&migrationsPath, "path", "migrations", "migrations directory")
	rootCmd.AddCommand(upCmd, downCmd, versionCmd, forceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("migrate failed", "error", err)
	}
}
