package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/DenialAppealPro/appealpro/internal/pkg/env"
)

var migrationsPath string

func main() {
	env.SetupEnvFile()

	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply database schema migrations for appealpro",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&migrationsPath, "path", "migrations", "directory containing the migration files")

	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(downCmd())
	rootCmd.AddCommand(gotoCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func databaseURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		env.GetEnv("DB_USER", "appealpro"),
		env.GetEnv("DB_PASSWORD", "appealpro"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "appealpro_db"),
	)
}

// withMigrator opens a migrator, runs fn and closes both source and database.
func withMigrator(fn func(m *migrate.Migrate) error) error {
	log.Printf("Connecting to database: %s@%s:%s/%s",
		env.GetEnv("DB_USER", "appealpro"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "appealpro_db"),
	)

	m, err := migrate.New("file://"+migrationsPath, databaseURL())
	if err != nil {
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("Failed to close migration resources: %v, %v", sourceErr, dbErr)
		}
	}()
	return fn(m)
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *migrate.Migrate) error {
				err := m.Up()
				switch {
				case errors.Is(err, migrate.ErrNoChange):
					log.Println("No change: database is already up to date")
				case err != nil:
					return fmt.Errorf("apply migrations: %w", err)
				default:
					log.Println("Migrations applied")
				}
				return nil
			})
		},
	}
}

func downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *migrate.Migrate) error {
				if err := m.Steps(-1); err != nil {
					return fmt.Errorf("roll back last migration: %w", err)
				}
				log.Println("Rolled back last migration")
				return nil
			})
		},
	}
}

func gotoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "goto [version]",
		Short: "Migrate up or down to the given version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withMigrator(func(m *migrate.Migrate) error {
				err := m.Migrate(uint(version))
				switch {
				case errors.Is(err, migrate.ErrNoChange):
					log.Printf("No change: database is already at version %d", version)
				case err != nil:
					return fmt.Errorf("migrate to version %d: %w", version, err)
				default:
					log.Printf("Migrated to version %d", version)
				}
				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *migrate.Migrate) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					log.Println("No migrations have been applied yet")
					return nil
				}
				if err != nil {
					return fmt.Errorf("read migration version: %w", err)
				}
				dirtyStatus := ""
				if dirty {
					dirtyStatus = " (dirty)"
				}
				log.Printf("Current migration version: %d%s", version, dirtyStatus)
				return nil
			})
		},
	}
}
