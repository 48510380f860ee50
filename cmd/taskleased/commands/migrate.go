package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/tasklease/internal/logger"
	"github.com/marmos91/tasklease/pkg/config"
	"github.com/marmos91/tasklease/pkg/models"
	"github.com/marmos91/tasklease/pkg/store"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for the lease and task store.

This command applies pending schema migrations to the configured database
(SQLite or PostgreSQL). Serving commands also migrate on startup; running
migrate separately lets a deployment roll the schema forward before the new
service version starts.

Examples:
  # Run migrations with default config
  taskleased migrate

  # Run migrations against a specific database
  DATABASE_URL=postgres://tasklease@db/tasklease taskleased migrate`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("Running database migrations", "type", cfg.Database.Type)

	// Opening the store applies the migrations
	ctx := context.Background()
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = st.Close() }()

	// Verify the migration worked by checking if we can query leases
	if _, err := st.ListLeases(ctx, models.LeaseStateAll); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	if cfg.Database.Type == store.DatabaseTypePostgres {
		version, dirty, err := store.MigrationVersion(cfg.Database.Postgres.DSN())
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		if dirty {
			return fmt.Errorf("schema version %d is dirty; manual intervention required", version)
		}
		fmt.Printf("Migrations completed successfully (database type: %s, schema version: %d)\n", cfg.Database.Type, version)
		return nil
	}

	fmt.Printf("Migrations completed successfully (database type: %s)\n", cfg.Database.Type)
	return nil
}
