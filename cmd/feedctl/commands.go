package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"campusfeed/internal/config"
	"campusfeed/internal/database"
	"campusfeed/internal/middleware"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Swapped in tests.
var (
	loadConfig = config.LoadConfig
	openDB     = func(_ context.Context, cfg *config.Config) (*gorm.DB, error) {
		return database.Open(cfg)
	}
	connectDB = database.Connect
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "feedctl",
		Short:         "Operate the Campus Feed backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			_ = godotenv.Load()
			middleware.SetupLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
		},
	}
	root.AddCommand(newMigrateCmd(), newDBCmd(), newSeedCmd(), newTokenCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, inspect or roll back SQL migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()
			if err := database.RunMigrations(cmd.Context(), db); err != nil {
				return fmt.Errorf("sql migrations failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sql migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "auto",
		Short: "Run GORM AutoMigrate over the persistent models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()
			cfg.DBSchemaMode = database.SchemaModeAuto
			if err := database.ApplySchema(cmd.Context(), db, cfg); err != nil {
				return fmt.Errorf("auto schema apply failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "automigrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()
			status, err := database.GetSchemaStatus(cmd.Context(), db, cfg)
			if err != nil {
				return fmt.Errorf("schema status failed: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d latest=%06d\n",
				status.Mode, status.Environment, status.SQL, status.Auto,
				len(status.Applied), len(status.Pending), database.LatestVersion())
			for _, l := range status.Applied {
				fmt.Fprintf(out, "applied: %06d_%s at %s\n", l.Version, l.Name, l.AppliedAt.Format(time.RFC3339))
			}
			for _, m := range status.Pending {
				fmt.Fprintf(out, "pending: %s\n", m.String())
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest applied migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()
			version, err := database.RollbackLatest(cmd.Context(), db)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			if version == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %06d\n", version)
			return nil
		},
	})

	return cmd
}

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect or reset the database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "constraints",
		Short: "List constraints in the public schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, _, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()

			var rows []struct {
				Relname string `gorm:"column:relname"`
				Conname string `gorm:"column:conname"`
				Def     string `gorm:"column:def"`
			}
			err = db.WithContext(cmd.Context()).Raw(`SELECT r.relname, c.conname, pg_get_constraintdef(c.oid) AS def
FROM pg_constraint c
JOIN pg_class r ON c.conrelid = r.oid
JOIN pg_namespace n ON n.oid = r.relnamespace
WHERE n.nspname = 'public'
ORDER BY r.relname, c.conname`).Scan(&rows).Error
			if err != nil {
				return err
			}
			for _, r := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), " - %s on %s: %s\n", r.Conname, r.Relname, r.Def)
			}
			return nil
		},
	})

	var confirm bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate the public schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return fmt.Errorf("refusing to reset without --yes")
			}
			db, cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to reset a production database")
			}
			if err := db.WithContext(cmd.Context()).Exec("DROP SCHEMA public CASCADE; CREATE SCHEMA public;").Error; err != nil {
				return fmt.Errorf("failed to drop schema: %w", err)
			}
			if err := db.WithContext(cmd.Context()).Exec("GRANT ALL ON SCHEMA public TO public;").Error; err != nil {
				return fmt.Errorf("failed to grant schema permissions: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database reset")
			return nil
		},
	}
	reset.Flags().BoolVar(&confirm, "yes", false, "confirm dropping every table")
	cmd.AddCommand(reset)

	return cmd
}

// setup loads configuration and opens the database without applying the
// schema.
func setup(ctx context.Context) (*gorm.DB, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return db, cfg, nil
}
