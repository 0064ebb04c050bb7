package commands

import (
	"fmt"

	"sales-ledger/internal/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or inspect the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Long: `With DB_DRIVER=mysql the SQL files in MIGRATIONS_DIR are applied through
golang-migrate. Other drivers sync the schema from the models.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.Driver == "mysql" {
			if err := database.RunMigrations(cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
				return err
			}
			return printVersion()
		}
		db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.Debug)
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		fmt.Printf("schema synced (%s)\n", cfg.Database.Driver)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the applied migration version (mysql)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.Driver != "mysql" {
			return fmt.Errorf("migration versions are tracked for mysql only, DB_DRIVER is %q", cfg.Database.Driver)
		}
		return printVersion()
	},
}

func printVersion() error {
	version, dirty, err := database.MigrationVersion(cfg.Database.DSN, cfg.Database.MigrationsDir)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(map[string]any{"version": version, "dirty": dirty})
	}
	state := "clean"
	if dirty {
		state = "DIRTY, fix by hand before the next run"
	}
	fmt.Printf("version %d (%s)\n", version, state)
	return nil
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
