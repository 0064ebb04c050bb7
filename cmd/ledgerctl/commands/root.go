// Package commands implements the ledgerctl operator CLI.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"sales-ledger/internal/config"
	"sales-ledger/internal/database"
	"sales-ledger/internal/ledger"
	"sales-ledger/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// Global flags
	actorName  string
	jsonOutput bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operator tasks for the sales ledger",
	Long: `ledgerctl runs maintenance against the ledger database configured in .env
or the environment (DB_DRIVER, DB_DSN, ...).

Commands:
  migrate        - apply or inspect the schema
  import-orders  - load orders from a JSON export, idempotent by order code
  reconcile      - recompute supplier balances and order paid flags
  user create    - add a staff account`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Env, cfg.LogLevel)
		return err
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actorName, "actor", "ledgerctl", "Name recorded on ledger changes")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

// openLedger connects with the configured schema strategy.
func openLedger() (*ledger.Service, *gorm.DB, error) {
	db, err := database.Connect(cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return ledger.New(db, logger, nil), db, nil
}

func actor() ledger.Actor { return ledger.Actor{Name: actorName} }

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
