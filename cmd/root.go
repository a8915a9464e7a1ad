// Package cmd is the ledger command line: the API server plus operator commands.
package cmd

import (
	"fmt"
	"os"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"ledger-backend/config"
	"ledger-backend/database"
	"ledger-backend/logger"
	"ledger-backend/services"
)

var version = "1.0.0"

// rootOptions holds the global flags.
type rootOptions struct {
	Output string // "json" | "yaml"
}

var validOutputs = []string{"json", "yaml"}

// NewRootCommand creates the ledger command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger - invoices, payments and cash reconciliation for staffing agencies",
		Long: `Ledger runs the multi-tenant billing API and the operator commands around it:
schema migrations, the daily X-Report and the overdue sweep.

Configuration is read from the environment and an optional .env file.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validOutputs, opts.Output) {
				return fmt.Errorf("invalid output %q: must be one of %v", opts.Output, validOutputs)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "json", "output format (json|yaml)")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newXReportCommand(opts))
	cmd.AddCommand(newInvoicesCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runtime is what every database-backed command needs.
type runtime struct {
	cfg    *config.Config
	db     *gorm.DB
	ledger *services.Ledger
	log    zerolog.Logger
}

// bootstrap loads config, sets up logging and opens the database.
func bootstrap(component string) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.WithComponent(component)

	db, err := database.Open(cfg.DBDriver, cfg.DSN(), logger.WithComponent("database"))
	if err != nil {
		return nil, err
	}
	ledger := services.NewLedger(db, services.Options{
		Location:     cfg.Location(),
		ReadAttempts: cfg.ReadAttempts,
		Logger:       logger.WithComponent("ledger"),
	})
	return &runtime{cfg: cfg, db: db, ledger: ledger, log: log}, nil
}

func (r *runtime) Close() {
	if err := database.Close(r.db); err != nil {
		r.log.Warn().Err(err).Msg("closing database")
	}
}

// operator is the actor recorded for CLI-initiated changes.
func operator(tenantID, user string) services.Actor {
	return services.Actor{TenantID: tenantID, UserID: user, Name: user}
}
