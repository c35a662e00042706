package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tradejournal/config"
)

// Version is stamped at build time with -ldflags "-X tradejournal/internal/cli.Version=...".
var Version = "dev"

// RootConfig carries the loaded configuration and the persistent flag values
// shared by every subcommand.
type RootConfig struct {
	Config   *config.Config
	DBPath   string
	LogLevel string
	UserID   string
}

func NewRootCmd(cfg *config.Config) *cobra.Command {
	rc := &RootConfig{Config: cfg}

	cmd := &cobra.Command{
		Use:           "tradejournal",
		Short:         "Trading journal: P&L reconciliation and account risk tracking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global / persistent flags
	cmd.PersistentFlags().StringVar(&rc.DBPath, "db", cfg.DBPath, "SQLite journal database")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", cfg.LogLevel.String(), "Log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVarP(&rc.UserID, "user", "u", cfg.DefaultUserID, "Account owner")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if rc.UserID == "" {
			return fmt.Errorf("--user must not be empty")
		}
		return nil
	}

	// Subcommands
	cmd.AddCommand(
		newServeCmd(rc),
		newMetricsCmd(rc),
		newValidateCmd(rc),
		newStatsCmd(rc),
		newImportCmd(rc),
		newExportCmd(rc),
		newPayoutCmd(rc),
		newAccountCmd(rc),
		newTradesCmd(rc),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tradejournal (%s)\n", Version)
		},
	})

	return cmd
}

func Execute(cfg *config.Config) {
	if err := NewRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
