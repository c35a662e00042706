package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tradejournal/internal/adapters/httpapi"
	"tradejournal/internal/domain"
	"tradejournal/internal/utils"
)

func newServeCmd(rc *RootConfig) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the journal JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := rc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			srv, err := httpapi.NewServer(httpapi.ServerConfig{
				Addr:    addr,
				Journal: s.journal,
				Logger:  s.logger,
			})
			if err != nil {
				return err
			}
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", rc.Config.HTTPAddr, "Listen address")
	return cmd
}

func newImportCmd(rc *RootConfig) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import closed trades from a broker CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx := cmd.Context()
			s, err := rc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			loc, err := s.journal.Location(ctx, rc.UserID)
			if err != nil {
				return err
			}
			rows, failures, err := utils.ReadImportRows(f, loc)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			result, err := s.journal.ImportTrades(ctx, rc.UserID, domain.DataSource(strings.ToLower(source)), rows)
			if err != nil {
				return err
			}
			failures = append(failures, result.Failed...)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d trades, %d rows failed\n", len(result.Imported), len(failures))
			for _, fail := range failures {
				fmt.Fprintf(out, "  line %d: %s\n", fail.Line, fail.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", string(domain.SourceGenericCSV),
		"Export format: tradovate_csv|ninjatrader_csv|rithmic_csv|generic_csv")
	return cmd
}

func newExportCmd(rc *RootConfig) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every trade of the user as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := rc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			trades, err := s.journal.Trades(ctx, rc.UserID)
			if err != nil {
				return err
			}
			if outPath == "" {
				return utils.WriteTradesToCSV(cmd.OutOrStdout(), trades)
			}

			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := utils.WriteTradesToCSV(f, trades); err != nil {
				f.Close()
				return err
			}
			s.logger.Info(ctx, "Trades exported", map[string]interface{}{"path": outPath, "count": len(trades)})
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func newPayoutCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "payout",
		Short: "Record the first payout of a funded live account",
		Long: "Records the first payout. From then on the trailing limit of the account is\n" +
			"pinned to zero.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := rc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			cfg, err := s.journal.RecordFirstPayout(ctx, rc.UserID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "first payout recorded for %s; trailing limit locked at 0\n", cfg.UserID)
			return nil
		},
	}
}
