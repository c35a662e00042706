package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tradejournal/internal/analytics"
	"tradejournal/internal/domain"
	"tradejournal/internal/ports"
)

// errValidationFailed makes `validate` exit non-zero when a check FAILs.
var errValidationFailed = errors.New("validation reported failures")

func newMetricsCmd(rc *RootConfig) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show balance, high-water mark and drawdown buffers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := rc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			m, err := s.journal.Dashboard(ctx, rc.UserID)
			if errors.Is(err, ports.ErrNoAccountConfigured) {
				return fmt.Errorf("no account configured for %q; run `tradejournal account set` first", rc.UserID)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), m)
			}
			printMetrics(cmd.OutOrStdout(), m)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw metrics as JSON")
	return cmd
}

func newValidateCmd(rc *RootConfig) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Re-derive stored figures and report inconsistencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := rc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			report := s.journal.Diagnostics(ctx, rc.UserID)
			if asJSON {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report)
			}
			if report.OverallStatus == domain.StatusError {
				return errValidationFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func newStatsCmd(rc *RootConfig) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show win rate, profit factor and drawdown statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := rc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.journal.Performance(ctx, rc.UserID)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), p)
			}
			printPerformance(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print statistics as JSON, including the equity curve")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMetrics(w io.Writer, m *domain.AccountMetrics) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Balance\t%.2f\n", m.CurrentBalance)
	fmt.Fprintf(tw, "Account high\t%.2f\n", m.AccountHigh)
	fmt.Fprintf(tw, "Closed trades\t%d\n", m.ClosedTrades)
	fmt.Fprintf(tw, "Total net P&L\t%.2f\n", m.TotalNetPnL)
	if m.TrailingEnabled {
		lock := ""
		if m.PayoutLockApplied {
			lock = " (payout lock)"
		}
		fmt.Fprintf(tw, "Trailing limit\t%.2f%s\n", m.TrailingLimit, lock)
		fmt.Fprintf(tw, "Trailing buffer\t%.2f\t%s\n", m.DisplayTrailingBuffer(), limitState(m.WithinTrailingLimit))
	}
	fmt.Fprintf(tw, "Daily P&L\t%.2f\n", m.DailyPnL)
	if m.DailyLimitEnabled {
		fmt.Fprintf(tw, "Daily limit\t%.2f\n", m.DailyLimit)
		fmt.Fprintf(tw, "Daily buffer\t%.2f\t%s\n", m.DisplayDailyBuffer(), limitState(m.WithinDailyLimit))
	}
	fmt.Fprintf(tw, "Fees to date\t%.2f\n", m.TotalFeesToDate)
	fmt.Fprintf(tw, "Avg fee per trade\t%.2f\n", m.AverageFeePerTrade)
	fmt.Fprintf(tw, "Fee impact today\t%.2f%%\n", m.FeeImpactPercentage)
	tw.Flush()
}

func printPerformance(w io.Writer, p *analytics.Performance) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Trades\t%d (%d won, %d lost, %d flat)\n", p.TotalTrades, p.WinningTrades, p.LosingTrades, p.BreakevenTrades)
	fmt.Fprintf(tw, "Win rate\t%.1f%%\n", p.WinRate*100)
	fmt.Fprintf(tw, "Net P&L\t%.2f\n", p.TotalNetPnL)
	fmt.Fprintf(tw, "Fees\t%.2f\n", p.TotalFees)
	fmt.Fprintf(tw, "Average win / loss\t%.2f / %.2f\n", p.AverageWin, p.AverageLoss)
	fmt.Fprintf(tw, "Profit factor\t%.2f\n", p.ProfitFactor)
	fmt.Fprintf(tw, "Expectancy\t%.2f\n", p.Expectancy)
	fmt.Fprintf(tw, "Max drawdown\t%.2f (%.2f%%)\n", p.MaxDrawdown, p.MaxDrawdownPercent*100)
	fmt.Fprintf(tw, "Average hold\t%s\n", p.AverageHoldTime)
	for _, m := range p.MonthlyNetPnL {
		fmt.Fprintf(tw, "  %s\t%.2f\n", m.Month, m.NetPnL)
	}
	tw.Flush()
}

func limitState(within bool) string {
	if within {
		return "ok"
	}
	return "BREACHED"
}

func printReport(w io.Writer, r *domain.ValidationReport) {
	fmt.Fprintf(w, "%s: %d checks, %d passed, %d warnings, %d failed\n",
		r.OverallStatus, r.Summary.TotalChecks, r.Summary.PassedChecks, r.Summary.WarningChecks, r.Summary.FailedChecks)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range r.Checks {
		if c.Status == domain.CheckPass {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Status, c.Type, c.TradeID, c.Description)
	}
	tw.Flush()
}
