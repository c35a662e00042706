package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tradejournal/internal/domain"
	"tradejournal/internal/ports"
)

func newAccountCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Configure the trading account",
	}
	cmd.AddCommand(newAccountSetCmd(rc), newAccountShowCmd(rc))
	return cmd
}

func newAccountSetCmd(rc *RootConfig) *cobra.Command {
	var (
		balance     float64
		trailing    float64
		dailyLimit  float64
		accountType string
		fundedLive  bool
		timezone    string
		startDate   string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update the account configuration",
		Long: "Creates the account on first use. On later runs only the flags given\n" +
			"are changed; pass --daily-limit 0 to disable the daily loss rule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := rc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			cfg, err := s.journal.Account(ctx, rc.UserID)
			switch {
			case errors.Is(err, ports.ErrNoAccountConfigured):
				cfg = &domain.AccountConfig{UserID: rc.UserID, StartDate: time.Now().UTC()}
			case err != nil:
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("balance") {
				cfg.StartingBalance = balance
			}
			if flags.Changed("trailing") {
				cfg.TrailingDrawdownAmount = trailing
			}
			if flags.Changed("daily-limit") {
				if dailyLimit == 0 {
					cfg.DailyLossLimitAmount = nil
				} else {
					cfg.DailyLossLimitAmount = domain.Float(dailyLimit)
				}
			}
			if flags.Changed("type") {
				cfg.AccountType = domain.AccountType(strings.ToUpper(accountType))
			}
			if flags.Changed("funded-live") {
				cfg.FundedLive = fundedLive
			}
			if flags.Changed("timezone") {
				cfg.Timezone = timezone
			}
			if flags.Changed("start-date") {
				d, err := time.Parse("2006-01-02", startDate)
				if err != nil {
					return fmt.Errorf("bad --start-date: %w", err)
				}
				cfg.StartDate = d
			}

			if err := s.journal.ConfigureAccount(ctx, cfg); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().Float64Var(&balance, "balance", 0, "Starting balance")
	cmd.Flags().Float64Var(&trailing, "trailing", 0, "Trailing drawdown amount below the high-water mark")
	cmd.Flags().Float64Var(&dailyLimit, "daily-limit", 0, "Daily loss limit amount (0 disables)")
	cmd.Flags().StringVar(&accountType, "type", string(domain.AccountCustom), "Account type: evaluation|funded|custom")
	cmd.Flags().BoolVar(&fundedLive, "funded-live", false, "Account trades live funded capital")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone of the trading day (default ACCOUNT_TIMEZONE)")
	cmd.Flags().StringVar(&startDate, "start-date", "", "Account start date, YYYY-MM-DD")
	return cmd
}

func newAccountShowCmd(rc *RootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the account configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := rc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			cfg, err := s.journal.Account(ctx, rc.UserID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}
}
