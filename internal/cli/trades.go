package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tradejournal/internal/domain"
	"tradejournal/internal/pnl"
	"tradejournal/internal/risk"
)

func newTradesCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Record, close and list trades",
	}
	cmd.AddCommand(newTradesListCmd(rc), newTradesAddCmd(rc), newTradesCloseCmd(rc))
	return cmd
}

func newTradesListCmd(rc *RootConfig) *cobra.Command {
	var (
		asJSON  bool
		fromStr string
		toStr   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trades ordered by entry time",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := rc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			var trades []*domain.Trade
			if fromStr == "" && toStr == "" {
				trades, err = s.journal.Trades(ctx, rc.UserID)
			} else {
				loc, lerr := s.journal.Location(ctx, rc.UserID)
				if lerr != nil {
					return lerr
				}
				from, to, werr := parseWindow(fromStr, toStr, loc)
				if werr != nil {
					return werr
				}
				trades, err = s.journal.TradesBetween(ctx, rc.UserID, from, to)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), trades)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSYMBOL\tSIDE\tQTY\tENTRY\tSTATUS\tNET")
			for _, t := range trades {
				net := "-"
				if t.NetPnL != nil {
					net = fmt.Sprintf("%.2f", *t.NetPnL)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%s\t%s\t%s\n",
					t.ID, t.Symbol, t.Side, t.Quantity, t.EntryTime.Format(time.RFC3339), t.Status, net)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print trades as JSON")
	cmd.Flags().StringVar(&fromStr, "from", "", "Only trades entered at or after this time; a bare date is read in the account timezone")
	cmd.Flags().StringVar(&toStr, "to", "", "Only trades entered before this time; a bare date includes that whole day")
	return cmd
}

func newTradesAddCmd(rc *RootConfig) *cobra.Command {
	var (
		symbol    string
		side      string
		quantity  float64
		entry     float64
		exit      float64
		entryTime string
		exitTime  string
		market    string
		net       float64
		gross     float64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a trade; open unless --exit is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("net") && flags.Changed("gross") {
				return fmt.Errorf("--net and --gross are mutually exclusive")
			}

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

			trade := &domain.Trade{
				Symbol:     symbol,
				Side:       domain.Side(strings.ToUpper(side)),
				Quantity:   quantity,
				EntryPrice: entry,
				Market:     domain.Market(strings.ToUpper(market)),
				DataSource: domain.SourceManual,
			}
			if trade.EntryTime, err = parseFlagTime(entryTime, loc); err != nil {
				return fmt.Errorf("bad --entry-time: %w", err)
			}
			if flags.Changed("exit") {
				trade.ExitPrice = domain.Float(exit)
				at := time.Now()
				if exitTime != "" {
					if at, err = parseFlagTime(exitTime, loc); err != nil {
						return fmt.Errorf("bad --exit-time: %w", err)
					}
				}
				trade.ExitTime = domain.Time(at)
			}

			known := pnl.Forward()
			switch {
			case flags.Changed("net"):
				known = pnl.KnownNet(net)
			case flags.Changed("gross"):
				known = pnl.KnownGross(gross)
			}

			recorded, err := s.journal.RecordTrade(ctx, rc.UserID, trade, known)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recorded)
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Instrument symbol, e.g. MNQH25")
	cmd.Flags().StringVar(&side, "side", "", "LONG or SHORT")
	cmd.Flags().Float64Var(&quantity, "qty", 1, "Contracts or units")
	cmd.Flags().Float64Var(&entry, "entry", 0, "Entry price")
	cmd.Flags().Float64Var(&exit, "exit", 0, "Exit price; closes the trade")
	cmd.Flags().StringVar(&entryTime, "entry-time", "", "Entry time, RFC3339 or \"2006-01-02 15:04\" in the account timezone")
	cmd.Flags().StringVar(&exitTime, "exit-time", "", "Exit time (default now)")
	cmd.Flags().StringVar(&market, "market", string(domain.MarketFutures), "Market class")
	cmd.Flags().Float64Var(&net, "net", 0, "Broker-reported net P&L; back-calculates gross")
	cmd.Flags().Float64Var(&gross, "gross", 0, "Known gross P&L; net is gross less fees")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("side")
	_ = cmd.MarkFlagRequired("entry")
	_ = cmd.MarkFlagRequired("entry-time")
	return cmd
}

func newTradesCloseCmd(rc *RootConfig) *cobra.Command {
	var (
		price  float64
		atFlag string
	)

	cmd := &cobra.Command{
		Use:   "close <trade-id>",
		Short: "Close an open trade and compute its P&L from prices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := rc.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			var at time.Time
			if atFlag != "" {
				loc, err := s.journal.Location(ctx, rc.UserID)
				if err != nil {
					return err
				}
				if at, err = parseFlagTime(atFlag, loc); err != nil {
					return fmt.Errorf("bad --at: %w", err)
				}
			}

			trade, err := s.journal.CloseTrade(ctx, args[0], price, at)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), trade)
		},
	}
	cmd.Flags().Float64Var(&price, "price", 0, "Exit price")
	cmd.Flags().StringVar(&atFlag, "at", "", "Exit time (default now)")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

// parseWindow parses a --from/--to pair. A date-only bound covers that whole day in loc.
func parseWindow(fromStr, toStr string, loc *time.Location) (from, to time.Time, err error) {
	if fromStr == "" || toStr == "" {
		return from, to, fmt.Errorf("--from and --to must be given together")
	}
	if from, err = parseBound(fromStr, loc, false); err != nil {
		return from, to, fmt.Errorf("bad --from: %w", err)
	}
	if to, err = parseBound(toStr, loc, true); err != nil {
		return from, to, fmt.Errorf("bad --to: %w", err)
	}
	return from, to, nil
}

func parseBound(s string, loc *time.Location, end bool) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		if end {
			_, dayEnd := risk.DayWindow(d, loc)
			return dayEnd, nil
		}
		return d, nil
	}
	return parseFlagTime(s, loc)
}

// parseFlagTime accepts RFC3339 or a local "2006-01-02 15:04" timestamp in loc.
func parseFlagTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation("2006-01-02 15:04", s, loc)
}
