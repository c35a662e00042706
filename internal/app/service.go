package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tradejournal/internal/analytics"
	"tradejournal/internal/domain"
	"tradejournal/internal/fees"
	"tradejournal/internal/pnl"
	"tradejournal/internal/ports"
	"tradejournal/internal/risk"
	"tradejournal/internal/validation"
)

// JournalService orchestrates trade capture, P&L reconciliation and account risk reporting.
type JournalService struct {
	logger     ports.Logger
	registry   *fees.Registry
	calculator *pnl.Calculator
	engine     *risk.Engine
	validator  *validation.Validator
	tradeRepo  ports.TradeRepository
	accounts   ports.AccountRepository
}

// NewJournalService creates a new application service instance.
func NewJournalService(
	logger ports.Logger,
	registry *fees.Registry,
	calculator *pnl.Calculator,
	engine *risk.Engine,
	validator *validation.Validator,
	tradeRepo ports.TradeRepository,
	accounts ports.AccountRepository,
) (*JournalService, error) {

	// Validate dependencies
	if logger == nil || registry == nil || calculator == nil || engine == nil || validator == nil || tradeRepo == nil || accounts == nil {
		return nil, fmt.Errorf("missing required dependencies for JournalService")
	}

	return &JournalService{
		logger:     logger,
		registry:   registry,
		calculator: calculator,
		engine:     engine,
		validator:  validator,
		tradeRepo:  tradeRepo,
		accounts:   accounts,
	}, nil
}

// RecordTrade validates and stores a trade for userID. Closed trades are reconciled
// first: from prices when known is pnl.Forward(), otherwise from the supplied figure.
func (s *JournalService) RecordTrade(ctx context.Context, userID string, trade *domain.Trade, known pnl.KnownFigure) (*domain.Trade, error) {
	if trade == nil {
		return nil, fmt.Errorf("%w: trade is required", ports.ErrInvalidTradeInput)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ports.ErrInvalidRequest)
	}
	trade.UserID = userID
	applyDefaults(trade, known)
	if err := checkTrade(trade, known); err != nil {
		return nil, err
	}

	if trade.Status == domain.StatusClosed {
		if err := s.reconcile(ctx, trade, known); err != nil {
			return nil, err
		}
	}

	tradeID, err := s.tradeRepo.CreateTrade(ctx, trade)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to save trade", map[string]interface{}{"userID": userID, "symbol": trade.Symbol})
		return nil, fmt.Errorf("failed to save trade: %w", err)
	}
	trade.ID = tradeID

	fields := map[string]interface{}{"tradeID": tradeID, "symbol": trade.Symbol, "status": trade.Status}
	if trade.NetPnL != nil {
		fields["netPnL"] = *trade.NetPnL
	}
	s.logger.Info(ctx, "Trade recorded", fields)
	return trade, nil
}

// CloseTrade fills the exit of an open trade and computes its P&L from prices.
func (s *JournalService) CloseTrade(ctx context.Context, tradeID string, exitPrice float64, exitTime time.Time) (*domain.Trade, error) {
	trade, err := s.tradeRepo.FindTradeByID(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trade %s: %w", tradeID, err)
	}
	if trade == nil {
		return nil, fmt.Errorf("trade %s: %w", tradeID, ports.ErrNotFound)
	}
	if trade.Status != domain.StatusOpen {
		return nil, fmt.Errorf("%w: trade %s is %s, not OPEN", ports.ErrInvalidRequest, tradeID, trade.Status)
	}
	if exitTime.IsZero() {
		exitTime = time.Now()
	}
	if exitTime.Before(trade.EntryTime) {
		return nil, fmt.Errorf("%w: exit time precedes entry time", ports.ErrInvalidTradeInput)
	}

	trade.ExitPrice = domain.Float(exitPrice)
	trade.ExitTime = domain.Time(exitTime)
	trade.Status = domain.StatusClosed
	if err := s.reconcile(ctx, trade, pnl.Forward()); err != nil {
		return nil, err
	}
	if err := s.tradeRepo.UpdateTrade(ctx, trade); err != nil {
		s.logger.Error(ctx, err, "Failed to update closed trade", map[string]interface{}{"tradeID": tradeID})
		return nil, fmt.Errorf("failed to update trade %s: %w", tradeID, err)
	}
	s.logger.Info(ctx, "Trade closed", map[string]interface{}{"tradeID": tradeID, "netPnL": *trade.NetPnL})
	return trade, nil
}

// ImportTrades records broker export rows, back-calculating gross P&L from each row's net.
// Rows with invalid input are reported in the result; storage errors stop the batch.
func (s *JournalService) ImportTrades(ctx context.Context, userID string, source domain.DataSource, rows []domain.ImportRow) (*domain.ImportResult, error) {
	result := &domain.ImportResult{Imported: make([]string, 0, len(rows)), Failed: make([]domain.ImportFailure, 0)}
	if source == "" {
		source = domain.SourceGenericCSV
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		trade := &domain.Trade{
			Symbol:     row.Symbol,
			Side:       row.Side,
			Quantity:   row.Quantity,
			EntryPrice: row.EntryPrice,
			ExitPrice:  row.ExitPrice,
			EntryTime:  row.EntryTime,
			ExitTime:   row.ExitTime,
			Market:     row.Market,
			Status:     domain.StatusClosed,
			Swap:       row.Swap,
			DataSource: source,
		}
		recorded, err := s.RecordTrade(ctx, userID, trade, pnl.KnownNet(row.NetPnL))
		if err != nil {
			if errors.Is(err, ports.ErrInvalidTradeInput) || errors.Is(err, ports.ErrDuplicateEntry) {
				result.Failed = append(result.Failed, domain.ImportFailure{Line: row.Line, Reason: err.Error()})
				continue
			}
			return result, err
		}
		result.Imported = append(result.Imported, recorded.ID)
	}

	s.logger.Info(ctx, "Import finished", map[string]interface{}{
		"userID":   userID,
		"source":   source,
		"imported": len(result.Imported),
		"failed":   len(result.Failed),
	})
	return result, nil
}

// Trades returns every trade of userID ordered by entry time.
func (s *JournalService) Trades(ctx context.Context, userID string) ([]*domain.Trade, error) {
	return s.tradeRepo.FindTradesByUser(ctx, userID)
}

// TradesBetween returns the trades of userID entered in [from, to).
func (s *JournalService) TradesBetween(ctx context.Context, userID string, from, to time.Time) ([]*domain.Trade, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must be before to", ports.ErrInvalidRequest)
	}
	return s.tradeRepo.FindTradesBetween(ctx, userID, from, to)
}

// Dashboard computes the account metrics of userID.
// Returns ports.ErrNoAccountConfigured when the user has not been onboarded.
func (s *JournalService) Dashboard(ctx context.Context, userID string) (*domain.AccountMetrics, error) {
	cfg, err := s.accounts.FindAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", userID, err)
	}
	if cfg == nil {
		return nil, ports.ErrNoAccountConfigured
	}
	trades, err := s.tradeRepo.FindTradesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades of %s: %w", userID, err)
	}
	metrics, err := s.engine.ComputeMetrics(ctx, cfg, trades)
	if err != nil {
		return nil, err
	}
	if !metrics.WithinTrailingLimit || !metrics.WithinDailyLimit {
		s.logger.Warn(ctx, "Account outside risk limits", map[string]interface{}{
			"userID":         userID,
			"trailingBuffer": metrics.TrailingBuffer,
			"dailyBuffer":    metrics.DailyBuffer,
		})
	}
	return metrics, nil
}

// Performance computes trade statistics for userID from its starting balance.
func (s *JournalService) Performance(ctx context.Context, userID string) (*analytics.Performance, error) {
	cfg, err := s.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	trades, err := s.tradeRepo.FindTradesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades of %s: %w", userID, err)
	}
	return analytics.Analyze(cfg.StartingBalance, trades, s.engine.AccountLocation(ctx, cfg)), nil
}

// Diagnostics runs the consistency validator for userID.
func (s *JournalService) Diagnostics(ctx context.Context, userID string) *domain.ValidationReport {
	return s.validator.Validate(ctx, userID)
}

// Account returns the stored configuration of userID.
func (s *JournalService) Account(ctx context.Context, userID string) (*domain.AccountConfig, error) {
	cfg, err := s.accounts.FindAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", userID, err)
	}
	if cfg == nil {
		return nil, ports.ErrNoAccountConfigured
	}
	return cfg, nil
}

// Location returns the zone that bounds the trading days of userID: the account's own
// timezone, or the engine default when the user has none or it does not load.
func (s *JournalService) Location(ctx context.Context, userID string) (*time.Location, error) {
	cfg, err := s.accounts.FindAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", userID, err)
	}
	return s.engine.AccountLocation(ctx, cfg), nil
}

// ConfigureAccount validates and stores an account configuration.
func (s *JournalService) ConfigureAccount(ctx context.Context, cfg *domain.AccountConfig) error {
	if cfg == nil || strings.TrimSpace(cfg.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ports.ErrInvalidAccountConfig)
	}
	if cfg.AccountType == "" {
		cfg.AccountType = domain.AccountCustom
	}
	if err := risk.ValidateAccountConfig(cfg); err != nil {
		return err
	}
	if _, err := risk.LoadLocation(cfg.Timezone, nil); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrInvalidAccountConfig, err)
	}
	if err := s.accounts.SaveAccount(ctx, cfg); err != nil {
		return fmt.Errorf("failed to save account %s: %w", cfg.UserID, err)
	}
	s.logger.Info(ctx, "Account configured", map[string]interface{}{"userID": cfg.UserID, "accountType": cfg.AccountType})
	return nil
}

// RecordFirstPayout marks the first payout of a funded-live account, which pins its
// trailing limit to zero from then on. Repeating it is a no-op.
func (s *JournalService) RecordFirstPayout(ctx context.Context, userID string) (*domain.AccountConfig, error) {
	cfg, err := s.accounts.FindAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", userID, err)
	}
	if cfg == nil {
		return nil, ports.ErrNoAccountConfigured
	}
	if !cfg.FundedLive {
		return nil, fmt.Errorf("%w: payouts apply to funded-live accounts only", ports.ErrInvalidRequest)
	}
	if cfg.FirstPayoutReceived {
		return cfg, nil
	}
	cfg.FirstPayoutReceived = true
	if err := s.accounts.SaveAccount(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save account %s: %w", userID, err)
	}
	s.logger.Info(ctx, "First payout recorded, trailing limit locked", map[string]interface{}{"userID": userID})
	return cfg, nil
}

// reconcile prices the fees for the trade's broker and market and applies the result.
func (s *JournalService) reconcile(ctx context.Context, trade *domain.Trade, known pnl.KnownFigure) error {
	var accountType domain.AccountType
	cfg, err := s.accounts.FindAccount(ctx, trade.UserID)
	if err != nil {
		return fmt.Errorf("failed to load account %s: %w", trade.UserID, err)
	}
	if cfg != nil {
		accountType = cfg.AccountType
	}
	broker := s.registry.DetectBroker(accountType, trade.DataSource)
	schedule := s.registry.ApplicableSchedule(broker, trade.Market)

	res, err := s.calculator.Reconcile(ctx, trade, known, schedule)
	if err != nil {
		return err
	}
	res.Apply(trade)
	s.logger.Debug(ctx, "Trade reconciled", map[string]interface{}{
		"symbol": trade.Symbol, "broker": schedule.Broker, "mode": res.Mode.String(),
		"gross": res.GrossPnL, "net": res.NetPnL, "fees": res.TotalFees,
	})
	return nil
}

func applyDefaults(t *domain.Trade, known pnl.KnownFigure) {
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	if t.Market == "" {
		t.Market = domain.MarketFutures
	}
	if t.DataSource == "" {
		t.DataSource = domain.SourceManual
	}
	if t.Status == "" {
		if t.ExitPrice != nil || known.Kind != pnl.FigureNone {
			t.Status = domain.StatusClosed
		} else {
			t.Status = domain.StatusOpen
		}
	}
}

// checkTrade rejects records that cannot be stored. P&L inputs are checked by the calculator.
func checkTrade(t *domain.Trade, known pnl.KnownFigure) error {
	switch {
	case t.Symbol == "":
		return fmt.Errorf("%w: symbol is required", ports.ErrInvalidTradeInput)
	case !t.Side.Valid():
		return fmt.Errorf("%w: side %q must be LONG or SHORT", ports.ErrInvalidTradeInput, t.Side)
	case !domain.IsFinite(t.Quantity) || t.Quantity <= 0:
		return fmt.Errorf("%w: quantity %v must be positive", ports.ErrInvalidTradeInput, t.Quantity)
	case !domain.IsFinite(t.EntryPrice) || t.EntryPrice <= 0:
		return fmt.Errorf("%w: entry price %v must be positive", ports.ErrInvalidTradeInput, t.EntryPrice)
	case t.EntryTime.IsZero():
		return fmt.Errorf("%w: entry time is required", ports.ErrInvalidTradeInput)
	case t.ExitTime != nil && t.ExitTime.Before(t.EntryTime):
		return fmt.Errorf("%w: exit time precedes entry time", ports.ErrInvalidTradeInput)
	}
	switch t.Status {
	case domain.StatusOpen:
		if known.Kind != pnl.FigureNone {
			return fmt.Errorf("%w: an open trade cannot carry a realized P&L", ports.ErrInvalidTradeInput)
		}
	case domain.StatusClosed:
		if t.ExitPrice == nil || !(*t.ExitPrice > 0) {
			return fmt.Errorf("%w: closed trade requires a positive exit price", ports.ErrInvalidTradeInput)
		}
		if t.ExitTime == nil || t.ExitTime.IsZero() {
			return fmt.Errorf("%w: closed trade requires an exit time", ports.ErrInvalidTradeInput)
		}
	case domain.StatusCancelled:
	default:
		return fmt.Errorf("%w: unknown status %q", ports.ErrInvalidTradeInput, t.Status)
	}
	return nil
}
