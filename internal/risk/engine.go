package risk

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/internal/domain"
	"tradejournal/internal/ports"
)

// feeImpactEpsilon guards the fee impact ratio against a zero gross denominator.
var feeImpactEpsilon = decimal.NewFromFloat(0.01)

// Config holds configuration for the metrics engine.
type Config struct {
	Location *time.Location   // Default timezone for accounts without one
	Now      func() time.Time // Clock; defaults to time.Now
	Logger   ports.Logger
}

// Engine computes AccountMetrics from an account configuration and its trades.
// It holds no per-account state; identical inputs give identical outputs.
type Engine struct {
	location *time.Location
	now      func() time.Time
	logger   ports.Logger
}

// NewEngine creates a new metrics engine.
func NewEngine(cfg Config) *Engine {
	e := &Engine{location: cfg.Location, now: cfg.Now, logger: cfg.Logger}
	if e.location == nil {
		e.location = time.UTC
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = ports.NopLogger{}
	}
	return e
}

// EquityPoint is the balance and running high-water mark after one closed trade.
type EquityPoint struct {
	Time    time.Time
	TradeID string
	Balance float64
	High    float64
}

// EquityCurve replays closed trades in settlement order and returns the balance and
// high-water mark after each one. The input slice is not modified.
func EquityCurve(startingBalance float64, trades []*domain.Trade) []EquityPoint {
	closed := closedChronological(trades)
	points := make([]EquityPoint, 0, len(closed))
	balance := domain.Dec(startingBalance)
	high := balance
	for _, t := range closed {
		balance = balance.Add(domain.Dec(t.Net()))
		if balance.GreaterThan(high) {
			high = balance
		}
		points = append(points, EquityPoint{
			Time:    t.SettledAt(),
			TradeID: t.ID,
			Balance: domain.Cents(balance),
			High:    domain.Cents(high),
		})
	}
	return points
}

// ComputeMetrics derives the account snapshot.
// Returns ports.ErrNoAccountConfigured when cfg is nil so callers can prompt onboarding.
func (e *Engine) ComputeMetrics(ctx context.Context, cfg *domain.AccountConfig, trades []*domain.Trade) (*domain.AccountMetrics, error) {
	if cfg == nil {
		return nil, ports.ErrNoAccountConfigured
	}
	if err := ValidateAccountConfig(cfg); err != nil {
		return nil, err
	}
	loc := e.AccountLocation(ctx, cfg)

	now := e.now()
	m := &domain.AccountMetrics{UserID: cfg.UserID, ComputedAt: now}

	// Balance and high-water mark.
	start := domain.Dec(cfg.StartingBalance)
	balance, high := start, start
	var totalNet decimal.Decimal
	for _, t := range closedChronological(trades) {
		net := domain.Dec(t.Net())
		totalNet = totalNet.Add(net)
		balance = balance.Add(net)
		if balance.GreaterThan(high) {
			high = balance
		}
		m.ClosedTrades++
	}
	m.CurrentBalance = domain.Cents(balance)
	m.AccountHigh = domain.Cents(high)
	m.TotalNetPnL = domain.Cents(totalNet)

	// Trailing drawdown.
	m.TrailingEnabled = cfg.TrailingEnabled()
	if m.TrailingEnabled {
		m.TrailingLimit, m.PayoutLockApplied = TrailingLimit(cfg, m.AccountHigh)
		m.WithinTrailingLimit = m.CurrentBalance >= m.TrailingLimit
		m.TrailingBuffer = domain.Cents(balance.Sub(domain.Dec(m.TrailingLimit)))
	} else {
		m.WithinTrailingLimit = true
		m.TrailingBuffer = m.CurrentBalance
	}

	// Daily window.
	dayStart, dayEnd := DayWindow(now, loc)
	m.DayStart = dayStart
	dayStartBalance := start
	var dailyNet, dailyGross, dailyFees decimal.Decimal
	for _, t := range trades {
		if t == nil {
			continue
		}
		inDay := !t.EntryTime.Before(dayStart) && t.EntryTime.Before(dayEnd)
		if inDay {
			dailyFees = dailyFees.Add(domain.Dec(t.TotalFees()))
		}
		if !t.IsClosed() {
			continue
		}
		switch {
		case t.EntryTime.Before(dayStart):
			dayStartBalance = dayStartBalance.Add(domain.Dec(t.Net()))
		case inDay:
			dailyNet = dailyNet.Add(domain.Dec(t.Net()))
			dailyGross = dailyGross.Add(domain.Dec(t.Gross()))
		}
	}
	m.DayStartBalance = domain.Cents(dayStartBalance)
	m.DailyPnL = domain.Cents(dailyNet)
	m.DailyFees = domain.Cents(dailyFees)
	m.GrossDailyPnL = domain.Cents(dailyGross)

	if cfg.DailyLossLimitAmount != nil {
		m.DailyLimitEnabled = true
		m.DailyLimit = domain.Cents(dayStartBalance.Sub(domain.Dec(*cfg.DailyLossLimitAmount)))
		m.WithinDailyLimit = m.CurrentBalance >= m.DailyLimit
		m.DailyBuffer = domain.Cents(balance.Sub(domain.Dec(m.DailyLimit)))
	} else {
		m.WithinDailyLimit = true
	}

	// Fee transparency.
	var totalFees decimal.Decimal
	count := 0
	for _, t := range trades {
		if t == nil {
			continue
		}
		totalFees = totalFees.Add(domain.Dec(t.TotalFees()))
		count++
	}
	m.TotalFeesToDate = domain.Cents(totalFees)
	if count > 0 {
		m.AverageFeePerTrade = domain.Cents(totalFees.Div(decimal.NewFromInt(int64(count))))
	}
	if !dailyFees.IsZero() {
		denom := decimal.Max(dailyGross.Abs(), feeImpactEpsilon)
		m.FeeImpactPercentage = domain.Cents(dailyFees.Div(denom).Mul(decimal.NewFromInt(100)))
	}

	e.logger.Debug(ctx, "Account metrics computed", map[string]interface{}{
		"userID":         cfg.UserID,
		"closedTrades":   m.ClosedTrades,
		"currentBalance": m.CurrentBalance,
		"accountHigh":    m.AccountHigh,
	})
	return m, nil
}

// AccountLocation resolves the timezone of cfg, falling back to the engine default
// when the account has none or names an unknown zone.
func (e *Engine) AccountLocation(ctx context.Context, cfg *domain.AccountConfig) *time.Location {
	if cfg == nil {
		return e.location
	}
	loc, err := LoadLocation(cfg.Timezone, e.location)
	if err != nil {
		e.logger.Warn(ctx, "Account timezone invalid, using default", map[string]interface{}{"userID": cfg.UserID, "timezone": cfg.Timezone})
		return e.location
	}
	return loc
}

// ValidateAccountConfig rejects non-positive balances and limits.
func ValidateAccountConfig(cfg *domain.AccountConfig) error {
	if cfg == nil {
		return ports.ErrNoAccountConfigured
	}
	if !domain.IsFinite(cfg.StartingBalance) || cfg.StartingBalance <= 0 {
		return fmt.Errorf("%w: starting balance %v must be positive", ports.ErrInvalidAccountConfig, cfg.StartingBalance)
	}
	if !domain.IsFinite(cfg.TrailingDrawdownAmount) || cfg.TrailingDrawdownAmount < 0 {
		return fmt.Errorf("%w: trailing drawdown amount %v cannot be negative", ports.ErrInvalidAccountConfig, cfg.TrailingDrawdownAmount)
	}
	if cfg.AccountType.UsesTrailingDrawdown() && cfg.TrailingDrawdownAmount <= 0 {
		return fmt.Errorf("%w: %s accounts require a positive trailing drawdown amount", ports.ErrInvalidAccountConfig, cfg.AccountType)
	}
	if cfg.DailyLossLimitAmount != nil && (!domain.IsFinite(*cfg.DailyLossLimitAmount) || *cfg.DailyLossLimitAmount <= 0) {
		return fmt.Errorf("%w: daily loss limit must be positive when set", ports.ErrInvalidAccountConfig)
	}
	return nil
}

// closedChronological returns the closed trades ordered by settlement time, then ID.
func closedChronological(trades []*domain.Trade) []*domain.Trade {
	closed := make([]*domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t != nil && t.IsClosed() {
			closed = append(closed, t)
		}
	}
	sort.SliceStable(closed, func(i, j int) bool {
		ti, tj := closed[i].SettledAt(), closed[j].SettledAt()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return closed[i].ID < closed[j].ID
	})
	return closed
}
