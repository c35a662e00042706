package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"tradejournal/internal/domain"
	"tradejournal/internal/fees"
	"tradejournal/internal/ports"
	"tradejournal/internal/risk"
)

// MetricsEngine computes the account snapshot the validator cross-checks.
type MetricsEngine interface {
	ComputeMetrics(ctx context.Context, cfg *domain.AccountConfig, trades []*domain.Trade) (*domain.AccountMetrics, error)
}

// Config holds the collaborators of a Validator.
type Config struct {
	Trades   ports.TradeRepository
	Accounts ports.AccountRepository
	Registry *fees.Registry
	Engine   MetricsEngine
	Logger   ports.Logger
	Now      func() time.Time
}

// Validator re-derives stored financial figures and reports inconsistencies.
// It only reads from the repositories.
type Validator struct {
	trades   ports.TradeRepository
	accounts ports.AccountRepository
	registry *fees.Registry
	engine   MetricsEngine
	logger   ports.Logger
	now      func() time.Time
}

// New creates a validator.
func New(cfg Config) (*Validator, error) {
	if cfg.Trades == nil || cfg.Accounts == nil || cfg.Registry == nil || cfg.Engine == nil {
		return nil, fmt.Errorf("missing required dependencies for Validator: %w", ports.ErrConfigurationError)
	}
	v := &Validator{
		trades:   cfg.Trades,
		accounts: cfg.Accounts,
		registry: cfg.Registry,
		engine:   cfg.Engine,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if v.logger == nil {
		v.logger = ports.NopLogger{}
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v, nil
}

// snapshot is one consistent read of a user's records plus the engine's view of them.
type snapshot struct {
	userID     string
	trades     []*domain.Trade
	tradesErr  error
	account    *domain.AccountConfig
	accountErr error
	metrics    *domain.AccountMetrics
	metricsErr error
}

type checkFunc func(s *snapshot) []domain.ValidationCheck

// Validate runs every check for userID. It never returns an error: load and
// computation failures become FAIL or WARNING entries of the report.
func (v *Validator) Validate(ctx context.Context, userID string) *domain.ValidationReport {
	s := v.load(ctx, userID)

	checks := []struct {
		typ domain.CheckType
		run checkFunc
	}{
		{domain.CheckPnLConsistency, checkPnL},
		{domain.CheckBalanceConsistency, checkBalance},
		{domain.CheckFeeConsistency, v.checkFees},
		{domain.CheckDrawdownConsistency, checkDrawdown},
		{domain.CheckDataIntegrity, checkDataIntegrity},
	}

	report := &domain.ValidationReport{UserID: userID, Timestamp: v.now()}
	for _, c := range checks {
		entries := runIsolated(c.typ, c.run, s)
		for _, e := range entries {
			if e.Status != domain.CheckPass {
				v.logger.Warn(ctx, "Consistency check did not pass", map[string]interface{}{
					"userID": userID, "check": string(e.Type), "status": string(e.Status), "tradeID": e.TradeID,
				})
			}
		}
		report.Checks = append(report.Checks, entries...)
	}
	report.Finalize()

	v.logger.Info(ctx, "Validation completed", map[string]interface{}{
		"userID": userID, "status": string(report.OverallStatus), "checks": report.Summary.TotalChecks,
	})
	return report
}

func (v *Validator) load(ctx context.Context, userID string) *snapshot {
	s := &snapshot{userID: userID}

	var g errgroup.Group
	g.Go(func() error {
		s.trades, s.tradesErr = v.trades.FindTradesByUser(ctx, userID)
		return nil
	})
	g.Go(func() error {
		s.account, s.accountErr = v.accounts.FindAccount(ctx, userID)
		return nil
	})
	_ = g.Wait()

	switch {
	case s.tradesErr != nil:
		s.metricsErr = fmt.Errorf("trades unavailable: %w", s.tradesErr)
	case s.accountErr != nil:
		s.metricsErr = fmt.Errorf("account unavailable: %w", s.accountErr)
	default:
		s.metrics, s.metricsErr = v.computeMetrics(ctx, s.account, s.trades)
	}
	return s
}

func (v *Validator) computeMetrics(ctx context.Context, cfg *domain.AccountConfig, trades []*domain.Trade) (m *domain.AccountMetrics, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("metrics engine panicked: %v", r)
		}
	}()
	return v.engine.ComputeMetrics(ctx, cfg, trades)
}

// runIsolated runs one check, converting a panic into a FAIL entry so the other checks still run.
func runIsolated(typ domain.CheckType, fn checkFunc, s *snapshot) (entries []domain.ValidationCheck) {
	defer func() {
		if r := recover(); r != nil {
			entries = []domain.ValidationCheck{{
				Type:        typ,
				Status:      domain.CheckFail,
				Description: "check failed to run",
				Details:     fmt.Sprint(r),
			}}
		}
	}()
	return fn(s)
}

func checkPnL(s *snapshot) []domain.ValidationCheck {
	const typ = domain.CheckPnLConsistency
	if s.tradesErr != nil {
		return []domain.ValidationCheck{loadFailure(typ, domain.CheckFail, s.tradesErr)}
	}

	var out []domain.ValidationCheck
	checked := 0
	for _, t := range s.trades {
		if t == nil || !t.IsClosed() || t.GrossPnL == nil || t.NetPnL == nil {
			continue
		}
		checked++
		expected := domain.Dec(*t.GrossPnL).
			Sub(domain.Dec(t.Commission)).
			Sub(domain.Dec(t.EntryFees)).
			Sub(domain.Dec(t.ExitFees)).
			Sub(domain.Dec(t.Swap)).
			InexactFloat64()
		if !domain.WithinTolerance(*t.NetPnL, expected) {
			out = append(out, mismatch(typ, domain.CheckFail, t.ID,
				"net P&L does not equal gross P&L minus fees", expected, *t.NetPnL))
		}
	}
	if len(out) == 0 {
		out = append(out, pass(typ, fmt.Sprintf("net P&L consistent for %d closed trades", checked)))
	}
	return out
}

func checkBalance(s *snapshot) []domain.ValidationCheck {
	const typ = domain.CheckBalanceConsistency
	if entry, ok := accountPrecondition(typ, s); !ok {
		return []domain.ValidationCheck{entry}
	}

	expected, _ := replay(s.account.StartingBalance, s.trades)
	if !domain.WithinTolerance(expected, s.metrics.CurrentBalance) {
		return []domain.ValidationCheck{mismatch(typ, domain.CheckFail, "",
			"reported balance does not equal starting balance plus closed net P&L", expected, s.metrics.CurrentBalance)}
	}
	return []domain.ValidationCheck{pass(typ, "current balance matches starting balance plus closed net P&L")}
}

func (v *Validator) checkFees(s *snapshot) []domain.ValidationCheck {
	const typ = domain.CheckFeeConsistency
	if s.tradesErr != nil {
		return []domain.ValidationCheck{loadFailure(typ, domain.CheckWarning, s.tradesErr)}
	}

	var accountType domain.AccountType
	if s.account != nil {
		accountType = s.account.AccountType
	}

	var out []domain.ValidationCheck
	checked := 0
	for _, t := range s.trades {
		if t == nil || t.Market != domain.MarketFutures || t.Status == domain.StatusCancelled || t.Quantity <= 0 {
			continue
		}
		checked++
		broker := v.registry.DetectBroker(accountType, t.DataSource)
		expected := domain.Cents(v.registry.ApplicableSchedule(broker, t.Market).Compute(t.Quantity).Commission)
		if !domain.WithinTolerance(expected, t.Commission) {
			e := mismatch(typ, domain.CheckWarning, t.ID,
				"stored commission differs from the "+broker+" schedule", expected, t.Commission)
			e.Details = "manual overrides and negotiated rates are allowed"
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		out = append(out, pass(typ, fmt.Sprintf("commission matches fee schedule for %d futures trades", checked)))
	}
	return out
}

func checkDrawdown(s *snapshot) []domain.ValidationCheck {
	const typ = domain.CheckDrawdownConsistency
	if entry, ok := accountPrecondition(typ, s); !ok {
		return []domain.ValidationCheck{entry}
	}
	if !s.metrics.TrailingEnabled {
		return []domain.ValidationCheck{pass(typ, "trailing drawdown not configured for this account")}
	}

	var out []domain.ValidationCheck
	_, high := replay(s.account.StartingBalance, s.trades)
	expected, _ := risk.TrailingLimit(s.account, high)
	if !domain.WithinTolerance(expected, s.metrics.TrailingLimit) {
		out = append(out, mismatch(typ, domain.CheckFail, "",
			"reported trailing limit does not equal high-water mark minus trailing drawdown", expected, s.metrics.TrailingLimit))
	}
	if s.metrics.AccountHigh < s.metrics.CurrentBalance {
		e := mismatch(typ, domain.CheckWarning, "", "high-water mark is below the current balance",
			s.metrics.CurrentBalance, s.metrics.AccountHigh)
		e.Details = "high-water mark is stale"
		out = append(out, e)
	}
	if len(out) == 0 {
		out = append(out, pass(typ, "trailing limit consistent with high-water mark"))
	}
	return out
}

func checkDataIntegrity(s *snapshot) []domain.ValidationCheck {
	const typ = domain.CheckDataIntegrity
	if s.tradesErr != nil {
		return []domain.ValidationCheck{loadFailure(typ, domain.CheckFail, s.tradesErr)}
	}

	var out []domain.ValidationCheck
	add := func(status domain.CheckStatus, t *domain.Trade, desc string) {
		out = append(out, domain.ValidationCheck{Type: typ, Status: status, Description: desc, TradeID: t.ID})
	}
	for _, t := range s.trades {
		if t == nil {
			continue
		}
		if !(t.EntryPrice > 0) {
			add(domain.CheckFail, t, fmt.Sprintf("entry price %v is not positive", t.EntryPrice))
		}
		if t.ExitPrice != nil && !(*t.ExitPrice > 0) {
			add(domain.CheckFail, t, fmt.Sprintf("exit price %v is not positive", *t.ExitPrice))
		}
		if !(t.Quantity > 0) {
			add(domain.CheckFail, t, fmt.Sprintf("quantity %v is not positive", t.Quantity))
		}
		if t.IsClosed() && t.ExitPrice == nil {
			add(domain.CheckWarning, t, "closed trade has no exit price")
		}
		if t.IsClosed() && (t.ExitTime == nil || t.ExitTime.IsZero()) {
			add(domain.CheckWarning, t, "closed trade has no exit date")
		}
	}
	if len(out) == 0 {
		out = append(out, pass(typ, fmt.Sprintf("%d trades have valid prices and quantities", len(s.trades))))
	}
	return out
}

// replay independently recomputes the balance and high-water mark from closed trades.
func replay(startingBalance float64, trades []*domain.Trade) (balance, high float64) {
	points := risk.EquityCurve(startingBalance, trades)
	if len(points) == 0 {
		return domain.RoundCents(startingBalance), domain.RoundCents(startingBalance)
	}
	last := points[len(points)-1]
	return last.Balance, last.High
}

// accountPrecondition degrades account-dependent checks when their inputs are missing.
func accountPrecondition(typ domain.CheckType, s *snapshot) (domain.ValidationCheck, bool) {
	switch {
	case s.tradesErr != nil:
		return loadFailure(typ, domain.CheckFail, s.tradesErr), false
	case s.accountErr != nil:
		return loadFailure(typ, domain.CheckFail, s.accountErr), false
	case s.account == nil || errors.Is(s.metricsErr, ports.ErrNoAccountConfigured):
		return domain.ValidationCheck{Type: typ, Status: domain.CheckWarning, Description: "no account configured"}, false
	case s.metricsErr != nil:
		return domain.ValidationCheck{
			Type:        typ,
			Status:      domain.CheckFail,
			Description: "account metrics could not be computed",
			Details:     s.metricsErr.Error(),
		}, false
	}
	return domain.ValidationCheck{}, true
}

func pass(typ domain.CheckType, desc string) domain.ValidationCheck {
	return domain.ValidationCheck{Type: typ, Status: domain.CheckPass, Description: desc}
}

func loadFailure(typ domain.CheckType, status domain.CheckStatus, err error) domain.ValidationCheck {
	return domain.ValidationCheck{Type: typ, Status: status, Description: "records could not be loaded", Details: err.Error()}
}

func mismatch(typ domain.CheckType, status domain.CheckStatus, tradeID, desc string, expected, actual float64) domain.ValidationCheck {
	return domain.ValidationCheck{
		Type:          typ,
		Status:        status,
		Description:   desc,
		TradeID:       tradeID,
		ExpectedValue: domain.Float(domain.RoundCents(expected)),
		ActualValue:   domain.Float(actual),
		Tolerance:     domain.Float(domain.Tolerance),
	}
}
