package pnl

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tradejournal/internal/domain"
	"tradejournal/internal/fees"
	"tradejournal/internal/ports"
)

// FigureKind says which P&L figure, if any, is already known for a trade.
type FigureKind int

const (
	// FigureNone means only prices are known; gross is computed forward from them.
	FigureNone FigureKind = iota
	// FigureNet means an external net (fees already deducted) is known; gross is back-calculated.
	FigureNet
	// FigureGross means gross is known; net is derived by subtracting fees.
	FigureGross
)

func (k FigureKind) String() string {
	switch k {
	case FigureNet:
		return "net"
	case FigureGross:
		return "gross"
	default:
		return "forward"
	}
}

// KnownFigure is the externally supplied P&L figure for a trade.
type KnownFigure struct {
	Kind  FigureKind
	Value float64
}

// Forward requests computation from entry/exit prices.
func Forward() KnownFigure { return KnownFigure{Kind: FigureNone} }

// KnownNet wraps a broker-reported net P&L.
func KnownNet(v float64) KnownFigure { return KnownFigure{Kind: FigureNet, Value: v} }

// KnownGross wraps a gross P&L.
func KnownGross(v float64) KnownFigure { return KnownFigure{Kind: FigureGross, Value: v} }

// Result holds the reconciled figures, rounded to cents.
type Result struct {
	GrossPnL   float64
	NetPnL     float64
	Commission float64
	EntryFees  float64
	ExitFees   float64
	Swap       float64
	TotalFees  float64
	Multiplier float64
	Mode       FigureKind
}

// Apply copies the reconciled figures onto t.
func (r Result) Apply(t *domain.Trade) {
	t.GrossPnL = domain.Float(r.GrossPnL)
	t.NetPnL = domain.Float(r.NetPnL)
	t.Commission = r.Commission
	t.EntryFees = r.EntryFees
	t.ExitFees = r.ExitFees
	t.Swap = r.Swap
	t.ContractMultiplier = r.Multiplier
}

// Calculator derives gross and net P&L from a trade and a fee schedule.
type Calculator struct {
	registry *fees.Registry
	logger   ports.Logger
}

// NewCalculator creates a calculator backed by registry.
func NewCalculator(registry *fees.Registry, logger ports.Logger) *Calculator {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &Calculator{registry: registry, logger: logger}
}

// Reconcile computes the missing P&L figure for t using schedule.
//
// With a known net, gross = net + totalFees, so fees already netted out by a broker
// export are never deducted twice. Without a known figure, gross comes from prices:
// (exit - entry) * quantity * multiplier * sideSign, and net = gross - totalFees.
func (c *Calculator) Reconcile(ctx context.Context, t *domain.Trade, known KnownFigure, schedule fees.Schedule) (Result, error) {
	if err := c.checkInput(t, known); err != nil {
		return Result{}, err
	}

	multiplier := t.ContractMultiplier
	if multiplier <= 0 {
		if !c.registry.KnownSymbol(t.Symbol) {
			c.logger.Debug(ctx, "Unknown symbol, using default contract spec", map[string]interface{}{"symbol": t.Symbol})
		}
		multiplier = c.registry.LookupContractSpec(t.Symbol).Multiplier
	}

	breakdown := schedule.Compute(t.Quantity)
	swap := domain.Dec(t.Swap).Round(2)
	total := breakdown.Total().Add(swap)

	var gross, net decimal.Decimal
	switch known.Kind {
	case FigureNet:
		net = domain.Dec(known.Value).Round(2)
		gross = net.Add(total)
	case FigureGross:
		gross = domain.Dec(known.Value).Round(2)
		net = gross.Sub(total)
	default:
		gross = forwardGross(t, multiplier).Round(2)
		net = gross.Sub(total)
	}

	return Result{
		GrossPnL:   domain.Cents(gross),
		NetPnL:     domain.Cents(net),
		Commission: domain.Cents(breakdown.Commission),
		EntryFees:  domain.Cents(breakdown.EntryFees),
		ExitFees:   domain.Cents(breakdown.ExitFees),
		Swap:       domain.Cents(swap),
		TotalFees:  domain.Cents(total),
		Multiplier: multiplier,
		Mode:       known.Kind,
	}, nil
}

func forwardGross(t *domain.Trade, multiplier float64) decimal.Decimal {
	move := domain.Dec(*t.ExitPrice).Sub(domain.Dec(t.EntryPrice))
	return move.
		Mul(domain.Dec(t.Quantity)).
		Mul(domain.Dec(multiplier)).
		Mul(domain.Dec(t.Side.Sign()))
}

func (c *Calculator) checkInput(t *domain.Trade, known KnownFigure) error {
	if t == nil {
		return fmt.Errorf("%w: trade is required", ports.ErrInvalidTradeInput)
	}
	if !domain.IsFinite(t.Quantity) || t.Quantity <= 0 {
		return fmt.Errorf("%w: quantity %v must be positive", ports.ErrInvalidTradeInput, t.Quantity)
	}
	if !domain.IsFinite(t.EntryPrice) || t.EntryPrice <= 0 {
		return fmt.Errorf("%w: entry price %v must be positive", ports.ErrInvalidTradeInput, t.EntryPrice)
	}
	if t.ExitPrice != nil && (!domain.IsFinite(*t.ExitPrice) || *t.ExitPrice <= 0) {
		return fmt.Errorf("%w: exit price %v must be positive", ports.ErrInvalidTradeInput, *t.ExitPrice)
	}
	if !domain.IsFinite(t.Swap) || !domain.IsFinite(t.ContractMultiplier) || t.ContractMultiplier < 0 {
		return fmt.Errorf("%w: swap and contract multiplier must be finite", ports.ErrInvalidTradeInput)
	}
	switch known.Kind {
	case FigureNone:
		if t.ExitPrice == nil {
			return fmt.Errorf("%w: exit price is required to compute P&L from prices", ports.ErrInvalidTradeInput)
		}
		if !t.Side.Valid() {
			return fmt.Errorf("%w: side %q must be LONG or SHORT", ports.ErrInvalidTradeInput, t.Side)
		}
	case FigureNet, FigureGross:
		if t.ExitPrice == nil {
			return fmt.Errorf("%w: exit price is required to settle a closed trade", ports.ErrInvalidTradeInput)
		}
		if !domain.IsFinite(known.Value) {
			return fmt.Errorf("%w: known %s figure is not a number", ports.ErrInvalidTradeInput, known.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown figure kind %d", ports.ErrInvalidTradeInput, known.Kind)
	}
	return nil
}
