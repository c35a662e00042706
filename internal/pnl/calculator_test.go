package pnl

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/domain"
	"tradejournal/internal/fees"
	"tradejournal/internal/ports"
)

var testSchedule = fees.Schedule{Broker: "test", CommissionPerRoundTrip: 1.34, EntryFeePerUnit: 0.05, ExitFeePerUnit: 0.05}

func newTestCalculator() *Calculator {
	return NewCalculator(fees.NewRegistry(fees.DefaultTables()), nil)
}

func closedTrade(symbol string, side domain.Side, qty, entry, exit float64) *domain.Trade {
	now := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	return &domain.Trade{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		EntryPrice: entry,
		ExitPrice:  domain.Float(exit),
		EntryTime:  now.Add(-time.Hour),
		ExitTime:   domain.Time(now),
		Market:     domain.MarketFutures,
		Status:     domain.StatusClosed,
	}
}

func TestReconcile_BackCalculation(t *testing.T) {
	calc := newTestCalculator()
	trade := closedTrade("ESZ4", domain.Long, 2, 5000, 5001.5)

	res, err := calc.Reconcile(context.Background(), trade, KnownNet(147.12), testSchedule)
	require.NoError(t, err)

	assert.Equal(t, 2.68, res.Commission)
	assert.Equal(t, 0.10, res.EntryFees)
	assert.Equal(t, 0.10, res.ExitFees)
	assert.Equal(t, 2.88, res.TotalFees)
	assert.Equal(t, 150.00, res.GrossPnL)
	assert.Equal(t, 147.12, res.NetPnL)
	assert.Equal(t, FigureNet, res.Mode)
}

func TestReconcile_Forward(t *testing.T) {
	calc := newTestCalculator()

	tests := []struct {
		name      string
		trade     *domain.Trade
		wantGross float64
		wantNet   float64
	}{
		{"long winner", closedTrade("MNQH25", domain.Long, 2, 18000, 18010), 40.00, 37.12},
		{"short winner", closedTrade("MNQH25", domain.Short, 2, 18010, 18000), 40.00, 37.12},
		{"long loser", closedTrade("ES", domain.Long, 1, 5000, 4990.25), -487.50, -488.94},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := calc.Reconcile(context.Background(), tt.trade, Forward(), testSchedule)
			require.NoError(t, err)
			assert.Equal(t, tt.wantGross, res.GrossPnL)
			assert.Equal(t, tt.wantNet, res.NetPnL)
		})
	}
}

func TestReconcile_KnownGross(t *testing.T) {
	calc := newTestCalculator()
	trade := closedTrade("ES", domain.Long, 2, 5000, 5001.5)

	res, err := calc.Reconcile(context.Background(), trade, KnownGross(150), testSchedule)
	require.NoError(t, err)
	assert.Equal(t, 147.12, res.NetPnL)
}

func TestReconcile_RoundTrip(t *testing.T) {
	calc := newTestCalculator()
	ctx := context.Background()

	trades := []*domain.Trade{
		closedTrade("ES", domain.Long, 3, 5012.25, 5019.75),
		closedTrade("MNQ", domain.Short, 7, 18123.5, 18201.25),
		closedTrade("CLF25", domain.Long, 1, 71.37, 70.93),
		closedTrade("UNMAPPED", domain.Short, 13, 101.333, 99.777),
	}
	for _, trade := range trades {
		fwd, err := calc.Reconcile(ctx, trade, Forward(), testSchedule)
		require.NoError(t, err)

		back, err := calc.Reconcile(ctx, trade, KnownNet(fwd.NetPnL), testSchedule)
		require.NoError(t, err)

		assert.True(t, domain.WithinTolerance(fwd.GrossPnL, back.GrossPnL),
			"%s: forward gross %v, back-calculated gross %v", trade.Symbol, fwd.GrossPnL, back.GrossPnL)
	}
}

func TestReconcile_UnknownSymbolAndBroker(t *testing.T) {
	registry := fees.NewRegistry(fees.DefaultTables())
	calc := NewCalculator(registry, nil)
	trade := closedTrade("XYZ123", domain.Long, 10, 1.5, 2.25)

	schedule := registry.ApplicableSchedule(registry.DetectBroker("", "unheard_of"), domain.MarketFutures)
	res, err := calc.Reconcile(context.Background(), trade, Forward(), schedule)
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.Multiplier)
	assert.Equal(t, 7.5, res.GrossPnL)
	assert.Equal(t, 7.5, res.NetPnL)
	assert.Zero(t, res.TotalFees)
	assert.False(t, math.IsNaN(res.NetPnL))
}

func TestReconcile_UsesDenormalizedMultiplier(t *testing.T) {
	calc := newTestCalculator()
	trade := closedTrade("ES", domain.Long, 1, 100, 101)
	trade.ContractMultiplier = 10

	res, err := calc.Reconcile(context.Background(), trade, Forward(), fees.Schedule{})
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.GrossPnL)
	assert.Equal(t, 10.0, res.Multiplier)
}

func TestReconcile_SwapIncludedInFees(t *testing.T) {
	calc := newTestCalculator()
	trade := closedTrade("ES", domain.Long, 2, 5000, 5001.5)
	trade.Swap = 1.25

	res, err := calc.Reconcile(context.Background(), trade, Forward(), testSchedule)
	require.NoError(t, err)
	assert.Equal(t, 4.13, res.TotalFees)
	assert.Equal(t, 145.87, res.NetPnL)

	res.Apply(trade)
	assert.True(t, domain.WithinTolerance(trade.Net(), trade.Gross()-trade.TotalFees()))
}

func TestReconcile_InvalidInput(t *testing.T) {
	calc := newTestCalculator()

	tests := []struct {
		name  string
		trade func() *domain.Trade
		known KnownFigure
	}{
		{"nil trade", func() *domain.Trade { return nil }, Forward()},
		{"zero quantity", func() *domain.Trade { return closedTrade("ES", domain.Long, 0, 1, 2) }, Forward()},
		{"negative quantity", func() *domain.Trade { return closedTrade("ES", domain.Long, -1, 1, 2) }, KnownNet(5)},
		{"zero entry", func() *domain.Trade { return closedTrade("ES", domain.Long, 1, 0, 2) }, Forward()},
		{"negative exit", func() *domain.Trade { return closedTrade("ES", domain.Long, 1, 1, -2) }, KnownNet(5)},
		{"missing exit for forward", func() *domain.Trade {
			tr := closedTrade("ES", domain.Long, 1, 1, 2)
			tr.ExitPrice = nil
			return tr
		}, Forward()},
		{"missing exit for known net", func() *domain.Trade {
			tr := closedTrade("ES", domain.Long, 2, 5000, 5001)
			tr.ExitPrice = nil
			return tr
		}, KnownNet(-10)},
		{"missing exit for known gross", func() *domain.Trade {
			tr := closedTrade("ES", domain.Long, 2, 5000, 5001)
			tr.ExitPrice = nil
			return tr
		}, KnownGross(-10)},
		{"nan exit", func() *domain.Trade { return closedTrade("ES", domain.Long, 1, 1, math.NaN()) }, KnownNet(5)},
		{"bad side", func() *domain.Trade { return closedTrade("ES", "SIDEWAYS", 1, 1, 2) }, Forward()},
		{"nan net", func() *domain.Trade { return closedTrade("ES", domain.Long, 1, 1, 2) }, KnownNet(math.NaN())},
		{"nan quantity", func() *domain.Trade { return closedTrade("ES", domain.Long, math.NaN(), 1, 2) }, Forward()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Reconcile(context.Background(), tt.trade(), tt.known, testSchedule)
			assert.ErrorIs(t, err, ports.ErrInvalidTradeInput)
		})
	}
}
