package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/domain"
)

func closedTrade(id string, exit time.Time, net float64) *domain.Trade {
	return &domain.Trade{
		ID:         id,
		Symbol:     "MNQ",
		Side:       domain.Long,
		Quantity:   1,
		EntryPrice: 18000,
		ExitPrice:  domain.Float(18001),
		EntryTime:  exit.Add(-30 * time.Minute),
		ExitTime:   domain.Time(exit),
		Status:     domain.StatusClosed,
		NetPnL:     domain.Float(net),
		Commission: 2,
	}
}

func TestAnalyze(t *testing.T) {
	jan := time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 5, 15, 0, 0, 0, time.UTC)
	trades := []*domain.Trade{
		// Out of order on purpose: replay follows settlement time.
		closedTrade("04", feb.Add(time.Hour), 200),
		closedTrade("01", jan, 100),
		closedTrade("02", jan.Add(time.Hour), -50),
		closedTrade("03", feb, -30),
		{ID: "05", Symbol: "ES", Side: domain.Short, Quantity: 1, EntryPrice: 5000, EntryTime: feb, Status: domain.StatusOpen},
	}

	p := Analyze(1000, trades, time.UTC)

	assert.Equal(t, 4, p.TotalTrades)
	assert.Equal(t, 2, p.WinningTrades)
	assert.Equal(t, 2, p.LosingTrades)
	assert.Equal(t, 0.5, p.WinRate)
	assert.Equal(t, 220.0, p.TotalNetPnL)
	assert.Equal(t, 8.0, p.TotalFees)
	assert.Equal(t, 150.0, p.AverageWin)
	assert.Equal(t, -40.0, p.AverageLoss)
	assert.Equal(t, 200.0, p.LargestWin)
	assert.Equal(t, -50.0, p.LargestLoss)
	assert.Equal(t, 3.75, p.ProfitFactor)
	assert.Equal(t, 55.0, p.Expectancy)
	assert.Equal(t, 1220.0, p.FinalBalance)
	assert.Equal(t, 0.22, p.ReturnOnBalance)
	assert.Equal(t, 1, p.MaxConsecutiveWins)
	assert.Equal(t, 2, p.MaxConsecutiveLosses)
	assert.Equal(t, 30*time.Minute, p.AverageHoldTime)

	assert.Equal(t, 80.0, p.MaxDrawdown)
	assert.Equal(t, 0.0727, p.MaxDrawdownPercent)
	require.Len(t, p.Drawdowns, 1)
	dd := p.Drawdowns[0]
	assert.Equal(t, 1100.0, dd.Peak)
	assert.Equal(t, 1020.0, dd.Trough)
	assert.Equal(t, 80.0, dd.Depth)
	assert.True(t, dd.Recovered)
	assert.True(t, dd.Start.Equal(jan.Add(time.Hour)))
	assert.True(t, dd.End.Equal(feb.Add(time.Hour)))

	assert.Equal(t, []MonthlyPnL{{Month: "2024-01", NetPnL: 50}, {Month: "2024-02", NetPnL: 170}}, p.MonthlyNetPnL)

	require.Len(t, p.EquityCurve, 4)
	assert.Equal(t, "01", p.EquityCurve[0].TradeID)
	assert.Equal(t, 80.0, p.EquityCurve[2].Drawdown)
}

func TestAnalyze_Edges(t *testing.T) {
	at := time.Date(2024, 1, 31, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		trades []*domain.Trade
		loc    *time.Location
		check  func(t *testing.T, p *Performance)
	}{
		{
			name:   "no closed trades",
			trades: nil,
			check: func(t *testing.T, p *Performance) {
				assert.Zero(t, p.TotalTrades)
				assert.Equal(t, 1000.0, p.FinalBalance)
				assert.Empty(t, p.EquityCurve)
			},
		},
		{
			name:   "breakeven and no losses",
			trades: []*domain.Trade{closedTrade("01", at, 0), closedTrade("02", at.Add(time.Minute), 25)},
			check: func(t *testing.T, p *Performance) {
				assert.Equal(t, 1, p.BreakevenTrades)
				assert.Zero(t, p.ProfitFactor)
				assert.Zero(t, p.AverageLoss)
				assert.Empty(t, p.Drawdowns)
			},
		},
		{
			name:   "open drawdown",
			trades: []*domain.Trade{closedTrade("01", at, -10)},
			check: func(t *testing.T, p *Performance) {
				require.Len(t, p.Drawdowns, 1)
				assert.False(t, p.Drawdowns[0].Recovered)
				assert.Equal(t, 10.0, p.MaxDrawdown)
			},
		},
		{
			name: "hold time averages only trades with an exit time",
			trades: func() []*domain.Trade {
				undated := closedTrade("01", at, 5)
				undated.ExitTime = nil
				return []*domain.Trade{undated, closedTrade("02", at.Add(time.Hour), 5)}
			}(),
			check: func(t *testing.T, p *Performance) {
				assert.Equal(t, 2, p.TotalTrades)
				assert.Equal(t, 30*time.Minute, p.AverageHoldTime)
			},
		},
		{
			name:   "month in account zone",
			trades: []*domain.Trade{closedTrade("01", at, 10)},
			loc:    time.FixedZone("EET", 2*60*60),
			check: func(t *testing.T, p *Performance) {
				require.Len(t, p.MonthlyNetPnL, 1)
				assert.Equal(t, "2024-02", p.MonthlyNetPnL[0].Month)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Analyze(1000, tt.trades, tt.loc))
		})
	}
}
