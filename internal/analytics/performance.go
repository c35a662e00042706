package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/internal/domain"
	"tradejournal/internal/risk"
)

// Performance summarizes the closed trades of an account. Money fields are in dollars,
// rounded to cents; ratios are fractions (0.25 means 25%).
type Performance struct {
	TotalTrades     int     `json:"totalTrades"`
	WinningTrades   int     `json:"winningTrades"`
	LosingTrades    int     `json:"losingTrades"`
	BreakevenTrades int     `json:"breakevenTrades"`
	WinRate         float64 `json:"winRate"`
	TotalNetPnL     float64 `json:"totalNetPnl"`
	TotalFees       float64 `json:"totalFees"`
	AverageWin      float64 `json:"averageWin"`
	AverageLoss     float64 `json:"averageLoss"` // negative
	LargestWin      float64 `json:"largestWin"`
	LargestLoss     float64 `json:"largestLoss"`
	ProfitFactor    float64 `json:"profitFactor"` // 0 when there are no losses
	Expectancy      float64 `json:"expectancy"`
	FinalBalance    float64 `json:"finalBalance"`
	ReturnOnBalance float64 `json:"returnOnBalance"`

	MaxConsecutiveWins   int           `json:"maxConsecutiveWins"`
	MaxConsecutiveLosses int           `json:"maxConsecutiveLosses"`
	AverageHoldTime      time.Duration `json:"averageHoldTime"`
	MaxDrawdown          float64       `json:"maxDrawdown"`        // dollars below the high-water mark
	MaxDrawdownPercent   float64       `json:"maxDrawdownPercent"` // fraction of the high-water mark

	MonthlyNetPnL []MonthlyPnL  `json:"monthlyNetPnl"`
	Drawdowns     []Drawdown    `json:"drawdowns"`
	EquityCurve   []EquityPoint `json:"equityCurve"`
}

// Drawdown is one excursion below the high-water mark. Recovered is false for a
// drawdown still open at the last trade.
type Drawdown struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Peak      float64   `json:"peak"`
	Trough    float64   `json:"trough"`
	Depth     float64   `json:"depth"`
	Recovered bool      `json:"recovered"`
}

// EquityPoint is the balance after one closed trade.
type EquityPoint struct {
	Time     time.Time `json:"time"`
	TradeID  string    `json:"tradeId"`
	Balance  float64   `json:"balance"`
	Drawdown float64   `json:"drawdown"`
}

// MonthlyPnL is the net P&L of trades settled in one calendar month.
type MonthlyPnL struct {
	Month  string  `json:"month"` // 2006-01
	NetPnL float64 `json:"netPnl"`
}

// Analyze computes performance statistics for the closed trades, replayed in settlement
// order from startingBalance. Months are taken in loc (UTC when nil).
func Analyze(startingBalance float64, trades []*domain.Trade, loc *time.Location) *Performance {
	if loc == nil {
		loc = time.UTC
	}
	p := &Performance{
		FinalBalance:  domain.RoundCents(startingBalance),
		MonthlyNetPnL: make([]MonthlyPnL, 0),
		Drawdowns:     make([]Drawdown, 0),
		EquityCurve:   make([]EquityPoint, 0),
	}

	byID := make(map[string]*domain.Trade, len(trades))
	for _, t := range trades {
		if t != nil {
			byID[t.ID] = t
		}
	}
	curve := risk.EquityCurve(startingBalance, trades)
	if len(curve) == 0 {
		return p
	}

	var (
		sumWins, sumLosses, sumNet, sumFees decimal.Decimal
		winStreak, lossStreak               int
		holdTotal                           time.Duration
		held                                int
		current                             *Drawdown
		monthly                             = make(map[string]decimal.Decimal)
	)

	for _, pt := range curve {
		t := byID[pt.TradeID]
		net := domain.Dec(t.Net())
		sumNet = sumNet.Add(net)
		sumFees = sumFees.Add(domain.Dec(t.TotalFees()))
		p.TotalTrades++

		switch {
		case net.IsPositive():
			p.WinningTrades++
			sumWins = sumWins.Add(net)
			winStreak++
			lossStreak = 0
			if v := domain.Cents(net); v > p.LargestWin {
				p.LargestWin = v
			}
		case net.IsNegative():
			p.LosingTrades++
			sumLosses = sumLosses.Add(net)
			lossStreak++
			winStreak = 0
			if v := domain.Cents(net); v < p.LargestLoss {
				p.LargestLoss = v
			}
		default:
			p.BreakevenTrades++
			winStreak, lossStreak = 0, 0
		}
		p.MaxConsecutiveWins = max(p.MaxConsecutiveWins, winStreak)
		p.MaxConsecutiveLosses = max(p.MaxConsecutiveLosses, lossStreak)

		if t.ExitTime != nil {
			holdTotal += t.ExitTime.Sub(t.EntryTime)
			held++
		}
		month := pt.Time.In(loc).Format("2006-01")
		monthly[month] = monthly[month].Add(net)

		depth := domain.Cents(domain.Dec(pt.High).Sub(domain.Dec(pt.Balance)))
		p.EquityCurve = append(p.EquityCurve, EquityPoint{Time: pt.Time, TradeID: pt.TradeID, Balance: pt.Balance, Drawdown: depth})

		if depth > 0 {
			if current == nil {
				current = &Drawdown{Start: pt.Time, Peak: pt.High, Trough: pt.Balance}
			}
			if pt.Balance < current.Trough {
				current.Trough = pt.Balance
			}
			current.Depth = domain.Cents(domain.Dec(current.Peak).Sub(domain.Dec(current.Trough)))
			current.End = pt.Time
			if depth > p.MaxDrawdown {
				p.MaxDrawdown = depth
				if pt.High > 0 {
					p.MaxDrawdownPercent = domain.Dec(depth).Div(domain.Dec(pt.High)).Round(4).InexactFloat64()
				}
			}
		} else if current != nil {
			current.End = pt.Time
			current.Recovered = true
			p.Drawdowns = append(p.Drawdowns, *current)
			current = nil
		}
	}
	if current != nil {
		p.Drawdowns = append(p.Drawdowns, *current)
	}

	n := decimal.NewFromInt(int64(p.TotalTrades))
	p.TotalNetPnL = domain.Cents(sumNet)
	p.TotalFees = domain.Cents(sumFees)
	p.FinalBalance = curve[len(curve)-1].Balance
	p.WinRate = decimal.NewFromInt(int64(p.WinningTrades)).Div(n).Round(4).InexactFloat64()
	p.Expectancy = domain.Cents(sumNet.Div(n))
	if held > 0 {
		p.AverageHoldTime = holdTotal / time.Duration(held)
	}
	if p.WinningTrades > 0 {
		p.AverageWin = domain.Cents(sumWins.Div(decimal.NewFromInt(int64(p.WinningTrades))))
	}
	if p.LosingTrades > 0 {
		p.AverageLoss = domain.Cents(sumLosses.Div(decimal.NewFromInt(int64(p.LosingTrades))))
		p.ProfitFactor = sumWins.Div(sumLosses.Abs()).Round(2).InexactFloat64()
	}
	if startingBalance > 0 {
		p.ReturnOnBalance = sumNet.Div(domain.Dec(startingBalance)).Round(4).InexactFloat64()
	}

	for month, v := range monthly {
		p.MonthlyNetPnL = append(p.MonthlyNetPnL, MonthlyPnL{Month: month, NetPnL: domain.Cents(v)})
	}
	sort.Slice(p.MonthlyNetPnL, func(i, j int) bool {
		return p.MonthlyNetPnL[i].Month < p.MonthlyNetPnL[j].Month
	})
	return p
}
