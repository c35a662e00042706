package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/adapters/memory"
	"tradejournal/internal/domain"
	"tradejournal/internal/fees"
	"tradejournal/internal/pnl"
	"tradejournal/internal/ports"
	"tradejournal/internal/risk"
	"tradejournal/internal/validation"
)

// Mock implementations
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

var testNow = time.Date(2024, 6, 14, 18, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *JournalService
	repo   *memory.Repository
	logger *mockLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := &mockLogger{}
	repo := memory.NewRepository()
	registry := fees.NewRegistry(fees.DefaultTables())
	engine := risk.NewEngine(risk.Config{Now: func() time.Time { return testNow }, Logger: logger})
	validator, err := validation.New(validation.Config{
		Trades:   repo,
		Accounts: repo,
		Registry: registry,
		Engine:   engine,
		Logger:   logger,
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)

	svc, err := NewJournalService(logger, registry, pnl.NewCalculator(registry, logger), engine, validator, repo, repo)
	require.NoError(t, err)
	return &fixture{svc: svc, repo: repo, logger: logger}
}

func (f *fixture) configure(t *testing.T, cfg *domain.AccountConfig) {
	t.Helper()
	require.NoError(t, f.svc.ConfigureAccount(context.Background(), cfg))
}

func evaluation(user string) *domain.AccountConfig {
	return &domain.AccountConfig{
		UserID:                 user,
		StartingBalance:        50000,
		StartDate:              testNow.AddDate(0, -1, 0),
		TrailingDrawdownAmount: 2000,
		AccountType:            domain.AccountEvaluation,
	}
}

func closedMNQ(entry time.Time) *domain.Trade {
	return &domain.Trade{
		Symbol:     "MNQM24",
		Side:       domain.Long,
		Quantity:   2,
		EntryPrice: 18000,
		ExitPrice:  domain.Float(18037.5),
		EntryTime:  entry,
		ExitTime:   domain.Time(entry.Add(20 * time.Minute)),
	}
}

func TestNewJournalService(t *testing.T) {
	repo := memory.NewRepository()
	_, err := NewJournalService(&mockLogger{}, nil, nil, nil, nil, repo, repo)
	assert.Error(t, err)
}

func TestJournalService_RecordTrade(t *testing.T) {
	ctx := context.Background()
	entry := testNow.Add(-3 * time.Hour)

	tests := []struct {
		name      string
		account   *domain.AccountConfig
		trade     *domain.Trade
		known     pnl.KnownFigure
		wantErr   error
		wantState domain.TradeStatus
		wantGross *float64
		wantNet   *float64
	}{
		{
			name:      "back-calculates gross from broker net",
			account:   evaluation("u1"),
			trade:     closedMNQ(entry),
			known:     pnl.KnownNet(147.12),
			wantState: domain.StatusClosed,
			wantGross: domain.Float(150),
			wantNet:   domain.Float(147.12),
		},
		{
			name: "forward from prices without an account uses zero fees",
			trade: &domain.Trade{
				Symbol: "es", Side: domain.Long, Quantity: 1, EntryPrice: 5000,
				ExitPrice: domain.Float(5010), EntryTime: entry, ExitTime: domain.Time(entry.Add(time.Minute)),
			},
			known:     pnl.Forward(),
			wantState: domain.StatusClosed,
			wantGross: domain.Float(500),
			wantNet:   domain.Float(500),
		},
		{
			name:      "no exit stays open",
			trade:     &domain.Trade{Symbol: "NQ", Side: domain.Short, Quantity: 1, EntryPrice: 19000, EntryTime: entry},
			known:     pnl.Forward(),
			wantState: domain.StatusOpen,
		},
		{
			name: "open trade with realized figure",
			trade: &domain.Trade{
				Symbol: "NQ", Side: domain.Short, Quantity: 1, EntryPrice: 19000, EntryTime: entry, Status: domain.StatusOpen,
			},
			known:   pnl.KnownNet(10),
			wantErr: ports.ErrInvalidTradeInput,
		},
		{
			name:    "missing symbol",
			trade:   &domain.Trade{Side: domain.Long, Quantity: 1, EntryPrice: 10, EntryTime: entry},
			known:   pnl.Forward(),
			wantErr: ports.ErrInvalidTradeInput,
		},
		{
			name: "exit before entry",
			trade: &domain.Trade{
				Symbol: "ES", Side: domain.Long, Quantity: 1, EntryPrice: 10, EntryTime: entry,
				ExitPrice: domain.Float(11), ExitTime: domain.Time(entry.Add(-time.Minute)),
			},
			known:   pnl.Forward(),
			wantErr: ports.ErrInvalidTradeInput,
		},
		{
			name: "closed with a known net but no exit",
			trade: &domain.Trade{
				Symbol: "ES", Side: domain.Long, Quantity: 1, EntryPrice: 5000, EntryTime: entry, Status: domain.StatusClosed,
			},
			known:   pnl.KnownNet(100),
			wantErr: ports.ErrInvalidTradeInput,
		},
		{
			name: "known gross defaults to closed and needs an exit",
			trade: &domain.Trade{
				Symbol: "ES", Side: domain.Long, Quantity: 1, EntryPrice: 5000, EntryTime: entry,
			},
			known:   pnl.KnownGross(50),
			wantErr: ports.ErrInvalidTradeInput,
		},
		{
			name: "exit price without exit time",
			trade: &domain.Trade{
				Symbol: "ES", Side: domain.Long, Quantity: 1, EntryPrice: 5000, EntryTime: entry,
				ExitPrice: domain.Float(5001),
			},
			known:   pnl.Forward(),
			wantErr: ports.ErrInvalidTradeInput,
		},
		{
			name: "exit time without exit price",
			trade: &domain.Trade{
				Symbol: "ES", Side: domain.Long, Quantity: 1, EntryPrice: 5000, EntryTime: entry,
				ExitTime: domain.Time(entry.Add(time.Minute)), Status: domain.StatusClosed,
			},
			known:   pnl.Forward(),
			wantErr: ports.ErrInvalidTradeInput,
		},
		{
			name:    "nil trade",
			known:   pnl.Forward(),
			wantErr: ports.ErrInvalidTradeInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			user := "u1"
			if tt.account != nil {
				f.configure(t, tt.account)
			}

			got, err := f.svc.RecordTrade(ctx, user, tt.trade, tt.known)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				stored, ferr := f.repo.FindTradesByUser(ctx, user)
				require.NoError(t, ferr)
				assert.Empty(t, stored)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, tt.wantState, got.Status)
			assert.Equal(t, tt.wantGross, got.GrossPnL)
			assert.Equal(t, tt.wantNet, got.NetPnL)

			stored, err := f.repo.FindTradeByID(ctx, got.ID)
			require.NoError(t, err)
			assert.Equal(t, got, stored)
			assert.Contains(t, f.logger.infoMsgs, "Trade recorded")
		})
	}
}

func TestJournalService_RecordTrade_AppliesBrokerFees(t *testing.T) {
	f := newFixture(t)
	f.configure(t, evaluation("u1"))

	got, err := f.svc.RecordTrade(context.Background(), "u1", closedMNQ(testNow.Add(-time.Hour)), pnl.Forward())
	require.NoError(t, err)
	// 37.5 points * 2 contracts * $2.
	assert.Equal(t, 150.0, *got.GrossPnL)
	assert.Equal(t, 2.68, got.Commission)
	assert.Equal(t, 0.10, got.EntryFees)
	assert.Equal(t, 0.10, got.ExitFees)
	assert.Equal(t, 147.12, *got.NetPnL)
	assert.Equal(t, 2.0, got.ContractMultiplier)
}

func TestJournalService_CloseTrade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	entry := testNow.Add(-2 * time.Hour)

	open, err := f.svc.RecordTrade(ctx, "u1", &domain.Trade{
		Symbol: "ES", Side: domain.Short, Quantity: 2, EntryPrice: 5010, EntryTime: entry,
	}, pnl.Forward())
	require.NoError(t, err)
	require.Equal(t, domain.StatusOpen, open.Status)

	closed, err := f.svc.CloseTrade(ctx, open.ID, 5000, entry.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	assert.Equal(t, 1000.0, *closed.GrossPnL)
	assert.Equal(t, 1000.0, *closed.NetPnL)

	_, err = f.svc.CloseTrade(ctx, open.ID, 5000, entry.Add(time.Hour))
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	_, err = f.svc.CloseTrade(ctx, "missing", 5000, entry)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	another, err := f.svc.RecordTrade(ctx, "u1", &domain.Trade{
		Symbol: "ES", Side: domain.Long, Quantity: 1, EntryPrice: 5000, EntryTime: entry,
	}, pnl.Forward())
	require.NoError(t, err)
	_, err = f.svc.CloseTrade(ctx, another.ID, 5001, entry.Add(-time.Second))
	assert.ErrorIs(t, err, ports.ErrInvalidTradeInput)
}

func TestJournalService_ImportTrades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.configure(t, evaluation("u1"))
	entry := testNow.Add(-5 * time.Hour)

	rows := []domain.ImportRow{
		{Line: 2, Symbol: "MNQM24", Side: domain.Long, Quantity: 2, EntryPrice: 18000, ExitPrice: domain.Float(18037.5),
			EntryTime: entry, ExitTime: domain.Time(entry.Add(time.Minute)), NetPnL: 147.12},
		{Line: 3, Symbol: "MNQM24", Side: domain.Long, Quantity: 0, EntryPrice: 18000, EntryTime: entry, NetPnL: 10},
		{Line: 4, Symbol: "MES", Side: domain.Short, Quantity: 1, EntryPrice: 5200, ExitPrice: domain.Float(5210),
			EntryTime: entry.Add(time.Hour), ExitTime: domain.Time(entry.Add(2 * time.Hour)), NetPnL: -51.44},
		{Line: 5, Symbol: "ES", Side: domain.Long, Quantity: 1, EntryPrice: 5000, EntryTime: entry, NetPnL: 1250},
		{Line: 6, Symbol: "ES", Side: domain.Long, Quantity: 1, EntryPrice: 5000, ExitPrice: domain.Float(5010),
			EntryTime: entry, NetPnL: 500},
	}

	result, err := f.svc.ImportTrades(ctx, "u1", domain.SourceTradovateCSV, rows)
	require.NoError(t, err)
	assert.Len(t, result.Imported, 2)
	require.Len(t, result.Failed, 3)
	assert.Equal(t, 3, result.Failed[0].Line)
	assert.Contains(t, result.Failed[0].Reason, "quantity")
	assert.Equal(t, 5, result.Failed[1].Line)
	assert.Contains(t, result.Failed[1].Reason, "exit price")
	assert.Equal(t, 6, result.Failed[2].Line)
	assert.Contains(t, result.Failed[2].Reason, "exit time")

	trades, err := f.svc.Trades(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, domain.SourceTradovateCSV, trades[0].DataSource)
	assert.Equal(t, 150.0, *trades[0].GrossPnL)
	// -51.44 net + 1.34 + 0.05 + 0.05 fees.
	assert.Equal(t, -50.0, *trades[1].GrossPnL)
}

func TestJournalService_ImportTrades_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.svc.ImportTrades(ctx, "u1", "", []domain.ImportRow{{Line: 2}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Imported)
}

func TestJournalService_Dashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Dashboard(ctx, "u1")
	assert.ErrorIs(t, err, ports.ErrNoAccountConfigured)

	f.configure(t, evaluation("u1"))
	_, err = f.svc.RecordTrade(ctx, "u1", closedMNQ(testNow.Add(-30*time.Hour)), pnl.KnownNet(147.12))
	require.NoError(t, err)
	_, err = f.svc.RecordTrade(ctx, "u1", closedMNQ(testNow.Add(-2*time.Hour)), pnl.KnownNet(-100))
	require.NoError(t, err)

	m, err := f.svc.Dashboard(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50047.12, m.CurrentBalance)
	assert.Equal(t, 50147.12, m.AccountHigh)
	assert.Equal(t, 48147.12, m.TrailingLimit)
	assert.True(t, m.WithinTrailingLimit)
	assert.Equal(t, -100.0, m.DailyPnL)
	assert.Equal(t, 2, m.ClosedTrades)
}

func TestJournalService_ConfigureAccount(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     *domain.AccountConfig
		wantErr error
	}{
		{name: "nil config", cfg: nil, wantErr: ports.ErrInvalidAccountConfig},
		{name: "missing user", cfg: &domain.AccountConfig{StartingBalance: 1}, wantErr: ports.ErrInvalidAccountConfig},
		{name: "zero balance", cfg: &domain.AccountConfig{UserID: "u1"}, wantErr: ports.ErrInvalidAccountConfig},
		{
			name:    "evaluation without trailing amount",
			cfg:     &domain.AccountConfig{UserID: "u1", StartingBalance: 50000, AccountType: domain.AccountEvaluation},
			wantErr: ports.ErrInvalidAccountConfig,
		},
		{
			name:    "unknown timezone",
			cfg:     &domain.AccountConfig{UserID: "u1", StartingBalance: 50000, Timezone: "Nowhere/Town"},
			wantErr: ports.ErrInvalidAccountConfig,
		},
		{name: "custom defaults", cfg: &domain.AccountConfig{UserID: "u1", StartingBalance: 25000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.svc.ConfigureAccount(ctx, tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			stored, err := f.repo.FindAccount(ctx, tt.cfg.UserID)
			require.NoError(t, err)
			assert.Equal(t, domain.AccountCustom, stored.AccountType)
		})
	}
}

func TestJournalService_RecordFirstPayout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.RecordFirstPayout(ctx, "u1")
	assert.ErrorIs(t, err, ports.ErrNoAccountConfigured)

	f.configure(t, evaluation("u1"))
	_, err = f.svc.RecordFirstPayout(ctx, "u1")
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	funded := evaluation("u2")
	funded.AccountType = domain.AccountFunded
	funded.FundedLive = true
	f.configure(t, funded)
	_, err = f.svc.RecordTrade(ctx, "u2", closedMNQ(testNow.Add(-time.Hour)), pnl.KnownNet(147.12))
	require.NoError(t, err)

	before, err := f.svc.Dashboard(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 48147.12, before.TrailingLimit)

	cfg, err := f.svc.RecordFirstPayout(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, cfg.FirstPayoutReceived)

	after, err := f.svc.Dashboard(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 0.0, after.TrailingLimit)
	assert.True(t, after.PayoutLockApplied)

	again, err := f.svc.RecordFirstPayout(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, again.FirstPayoutReceived)
}

func TestJournalService_Diagnostics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.configure(t, evaluation("u1"))

	_, err := f.svc.RecordTrade(ctx, "u1", closedMNQ(testNow.Add(-26*time.Hour)), pnl.KnownNet(147.12))
	require.NoError(t, err)
	_, err = f.svc.RecordTrade(ctx, "u1", closedMNQ(testNow.Add(-time.Hour)), pnl.Forward())
	require.NoError(t, err)

	report := f.svc.Diagnostics(ctx, "u1")
	assert.Equal(t, domain.StatusValid, report.OverallStatus)
	assert.Zero(t, report.Summary.FailedChecks)
	assert.Zero(t, report.Summary.WarningChecks)
}

func TestJournalService_Performance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Performance(ctx, "u1")
	assert.ErrorIs(t, err, ports.ErrNoAccountConfigured)

	f.configure(t, evaluation("u1"))
	_, err = f.svc.RecordTrade(ctx, "u1", closedMNQ(testNow.Add(-30*time.Hour)), pnl.KnownNet(147.12))
	require.NoError(t, err)
	_, err = f.svc.RecordTrade(ctx, "u1", closedMNQ(testNow.Add(-2*time.Hour)), pnl.KnownNet(-100))
	require.NoError(t, err)

	p, err := f.svc.Performance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.TotalTrades)
	assert.Equal(t, 0.5, p.WinRate)
	assert.Equal(t, 47.12, p.TotalNetPnL)
	assert.Equal(t, 50047.12, p.FinalBalance)
	assert.Equal(t, 100.0, p.MaxDrawdown)
	assert.Equal(t, 1.47, p.ProfitFactor)
}

func TestJournalService_TradesBetween(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.RecordTrade(ctx, "u1", closedMNQ(testNow.Add(-30*time.Hour)), pnl.KnownNet(147.12))
	require.NoError(t, err)
	recent, err := f.svc.RecordTrade(ctx, "u1", closedMNQ(testNow.Add(-2*time.Hour)), pnl.KnownNet(-100))
	require.NoError(t, err)

	start, end := risk.DayWindow(testNow, time.UTC)
	trades, err := f.svc.TradesBetween(ctx, "u1", start, end)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, recent.ID, trades[0].ID)

	_, err = f.svc.TradesBetween(ctx, "u1", end, start)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}
