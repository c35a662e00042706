package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradejournal/internal/domain"
	"tradejournal/internal/id"
	"tradejournal/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.TradeRepository and ports.AccountRepository interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trading_journal.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, ports.ErrDBConnection)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite serializes writers; one connection keeps the driver from contending with itself.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL DEFAULT NULL,
	entry_time TIMESTAMP NOT NULL,
	exit_time TIMESTAMP DEFAULT NULL,
	market TEXT NOT NULL,
	status TEXT NOT NULL,
	gross_pnl REAL DEFAULT NULL,
	net_pnl REAL DEFAULT NULL,
	commission REAL NOT NULL DEFAULT 0,
	entry_fees REAL NOT NULL DEFAULT 0,
	exit_fees REAL NOT NULL DEFAULT 0,
	swap REAL NOT NULL DEFAULT 0,
	contract_multiplier REAL NOT NULL DEFAULT 0,
	data_source TEXT NOT NULL DEFAULT 'manual'
);

CREATE TABLE IF NOT EXISTS accounts (
	user_id TEXT PRIMARY KEY,
	starting_balance REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_user_entry_time ON trades (user_id, entry_time);
`

// accountColumns are added to an existing accounts table when missing.
var accountColumns = []struct{ name, def string }{
	{"start_date", "TIMESTAMP DEFAULT NULL"},
	{"trailing_drawdown_amount", "REAL NOT NULL DEFAULT 0"},
	{"daily_loss_limit_amount", "REAL DEFAULT NULL"},
	{"account_type", "TEXT NOT NULL DEFAULT 'CUSTOM'"},
	{"funded_live", "INTEGER NOT NULL DEFAULT 0"},
	{"first_payout_received", "INTEGER NOT NULL DEFAULT 0"},
	{"timezone", "TEXT NOT NULL DEFAULT ''"},
}

// legacyLimitColumns held the trailing drawdown amount in older schemas, newest first.
var legacyLimitColumns = []string{"maximum_loss_limit", "max_loss_limit"}

// initializeSchema creates tables if they don't exist and migrates older account tables.
func (r *Repository) initializeSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}

	cols, err := r.tableColumns(ctx, "accounts")
	if err != nil {
		return err
	}
	for _, c := range accountColumns {
		if cols[c.name] {
			continue
		}
		if _, err := r.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE accounts ADD COLUMN %s %s", c.name, c.def)); err != nil {
			return fmt.Errorf("failed to add accounts.%s: %w", c.name, err)
		}
	}
	return r.migrateLegacyLimits(ctx, cols)
}

// migrateLegacyLimits copies legacy loss-limit columns into trailing_drawdown_amount and drops them,
// so the migration runs once.
func (r *Repository) migrateLegacyLimits(ctx context.Context, cols map[string]bool) error {
	for _, legacy := range legacyLimitColumns {
		if !cols[legacy] {
			continue
		}
		update := fmt.Sprintf(`UPDATE accounts SET trailing_drawdown_amount = %[1]s
			WHERE (trailing_drawdown_amount IS NULL OR trailing_drawdown_amount = 0) AND %[1]s > 0`, legacy)
		res, err := r.db.ExecContext(ctx, update)
		if err != nil {
			return fmt.Errorf("failed to migrate accounts.%s: %w", legacy, err)
		}
		migrated, _ := res.RowsAffected()
		if _, err := r.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE accounts DROP COLUMN %s", legacy)); err != nil {
			return fmt.Errorf("failed to drop accounts.%s: %w", legacy, err)
		}
		r.logger.Info(ctx, "Migrated legacy account column", map[string]interface{}{"column": legacy, "rows": migrated})
	}
	return nil
}

func (r *Repository) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()
	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols[strings.ToLower(name)] = true
	}
	return cols, rows.Err()
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- TradeRepository Implementation ---

const tradeColumns = `id, user_id, symbol, side, quantity, entry_price, exit_price, entry_time, exit_time,
	market, status, gross_pnl, net_pnl, commission, entry_fees, exit_fees, swap, contract_multiplier, data_source`

// CreateTrade saves a new trade and returns its ID, generating a ULID when the trade has none.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (string, error) {
	if trade.ID == "" {
		trade.ID = id.NewTradeID()
	}
	query := `INSERT INTO trades (` + tradeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, tradeArgs(trade)...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return "", fmt.Errorf("trade %s already exists: %w", trade.ID, ports.ErrDuplicateEntry)
		}
		return "", fmt.Errorf("failed to insert trade for symbol %s: %w", trade.Symbol, err)
	}
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": trade.ID, "symbol": trade.Symbol, "status": trade.Status})
	return trade.ID, nil
}

// UpdateTrade overwrites an existing trade based on its ID.
func (r *Repository) UpdateTrade(ctx context.Context, trade *domain.Trade) error {
	const query = `
	UPDATE trades
	SET user_id = ?, symbol = ?, side = ?, quantity = ?, entry_price = ?, exit_price = ?, entry_time = ?,
	    exit_time = ?, market = ?, status = ?, gross_pnl = ?, net_pnl = ?, commission = ?, entry_fees = ?,
	    exit_fees = ?, swap = ?, contract_multiplier = ?, data_source = ?
	WHERE id = ?`

	args := append(tradeArgs(trade)[1:], trade.ID)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update trade ID %s: %w", trade.ID, ports.ErrUpdateFailed)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update trade ID %s: %w", trade.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade ID %s not found for update: %w", trade.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": trade.ID, "status": trade.Status})
	return nil
}

// FindTradeByID retrieves a trade by its ID.
func (r *Repository) FindTradeByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = ?`

	trade, err := scanTrade(r.db.QueryRowContext(ctx, query, tradeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Trade not found by ID", map[string]interface{}{"tradeID": tradeID})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query trade by ID %s: %w", tradeID, err)
	}
	return trade, nil
}

// FindTradesByUser retrieves all trades of a user, ordered by entry time ascending.
func (r *Repository) FindTradesByUser(ctx context.Context, userID string) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE user_id = ? ORDER BY entry_time ASC, id ASC`
	return r.queryTrades(ctx, query, userID)
}

// FindTradesBetween retrieves a user's trades entered in [from, to).
func (r *Repository) FindTradesBetween(ctx context.Context, userID string, from, to time.Time) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
	WHERE user_id = ? AND entry_time >= ? AND entry_time < ?
	ORDER BY entry_time ASC, id ASC`
	return r.queryTrades(ctx, query, userID, from.UTC(), to.UTC())
}

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", ports.ErrQueryFailed)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// --- AccountRepository Implementation ---

// SaveAccount inserts or replaces the configuration of cfg.UserID.
func (r *Repository) SaveAccount(ctx context.Context, cfg *domain.AccountConfig) error {
	if cfg.UserID == "" {
		return fmt.Errorf("account user id is required: %w", ports.ErrInvalidRequest)
	}
	const query = `
	INSERT INTO accounts (user_id, starting_balance, start_date, trailing_drawdown_amount, daily_loss_limit_amount,
	                      account_type, funded_live, first_payout_received, timezone)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		starting_balance = excluded.starting_balance,
		start_date = excluded.start_date,
		trailing_drawdown_amount = excluded.trailing_drawdown_amount,
		daily_loss_limit_amount = excluded.daily_loss_limit_amount,
		account_type = excluded.account_type,
		funded_live = excluded.funded_live,
		first_payout_received = excluded.first_payout_received,
		timezone = excluded.timezone`

	_, err := r.db.ExecContext(ctx, query,
		cfg.UserID, cfg.StartingBalance, nullTime(timePtr(cfg.StartDate)), cfg.TrailingDrawdownAmount,
		nullFloat(cfg.DailyLossLimitAmount), string(cfg.AccountType), cfg.FundedLive, cfg.FirstPayoutReceived, cfg.Timezone)
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", cfg.UserID, ports.ErrUpdateFailed)
	}
	r.logger.Debug(ctx, "Account saved", map[string]interface{}{"userID": cfg.UserID, "accountType": cfg.AccountType})
	return nil
}

// FindAccount retrieves a user's configuration. Returns nil, nil if none exists.
func (r *Repository) FindAccount(ctx context.Context, userID string) (*domain.AccountConfig, error) {
	const query = `
	SELECT user_id, starting_balance, start_date, trailing_drawdown_amount, daily_loss_limit_amount,
	       account_type, funded_live, first_payout_received, timezone
	FROM accounts WHERE user_id = ?`

	cfg := &domain.AccountConfig{}
	var startDate sql.NullTime
	var dailyLimit sql.NullFloat64
	var accountType string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&cfg.UserID, &cfg.StartingBalance, &startDate, &cfg.TrailingDrawdownAmount, &dailyLimit,
		&accountType, &cfg.FundedLive, &cfg.FirstPayoutReceived, &cfg.Timezone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query account %s: %w", userID, err)
	}
	if startDate.Valid {
		cfg.StartDate = startDate.Time
	}
	if dailyLimit.Valid {
		cfg.DailyLossLimitAmount = domain.Float(dailyLimit.Float64)
	}
	cfg.AccountType = domain.AccountType(accountType)
	return cfg, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func tradeArgs(t *domain.Trade) []interface{} {
	return []interface{}{
		t.ID, t.UserID, t.Symbol, string(t.Side), t.Quantity, t.EntryPrice, nullFloat(t.ExitPrice),
		t.EntryTime.UTC(), nullTime(t.ExitTime), string(t.Market), string(t.Status),
		nullFloat(t.GrossPnL), nullFloat(t.NetPnL), t.Commission, t.EntryFees, t.ExitFees, t.Swap,
		t.ContractMultiplier, string(t.DataSource),
	}
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side, market, status, source string
	var exitPrice, gross, net sql.NullFloat64
	var exitTime sql.NullTime
	err := s.Scan(
		&t.ID, &t.UserID, &t.Symbol, &side, &t.Quantity, &t.EntryPrice, &exitPrice, &t.EntryTime, &exitTime,
		&market, &status, &gross, &net, &t.Commission, &t.EntryFees, &t.ExitFees, &t.Swap,
		&t.ContractMultiplier, &source)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	t.Side = domain.Side(side)
	t.Market = domain.Market(market)
	t.Status = domain.TradeStatus(status)
	t.DataSource = domain.DataSource(source)
	if exitPrice.Valid {
		t.ExitPrice = domain.Float(exitPrice.Float64)
	}
	if exitTime.Valid {
		t.ExitTime = domain.Time(exitTime.Time)
	}
	if gross.Valid {
		t.GrossPnL = domain.Float(gross.Float64)
	}
	if net.Valid {
		t.NetPnL = domain.Float(net.Float64)
	}
	return t, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
