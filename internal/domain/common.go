package domain

// Side represents the direction of a trade (LONG or SHORT).
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Sign returns +1 for long trades and -1 for short trades.
func (s Side) Sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

// Valid reports whether the side is one of the known values.
func (s Side) Valid() bool {
	return s == Long || s == Short
}

// TradeStatus represents the lifecycle state of a trade.
type TradeStatus string

const (
	StatusOpen      TradeStatus = "OPEN"
	StatusClosed    TradeStatus = "CLOSED"
	StatusCancelled TradeStatus = "CANCELLED"
)

// Market is the instrument class a trade belongs to.
type Market string

const (
	MarketFutures Market = "FUTURES"
	MarketStocks  Market = "STOCKS"
	MarketForex   Market = "FOREX"
	MarketCrypto  Market = "CRYPTO"
	MarketOptions Market = "OPTIONS"
)

// DataSource tags how a trade entered the system.
type DataSource string

const (
	SourceManual         DataSource = "manual"
	SourceTradovateCSV   DataSource = "tradovate_csv"
	SourceNinjaTraderCSV DataSource = "ninjatrader_csv"
	SourceRithmicCSV     DataSource = "rithmic_csv"
	SourceGenericCSV     DataSource = "generic_csv"
)

// AccountType identifies the risk rules an account is traded under.
type AccountType string

const (
	AccountEvaluation AccountType = "EVALUATION"
	AccountFunded     AccountType = "FUNDED"
	AccountCustom     AccountType = "CUSTOM"
)

// UsesTrailingDrawdown reports whether the account type is governed by a trailing drawdown rule.
// Custom accounts opt in by configuring a positive trailing amount.
func (a AccountType) UsesTrailingDrawdown() bool {
	return a == AccountEvaluation || a == AccountFunded
}
