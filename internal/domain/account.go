package domain

import "time"

// AccountConfig holds the risk configuration of one user's account.
type AccountConfig struct {
	UserID                 string      `json:"userId"`
	StartingBalance        float64     `json:"startingBalance"`
	StartDate              time.Time   `json:"startDate"`
	TrailingDrawdownAmount float64     `json:"trailingDrawdownAmount"`         // Fixed dollar distance below the high-water mark
	DailyLossLimitAmount   *float64    `json:"dailyLossLimitAmount,omitempty"` // Optional; nil disables the daily loss rule
	AccountType            AccountType `json:"accountType"`
	FundedLive             bool        `json:"fundedLive"`
	FirstPayoutReceived    bool        `json:"firstPayoutReceived"`
	Timezone               string      `json:"timezone,omitempty"` // IANA zone used for daily windows; empty means the engine default
}

// TrailingEnabled reports whether the trailing drawdown rule applies to this account.
func (c *AccountConfig) TrailingEnabled() bool {
	return c.AccountType.UsesTrailingDrawdown() || c.TrailingDrawdownAmount > 0
}

// AccountMetrics is a derived snapshot of account state. It is always recomputable
// from an AccountConfig and the account's trades.
type AccountMetrics struct {
	UserID         string    `json:"userId"`
	ComputedAt     time.Time `json:"computedAt"`
	CurrentBalance float64   `json:"currentBalance"`
	AccountHigh    float64   `json:"accountHigh"`
	ClosedTrades   int       `json:"closedTrades"`
	TotalNetPnL    float64   `json:"totalNetPnl"`

	TrailingEnabled     bool    `json:"trailingEnabled"`
	TrailingLimit       float64 `json:"trailingLimit"`
	WithinTrailingLimit bool    `json:"withinTrailingLimit"`
	TrailingBuffer      float64 `json:"trailingBuffer"` // signed; negative means the limit is breached
	PayoutLockApplied   bool    `json:"payoutLockApplied"`

	DailyLimitEnabled bool      `json:"dailyLimitEnabled"`
	DayStart          time.Time `json:"dayStart"`
	DayStartBalance   float64   `json:"dayStartBalance"`
	DailyPnL          float64   `json:"dailyPnl"`
	DailyLimit        float64   `json:"dailyLimit"`
	WithinDailyLimit  bool      `json:"withinDailyLimit"`
	DailyBuffer       float64   `json:"dailyBuffer"`

	TotalFeesToDate     float64 `json:"totalFeesToDate"`
	AverageFeePerTrade  float64 `json:"averageFeePerTrade"`
	DailyFees           float64 `json:"dailyFees"`
	GrossDailyPnL       float64 `json:"grossDailyPnl"`
	FeeImpactPercentage float64 `json:"feeImpactPercentage"`
}

// DisplayTrailingBuffer is the trailing buffer clamped at zero for presentation.
func (m *AccountMetrics) DisplayTrailingBuffer() float64 {
	if m.TrailingBuffer < 0 {
		return 0
	}
	return m.TrailingBuffer
}

// DisplayDailyBuffer is the daily buffer clamped at zero for presentation.
func (m *AccountMetrics) DisplayDailyBuffer() float64 {
	if m.DailyBuffer < 0 {
		return 0
	}
	return m.DailyBuffer
}
