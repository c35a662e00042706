package domain

import "time"

// Trade represents one executed position, open or closed.
type Trade struct {
	ID         string      `json:"id"`                  // ULID assigned by the repository
	UserID     string      `json:"userId"`              // Owner account
	Symbol     string      `json:"symbol"`              // Instrument symbol (e.g., "MNQH25")
	Side       Side        `json:"side"`                // LONG or SHORT
	Quantity   float64     `json:"quantity"`            // Contracts/units traded, always positive
	EntryPrice float64     `json:"entryPrice"`          // Average entry price
	ExitPrice  *float64    `json:"exitPrice,omitempty"` // Average exit price (nil while open)
	EntryTime  time.Time   `json:"entryTime"`           // Timestamp the position was entered
	ExitTime   *time.Time  `json:"exitTime,omitempty"`  // Timestamp the position was exited (nil while open)
	Market     Market      `json:"market"`              // Instrument class
	Status     TradeStatus `json:"status"`              // OPEN, CLOSED or CANCELLED

	GrossPnL *float64 `json:"grossPnl,omitempty"` // P&L before fees (nil until computed or imported)
	NetPnL   *float64 `json:"netPnl,omitempty"`   // P&L after fees (nil until computed or imported)

	Commission float64 `json:"commission"` // Round-trip commission
	EntryFees  float64 `json:"entryFees"`  // Exchange/clearing fees on entry
	ExitFees   float64 `json:"exitFees"`   // Exchange/clearing fees on exit
	Swap       float64 `json:"swap"`       // Swap/overnight financing fee

	ContractMultiplier float64    `json:"contractMultiplier"` // Multiplier captured at calculation time
	DataSource         DataSource `json:"dataSource"`         // How the trade entered the system
}

// IsClosed checks if the trade status is closed.
func (t *Trade) IsClosed() bool {
	return t.Status == StatusClosed
}

// TotalFees returns commission plus entry, exit and swap fees.
func (t *Trade) TotalFees() float64 {
	return t.Commission + t.EntryFees + t.ExitFees + t.Swap
}

// Net returns the net P&L or 0 when it has not been populated.
func (t *Trade) Net() float64 {
	if t.NetPnL == nil {
		return 0
	}
	return *t.NetPnL
}

// Gross returns the gross P&L or 0 when it has not been populated.
func (t *Trade) Gross() float64 {
	if t.GrossPnL == nil {
		return 0
	}
	return *t.GrossPnL
}

// SettledAt is the time the trade's P&L was realized: the exit time when known, else the entry time.
func (t *Trade) SettledAt() time.Time {
	if t.ExitTime != nil && !t.ExitTime.IsZero() {
		return *t.ExitTime
	}
	return t.EntryTime
}

// Float returns a pointer to v. Used for the optional price and P&L fields.
func Float(v float64) *float64 {
	return &v
}

// Time returns a pointer to t.
func Time(t time.Time) *time.Time {
	return &t
}
