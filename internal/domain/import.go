package domain

import "time"

// ImportRow is one trade parsed from a broker export. NetPnL is the broker's
// figure with fees already deducted.
type ImportRow struct {
	Line       int
	Symbol     string
	Side       Side
	Quantity   float64
	EntryPrice float64
	ExitPrice  *float64
	EntryTime  time.Time
	ExitTime   *time.Time
	NetPnL     float64
	Market     Market
	Swap       float64
}

// ImportFailure records why a row was not imported.
type ImportFailure struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportResult summarizes a batch import. Failed rows never abort the batch.
type ImportResult struct {
	Imported []string        `json:"imported"`
	Failed   []ImportFailure `json:"failed"`
}
