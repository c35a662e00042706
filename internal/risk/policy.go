package risk

import "tradejournal/internal/domain"

// PayoutLockActive reports whether the first-payout rule applies: a funded-live account
// that has received its first payout can no longer be drawn down below zero by the trailing rule.
func PayoutLockActive(cfg *domain.AccountConfig) bool {
	return cfg != nil && cfg.FundedLive && cfg.FirstPayoutReceived
}

// TrailingLimit returns the minimum permitted balance under the trailing drawdown rule
// and whether the payout lock pinned it.
func TrailingLimit(cfg *domain.AccountConfig, accountHigh float64) (limit float64, locked bool) {
	if PayoutLockActive(cfg) {
		return 0, true
	}
	return domain.Cents(domain.Dec(accountHigh).Sub(domain.Dec(cfg.TrailingDrawdownAmount))), false
}
