package ledger

import "github.com/shopspring/decimal"

// RoundAmount rounds to one decimal place of the unit currency, half away
// from zero. Every fee, contribution and projection in the system goes
// through this single rounding point so displayed and stored figures never
// drift.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(1)
}
