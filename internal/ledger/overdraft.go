package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OverdraftLimit derives the allowed negative balance for an account from
// its income in the current calendar year. Accounts without income keep the
// flat starting allowance; once income exists the limit grows with it.
func (s *Service) OverdraftLimit(ctx context.Context, name string, now time.Time) (decimal.Decimal, error) {
	income, err := s.repo.YearIncome(ctx, name, now.Year())
	if err != nil {
		return decimal.Zero, err
	}

	if !income.IsPositive() {
		return s.overdraft.StartAllowance, nil
	}

	return RoundAmount(income.Mul(s.overdraft.IncomeShare)), nil
}
