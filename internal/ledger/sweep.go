package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

type SweepParams struct {
	Threshold time.Duration // inactivity age before an account is penalized
	Penalty   decimal.Decimal
	Now       time.Time // zero = now
}

// SweepInactive debits every non-fund account whose last activity is older
// than the threshold, recording the deduction against the inactivity sink.
// The penalized value leaves circulation entirely; it is deliberately not
// credited to the fund.
//
// The deduction itself counts as activity, so an account is penalized at
// most once per threshold period. Accounts are processed independently; a
// failed deduction is logged and skipped, and the count of swept accounts
// is returned.
func (s *Service) SweepInactive(ctx context.Context, params SweepParams) (int, error) {
	if !params.Penalty.IsPositive() {
		return 0, ErrInvalidAmount
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	accounts, err := s.repo.ListAccounts(ctx, AccountFilter{ExcludeFund: true})
	if err != nil {
		return 0, fmt.Errorf("listing accounts: %w", err)
	}

	cutoff := now.Add(-params.Threshold)
	swept := 0

	for _, acct := range accounts {
		if err := ctx.Err(); err != nil {
			return swept, err
		}

		if !acct.LastActivity.Before(cutoff) {
			continue
		}

		if err := s.penalize(ctx, acct.Name, params.Penalty, now); err != nil {
			slog.Error("inactivity deduction failed", "account", acct.Name, "error", err)
			continue
		}

		swept++
	}

	return swept, nil
}

func (s *Service) penalize(ctx context.Context, name string, penalty decimal.Decimal, now time.Time) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning deduction: %w", err)
	}
	defer tx.Rollback()

	row, err := Post(ctx, tx, Posting{
		Source:       name,
		Destination:  ToSink(SinkInactivity),
		Gross:        penalty,
		Contribution: decimal.Zero,
		Net:          penalty,
		Debit:        penalty,
		Credit:       decimal.Zero,
		Description:  InactivityDescription,
		At:           now,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing deduction: %w", err)
	}

	s.publish(ctx, row)

	return nil
}
