// Package fees holds the monthly fee catch-up job: every completed calendar
// month, positive end-of-month balances are taxed proportionally into the
// fund account.
package fees

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/commonsring/ledger/internal/ledger"
)

// Job iterates unprocessed months and posts fee transfers to the fund. It is
// a pure function of (cursor, now, ledger contents): all state lives in the
// repository, so runs are idempotent and resumable.
type Job struct {
	repo ledger.Repository
	rate decimal.Decimal // fraction of the EOM balance charged per month
}

func NewJob(repo ledger.Repository, rate decimal.Decimal) *Job {
	return &Job{repo: repo, rate: rate}
}

// Result reports which months a run settled, for logging.
type Result struct {
	Processed []Month
	Cursor    Month // last fully processed month after the run
}

// Run catches up all months from the cursor up to and including the month
// before now. The still-open current month is never taxed.
//
// Each month's fee postings and its cursor advance commit as one repository
// transaction, so a crash or cancellation between months leaves the ledger
// consistent with the cursor and the month is simply re-run. Fees are based
// on the reconstructed end-of-month balance of each account, not its present
// cached balance.
func (j *Job) Run(ctx context.Context, now time.Time) (*Result, error) {
	target := MonthOf(now).Prev()

	cursor, err := j.loadCursor(ctx, target)
	if err != nil {
		return nil, err
	}

	// A missing fund account suspends processing without advancing the
	// cursor, so missed months stay catchable once a fund appears.
	fund, err := j.repo.FundAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("fee catch-up suspended: %w", err)
	}

	result := &Result{Cursor: cursor}

	if !cursor.Before(target) {
		return result, nil
	}

	accounts, err := j.repo.ListAccounts(ctx, ledger.AccountFilter{ExcludeFund: true})
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	for m := cursor.Next(); !target.Before(m); m = m.Next() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := j.processMonth(ctx, accounts, fund, m, now); err != nil {
			return result, fmt.Errorf("settling month %s: %w", m.Key(), err)
		}

		result.Processed = append(result.Processed, m)
		result.Cursor = m
	}

	return result, nil
}

// loadCursor reads the persisted cursor. On the very first run it is
// initialized to two months before now, so the loop settles exactly the
// immediately preceding month and never walks back through history. The
// initialized cursor is persisted before any work: a crash right after
// cannot re-initialize against a different "now" on retry.
func (j *Job) loadCursor(ctx context.Context, target Month) (Month, error) {
	key, err := j.repo.FeeCursor(ctx)
	if err != nil {
		return Month{}, err
	}

	if key != "" {
		return ParseMonth(key)
	}

	cursor := target.Prev()

	tx, err := j.repo.Begin(ctx)
	if err != nil {
		return Month{}, fmt.Errorf("initializing fee cursor: %w", err)
	}
	defer tx.Rollback()

	if err := tx.SetFeeCursor(ctx, cursor.Key()); err != nil {
		return Month{}, err
	}

	if err := tx.Commit(); err != nil {
		return Month{}, fmt.Errorf("initializing fee cursor: %w", err)
	}

	slog.Info("initialized fee cursor", "cursor", cursor.Key())

	return cursor, nil
}

func (j *Job) processMonth(ctx context.Context, accounts []*ledger.Account, fund *ledger.Account, m Month, now time.Time) error {
	cutoff := m.End()

	tx, err := j.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	charged := 0

	for _, acct := range accounts {
		eom, err := j.repo.BalanceAsOf(ctx, acct.Name, cutoff)
		if err != nil {
			return err
		}

		// Only positive holdings are taxed.
		if !eom.IsPositive() {
			continue
		}

		fee := ledger.RoundAmount(eom.Mul(j.rate))
		if !fee.IsPositive() {
			continue
		}

		// The fee is not itself subject to the transfer-contribution split.
		_, err = ledger.Post(ctx, tx, ledger.Posting{
			Source:       acct.Name,
			Destination:  ledger.ToAccount(fund.Name),
			Gross:        fee,
			Contribution: decimal.Zero,
			Net:          fee,
			Debit:        fee,
			Credit:       fee,
			Description:  ledger.FeeDescription(m.Key()),
			At:           now,
		})
		if err != nil {
			return err
		}

		charged++
	}

	if err := tx.SetFeeCursor(ctx, m.Key()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("settled monthly fees", "month", m.Key(), "accounts_charged", charged)

	return nil
}
