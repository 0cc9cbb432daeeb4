package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/commonsring/ledger/internal/events"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=ledger

// Repository is the durable record of accounts and transactions. It owns
// both lifetimes exclusively; all mutations go through a Tx.
type Repository interface {
	GetAccount(ctx context.Context, name string) (*Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error)
	CreateAccount(ctx context.Context, acct *Account) error

	// FundAccount returns the unique fund-typed account. It fails with
	// ErrNoFundAccount when none exists and ErrMultipleFundAccounts when the
	// configuration is ambiguous.
	FundAccount(ctx context.Context) (*Account, error)

	// BalanceAsOf reconstructs the balance the account held at or before
	// cutoff from the transaction log, independent of the cached balance.
	// Returns zero when no transaction exists at or before the cutoff.
	BalanceAsOf(ctx context.Context, name string, cutoff time.Time) (decimal.Decimal, error)

	// YearIncome sums the gross amounts credited to the account in the given
	// calendar year, excluding fee and fund-contribution artifacts.
	YearIncome(ctx context.Context, name string, year int) (decimal.Decimal, error)

	ListTransactions(ctx context.Context, filter HistoryFilter) ([]*Transaction, error)

	// FeeCursor returns the last fully processed fee month ("YYYY-MM"), or ""
	// when no month has been processed yet.
	FeeCursor(ctx context.Context) (string, error)

	Begin(ctx context.Context) (Tx, error)
}

// Tx is one atomic unit of ledger writes. AppendTransaction writes the row
// and advances each real party's cached balance with a guarded update: the
// cached balance must still equal the row's before-snapshot, otherwise the
// append fails with ErrIntegrityConflict and nothing is written.
type Tx interface {
	GetAccount(ctx context.Context, name string) (*Account, error)
	AppendTransaction(ctx context.Context, row *Transaction) error
	SetFeeCursor(ctx context.Context, monthKey string) error
	Commit() error
	Rollback() error
}

// OverdraftPolicy derives a per-account allowed negative balance from
// year-to-date income.
type OverdraftPolicy struct {
	StartAllowance decimal.Decimal // flat cushion before any income
	IncomeShare    decimal.Decimal // fraction of YTD income once income exists
}

// DefaultOverdraftPolicy returns the stock policy: 20 units flat, then 10%
// of yearly income.
func DefaultOverdraftPolicy() OverdraftPolicy {
	return OverdraftPolicy{
		StartAllowance: decimal.NewFromInt(20),
		IncomeShare:    decimal.NewFromFloat(0.10),
	}
}

// Service validates and records value transfers. The publisher is optional;
// when set, committed transactions are announced best-effort.
type Service struct {
	repo      Repository
	overdraft OverdraftPolicy
	events    events.Publisher
}

func NewService(repo Repository, overdraft OverdraftPolicy, publisher events.Publisher) *Service {
	return &Service{repo: repo, overdraft: overdraft, events: publisher}
}

// Account returns the named account.
func (s *Service) Account(ctx context.Context, name string) (*Account, error) {
	return s.repo.GetAccount(ctx, name)
}

// Accounts lists accounts matching the filter, ordered by name.
func (s *Service) Accounts(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	return s.repo.ListAccounts(ctx, filter)
}

// CurrentBalance reads the cached balance field.
func (s *Service) CurrentBalance(ctx context.Context, name string) (decimal.Decimal, error) {
	acct, err := s.repo.GetAccount(ctx, name)
	if err != nil {
		return decimal.Zero, err
	}

	return acct.Balance, nil
}

// BalanceAsOf reconstructs the historical balance at the cutoff.
func (s *Service) BalanceAsOf(ctx context.Context, name string, cutoff time.Time) (decimal.Decimal, error) {
	return s.repo.BalanceAsOf(ctx, name, cutoff)
}

// FundAccount returns the community fund account.
func (s *Service) FundAccount(ctx context.Context) (*Account, error) {
	return s.repo.FundAccount(ctx)
}

// History lists transactions matching the filter.
func (s *Service) History(ctx context.Context, filter HistoryFilter) ([]*Transaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

type CreateAccountParams struct {
	Name  string
	Type  AccountType
	Owner string
}

// CreateAccount provisions a new account with a zero balance. A second
// fund-typed account is rejected.
func (s *Service) CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("account name must not be empty")
	}

	if !params.Type.Valid() {
		return nil, fmt.Errorf("unknown account type %q", params.Type)
	}

	if params.Type == TypeFund {
		if _, err := s.repo.FundAccount(ctx); err == nil {
			return nil, ErrMultipleFundAccounts
		} else if !errors.Is(err, ErrNoFundAccount) {
			return nil, err
		}
	}

	acct := &Account{
		Name:         params.Name,
		Type:         params.Type,
		Balance:      decimal.Zero,
		LastActivity: time.Now(),
		Owner:        params.Owner,
	}

	if err := s.repo.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}

	return acct, nil
}

type TransferParams struct {
	Source      string
	Destination string
	Gross       decimal.Decimal
	Description string

	// ContributionRate is the fraction of the gross amount skimmed into the
	// fund account. Zero disables the split for this transfer.
	ContributionRate decimal.Decimal

	// At stamps the transaction; zero means now.
	At time.Time
}

type TransferResult struct {
	Principal *Transaction

	// Contribution is the linked fund leg, nil when no fund account exists or
	// the computed contribution is zero.
	Contribution *Transaction
}

// PostTransfer validates and records a single value transfer, splitting it
// into net and contribution amounts.
//
// The full gross amount leaves the source; the destination receives the net.
// When a fund account exists and the contribution is positive, a second
// transaction moves the contribution to the fund without debiting the source
// again. Without a fund account the contribution is recorded on the principal
// row for audit only (degraded mode).
func (s *Service) PostTransfer(ctx context.Context, params TransferParams) (*TransferResult, error) {
	if !params.Gross.IsPositive() {
		return nil, ErrInvalidAmount
	}

	at := params.At
	if at.IsZero() {
		at = time.Now()
	}

	contribution := RoundAmount(params.Gross.Mul(params.ContributionRate))
	net := params.Gross.Sub(contribution)

	src, err := s.repo.GetAccount(ctx, params.Source)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetAccount(ctx, params.Destination); err != nil {
		return nil, err
	}

	limit, err := s.OverdraftLimit(ctx, params.Source, at)
	if err != nil {
		return nil, err
	}

	projected := RoundAmount(src.Balance.Sub(params.Gross))
	if projected.LessThan(limit.Neg()) {
		return nil, fmt.Errorf("%w: allowed down to -%s, projected %s",
			ErrOverdraftExceeded, limit.StringFixed(1), projected.StringFixed(1))
	}

	fund, err := s.repo.FundAccount(ctx)
	if err != nil && !errors.Is(err, ErrNoFundAccount) {
		return nil, err
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transfer: %w", err)
	}
	defer tx.Rollback()

	principal, err := Post(ctx, tx, Posting{
		Source:       params.Source,
		Destination:  ToAccount(params.Destination),
		Gross:        params.Gross,
		Contribution: contribution,
		Net:          net,
		Debit:        params.Gross,
		Credit:       net,
		Description:  params.Description,
		At:           at,
	})
	if err != nil {
		return nil, err
	}

	var contribRow *Transaction

	if fund != nil && contribution.IsPositive() {
		contribRow, err = Post(ctx, tx, Posting{
			Source:       params.Source,
			Destination:  ToAccount(fund.Name),
			Gross:        contribution,
			Contribution: decimal.Zero,
			Net:          contribution,
			Debit:        decimal.Zero,
			Credit:       contribution,
			Description:  ContributionDescription,
			At:           at,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transfer: %w", err)
	}

	s.publish(ctx, principal)
	s.publish(ctx, contribRow)

	return &TransferResult{Principal: principal, Contribution: contribRow}, nil
}

type DisburseParams struct {
	Amount      decimal.Decimal
	Description string
	At          time.Time // zero = now
}

// Disburse debits the fund account by a flat amount toward the external
// disbursement sink. No contribution is skimmed.
func (s *Service) Disburse(ctx context.Context, params DisburseParams) (*Transaction, error) {
	if !params.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	at := params.At
	if at.IsZero() {
		at = time.Now()
	}

	fund, err := s.repo.FundAccount(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning disbursement: %w", err)
	}
	defer tx.Rollback()

	row, err := Post(ctx, tx, Posting{
		Source:       fund.Name,
		Destination:  ToSink(SinkDisbursement),
		Gross:        params.Amount,
		Contribution: decimal.Zero,
		Net:          params.Amount,
		Debit:        params.Amount,
		Credit:       decimal.Zero,
		Description:  params.Description,
		At:           at,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing disbursement: %w", err)
	}

	s.publish(ctx, row)

	return row, nil
}

func (s *Service) publish(ctx context.Context, row *Transaction) {
	if s.events == nil || row == nil {
		return
	}

	kind := "account"
	if row.Destination.IsSink() {
		kind = "sink"
	}

	evt := events.TransactionPosted{
		ID:              row.ID.String(),
		Source:          row.Source,
		Destination:     row.Destination.Name(),
		DestinationKind: kind,
		Gross:           row.Gross.StringFixed(1),
		Contribution:    row.Contribution.StringFixed(1),
		Net:             row.Net.StringFixed(1),
		Description:     row.Description,
		OccurredAt:      row.OccurredAt,
	}

	if err := s.events.Publish(ctx, events.TopicTransactionPosted, evt); err != nil {
		slog.Warn("failed to publish transaction event", "id", row.ID, "error", err)
	}
}
