// Package memstore is an in-memory implementation of ledger.Repository. It
// backs package tests and lets the API run without Postgres in demo setups.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/commonsring/ledger/internal/ledger"
)

type Store struct {
	mu       sync.Mutex
	accounts map[string]*ledger.Account
	log      []*ledger.Transaction
	cursor   string
}

var _ ledger.Repository = (*Store)(nil)

func New() *Store {
	return &Store{accounts: make(map[string]*ledger.Account)}
}

func (s *Store) GetAccount(ctx context.Context, name string) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[name]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}

	return clone(acct), nil
}

func (s *Store) ListAccounts(ctx context.Context, filter ledger.AccountFilter) ([]*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ledger.Account

	for _, acct := range s.accounts {
		if filter.Type != "" && acct.Type != filter.Type {
			continue
		}

		if filter.ExcludeFund && acct.Type == ledger.TypeFund {
			continue
		}

		if filter.Owner != "" && acct.Owner != filter.Owner {
			continue
		}

		out = append(out, clone(acct))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (s *Store) CreateAccount(ctx context.Context, acct *ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acct.Name]; exists {
		return ledger.ErrAccountExists
	}

	if acct.Type == ledger.TypeFund {
		for _, existing := range s.accounts {
			if existing.Type == ledger.TypeFund {
				return ledger.ErrMultipleFundAccounts
			}
		}
	}

	s.accounts[acct.Name] = clone(acct)

	return nil
}

func (s *Store) FundAccount(ctx context.Context) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fund *ledger.Account

	for _, acct := range s.accounts {
		if acct.Type != ledger.TypeFund {
			continue
		}

		if fund != nil {
			return nil, ledger.ErrMultipleFundAccounts
		}

		fund = acct
	}

	if fund == nil {
		return nil, ledger.ErrNoFundAccount
	}

	return clone(fund), nil
}

func (s *Store) BalanceAsOf(ctx context.Context, name string, cutoff time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance := decimal.Zero
	found := false

	var bestAt time.Time

	// Latest matching transaction wins: by timestamp, then insertion order.
	// Within one row the destination snapshot wins over the source snapshot
	// (internal reassignments apply the credit after the debit).
	for _, row := range s.log {
		if row.OccurredAt.After(cutoff) {
			continue
		}

		if found && row.OccurredAt.Before(bestAt) {
			continue
		}

		if row.Source == name {
			balance = row.SourceAfter
			bestAt = row.OccurredAt
			found = true
		}

		if !row.Destination.IsSink() && row.Destination.Name() == name {
			balance = row.DestAfter
			bestAt = row.OccurredAt
			found = true
		}
	}

	return balance, nil
}

func (s *Store) YearIncome(ctx context.Context, name string, year int) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero

	for _, row := range s.log {
		if row.Destination.IsSink() || row.Destination.Name() != name {
			continue
		}

		if row.OccurredAt.Year() != year {
			continue
		}

		if !ledger.CountsAsIncome(row.Description) {
			continue
		}

		total = total.Add(row.Gross)
	}

	return total, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter ledger.HistoryFilter) ([]*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ledger.Transaction

	for _, row := range s.log {
		if !matches(row, filter) {
			continue
		}

		cp := *row
		out = append(out, &cp)

		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}

	return out, nil
}

func matches(row *ledger.Transaction, filter ledger.HistoryFilter) bool {
	if len(filter.Accounts) > 0 {
		hit := false

		for _, name := range filter.Accounts {
			if row.Source == name || (!row.Destination.IsSink() && row.Destination.Name() == name) {
				hit = true
				break
			}
		}

		if !hit {
			return false
		}
	}

	if filter.From != nil && row.OccurredAt.Before(*filter.From) {
		return false
	}

	if filter.To != nil && row.OccurredAt.After(*filter.To) {
		return false
	}

	if filter.ExcludeDescriptionPrefix != "" && strings.HasPrefix(row.Description, filter.ExcludeDescriptionPrefix) {
		return false
	}

	return true
}

func (s *Store) FeeCursor(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cursor, nil
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	return &memTx{store: s, staged: make(map[string]*ledger.Account)}, nil
}

// memTx stages writes and replays them against the live state on Commit,
// re-checking every balance guard. A concurrent commit that moved a balance
// surfaces as ledger.ErrIntegrityConflict, mirroring the guarded UPDATE
// semantics of the SQL store.
type memTx struct {
	store    *Store
	staged   map[string]*ledger.Account
	appended []*ledger.Transaction
	cursor   *string
	done     bool
}

func (t *memTx) GetAccount(ctx context.Context, name string) (*ledger.Account, error) {
	if t.done {
		return nil, fmt.Errorf("transaction already finished")
	}

	if acct, ok := t.staged[name]; ok {
		return clone(acct), nil
	}

	acct, err := t.store.GetAccount(ctx, name)
	if err != nil {
		return nil, err
	}

	t.staged[name] = clone(acct)

	return acct, nil
}

func (t *memTx) AppendTransaction(ctx context.Context, row *ledger.Transaction) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}

	if _, err := t.GetAccount(ctx, row.Source); err != nil {
		return err
	}

	if !row.Destination.IsSink() {
		if _, err := t.GetAccount(ctx, row.Destination.Name()); err != nil {
			return err
		}
	}

	if err := applyRow(t.staged, row); err != nil {
		return err
	}

	cp := *row
	t.appended = append(t.appended, &cp)

	return nil
}

func (t *memTx) SetFeeCursor(ctx context.Context, monthKey string) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}

	t.cursor = &monthKey

	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}

	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	// Replay against copies first so a conflict leaves the store untouched.
	scratch := make(map[string]*ledger.Account, len(t.store.accounts))
	for name, acct := range t.store.accounts {
		scratch[name] = clone(acct)
	}

	for _, row := range t.appended {
		if err := applyRow(scratch, row); err != nil {
			return err
		}
	}

	t.store.accounts = scratch
	t.store.log = append(t.store.log, t.appended...)

	if t.cursor != nil {
		t.store.cursor = *t.cursor
	}

	return nil
}

func (t *memTx) Rollback() error {
	t.done = true
	return nil
}

// applyRow verifies a row's balance guards against the given account state
// and applies the balance transitions in order: source first, then the
// destination, so internal reassignments chain correctly.
func applyRow(accounts map[string]*ledger.Account, row *ledger.Transaction) error {
	src, ok := accounts[row.Source]
	if !ok {
		return ledger.ErrAccountNotFound
	}

	if !src.Balance.Equal(row.SourceBefore) {
		return ledger.ErrIntegrityConflict
	}

	if !row.SourceAfter.Equal(row.SourceBefore) {
		src.Balance = row.SourceAfter
		src.LastActivity = row.OccurredAt
	}

	if row.Destination.IsSink() {
		return nil
	}

	dst, ok := accounts[row.Destination.Name()]
	if !ok {
		return ledger.ErrAccountNotFound
	}

	if !dst.Balance.Equal(row.DestBefore) {
		return ledger.ErrIntegrityConflict
	}

	if !row.DestAfter.Equal(row.DestBefore) {
		dst.Balance = row.DestAfter
		dst.LastActivity = row.OccurredAt
	}

	return nil
}

func clone(acct *ledger.Account) *ledger.Account {
	cp := *acct
	return &cp
}
