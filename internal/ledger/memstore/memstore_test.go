package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonsring/ledger/internal/ledger"
	"github.com/commonsring/ledger/internal/ledger/memstore"
)

func seed(t *testing.T, names map[string]string) *memstore.Store {
	t.Helper()

	repo := memstore.New()

	for name, balance := range names {
		err := repo.CreateAccount(context.Background(), &ledger.Account{
			Name:         name,
			Type:         ledger.TypePersonal,
			Balance:      decimal.RequireFromString(balance),
			LastActivity: time.Now(),
		})
		require.NoError(t, err)
	}

	return repo
}

func post(t *testing.T, repo *memstore.Store, source, dest, amount, description string, at time.Time) {
	t.Helper()

	ctx := context.Background()

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	value := decimal.RequireFromString(amount)

	_, err = ledger.Post(ctx, tx, ledger.Posting{
		Source:      source,
		Destination: ledger.ToAccount(dest),
		Gross:       value,
		Net:         value,
		Debit:       value,
		Credit:      value,
		Description: description,
		At:          at,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

func TestStore_BalanceAsOf(t *testing.T) {
	repo := seed(t, map[string]string{"well": "1000", "alice": "0", "bob": "0"})

	post(t, repo, "well", "alice", "100", "", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	post(t, repo, "alice", "bob", "30", "", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
	post(t, repo, "well", "alice", "50", "", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

	ctx := context.Background()

	type testCase struct {
		name   string
		cutoff time.Time
		want   string
	}

	tests := []testCase{
		{
			name:   "BeforeAnyTransaction",
			cutoff: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			want:   "0.0",
		},
		{
			name:   "AfterFirstCredit",
			cutoff: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			want:   "100.0",
		},
		{
			name:   "AfterDebit",
			cutoff: time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
			want:   "70.0",
		},
		{
			name:   "Latest",
			cutoff: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			want:   "120.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.BalanceAsOf(ctx, "alice", tt.cutoff)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(1))
		})
	}
}

func TestStore_BalanceAsOf_SelfTransferUsesFinalSnapshot(t *testing.T) {
	repo := seed(t, map[string]string{"alice": "100"})
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	// A self-transfer with a skim: 10 leaves, 9.5 comes back.
	_, err = ledger.Post(ctx, tx, ledger.Posting{
		Source:       "alice",
		Destination:  ledger.ToAccount("alice"),
		Gross:        decimal.RequireFromString("10"),
		Contribution: decimal.RequireFromString("0.5"),
		Net:          decimal.RequireFromString("9.5"),
		Debit:        decimal.RequireFromString("10"),
		Credit:       decimal.RequireFromString("9.5"),
		At:           at,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	got, err := repo.BalanceAsOf(ctx, "alice", at)
	require.NoError(t, err)
	assert.Equal(t, "99.5", got.StringFixed(1), "the destination snapshot wins within one row")
}

func TestStore_ConcurrentCommitConflicts(t *testing.T) {
	repo := seed(t, map[string]string{"well": "1000", "alice": "0", "bob": "0"})
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	ten := decimal.NewFromInt(10)

	tx1, err := repo.Begin(ctx)
	require.NoError(t, err)

	tx2, err := repo.Begin(ctx)
	require.NoError(t, err)

	_, err = ledger.Post(ctx, tx1, ledger.Posting{
		Source: "well", Destination: ledger.ToAccount("alice"),
		Gross: ten, Net: ten, Debit: ten, Credit: ten, At: at,
	})
	require.NoError(t, err)

	_, err = ledger.Post(ctx, tx2, ledger.Posting{
		Source: "well", Destination: ledger.ToAccount("bob"),
		Gross: ten, Net: ten, Debit: ten, Credit: ten, At: at,
	})
	require.NoError(t, err)

	require.NoError(t, tx1.Commit())
	assert.ErrorIs(t, tx2.Commit(), ledger.ErrIntegrityConflict)

	// The losing transaction leaves no trace.
	acct, err := repo.GetAccount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "0.0", acct.Balance.StringFixed(1))

	rows, err := repo.ListTransactions(ctx, ledger.HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestStore_FundAccount(t *testing.T) {
	repo := memstore.New()
	ctx := context.Background()

	_, err := repo.FundAccount(ctx)
	assert.ErrorIs(t, err, ledger.ErrNoFundAccount)

	require.NoError(t, repo.CreateAccount(ctx, &ledger.Account{Name: "community fund", Type: ledger.TypeFund}))

	fund, err := repo.FundAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "community fund", fund.Name)

	err = repo.CreateAccount(ctx, &ledger.Account{Name: "fund two", Type: ledger.TypeFund})
	assert.ErrorIs(t, err, ledger.ErrMultipleFundAccounts)
}

func TestStore_FeeCursor(t *testing.T) {
	repo := memstore.New()
	ctx := context.Background()

	cursor, err := repo.FeeCursor(ctx)
	require.NoError(t, err)
	assert.Empty(t, cursor)

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetFeeCursor(ctx, "2024-02"))
	require.NoError(t, tx.Rollback())

	cursor, err = repo.FeeCursor(ctx)
	require.NoError(t, err)
	assert.Empty(t, cursor, "a rolled back cursor write must not persist")

	tx, err = repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetFeeCursor(ctx, "2024-02"))
	require.NoError(t, tx.Commit())

	cursor, err = repo.FeeCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-02", cursor)
}

func TestStore_YearIncome_ExcludesArtifacts(t *testing.T) {
	repo := seed(t, map[string]string{"well": "1000", "alice": "0"})

	post(t, repo, "well", "alice", "100", "wages", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	post(t, repo, "well", "alice", "10", ledger.FeeDescription("2024-01"), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	post(t, repo, "well", "alice", "5", ledger.ContributionDescription, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	post(t, repo, "well", "alice", "50", "last year", time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC))

	income, err := repo.YearIncome(context.Background(), "alice", 2024)
	require.NoError(t, err)
	assert.Equal(t, "100.0", income.StringFixed(1))
}

func TestStore_ListTransactions_Filters(t *testing.T) {
	repo := seed(t, map[string]string{"well": "1000", "alice": "0", "bob": "0"})

	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	post(t, repo, "well", "alice", "100", "wages", jan)
	post(t, repo, "alice", "bob", "30", "rent", feb)
	post(t, repo, "well", "bob", "5", ledger.ContributionDescription, feb)

	ctx := context.Background()

	rows, err := repo.ListTransactions(ctx, ledger.HistoryFilter{Accounts: []string{"alice"}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = repo.ListTransactions(ctx, ledger.HistoryFilter{From: &feb})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = repo.ListTransactions(ctx, ledger.HistoryFilter{
		ExcludeDescriptionPrefix: "[fund contribution",
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = repo.ListTransactions(ctx, ledger.HistoryFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "wages", rows[0].Description)
}
