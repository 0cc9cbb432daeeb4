package fees_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonsring/ledger/internal/fees"
	"github.com/commonsring/ledger/internal/ledger"
	"github.com/commonsring/ledger/internal/ledger/memstore"
)

// seedStore builds a repository with a well-funded fund account, alice and
// bob. The fund doubles as the value source for seeding, since it is exempt
// from fees itself.
func seedStore(t *testing.T) *memstore.Store {
	t.Helper()

	repo := memstore.New()
	ctx := context.Background()

	for _, acct := range []*ledger.Account{
		{Name: "community fund", Type: ledger.TypeFund, Balance: decimal.NewFromInt(100000), LastActivity: time.Now()},
		{Name: "alice", Type: ledger.TypePersonal, LastActivity: time.Now()},
		{Name: "bob", Type: ledger.TypePersonal, LastActivity: time.Now()},
	} {
		require.NoError(t, repo.CreateAccount(ctx, acct))
	}

	return repo
}

func deposit(t *testing.T, repo *memstore.Store, dest, amount string, at time.Time) {
	t.Helper()

	ctx := context.Background()

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	value := decimal.RequireFromString(amount)

	_, err = ledger.Post(ctx, tx, ledger.Posting{
		Source:      "community fund",
		Destination: ledger.ToAccount(dest),
		Gross:       value,
		Net:         value,
		Debit:       value,
		Credit:      value,
		At:          at,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

func balance(t *testing.T, repo *memstore.Store, name string) string {
	t.Helper()

	acct, err := repo.GetAccount(context.Background(), name)
	require.NoError(t, err)

	return acct.Balance.StringFixed(1)
}

func monthKeys(months []fees.Month) []string {
	keys := make([]string, len(months))
	for i, m := range months {
		keys[i] = m.Key()
	}

	return keys
}

func TestJob_FirstRunTaxesOnlyPreviousMonth(t *testing.T) {
	repo := seedStore(t)
	ctx := context.Background()

	// Alice held 1000 through February; bob held nothing.
	deposit(t, repo, "alice", "1000", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))

	job := fees.NewJob(repo, decimal.NewFromFloat(0.01))
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	result, err := job.Run(ctx, now)
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-02"}, monthKeys(result.Processed))
	assert.Equal(t, "2024-02", result.Cursor.Key())

	cursor, err := repo.FeeCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-02", cursor)

	assert.Equal(t, "990.0", balance(t, repo, "alice"))
	assert.Equal(t, "0.0", balance(t, repo, "bob"), "empty accounts owe nothing")

	rows, err := repo.ListTransactions(ctx, ledger.HistoryFilter{Accounts: []string{"alice"}})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	fee := rows[1]
	assert.Equal(t, "alice", fee.Source)
	assert.Equal(t, "community fund", fee.Destination.Name())
	assert.Equal(t, "10.0", fee.Gross.StringFixed(1))
	assert.Equal(t, ledger.FeeDescription("2024-02"), fee.Description)
	assert.Equal(t, now, fee.OccurredAt)
}

func TestJob_SecondRunIsIdempotent(t *testing.T) {
	repo := seedStore(t)
	ctx := context.Background()

	deposit(t, repo, "alice", "1000", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))

	job := fees.NewJob(repo, decimal.NewFromFloat(0.01))
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	_, err := job.Run(ctx, now)
	require.NoError(t, err)

	result, err := job.Run(ctx, now)
	require.NoError(t, err)

	assert.Empty(t, result.Processed)
	assert.Equal(t, "990.0", balance(t, repo, "alice"))
}

func TestJob_CatchesUpMissedMonths(t *testing.T) {
	repo := seedStore(t)
	ctx := context.Background()

	deposit(t, repo, "alice", "1000", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))

	job := fees.NewJob(repo, decimal.NewFromFloat(0.01))

	_, err := job.Run(ctx, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// The worker was down for three months; one run settles them all. Each
	// month is charged on its own end-of-month balance, reconstructed from
	// the rows that existed at that month's end.
	result, err := job.Run(ctx, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-03", "2024-04", "2024-05"}, monthKeys(result.Processed))

	cursor, err := repo.FeeCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-05", cursor)

	// February's fee was posted in March, so March's EOM balance is 990 and
	// its fee 9.9. The catch-up fees themselves carry the June run timestamp
	// and therefore do not shrink April's or May's historical balances.
	assert.Equal(t, "960.3", balance(t, repo, "alice"))
}

func TestJob_NoFundSuspendsWithoutAdvancingCursor(t *testing.T) {
	repo := memstore.New()
	ctx := context.Background()

	require.NoError(t, repo.CreateAccount(ctx, &ledger.Account{
		Name: "alice", Type: ledger.TypePersonal, LastActivity: time.Now(),
	}))

	job := fees.NewJob(repo, decimal.NewFromFloat(0.01))
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	_, err := job.Run(ctx, now)
	assert.ErrorIs(t, err, ledger.ErrNoFundAccount)

	// The cursor was still initialized, pinning the catch-up window.
	cursor, err := repo.FeeCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01", cursor)

	// Once a fund exists the suspended month is settled.
	require.NoError(t, repo.CreateAccount(ctx, &ledger.Account{
		Name: "community fund", Type: ledger.TypeFund, LastActivity: time.Now(),
	}))

	result, err := job.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02"}, monthKeys(result.Processed))
}

func TestJob_FeeBelowRoundingThresholdSkipped(t *testing.T) {
	repo := seedStore(t)
	ctx := context.Background()

	// 1% of 4 rounds to 0.0; no fee row is written.
	deposit(t, repo, "alice", "4", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))

	job := fees.NewJob(repo, decimal.NewFromFloat(0.01))

	result, err := job.Run(ctx, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-02"}, monthKeys(result.Processed))
	assert.Equal(t, "4.0", balance(t, repo, "alice"))

	rows, err := repo.ListTransactions(ctx, ledger.HistoryFilter{Accounts: []string{"alice"}})
	require.NoError(t, err)
	assert.Len(t, rows, 1, "only the seed deposit exists")
}
