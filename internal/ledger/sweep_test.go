package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonsring/ledger/internal/ledger"
)

func TestService_SweepInactive(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	stale := newAccount("dormant", ledger.TypePersonal, "50")
	stale.LastActivity = now.AddDate(0, 0, -40)

	active := newAccount("lively", ledger.TypePersonal, "50")
	active.LastActivity = now.AddDate(0, 0, -5)

	fund := newAccount("community fund", ledger.TypeFund, "0")
	fund.LastActivity = now.AddDate(0, 0, -100)

	repo := newStore(t, stale, active, fund)
	svc := ledger.NewService(repo, ledger.DefaultOverdraftPolicy(), nil)

	params := ledger.SweepParams{
		Threshold: 30 * 24 * time.Hour,
		Penalty:   decimal.NewFromInt(10),
		Now:       now,
	}

	swept, err := svc.SweepInactive(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	// The fund is never penalized, active accounts are left alone, and the
	// deducted value leaves circulation instead of landing in the fund.
	assert.Equal(t, "40.0", balanceOf(t, repo, "dormant"))
	assert.Equal(t, "50.0", balanceOf(t, repo, "lively"))
	assert.Equal(t, "0.0", balanceOf(t, repo, "community fund"))

	rows, err := repo.ListTransactions(context.Background(), ledger.HistoryFilter{Accounts: []string{"dormant"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Destination.IsSink())
	assert.Equal(t, ledger.SinkInactivity, rows[0].Destination.Name())
	assert.Equal(t, ledger.InactivityDescription, rows[0].Description)

	// The deduction counts as activity, so an immediate re-run is a no-op.
	swept, err = svc.SweepInactive(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
	assert.Equal(t, "40.0", balanceOf(t, repo, "dormant"))
}

func TestService_SweepInactive_RejectsNonPositivePenalty(t *testing.T) {
	repo := newStore(t)
	svc := ledger.NewService(repo, ledger.DefaultOverdraftPolicy(), nil)

	_, err := svc.SweepInactive(context.Background(), ledger.SweepParams{
		Threshold: 30 * 24 * time.Hour,
		Penalty:   decimal.Zero,
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}
