// Package store implements ledger.Repository on Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/commonsring/ledger/internal/ledger"
)

type Store struct {
	db *sql.DB
}

var _ ledger.Repository = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectAccountColumns = `name, type, balance, last_activity, owner`

func scanAccount(s scanner) (*ledger.Account, error) {
	var acct ledger.Account

	var typeStr string

	var owner sql.NullString

	if err := s.Scan(&acct.Name, &typeStr, &acct.Balance, &acct.LastActivity, &owner); err != nil {
		return nil, err
	}

	acct.Type = ledger.AccountType(typeStr)
	acct.Owner = owner.String

	return &acct, nil
}

func (s *Store) GetAccount(ctx context.Context, name string) (*ledger.Account, error) {
	return getAccount(ctx, s.db, name)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getAccount(ctx context.Context, q querier, name string) (*ledger.Account, error) {
	query := `SELECT ` + selectAccountColumns + ` FROM accounts WHERE name = $1`

	acct, err := scanAccount(q.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound
		}

		return nil, fmt.Errorf("getting account: %w", err)
	}

	return acct, nil
}

func (s *Store) ListAccounts(ctx context.Context, filter ledger.AccountFilter) ([]*ledger.Account, error) {
	query := `SELECT ` + selectAccountColumns + ` FROM accounts WHERE TRUE`

	var args []any

	argIdx := 1

	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIdx)

		args = append(args, string(filter.Type))
		argIdx++
	}

	if filter.ExcludeFund {
		query += fmt.Sprintf(" AND type != $%d", argIdx)

		args = append(args, string(ledger.TypeFund))
		argIdx++
	}

	if filter.Owner != "" {
		query += fmt.Sprintf(" AND owner = $%d", argIdx)

		args = append(args, filter.Owner)
	}

	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*ledger.Account

	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}

		accounts = append(accounts, acct)
	}

	return accounts, rows.Err()
}

func (s *Store) CreateAccount(ctx context.Context, acct *ledger.Account) error {
	query := `
		INSERT INTO accounts (name, type, balance, last_activity, owner)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
	`

	_, err := s.db.ExecContext(ctx, query,
		acct.Name, string(acct.Type), acct.Balance, acct.LastActivity, acct.Owner)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "accounts_one_fund" {
				return ledger.ErrMultipleFundAccounts
			}

			return ledger.ErrAccountExists
		}

		return fmt.Errorf("creating account: %w", err)
	}

	return nil
}

func (s *Store) FundAccount(ctx context.Context) (*ledger.Account, error) {
	query := `SELECT ` + selectAccountColumns + ` FROM accounts WHERE type = $1 LIMIT 2`

	rows, err := s.db.QueryContext(ctx, query, string(ledger.TypeFund))
	if err != nil {
		return nil, fmt.Errorf("finding fund account: %w", err)
	}
	defer rows.Close()

	var fund *ledger.Account

	for rows.Next() {
		if fund != nil {
			return nil, ledger.ErrMultipleFundAccounts
		}

		if fund, err = scanAccount(rows); err != nil {
			return nil, fmt.Errorf("scanning fund account: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if fund == nil {
		return nil, ledger.ErrNoFundAccount
	}

	return fund, nil
}

func (s *Store) BalanceAsOf(ctx context.Context, name string, cutoff time.Time) (decimal.Decimal, error) {
	// Latest matching snapshot wins: by timestamp, then insertion order, then
	// the destination leg over the source leg within one row (internal
	// reassignments apply the credit after the debit).
	query := `
		WITH hits AS (
			SELECT seq, 0 AS leg, occurred_at, source_after AS balance
			FROM transactions
			WHERE source = $1 AND occurred_at <= $2
			UNION ALL
			SELECT seq, 1 AS leg, occurred_at, dest_after
			FROM transactions
			WHERE destination = $1 AND dest_kind = 'account' AND occurred_at <= $2
		)
		SELECT balance FROM hits
		ORDER BY occurred_at DESC, seq DESC, leg DESC
		LIMIT 1
	`

	var balance decimal.Decimal

	err := s.db.QueryRowContext(ctx, query, name, cutoff).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}

		return decimal.Zero, fmt.Errorf("reconstructing balance: %w", err)
	}

	return balance, nil
}

func (s *Store) YearIncome(ctx context.Context, name string, year int) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(gross), 0)
		FROM transactions
		WHERE destination = $1 AND dest_kind = 'account'
		  AND occurred_at >= $2 AND occurred_at < $3
	`

	args := []any{
		name,
		time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC),
	}

	argIdx := len(args) + 1

	for _, prefix := range ledger.ExcludedIncomePrefixes() {
		query += fmt.Sprintf(" AND description NOT LIKE $%d", argIdx)

		args = append(args, prefix+"%")
		argIdx++
	}

	var income decimal.Decimal

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&income); err != nil {
		return decimal.Zero, fmt.Errorf("summing year income: %w", err)
	}

	return income, nil
}

const selectTransactionColumns = `
	id, source, destination, dest_kind, gross, contribution, net, description,
	occurred_at, source_before, source_after, dest_before, dest_after
`

func scanTransaction(s scanner) (*ledger.Transaction, error) {
	var row ledger.Transaction

	var dest, destKind string

	if err := s.Scan(
		&row.ID, &row.Source, &dest, &destKind,
		&row.Gross, &row.Contribution, &row.Net, &row.Description, &row.OccurredAt,
		&row.SourceBefore, &row.SourceAfter, &row.DestBefore, &row.DestAfter,
	); err != nil {
		return nil, err
	}

	if destKind == "sink" {
		row.Destination = ledger.ToSink(dest)
	} else {
		row.Destination = ledger.ToAccount(dest)
	}

	return &row, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter ledger.HistoryFilter) ([]*ledger.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + ` FROM transactions WHERE TRUE`

	var args []any

	argIdx := 1

	if len(filter.Accounts) > 0 {
		placeholders := make([]string, len(filter.Accounts))

		for i, name := range filter.Accounts {
			placeholders[i] = fmt.Sprintf("$%d", argIdx)

			args = append(args, name)
			argIdx++
		}

		in := strings.Join(placeholders, ", ")
		query += fmt.Sprintf(" AND (source IN (%s) OR (dest_kind = 'account' AND destination IN (%s)))", in, in)
	}

	if filter.From != nil {
		query += fmt.Sprintf(" AND occurred_at >= $%d", argIdx)

		args = append(args, *filter.From)
		argIdx++
	}

	if filter.To != nil {
		query += fmt.Sprintf(" AND occurred_at <= $%d", argIdx)

		args = append(args, *filter.To)
		argIdx++
	}

	if filter.ExcludeDescriptionPrefix != "" {
		query += fmt.Sprintf(" AND description NOT LIKE $%d", argIdx)

		args = append(args, filter.ExcludeDescriptionPrefix+"%")
		argIdx++
	}

	query += " ORDER BY seq ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)

		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*ledger.Transaction

	for rows.Next() {
		row, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, row)
	}

	return txs, rows.Err()
}

func (s *Store) FeeCursor(ctx context.Context) (string, error) {
	var value string

	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = 'last_fee_month'`).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}

		return "", fmt.Errorf("reading fee cursor: %w", err)
	}

	return value, nil
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return &Tx{tx: tx}, nil
}

// Tx wraps one database transaction. Balance updates are guarded on the
// before-snapshot so a lost update surfaces as ledger.ErrIntegrityConflict
// instead of silently overwriting a concurrent posting.
type Tx struct {
	tx *sql.Tx
}

var _ ledger.Tx = (*Tx)(nil)

func (t *Tx) GetAccount(ctx context.Context, name string) (*ledger.Account, error) {
	return getAccount(ctx, t.tx, name)
}

func (t *Tx) AppendTransaction(ctx context.Context, row *ledger.Transaction) error {
	if err := t.moveBalance(ctx, row.Source, row.SourceBefore, row.SourceAfter, row.OccurredAt); err != nil {
		return err
	}

	if !row.Destination.IsSink() {
		if err := t.moveBalance(ctx, row.Destination.Name(), row.DestBefore, row.DestAfter, row.OccurredAt); err != nil {
			return err
		}
	}

	destKind := "account"
	if row.Destination.IsSink() {
		destKind = "sink"
	}

	query := `
		INSERT INTO transactions (
			id, source, destination, dest_kind, gross, contribution, net,
			description, occurred_at, source_before, source_after, dest_before, dest_after
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := t.tx.ExecContext(ctx, query,
		row.ID, row.Source, row.Destination.Name(), destKind,
		row.Gross, row.Contribution, row.Net, row.Description, row.OccurredAt,
		row.SourceBefore, row.SourceAfter, row.DestBefore, row.DestAfter)
	if err != nil {
		return fmt.Errorf("appending transaction: %w", err)
	}

	return nil
}

func (t *Tx) moveBalance(ctx context.Context, name string, before, after decimal.Decimal, at time.Time) error {
	if after.Equal(before) {
		return nil
	}

	query := `
		UPDATE accounts
		SET balance = $1, last_activity = $2
		WHERE name = $3 AND balance = $4
	`

	res, err := t.tx.ExecContext(ctx, query, after, at, name, before)
	if err != nil {
		return fmt.Errorf("updating balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating balance: %w", err)
	}

	if affected == 0 {
		return ledger.ErrIntegrityConflict
	}

	return nil
}

func (t *Tx) SetFeeCursor(ctx context.Context, monthKey string) error {
	query := `
		INSERT INTO settings (key, value)
		VALUES ('last_fee_month', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`

	if _, err := t.tx.ExecContext(ctx, query, monthKey); err != nil {
		return fmt.Errorf("persisting fee cursor: %w", err)
	}

	return nil
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}
