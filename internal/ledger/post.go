package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Posting describes one ledger row to append. Debit is the amount leaving
// the source account and Credit the amount added to a real destination
// account. They are stated separately because the two legs of a skimming
// transfer move different amounts: the principal leg debits the full gross
// while crediting only the net, and the contribution leg credits the fund
// without debiting the source a second time.
type Posting struct {
	Source       string
	Destination  Counterparty
	Gross        decimal.Decimal
	Contribution decimal.Decimal
	Net          decimal.Decimal
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Description  string
	At           time.Time
}

// Post is the single transaction-creation code path. Transfers, fund
// disbursements, monthly fee postings and inactivity deductions all go
// through here, so every row carries snapshots of the balances it actually
// produced.
//
// Balances are read through tx and committed by the caller, which lets a
// batch (a caught-up fee month) group many postings with its cursor advance
// into one atomic unit.
func Post(ctx context.Context, tx Tx, p Posting) (*Transaction, error) {
	src, err := tx.GetAccount(ctx, p.Source)
	if err != nil {
		return nil, err
	}

	row := &Transaction{
		ID:           uuid.New(),
		Source:       p.Source,
		Destination:  p.Destination,
		Gross:        p.Gross,
		Contribution: p.Contribution,
		Net:          p.Net,
		Description:  p.Description,
		OccurredAt:   p.At,
		SourceBefore: src.Balance,
		SourceAfter:  RoundAmount(src.Balance.Sub(p.Debit)),
	}

	if !p.Destination.IsSink() {
		if p.Destination.Name() == p.Source {
			// Internal reassignment: the credit lands on the already-debited
			// balance so the snapshots chain instead of overlapping.
			row.DestBefore = row.SourceAfter
		} else {
			dst, err := tx.GetAccount(ctx, p.Destination.Name())
			if err != nil {
				return nil, err
			}

			row.DestBefore = dst.Balance
		}

		row.DestAfter = RoundAmount(row.DestBefore.Add(p.Credit))
	}

	if err := tx.AppendTransaction(ctx, row); err != nil {
		return nil, err
	}

	return row, nil
}
