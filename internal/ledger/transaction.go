package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one append-only ledger row. It is both the event log entry
// used for point-in-time balance reconstruction and the audit record: the
// four snapshot fields hold the balances actually produced when the row was
// written, they are never derived later.
//
// Net = Gross - Contribution always holds. For sink destinations the
// destination snapshots are zero.
type Transaction struct {
	ID           uuid.UUID
	Source       string
	Destination  Counterparty
	Gross        decimal.Decimal
	Contribution decimal.Decimal
	Net          decimal.Decimal
	Description  string
	OccurredAt   time.Time

	SourceBefore decimal.Decimal
	SourceAfter  decimal.Decimal
	DestBefore   decimal.Decimal
	DestAfter    decimal.Decimal
}

// HistoryFilter narrows ListTransactions.
type HistoryFilter struct {
	Accounts []string // match source or destination; empty = all
	From     *time.Time
	To       *time.Time

	// ExcludeDescriptionPrefix hides rows whose description starts with the
	// given prefix. Used by collaborators to hide internal contribution
	// artifacts from end users.
	ExcludeDescriptionPrefix string

	Limit int // 0 = no limit
}

// Description markers for postings created by the core itself. Year-income
// computation excludes rows carrying them.
const (
	contributionPrefix = "[fund contribution"
	feePrefix          = "[monthly fee"
)

// ContributionDescription tags the automatic contribution leg of a transfer.
const ContributionDescription = "[fund contribution]"

// InactivityDescription tags inactivity sweep deductions.
const InactivityDescription = "[automatic deduction for inactivity]"

// FeeDescription tags a monthly fee posting with the month it settles.
func FeeDescription(monthKey string) string {
	return fmt.Sprintf("[monthly fee for %s]", monthKey)
}

// ExcludedIncomePrefixes returns the description prefixes marking fee and
// fund-contribution artifacts. Stores exclude matching rows from YearIncome.
func ExcludedIncomePrefixes() []string {
	return []string{feePrefix, contributionPrefix}
}

// CountsAsIncome reports whether a transaction credited to an account counts
// toward its yearly income for the overdraft calculation.
func CountsAsIncome(description string) bool {
	for _, p := range ExcludedIncomePrefixes() {
		if strings.HasPrefix(description, p) {
			return false
		}
	}

	return true
}
