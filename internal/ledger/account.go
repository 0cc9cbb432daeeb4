package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies accounts. At most one account of TypeFund exists; it
// is the sink for transfer contributions and monthly fees.
type AccountType string

const (
	TypePersonal AccountType = "personal"
	TypeBusiness AccountType = "business"
	TypeFund     AccountType = "fund"
	TypeOther    AccountType = "other"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case TypePersonal, TypeBusiness, TypeFund, TypeOther:
		return true
	}

	return false
}

// Account is a named holder of exchange units. Balance and LastActivity are
// mutated only by the posting primitive; Balance is a cache of the latest
// transaction snapshot for this account.
type Account struct {
	Name         string
	Type         AccountType
	Balance      decimal.Decimal
	LastActivity time.Time
	Owner        string
}

// AccountFilter narrows ListAccounts. Zero value matches everything.
type AccountFilter struct {
	Type        AccountType // "" = all types
	ExcludeFund bool
	Owner       string // "" = all owners
}

// Counterparty is the destination side of a transaction: either a real
// account, or an external sink label that absorbs value without holding a
// balance (inactivity deductions, fund disbursements). Balance conservation
// holds only across account legs; sink legs are auditable separately.
type Counterparty struct {
	name   string
	isSink bool
}

// Sink labels used by the core's own postings.
const (
	SinkInactivity   = "inactivity"
	SinkDisbursement = "disbursement"
)

// ToAccount names a real account as counterparty.
func ToAccount(name string) Counterparty {
	return Counterparty{name: name}
}

// ToSink names an external sink as counterparty.
func ToSink(label string) Counterparty {
	return Counterparty{name: label, isSink: true}
}

// IsSink reports whether the counterparty is an external sink.
func (c Counterparty) IsSink() bool { return c.isSink }

// Name returns the account name, or the sink label for sink counterparties.
func (c Counterparty) Name() string { return c.name }
