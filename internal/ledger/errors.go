package ledger

import "errors"

var (
	// ErrAccountNotFound is returned when a named account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when provisioning a duplicate account name.
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidAmount rejects non-positive transfer amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrOverdraftExceeded rejects a transfer whose projected source balance
	// breaches the computed overdraft limit. Nothing is written.
	ErrOverdraftExceeded = errors.New("overdraft limit exceeded")

	// ErrNoFundAccount signals that no fund-typed account exists; contribution
	// routing degrades and fee processing suspends.
	ErrNoFundAccount = errors.New("no fund account configured")

	// ErrMultipleFundAccounts rejects a configuration with more than one
	// fund-typed account.
	ErrMultipleFundAccounts = errors.New("more than one fund account configured")

	// ErrIntegrityConflict signals that a write would contradict an account's
	// last known cached balance, i.e. a concurrent modification.
	ErrIntegrityConflict = errors.New("account balance changed concurrently")
)
