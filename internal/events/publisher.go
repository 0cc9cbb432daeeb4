// Package events defines the outbound event surface of the ledger. External
// collaborators (report tooling, exports) consume these instead of polling
// the transaction log.
package events

import (
	"context"
	"time"
)

// TopicTransactionPosted carries one TransactionPosted per committed ledger row.
const TopicTransactionPosted = "ledger.transaction.posted"

type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// TransactionPosted mirrors a committed transaction. Amounts are decimal
// strings so consumers never round through floats.
type TransactionPosted struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	Destination     string    `json:"destination"`
	DestinationKind string    `json:"destination_kind"` // "account" or "sink"
	Gross           string    `json:"gross"`
	Contribution    string    `json:"contribution"`
	Net             string    `json:"net"`
	Description     string    `json:"description"`
	OccurredAt      time.Time `json:"occurred_at"`
}
