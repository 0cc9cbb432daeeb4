package transfer

import (
	"time"

	"github.com/google/uuid"

	"github.com/commonsring/ledger/internal/ledger"
)

type txResponse struct {
	ID           uuid.UUID `json:"id"`
	Source       string    `json:"source"`
	Destination  string    `json:"destination"`
	Gross        string    `json:"gross"`
	Contribution string    `json:"contribution"`
	Net          string    `json:"net"`
	Description  string    `json:"description,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
	SourceAfter  string    `json:"source_after"`
	DestAfter    string    `json:"dest_after"`
}

type transferResponse struct {
	Principal    txResponse  `json:"principal"`
	Contribution *txResponse `json:"contribution,omitempty"`
}

func toTxResponse(tx *ledger.Transaction) txResponse {
	return txResponse{
		ID:           tx.ID,
		Source:       tx.Source,
		Destination:  tx.Destination.Name(),
		Gross:        tx.Gross.StringFixed(1),
		Contribution: tx.Contribution.StringFixed(1),
		Net:          tx.Net.StringFixed(1),
		Description:  tx.Description,
		OccurredAt:   tx.OccurredAt,
		SourceAfter:  tx.SourceAfter.StringFixed(1),
		DestAfter:    tx.DestAfter.StringFixed(1),
	}
}

func toResponse(result *ledger.TransferResult) transferResponse {
	resp := transferResponse{Principal: toTxResponse(result.Principal)}
	if result.Contribution != nil {
		c := toTxResponse(result.Contribution)
		resp.Contribution = &c
	}

	return resp
}
