package account

import (
	"time"

	"github.com/commonsring/ledger/internal/ledger"
)

type accountResponse struct {
	Name         string             `json:"name"`
	Type         ledger.AccountType `json:"type"`
	Balance      string             `json:"balance"`
	LastActivity time.Time          `json:"last_activity"`
	Owner        string             `json:"owner,omitempty"`
}

type balanceResponse struct {
	Account string     `json:"account"`
	Balance string     `json:"balance"`
	AsOf    *time.Time `json:"as_of,omitempty"`
}

type limitResponse struct {
	Account string `json:"account"`
	Limit   string `json:"limit"`
}

func toResponse(acct *ledger.Account) accountResponse {
	return accountResponse{
		Name:         acct.Name,
		Type:         acct.Type,
		Balance:      acct.Balance.StringFixed(1),
		LastActivity: acct.LastActivity,
		Owner:        acct.Owner,
	}
}

func toResponseList(accounts []*ledger.Account) []accountResponse {
	resp := make([]accountResponse, len(accounts))
	for i, acct := range accounts {
		resp[i] = toResponse(acct)
	}

	return resp
}
