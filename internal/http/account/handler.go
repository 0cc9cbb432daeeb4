package account

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/commonsring/ledger/internal/ledger"
)

type Handler struct {
	svc *ledger.Service
}

func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{name}", h.get)
	r.Get("/{name}/balance", h.balance)
	r.Get("/{name}/overdraft-limit", h.overdraftLimit)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ledger.AccountFilter{
		Type:        ledger.AccountType(r.URL.Query().Get("type")),
		Owner:       r.URL.Query().Get("owner"),
		ExcludeFund: r.URL.Query().Get("exclude_fund") == "true",
	}

	accounts, err := h.svc.Accounts(r.Context(), filter)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toResponseList(accounts))
}

type createAccountRequest struct {
	Name  string             `json:"name"`
	Type  ledger.AccountType `json:"type"`
	Owner string             `json:"owner,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	acct, err := h.svc.CreateAccount(r.Context(), ledger.CreateAccountParams{
		Name:  req.Name,
		Type:  req.Type,
		Owner: req.Owner,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrAccountExists), errors.Is(err, ledger.ErrMultipleFundAccounts):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}

		return
	}

	writeJSON(w, http.StatusCreated, toResponse(acct))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	acct, err := h.svc.Account(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			http.Error(w, "account not found", http.StatusNotFound)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, toResponse(acct))
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var (
		balance string
		asOf    *time.Time
	)

	if s := r.URL.Query().Get("as_of"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid as_of timestamp", http.StatusBadRequest)
			return
		}

		asOf = &t
	}

	if asOf != nil {
		b, err := h.svc.BalanceAsOf(r.Context(), name, *asOf)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		balance = b.StringFixed(1)
	} else {
		b, err := h.svc.CurrentBalance(r.Context(), name)
		if err != nil {
			if errors.Is(err, ledger.ErrAccountNotFound) {
				http.Error(w, "account not found", http.StatusNotFound)
				return
			}

			http.Error(w, "internal error", http.StatusInternalServerError)

			return
		}

		balance = b.StringFixed(1)
	}

	writeJSON(w, http.StatusOK, balanceResponse{Account: name, Balance: balance, AsOf: asOf})
}

func (h *Handler) overdraftLimit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	limit, err := h.svc.OverdraftLimit(r.Context(), name, time.Now())
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			http.Error(w, "account not found", http.StatusNotFound)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, limitResponse{Account: name, Limit: limit.StringFixed(1)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
