package fund

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commonsring/ledger/internal/ledger"
)

type Handler struct {
	svc *ledger.Service
}

func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.get)
	r.Post("/disbursements", h.disburse)
}

type fundResponse struct {
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	acct, err := h.svc.FundAccount(r.Context())
	if err != nil {
		if errors.Is(err, ledger.ErrNoFundAccount) {
			http.Error(w, "no fund account configured", http.StatusNotFound)
			return
		}

		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, fundResponse{Name: acct.Name, Balance: acct.Balance.StringFixed(1)})
}

type disburseRequest struct {
	Amount      string     `json:"amount"`
	Description string     `json:"description,omitempty"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
}

type disburseResponse struct {
	ID          uuid.UUID `json:"id"`
	Source      string    `json:"source"`
	Amount      string    `json:"amount"`
	Description string    `json:"description,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	SourceAfter string    `json:"source_after"`
}

func (h *Handler) disburse(w http.ResponseWriter, r *http.Request) {
	var req disburseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	params := ledger.DisburseParams{Amount: amount, Description: req.Description}
	if req.OccurredAt != nil {
		params.At = *req.OccurredAt
	}

	row, err := h.svc.Disburse(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ledger.ErrNoFundAccount):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, ledger.ErrIntegrityConflict):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			slog.Error("disbursement failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}

		return
	}

	writeJSON(w, http.StatusCreated, disburseResponse{
		ID:          row.ID,
		Source:      row.Source,
		Amount:      row.Gross.StringFixed(1),
		Description: row.Description,
		OccurredAt:  row.OccurredAt,
		SourceAfter: row.SourceAfter.StringFixed(1),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
