package transfer

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/commonsring/ledger/internal/ledger"
)

type Handler struct {
	svc  *ledger.Service
	rate decimal.Decimal
}

// NewHandler wires the transfer endpoints. rate is the fund
// contribution share applied to every transfer.
func NewHandler(svc *ledger.Service, rate decimal.Decimal) *Handler {
	return &Handler{svc: svc, rate: rate}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
}

type createTransferRequest struct {
	Source      string     `json:"source"`
	Destination string     `json:"destination"`
	Amount      string     `json:"amount"`
	Description string     `json:"description,omitempty"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	params := ledger.TransferParams{
		Source:           req.Source,
		Destination:      req.Destination,
		Gross:            amount,
		Description:      req.Description,
		ContributionRate: h.rate,
	}
	if req.OccurredAt != nil {
		params.At = *req.OccurredAt
	}

	result, err := h.svc.PostTransfer(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(result))
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrAccountNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrOverdraftExceeded):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ledger.ErrIntegrityConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("transfer failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
