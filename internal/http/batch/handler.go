package batch

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/commonsring/ledger/internal/fees"
	"github.com/commonsring/ledger/internal/ledger"
)

// Handler triggers the periodic jobs on demand. The same code paths run on a
// schedule in the worker; this endpoint exists for operators.
type Handler struct {
	svc       *ledger.Service
	job       *fees.Job
	threshold time.Duration
	penalty   decimal.Decimal
}

func NewHandler(svc *ledger.Service, job *fees.Job, threshold time.Duration, penalty decimal.Decimal) *Handler {
	return &Handler{svc: svc, job: job, threshold: threshold, penalty: penalty}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/fee-catchup", h.feeCatchup)
	r.Post("/inactivity-sweep", h.inactivitySweep)
}

type feeCatchupResponse struct {
	Processed []string `json:"processed"`
	Cursor    string   `json:"cursor"`
}

func (h *Handler) feeCatchup(w http.ResponseWriter, r *http.Request) {
	result, err := h.job.Run(r.Context(), time.Now())
	if err != nil {
		if errors.Is(err, ledger.ErrNoFundAccount) || errors.Is(err, ledger.ErrMultipleFundAccounts) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		slog.Error("fee catch-up failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	resp := feeCatchupResponse{Processed: []string{}, Cursor: result.Cursor.Key()}
	for _, m := range result.Processed {
		resp.Processed = append(resp.Processed, m.Key())
	}

	writeJSON(w, http.StatusOK, resp)
}

type sweepResponse struct {
	Swept int `json:"swept"`
}

func (h *Handler) inactivitySweep(w http.ResponseWriter, r *http.Request) {
	swept, err := h.svc.SweepInactive(r.Context(), ledger.SweepParams{
		Threshold: h.threshold,
		Penalty:   h.penalty,
	})
	if err != nil {
		slog.Error("inactivity sweep failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, sweepResponse{Swept: swept})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
