package history

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

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
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := ledger.HistoryFilter{
		Accounts:                 q["account"],
		ExcludeDescriptionPrefix: q.Get("exclude_prefix"),
	}

	if s := q.Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid from timestamp", http.StatusBadRequest)
			return
		}

		filter.From = &t
	}

	if s := q.Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid to timestamp", http.StatusBadRequest)
			return
		}

		filter.To = &t
	}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}

		filter.Limit = n
	}

	transactions, err := h.svc.History(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, toResponseList(transactions))
}

type txResponse struct {
	ID              uuid.UUID `json:"id"`
	Source          string    `json:"source"`
	Destination     string    `json:"destination"`
	DestinationKind string    `json:"destination_kind"`
	Gross           string    `json:"gross"`
	Contribution    string    `json:"contribution"`
	Net             string    `json:"net"`
	Description     string    `json:"description,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
	SourceBefore    string    `json:"source_before"`
	SourceAfter     string    `json:"source_after"`
	DestBefore      string    `json:"dest_before"`
	DestAfter       string    `json:"dest_after"`
}

func toResponseList(transactions []*ledger.Transaction) []txResponse {
	resp := make([]txResponse, len(transactions))

	for i, tx := range transactions {
		kind := "account"
		if tx.Destination.IsSink() {
			kind = "sink"
		}

		resp[i] = txResponse{
			ID:              tx.ID,
			Source:          tx.Source,
			Destination:     tx.Destination.Name(),
			DestinationKind: kind,
			Gross:           tx.Gross.StringFixed(1),
			Contribution:    tx.Contribution.StringFixed(1),
			Net:             tx.Net.StringFixed(1),
			Description:     tx.Description,
			OccurredAt:      tx.OccurredAt,
			SourceBefore:    tx.SourceBefore.StringFixed(1),
			SourceAfter:     tx.SourceAfter.StringFixed(1),
			DestBefore:      tx.DestBefore.StringFixed(1),
			DestAfter:       tx.DestAfter.StringFixed(1),
		}
	}

	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
