package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/commonsring/ledger/internal/http/account"
	"github.com/commonsring/ledger/internal/http/batch"
	"github.com/commonsring/ledger/internal/http/fund"
	"github.com/commonsring/ledger/internal/http/history"
	"github.com/commonsring/ledger/internal/http/transfer"
)

func New(
	accountsV1 *account.Handler,
	transfersV1 *transfer.Handler,
	fundV1 *fund.Handler,
	historyV1 *history.Handler,
	batchV1 *batch.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			accountsV1.Routes(r)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			transfersV1.Routes(r)
		})

		r.Route("/fund", fundV1.Routes)

		r.Route("/transactions", historyV1.Routes)

		r.Route("/jobs", batchV1.Routes)
	})

	return router
}
