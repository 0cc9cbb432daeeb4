package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/commonsring/ledger/internal/config"
	"github.com/commonsring/ledger/internal/database"
	"github.com/commonsring/ledger/internal/events"
	amqpevents "github.com/commonsring/ledger/internal/events/amqp"
	"github.com/commonsring/ledger/internal/fees"
	ringHttp "github.com/commonsring/ledger/internal/http"
	accountHandler "github.com/commonsring/ledger/internal/http/account"
	batchHandler "github.com/commonsring/ledger/internal/http/batch"
	fundHandler "github.com/commonsring/ledger/internal/http/fund"
	historyHandler "github.com/commonsring/ledger/internal/http/history"
	transferHandler "github.com/commonsring/ledger/internal/http/transfer"
	"github.com/commonsring/ledger/internal/ledger"
	"github.com/commonsring/ledger/internal/ledger/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	var publisher events.Publisher

	if cfg.AMQP.URL != "" {
		client, err := amqpevents.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
		if err != nil {
			slog.Error("failed to connect to AMQP", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		publisher = client
	}

	var (
		repo    = store.New(db)
		service = ledger.NewService(repo, ledger.OverdraftPolicy{
			StartAllowance: decimal.NewFromFloat(cfg.Ledger.OverdraftAllowance),
			IncomeShare:    decimal.NewFromFloat(cfg.Ledger.OverdraftIncomeShare),
		}, publisher)
		feeJob = fees.NewJob(repo, decimal.NewFromFloat(cfg.Fees.Rate))
	)

	var (
		contributionRate    = decimal.NewFromFloat(cfg.Ledger.ContributionRate)
		inactivityThreshold = time.Duration(cfg.Inactivity.ThresholdDays) * 24 * time.Hour
		inactivityPenalty   = decimal.NewFromFloat(cfg.Inactivity.Penalty)
	)

	var (
		accountH  = accountHandler.NewHandler(service)
		transferH = transferHandler.NewHandler(service, contributionRate)
		fundH     = fundHandler.NewHandler(service)
		historyH  = historyHandler.NewHandler(service)
		batchH    = batchHandler.NewHandler(service, feeJob, inactivityThreshold, inactivityPenalty)
	)

	router := ringHttp.New(accountH, transferH, fundH, historyH, batchH)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	slog.Info("starting server", "port", port)

	if err := http.ListenAndServe(port, router); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
