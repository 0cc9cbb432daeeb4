package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/commonsring/ledger/internal/config"
	"github.com/commonsring/ledger/internal/database"
	"github.com/commonsring/ledger/internal/events"
	amqpevents "github.com/commonsring/ledger/internal/events/amqp"
	"github.com/commonsring/ledger/internal/fees"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker started",
		"fee_interval", cfg.Fees.Interval,
		"inactivity_interval", cfg.Inactivity.Interval)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return every(ctx, cfg.Fees.Interval, func(ctx context.Context) {
			result, err := feeJob.Run(ctx, time.Now())
			if err != nil {
				slog.Error("fee catch-up failed", "error", err)
				return
			}

			if len(result.Processed) > 0 {
				slog.Info("fee catch-up complete",
					"months", len(result.Processed), "cursor", result.Cursor.Key())
			}
		})
	})

	group.Go(func() error {
		threshold := time.Duration(cfg.Inactivity.ThresholdDays) * 24 * time.Hour
		penalty := decimal.NewFromFloat(cfg.Inactivity.Penalty)

		return every(ctx, cfg.Inactivity.Interval, func(ctx context.Context) {
			swept, err := service.SweepInactive(ctx, ledger.SweepParams{
				Threshold: threshold,
				Penalty:   penalty,
			})
			if err != nil {
				slog.Error("inactivity sweep failed", "error", err)
				return
			}

			if swept > 0 {
				slog.Info("inactivity sweep complete", "swept", swept)
			}
		})
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}

	slog.Info("worker stopped")
}

// every runs fn immediately and then on each tick until the context ends.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}
