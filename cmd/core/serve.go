package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/app"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/bus"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/clock"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/config"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/storage/postgres"
	transporthttp "github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/transport/http"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/worker"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/migrations"
)

const (
	startupTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func serveCmd() *cobra.Command {
	var skipWorkers bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, sweep jobs and the kill switch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(skipWorkers)
		},
	}
	cmd.Flags().BoolVar(&skipWorkers, "no-workers", false, "serve HTTP only, without sweeps or the kill switch")
	return cmd
}

func runServe(skipWorkers bool) error {
	logger := log.Default()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to db: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	clk := clock.NewSystem()

	slotSvc := app.NewSlotService(postgres.NewSlotRepository(pool), clk,
		app.WithHoldTTL(cfg.HoldTTL),
		app.WithAlternativeCount(cfg.AlternativeSlots),
	)
	creditSvc := app.NewCreditService(postgres.NewCreditRepository(pool), clk,
		app.WithMaxCallMinutes(cfg.MaxCallMinutes),
		app.WithReservationTTL(cfg.ReservationTTL),
	)
	ledger := app.NewEventLedger(postgres.NewEventRepository(pool), clk,
		app.WithEventRetention(cfg.EventRetention),
	)
	provisionSvc := app.NewProvisionService(postgres.NewTenantRepository(pool), clk, cfg.DefaultRatePerMinute)
	orc := app.NewOrchestrator(ledger, slotSvc, creditSvc, logger)

	publisher, err := bus.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return fmt.Errorf("connect to bus: %w", err)
	}
	defer publisher.Close()

	handler := transporthttp.NewRouter(transporthttp.RouterDeps{
		Tools:        orc,
		CallEvents:   orc,
		Payments:     orc,
		Messaging:    orc,
		Credits:      creditSvc,
		Tenants:      provisionSvc,
		Slots:        slotSvc,
		StripeSecret: cfg.StripeWebhookSecret,
		CORSOrigins:  cfg.CORSOrigins,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	workersDone := make(chan struct{})
	if skipWorkers {
		close(workersDone)
	} else {
		killSwitch := worker.NewKillSwitch(creditSvc, bus.NewCallPlatform(publisher), clk, cfg.KillSwitchInterval, logger)
		sweeper := newSweeper(logger, cfg, slotSvc, creditSvc, ledger)
		go func() {
			defer close(workersDone)
			go killSwitch.Run(workerCtx)
			sweeper.Run(workerCtx)
		}()
	}

	logger.Printf("core listening on %s", cfg.HTTPAddr)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server error: %v", err)
		}
	case <-stopCtx.Done():
		logger.Printf("shutdown signal received, stopping server")
	}

	stopWorkers()
	<-workersDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("server shutdown error: %v", err)
	}
	logger.Printf("server stopped")
	return nil
}

func newSweeper(logger *log.Logger, cfg config.Config, slots *app.SlotService, credits *app.CreditService, ledger *app.EventLedger) *worker.Sweeper {
	return worker.NewSweeper(logger,
		worker.SweepJob{
			Name:  "expired-holds",
			Every: cfg.SweepInterval,
			Run:   slots.ReleaseExpiredHolds,
		},
		worker.SweepJob{
			Name:  "stale-reservations",
			Every: cfg.SweepInterval,
			Run: func(ctx context.Context) (int64, error) {
				expired, err := credits.ExpireStale(ctx)
				return int64(len(expired)), err
			},
		},
		worker.SweepJob{
			Name:  "event-ledger",
			Every: cfg.EventRetention / 4,
			Run:   ledger.PurgeExpired,
		},
	)
}
