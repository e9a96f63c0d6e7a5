package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/app"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/clock"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/config"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/storage/postgres"
)

// sweepCmd runs every cleanup pass once and exits, for cron-style
// deployments that do not keep a resident worker.
func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one pass of every cleanup job and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.Default()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			connectCtx, cancel := context.WithTimeout(cmd.Context(), startupTimeout)
			defer cancel()

			pool, err := pgxpool.New(connectCtx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to db: %w", err)
			}
			defer pool.Close()

			clk := clock.NewSystem()
			slotSvc := app.NewSlotService(postgres.NewSlotRepository(pool), clk, app.WithHoldTTL(cfg.HoldTTL))
			creditSvc := app.NewCreditService(postgres.NewCreditRepository(pool), clk, app.WithReservationTTL(cfg.ReservationTTL))
			ledger := app.NewEventLedger(postgres.NewEventRepository(pool), clk, app.WithEventRetention(cfg.EventRetention))

			ctx := cmd.Context()

			released, err := slotSvc.ReleaseExpiredHolds(ctx)
			if err != nil {
				return fmt.Errorf("release expired holds: %w", err)
			}
			logger.Printf("released expired holds count=%d", released)

			expired, err := creditSvc.ExpireStale(ctx)
			if err != nil {
				return fmt.Errorf("expire stale reservations: %w", err)
			}
			logger.Printf("expired stale reservations count=%d", len(expired))

			purged, err := ledger.PurgeExpired(ctx)
			if err != nil {
				return fmt.Errorf("purge event ledger: %w", err)
			}
			logger.Printf("purged ledger rows count=%d", purged)

			return nil
		},
	}
}
