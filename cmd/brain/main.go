// Package main runs one risk-controller evaluation against the trade
// ledger and prints the decision. With --publish it also persists the
// resulting blocks and an audit snapshot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"adaptive-trend-bot/internal/brain"
	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage/migrations"
	pgstore "adaptive-trend-bot/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	publish := flag.Bool("publish", false, "Persist new blocks and an audit snapshot")
	flag.Parse()

	logger := log.New(os.Stdout, "[brain] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()
	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	trades := pgstore.NewTradeStore(pool)

	var decision brain.Decision
	if *publish {
		settings := brain.NewHandle(brain.PresetFor(domain.ModeNormal), time.Now())
		ctrl, err := brain.NewController(brain.ControllerOptions{
			Trades:    trades,
			Blocks:    pgstore.NewBlockedSymbolStore(pool),
			Snapshots: pgstore.NewBrainSnapshotStore(pool),
			Settings:  settings,
			Logger:    logger,
		})
		if err != nil {
			logger.Fatalf("Failed to create controller: %v", err)
		}
		d, err := ctrl.RunCycle(ctx)
		if err != nil {
			logger.Fatalf("Cycle failed: %v", err)
		}
		decision = *d
	} else {
		samples, err := trades.RecentClosed(ctx, brain.BaselineWindow)
		if err != nil {
			logger.Fatalf("Failed to read closed trades: %v", err)
		}
		decision = brain.Evaluate(samples, time.Now())
	}

	fmt.Printf("mode:           %s\n", decision.Mode)
	fmt.Printf("risk per trade: %.4f\n", decision.Params.RiskPerTrade)
	fmt.Printf("max exposure:   %.2f\n", decision.Params.MaxPortfolioExposure)
	fmt.Printf("trail mult:     %.2f\n", decision.Params.TrailATRMult)
	fmt.Printf("samples:        %d\n", decision.Stats.SampleCount)
	fmt.Printf("short win rate: %.2f  short avg R: %.2f  short equity chg: %+.2f%%\n",
		decision.Stats.ShortWinRate, decision.Stats.ShortAvgR, decision.Stats.ShortEquityChg*100)
	fmt.Printf("base win rate:  %.2f  base avg R:  %.2f\n",
		decision.Stats.BaseWinRate, decision.Stats.BaseAvgR)
	if len(decision.Blocked) == 0 {
		fmt.Println("new blocks:     none")
		return
	}
	for _, b := range decision.Blocked {
		until := "until cleared"
		if b.Until != nil {
			until = "until " + b.Until.Format(time.RFC3339)
		}
		fmt.Printf("new block:      %s (%s, %s)\n", b.Symbol, b.Reason, until)
	}
}
