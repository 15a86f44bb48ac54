// Package main generates the performance report from the trade ledger
// and writes REPORT.md and trades.csv to the output directory.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"adaptive-trend-bot/internal/reporting"
	"adaptive-trend-bot/internal/storage/migrations"
	pgstore "adaptive-trend-bot/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	outputDir := flag.String("output-dir", "output", "Output directory for report files")
	limit := flag.Int("limit", reporting.DefaultSampleLimit, "Maximum closed trades to include")
	flag.Parse()

	logger := log.New(os.Stdout, "[report] ", log.LstdFlags)

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

	gen := reporting.NewGenerator(pgstore.NewTradeStore(pool)).WithLimit(*limit)
	report, err := gen.Generate(ctx)
	if err != nil {
		logger.Fatalf("Failed to generate report: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatalf("Failed to create output dir: %v", err)
	}

	mdPath := filepath.Join(*outputDir, "REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		logger.Fatalf("Failed to write %s: %v", mdPath, err)
	}
	csvPath := filepath.Join(*outputDir, "trades.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report)), 0o644); err != nil {
		logger.Fatalf("Failed to write %s: %v", csvPath, err)
	}

	logger.Printf("Report written: %s (%d trades, win rate %.1f%%)", mdPath, report.TotalTrades, report.WinRate*100)
}
