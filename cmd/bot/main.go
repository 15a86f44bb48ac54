// Package main runs the live trading bot: the tick loop over configured
// symbols, the adaptive risk controller on its own cadence, and the
// metrics HTTP endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"adaptive-trend-bot/internal/brain"
	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/engine"
	"adaptive-trend-bot/internal/exchange/bybit"
	"adaptive-trend-bot/internal/observability"
	"adaptive-trend-bot/internal/storage"
	chstore "adaptive-trend-bot/internal/storage/clickhouse"
	"adaptive-trend-bot/internal/storage/memory"
	"adaptive-trend-bot/internal/storage/migrations"
	pgstore "adaptive-trend-bot/internal/storage/postgres"
)

// botStores holds all storage implementations.
type botStores struct {
	trades storage.TradeStore
	blocks storage.BlockedSymbolStore
	snaps  storage.BrainSnapshotStore
	equity storage.EquityStore
	bars   storage.BarArchiveStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	symbols := flag.String("symbols", envOr("BOT_SYMBOLS", "BTCUSDT,ETHUSDT"), "Comma-separated symbols to trade")
	timeframe := flag.String("timeframe", envOr("BOT_TIMEFRAME", "1h"), "Signal timeframe")
	htfTimeframe := flag.String("htf-timeframe", envOr("BOT_HTF_TIMEFRAME", "4h"), "Trend filter timeframe")
	apiKey := flag.String("bybit-api-key", os.Getenv("BYBIT_API_KEY"), "Bybit API key")
	apiSecret := flag.String("bybit-api-secret", os.Getenv("BYBIT_API_SECRET"), "Bybit API secret")
	baseURL := flag.String("bybit-base-url", envOr("BYBIT_BASE_URL", "https://api.bybit.com"), "Bybit REST endpoint")
	wsURL := flag.String("bybit-ws-url", envOr("BYBIT_WS_URL", bybit.DefaultStreamURL), "Bybit ticker stream endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	startEquity := flag.Float64("start-equity", 10_000, "Starting account equity")
	pollInterval := flag.Duration("poll-interval", engine.DefaultPollInterval, "Tick interval")
	brainInterval := flag.Duration("brain-interval", engine.DefaultBrainEvery, "Risk controller refresh interval")
	runFor := flag.Duration("run-for", 0, "Stop after this duration (0 runs until interrupted)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	symbolList := splitList(*symbols)
	if len(symbolList) == 0 {
		logger.Fatal("--symbols is required")
	}
	if *apiKey == "" || *apiSecret == "" {
		logger.Fatal("--bybit-api-key and --bybit-api-secret are required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}
	logger.Printf("Trading symbols: %v", symbolList)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Connect the ticker stream and the REST client
	stream, err := bybit.NewTickerStream(ctx, *wsURL, symbolList, nil)
	if err != nil {
		logger.Fatalf("Failed to connect ticker stream: %v", err)
	}
	defer stream.Close()

	connector := bybit.NewClient(
		bybit.WithBaseURL(*baseURL),
		bybit.WithCredentials(*apiKey, *apiSecret),
		bybit.WithTickerStream(stream),
	)

	// Risk controller
	settings := brain.NewHandle(brain.PresetFor(domain.ModeNormal), time.Now())
	controller, err := brain.NewController(brain.ControllerOptions{
		Trades:    stores.trades,
		Blocks:    stores.blocks,
		Snapshots: stores.snaps,
		Settings:  settings,
		Logger:    log.New(os.Stdout, "[brain] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("Failed to create brain controller: %v", err)
	}

	instruments := make([]engine.Instrument, 0, len(symbolList))
	for _, sym := range symbolList {
		instruments = append(instruments, engine.Instrument{
			Connector:    connector,
			Symbol:       sym,
			Timeframe:    *timeframe,
			HTFTimeframe: *htfTimeframe,
		})
	}

	loop, err := engine.NewLoop(engine.LoopOptions{
		Instruments:  instruments,
		Settings:     settings,
		StartEquity:  *startEquity,
		Trades:       stores.trades,
		Equity:       stores.equity,
		Bars:         stores.bars,
		Brain:        controller,
		PollInterval: *pollInterval,
		BrainEvery:   *brainInterval,
		RunFor:       *runFor,
		Logger:       log.New(os.Stdout, "[loop] ", log.LstdFlags),
	})
	if err != nil {
		logger.Fatalf("Failed to create loop: %v", err)
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
		sig = <-sigCh
		logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
		os.Exit(1)
	}()

	// Start HTTP server
	go startHTTPServer(*metricsAddr, logger)

	if err := loop.Run(ctx); err != nil {
		logger.Fatalf("Loop error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates all required stores, running migrations first.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*botStores, func(), error) {
	if useMemory {
		stores := &botStores{
			trades: memory.NewTradeStore(),
			blocks: memory.NewBlockedSymbolStore(),
			snaps:  memory.NewBrainSnapshotStore(),
			equity: memory.NewEquityStore(),
			bars:   memory.NewBarArchiveStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &botStores{
		trades: pgstore.NewTradeStore(pool),
		blocks: pgstore.NewBlockedSymbolStore(pool),
		snaps:  pgstore.NewBrainSnapshotStore(pool),
		equity: chstore.NewEquityStore(chConn),
		bars:   chstore.NewBarArchiveStore(chConn),
	}
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// StatusResponse is the JSON response for the /status endpoint. Loop
// state stays out of it: the loop is single-writer and its numbers are
// already exported through the metrics endpoint.
type StatusResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func startHTTPServer(addr string, logger *log.Logger) {
	started := time.Now()
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Status: "running",
			Uptime: time.Since(started).Round(time.Second).String(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
