package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage/memory"
)

var reportNow = time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

func seedTrades(t *testing.T) *memory.TradeStore {
	t.Helper()
	ctx := context.Background()
	store := memory.NewTradeStore()

	trades := []struct {
		id     string
		symbol string
		pnl    float64
		reason string
	}{
		{"t1", "BTCUSDT", 50, domain.ExitReasonTP2},
		{"t2", "BTCUSDT", -20, domain.ExitReasonStopLoss},
		{"t3", "ETHUSDT", 30, domain.ExitReasonTP1},
		{"t4", "ETHUSDT", -10, domain.ExitReasonTimeExit},
	}
	equity := 10_000.0
	for i, tr := range trades {
		opened := reportNow.Add(time.Duration(i-10) * time.Hour)
		err := store.RecordOpen(ctx, &domain.TradeOpen{
			TradeID: tr.id, Connector: "bybit", Symbol: tr.symbol, Side: domain.SideLong,
			EntryPrice: 100, Qty: 1, RiskUSD: 100,
			EquityAtEntry: equity, OpenedAt: opened,
		})
		if err != nil {
			t.Fatalf("RecordOpen failed: %v", err)
		}
		equity += tr.pnl
		err = store.RecordClose(ctx, tr.id, &domain.TradeClose{
			ExitPrice: 100 + tr.pnl, RealizedPnL: tr.pnl, Reason: tr.reason,
			EquityAtExit: equity, ClosedAt: opened.Add(time.Hour),
		})
		if err != nil {
			t.Fatalf("RecordClose failed: %v", err)
		}
	}
	return store
}

func TestGenerate_Totals(t *testing.T) {
	g := NewGenerator(seedTrades(t)).WithClock(func() time.Time { return reportNow })

	r, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if r.TotalTrades != 4 || r.Wins != 2 || r.Losses != 2 {
		t.Errorf("unexpected totals: %d trades, %d wins, %d losses", r.TotalTrades, r.Wins, r.Losses)
	}
	if r.WinRate != 0.5 {
		t.Errorf("expected win rate 0.5, got %g", r.WinRate)
	}
	if r.TotalPnL != 50 {
		t.Errorf("expected total PnL 50, got %g", r.TotalPnL)
	}
	// R multiples: 0.5, -0.2, 0.3, -0.1 against 100 risked.
	if r.AvgR != 0.125 {
		t.Errorf("expected avg R 0.125, got %g", r.AvgR)
	}
	if r.EquityStart != 10_000 || r.EquityEnd != 10_050 {
		t.Errorf("unexpected equity bounds: %g to %g", r.EquityStart, r.EquityEnd)
	}
}

func TestGenerate_Breakdowns(t *testing.T) {
	g := NewGenerator(seedTrades(t)).WithClock(func() time.Time { return reportNow })

	r, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(r.SymbolRows) != 2 {
		t.Fatalf("expected 2 symbol rows, got %d", len(r.SymbolRows))
	}
	btc := r.SymbolRows[0]
	if btc.Label != "BTCUSDT" || btc.Trades != 2 || btc.TotalPnL != 30 {
		t.Errorf("unexpected BTC row: %+v", btc)
	}

	if len(r.ReasonRows) != 4 {
		t.Fatalf("expected 4 reason rows, got %d", len(r.ReasonRows))
	}
	for _, row := range r.ReasonRows {
		if row.Trades != 1 {
			t.Errorf("expected one trade per reason, got %+v", row)
		}
	}
}

func TestGenerate_EmptyLedger(t *testing.T) {
	g := NewGenerator(memory.NewTradeStore()).WithClock(func() time.Time { return reportNow })

	r, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if r.TotalTrades != 0 || len(r.SymbolRows) != 0 {
		t.Errorf("expected empty report, got %+v", r)
	}

	md := RenderMarkdown(r)
	if !strings.Contains(md, "No closed trades") {
		t.Error("expected empty-window notice in markdown")
	}
}

func TestRenderMarkdown(t *testing.T) {
	g := NewGenerator(seedTrades(t)).WithClock(func() time.Time { return reportNow })
	r, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(r)
	for _, want := range []string{
		"# Trading Performance Report",
		"| Total Trades | 4 |",
		"| Win Rate | 50.0% |",
		"## By Symbol",
		"| BTCUSDT | 2 |",
		"## By Exit Reason",
		"| SL | 1 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderCSV(t *testing.T) {
	g := NewGenerator(seedTrades(t)).WithClock(func() time.Time { return reportNow })
	r, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	csv := RenderCSV(r)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "trade_id,connector,symbol") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "t1,bybit,BTCUSDT,long") {
		t.Errorf("expected oldest trade first, got %s", lines[1])
	}
}
