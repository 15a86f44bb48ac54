package brain

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
	"adaptive-trend-bot/internal/storage/memory"
)

func newTestController(t *testing.T, trades storage.TradeStore) (*Controller, *Handle, *memory.BlockedSymbolStore, *memory.BrainSnapshotStore) {
	t.Helper()

	handle := NewHandle(PresetFor(domain.ModeNormal), testNow.Add(-time.Hour))
	blocks := memory.NewBlockedSymbolStore()
	snaps := memory.NewBrainSnapshotStore()

	ctrl, err := NewController(ControllerOptions{
		Trades:    trades,
		Blocks:    blocks,
		Snapshots: snaps,
		Settings:  handle,
		Logger:    log.New(io.Discard, "", 0),
		Now:       func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	return ctrl, handle, blocks, snaps
}

func seedClosedTrades(t *testing.T, store *memory.TradeStore, symbol string, n int, pnl float64) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		o := outcome(symbol, pnl, i)
		err := store.RecordOpen(ctx, &domain.TradeOpen{
			TradeID: o.TradeID, Connector: o.Connector, Symbol: o.Symbol, Side: o.Side,
			EntryPrice: 100, Qty: 1, RiskUSD: o.RiskUSD,
			EquityAtEntry: o.EquityAtEntry, OpenedAt: o.OpenedAt,
		})
		if err != nil {
			t.Fatalf("RecordOpen failed: %v", err)
		}
		err = store.RecordClose(ctx, o.TradeID, &domain.TradeClose{
			ExitPrice: 100, RealizedPnL: o.RealizedPnL, Reason: domain.ExitReasonStopLoss,
			EquityAtExit: o.EquityAtExit, ClosedAt: o.ClosedAt,
		})
		if err != nil {
			t.Fatalf("RecordClose failed: %v", err)
		}
	}
}

func TestController_PublishesDecision(t *testing.T) {
	trades := memory.NewTradeStore()
	seedClosedTrades(t, trades, "BTCUSDT", 20, -4) // -0.4R each: defensive

	ctrl, handle, _, snaps := newTestController(t, trades)

	decision, err := ctrl.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if decision.Mode != domain.ModeDefensive {
		t.Fatalf("expected DEFENSIVE, got %s", decision.Mode)
	}

	cur := handle.Current()
	if cur.Params.Mode != domain.ModeDefensive || cur.Params.RiskPerTrade != 0.003 {
		t.Errorf("published settings do not match decision: %+v", cur.Params)
	}
	if cur.Version != 2 {
		t.Errorf("expected version 2 after one cycle, got %d", cur.Version)
	}

	snap, err := snaps.Latest(context.Background())
	if err != nil {
		t.Fatalf("expected audit snapshot: %v", err)
	}
	if snap.Mode != domain.ModeDefensive || snap.SampleCount != 20 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestController_PersistsBlocks(t *testing.T) {
	trades := memory.NewTradeStore()
	seedClosedTrades(t, trades, "BTCUSDT", 22, 10)
	seedClosedTrades(t, trades, "DOGEUSDT", 8, -5)

	ctrl, handle, blocks, _ := newTestController(t, trades)

	if _, err := ctrl.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	active, err := blocks.Active(context.Background(), testNow)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != 1 || active[0].Symbol != "DOGEUSDT" {
		t.Fatalf("expected DOGEUSDT persisted, got %+v", active)
	}

	if !handle.Current().IsBlocked("DOGEUSDT", testNow) {
		t.Error("expected published settings to block DOGEUSDT")
	}
	if handle.Current().IsBlocked("DOGEUSDT", testNow.Add(BlockDuration+time.Minute)) {
		t.Error("expected block to lapse after its window")
	}
}

// failingTradeStore fails every read.
type failingTradeStore struct {
	memory.TradeStore
}

func (s *failingTradeStore) RecentClosed(context.Context, int) ([]*domain.TradeOutcome, error) {
	return nil, errors.New("ledger unavailable")
}

func TestController_FailedCycleKeepsSettings(t *testing.T) {
	ctrl, handle, _, _ := newTestController(t, &failingTradeStore{})

	before := handle.Current()
	if _, err := ctrl.RunCycle(context.Background()); err == nil {
		t.Fatal("expected cycle error")
	}

	after := handle.Current()
	if after != before {
		t.Error("failed cycle must leave prior settings in force")
	}
	if after.Version != before.Version {
		t.Errorf("version changed on failed cycle: %d -> %d", before.Version, after.Version)
	}
}
