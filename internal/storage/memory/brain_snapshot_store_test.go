package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
)

func TestBrainSnapshotStore_Latest(t *testing.T) {
	store := NewBrainSnapshotStore()
	ctx := context.Background()

	if _, err := store.Latest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty store, got %v", err)
	}

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	snaps := []*domain.BrainSnapshot{
		{Time: base, Mode: domain.ModeNormal, RiskPerTrade: 0.005},
		{Time: base.Add(time.Hour), Mode: domain.ModeDefensive, RiskPerTrade: 0.003, BlockedSymbols: []string{"DOGE/USDT"}},
	}
	for _, s := range snaps {
		if err := store.Insert(ctx, s); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.Mode != domain.ModeDefensive {
		t.Errorf("expected latest mode DEFENSIVE, got %s", got.Mode)
	}
	if len(got.BlockedSymbols) != 1 {
		t.Errorf("expected blocked symbols preserved, got %v", got.BlockedSymbols)
	}
}

func TestEquityStore_Range(t *testing.T) {
	store := NewEquityStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		p := domain.EquityPoint{Time: base.Add(time.Duration(i) * time.Hour), Equity: 10_000 + float64(i)}
		if err := store.Append(ctx, p); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.Range(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 points, got %d", len(got))
	}
	if got[0].Equity != 10_001 || got[2].Equity != 10_003 {
		t.Errorf("unexpected range bounds: %v .. %v", got[0].Equity, got[2].Equity)
	}
}

func TestBarArchiveStore_GetByInstrument(t *testing.T) {
	store := NewBarArchiveStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []*domain.BarRecord{
		{Connector: "bybit", Symbol: "BTC/USDT", Timeframe: "1h", Bar: domain.Bar{Time: base, Close: 100}, ATR: 2},
		{Connector: "bybit", Symbol: "BTC/USDT", Timeframe: "1h", Bar: domain.Bar{Time: base.Add(time.Hour), Close: 101}, ATR: 2},
		{Connector: "bybit", Symbol: "ETH/USDT", Timeframe: "1h", Bar: domain.Bar{Time: base, Close: 50}, ATR: 1},
	}
	if err := store.AppendBulk(ctx, records); err != nil {
		t.Fatalf("AppendBulk failed: %v", err)
	}

	got, err := store.GetByInstrument(ctx, "bybit", "BTC/USDT", "1h", base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("GetByInstrument failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if !got[0].Bar.Time.Before(got[1].Bar.Time) {
		t.Error("records not ordered by bar time")
	}
}
