package memory

import (
	"context"
	"testing"
	"time"

	"adaptive-trend-bot/internal/domain"
)

func TestBlockedSymbolStore_BlockAndExpire(t *testing.T) {
	store := NewBlockedSymbolStore()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	until := now.Add(48 * time.Hour)

	err := store.Block(ctx, &domain.BlockedSymbol{
		Symbol: "DOGE/USDT", Until: &until, Reason: "underperformer", CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("Block failed: %v", err)
	}

	active, err := store.Active(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != 1 || active[0].Symbol != "DOGE/USDT" {
		t.Fatalf("expected DOGE/USDT blocked, got %+v", active)
	}

	// After expiry the block drops out without a Clear.
	active, err = store.Active(ctx, until.Add(time.Minute))
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active blocks after expiry, got %d", len(active))
	}
}

func TestBlockedSymbolStore_ReplaceExtends(t *testing.T) {
	store := NewBlockedSymbolStore()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	short := now.Add(time.Hour)
	long := now.Add(72 * time.Hour)

	if err := store.Block(ctx, &domain.BlockedSymbol{Symbol: "XRP/USDT", Until: &short, CreatedAt: now}); err != nil {
		t.Fatalf("Block failed: %v", err)
	}
	if err := store.Block(ctx, &domain.BlockedSymbol{Symbol: "XRP/USDT", Until: &long, CreatedAt: now}); err != nil {
		t.Fatalf("second Block failed: %v", err)
	}

	active, err := store.Active(ctx, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected extended block to be active, got %d", len(active))
	}
	if active[0].Until == nil || !active[0].Until.Equal(long) {
		t.Errorf("expected until %v, got %v", long, active[0].Until)
	}
}

func TestBlockedSymbolStore_IndefiniteAndClear(t *testing.T) {
	store := NewBlockedSymbolStore()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Block(ctx, &domain.BlockedSymbol{Symbol: "PEPE/USDT", CreatedAt: now}); err != nil {
		t.Fatalf("Block failed: %v", err)
	}

	// nil Until never expires.
	active, err := store.Active(ctx, now.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected indefinite block active, got %d", len(active))
	}

	if err := store.Clear(ctx, "PEPE/USDT"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	active, err = store.Active(ctx, now)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no blocks after Clear, got %d", len(active))
	}

	// Clearing an unknown symbol is a no-op.
	if err := store.Clear(ctx, "UNKNOWN"); err != nil {
		t.Errorf("Clear on unknown symbol: %v", err)
	}
}
