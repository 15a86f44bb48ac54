package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"adaptive-trend-bot/internal/brain"
	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/indicator"
	"adaptive-trend-bot/internal/storage/memory"
)

// permissiveCfg keeps the signal gates out of the way so loop tests can
// drive entries with short synthetic histories.
func permissiveCfg() indicator.Config {
	return indicator.Config{
		DonchianLen: 5,
		ATRLen:      5,
		RSILen:      5,
		RSILongMax:  100,
		RSIShortMin: 0,
		ADXLen:      5,
		ADXMin:      0,
		TrendEMA:    5,
	}
}

func makeTestBars(closes []float64, halfRange float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Time:   testTime.Add(time.Duration(i-len(closes)) * time.Hour),
			Open:   c,
			High:   c + halfRange,
			Low:    c - halfRange,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

// rallyBars end in a decisive breakout above the prior window.
func rallyBars(n int) []domain.Bar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 0.5*float64(i)
	}
	closes[n-1] += 10
	return makeTestBars(closes, 0.5)
}

func flatBars(n int, price float64) []domain.Bar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return makeTestBars(closes, 0.5)
}

func seedBullishMarket(conn *fakeConnector, symbol string) {
	conn.bars[symbol+"/1h"] = rallyBars(60)
	conn.bars[symbol+"/4h"] = flatBars(30, 50)
}

func newTestLoop(t *testing.T, conn *fakeConnector, opts LoopOptions) *Loop {
	t.Helper()
	if opts.Settings == nil {
		opts.Settings = brain.NewHandle(brain.PresetFor(domain.ModeNormal), testTime.Add(-time.Hour))
	}
	if opts.StartEquity == 0 {
		opts.StartEquity = 10_000
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return testTime }
	}
	if opts.IndicatorCfg == (indicator.Config{}) {
		opts.IndicatorCfg = permissiveCfg()
	}
	l, err := NewLoop(opts)
	if err != nil {
		t.Fatalf("NewLoop failed: %v", err)
	}
	return l
}

func TestLoop_TickOpensPositionWithinExposureCap(t *testing.T) {
	conn := newFakeConnector()
	seedBullishMarket(conn, "BTCUSDT")
	equity := memory.NewEquityStore()

	l := newTestLoop(t, conn, LoopOptions{
		Instruments: []Instrument{{Connector: conn, Symbol: "BTCUSDT"}},
		Equity:      equity,
	})

	l.Tick(context.Background())

	mgr, _ := l.Manager("fake")
	pos, ok := mgr.Position(domain.PositionKey{Connector: "fake", Symbol: "BTCUSDT"})
	if !ok {
		t.Fatal("expected an open position after the tick")
	}
	if pos.Side != domain.SideLong {
		t.Errorf("expected long entry, got %s", pos.Side)
	}
	if notional := pos.Notional(pos.EntryPrice); notional > 10_000*0.60 {
		t.Errorf("entry notional %g exceeds the exposure cap", notional)
	}
	if len(conn.orders) != 1 || conn.orders[0].ReduceOnly {
		t.Fatalf("expected one entry order, got %+v", conn.orders)
	}

	points, err := equity.Range(context.Background(), testTime.Add(-time.Minute), testTime.Add(time.Minute))
	if err != nil || len(points) != 1 {
		t.Fatalf("expected one equity point, got %d (err %v)", len(points), err)
	}
	if points[0].Equity != 10_000 {
		t.Errorf("expected unchanged equity 10000, got %g", points[0].Equity)
	}
}

func TestLoop_BlockedSymbolGetsNoEntry(t *testing.T) {
	conn := newFakeConnector()
	seedBullishMarket(conn, "BTCUSDT")

	settings := brain.NewHandle(brain.PresetFor(domain.ModeNormal), testTime.Add(-time.Hour))
	settings.Publish(brain.PresetFor(domain.ModeNormal),
		[]*domain.BlockedSymbol{{Symbol: "BTCUSDT", Reason: "underperformer"}}, testTime)

	l := newTestLoop(t, conn, LoopOptions{
		Instruments: []Instrument{{Connector: conn, Symbol: "BTCUSDT"}},
		Settings:    settings,
	})

	l.Tick(context.Background())

	if len(conn.orders) != 0 {
		t.Errorf("blocked symbol must not trade, got orders %+v", conn.orders)
	}
}

func TestLoop_ClosedSessionGetsNoEntry(t *testing.T) {
	conn := newFakeConnector()
	seedBullishMarket(conn, "SPYUSD")

	s, err := NewUSEquitySession()
	if err != nil {
		t.Fatalf("NewUSEquitySession failed: %v", err)
	}
	// A Sunday: the session is closed all day.
	sunday := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)

	l := newTestLoop(t, conn, LoopOptions{
		Instruments: []Instrument{{Connector: conn, Symbol: "SPYUSD", Hours: s}},
		Now:         func() time.Time { return sunday },
	})

	l.Tick(context.Background())

	if len(conn.orders) != 0 {
		t.Errorf("closed session must not trade, got orders %+v", conn.orders)
	}
}

func TestLoop_SnapshotFailureSkipsOnlyThatSymbol(t *testing.T) {
	conn := newFakeConnector()
	seedBullishMarket(conn, "ETHUSDT")
	conn.barsErr["BTCUSDT/1h"] = errors.New("venue timeout")

	l := newTestLoop(t, conn, LoopOptions{
		Instruments: []Instrument{
			{Connector: conn, Symbol: "BTCUSDT"},
			{Connector: conn, Symbol: "ETHUSDT"},
		},
	})

	l.Tick(context.Background())

	mgr, _ := l.Manager("fake")
	if !mgr.Has(domain.PositionKey{Connector: "fake", Symbol: "ETHUSDT"}) {
		t.Error("healthy symbol must still trade when a sibling fetch fails")
	}
	if mgr.Has(domain.PositionKey{Connector: "fake", Symbol: "BTCUSDT"}) {
		t.Error("failed symbol must be skipped this tick")
	}
}

func TestLoop_BrainRunsOnCadence(t *testing.T) {
	conn := newFakeConnector()

	trades := memory.NewTradeStore()
	blocks := memory.NewBlockedSymbolStore()
	settings := brain.NewHandle(brain.PresetFor(domain.ModeNormal), testTime.Add(-time.Hour))
	ctrl, err := brain.NewController(brain.ControllerOptions{
		Trades:   trades,
		Blocks:   blocks,
		Settings: settings,
		Logger:   log.New(io.Discard, "", 0),
		Now:      func() time.Time { return testTime },
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	l := newTestLoop(t, conn, LoopOptions{
		Instruments: []Instrument{{Connector: conn, Symbol: "BTCUSDT"}},
		Settings:    settings,
		Brain:       ctrl,
		BrainEvery:  time.Hour,
	})

	l.Tick(context.Background())
	l.Tick(context.Background())

	// The first tick runs a cycle immediately; the second is inside
	// the cadence window and must not publish again.
	if v := settings.Current().Version; v != 2 {
		t.Errorf("expected exactly one brain publication, version 2, got %d", v)
	}
}

func TestLoop_RunStopsCooperatively(t *testing.T) {
	conn := newFakeConnector()

	l := newTestLoop(t, conn, LoopOptions{
		Instruments:  []Instrument{{Connector: conn, Symbol: "BTCUSDT"}},
		PollInterval: time.Millisecond,
		RunFor:       20 * time.Millisecond,
		Now:          time.Now,
	})

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop within the run duration")
	}
}
