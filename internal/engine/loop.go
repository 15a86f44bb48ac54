package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"adaptive-trend-bot/internal/brain"
	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/exchange"
	"adaptive-trend-bot/internal/indicator"
	"adaptive-trend-bot/internal/observability"
	"adaptive-trend-bot/internal/sizing"
	"adaptive-trend-bot/internal/storage"
)

// Loop defaults.
const (
	DefaultPollInterval = 30 * time.Second
	DefaultBrainEvery   = 15 * time.Minute
	DefaultBarHistory   = 300
	DefaultTimeframe    = "1h"
	DefaultHTFTimeframe = "4h"
)

// Instrument is one (connector, symbol) the loop trades.
type Instrument struct {
	Connector    exchange.Connector
	Symbol       string
	Timeframe    string       // defaults to DefaultTimeframe
	HTFTimeframe string       // trend filter timeframe, defaults to DefaultHTFTimeframe
	Hours        TradingHours // defaults to AlwaysOpen
}

func (i Instrument) key() domain.PositionKey {
	return domain.PositionKey{Connector: i.Connector.Name(), Symbol: i.Symbol}
}

// LoopOptions configures a Loop. Instruments, Settings and StartEquity
// are required; the stores and the brain controller are optional.
type LoopOptions struct {
	Instruments []Instrument
	Settings    *brain.Handle
	StartEquity float64

	Trades storage.TradeStore
	Equity storage.EquityStore
	Bars   storage.BarArchiveStore
	Brain  *brain.Controller

	PollInterval time.Duration
	BrainEvery   time.Duration
	RunFor       time.Duration // 0 runs until the context is cancelled

	IndicatorCfg indicator.Config
	BarHistory   int

	Logger *log.Logger
	Now    func() time.Time
}

// Loop is the single logical thread of control. Snapshot retrieval,
// position updates and entry evaluation run sequentially within a tick;
// a failing collaborator costs at most the current symbol or tick.
type Loop struct {
	instruments []Instrument
	managers    map[string]*Manager
	connectors  map[string]exchange.Connector
	settings    *brain.Handle

	trades     storage.TradeStore
	equityLog  storage.EquityStore
	barArchive storage.BarArchiveStore
	brainCtrl  *brain.Controller

	poll       time.Duration
	brainEvery time.Duration
	runFor     time.Duration
	cfg        indicator.Config
	barHistory int

	logger *log.Logger
	now    func() time.Time

	equity       float64
	lastBrainRun time.Time
	lastClose    map[domain.PositionKey]float64
}

// NewLoop validates options, applies defaults and builds one Manager
// per distinct connector.
func NewLoop(opts LoopOptions) (*Loop, error) {
	if len(opts.Instruments) == 0 {
		return nil, fmt.Errorf("loop requires at least one instrument")
	}
	if opts.Settings == nil {
		return nil, fmt.Errorf("loop requires a settings handle")
	}
	if opts.StartEquity <= 0 {
		return nil, fmt.Errorf("loop requires positive starting equity")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[loop] ", log.LstdFlags)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	l := &Loop{
		managers:   make(map[string]*Manager),
		connectors: make(map[string]exchange.Connector),
		settings:   opts.Settings,
		trades:     opts.Trades,
		equityLog:  opts.Equity,
		barArchive: opts.Bars,
		brainCtrl:  opts.Brain,
		poll:       opts.PollInterval,
		brainEvery: opts.BrainEvery,
		runFor:     opts.RunFor,
		cfg:        opts.IndicatorCfg,
		barHistory: opts.BarHistory,
		logger:     logger,
		now:        now,
		equity:     opts.StartEquity,
		lastClose:  make(map[domain.PositionKey]float64),
	}
	if l.poll <= 0 {
		l.poll = DefaultPollInterval
	}
	if l.brainEvery <= 0 {
		l.brainEvery = DefaultBrainEvery
	}
	if l.barHistory <= 0 {
		l.barHistory = DefaultBarHistory
	}
	if l.cfg == (indicator.Config{}) {
		l.cfg = indicator.DefaultConfig()
	}

	for _, inst := range opts.Instruments {
		if inst.Connector == nil || inst.Symbol == "" {
			return nil, fmt.Errorf("instrument requires a connector and a symbol")
		}
		if inst.Timeframe == "" {
			inst.Timeframe = DefaultTimeframe
		}
		if inst.HTFTimeframe == "" {
			inst.HTFTimeframe = DefaultHTFTimeframe
		}
		if inst.Hours == nil {
			inst.Hours = AlwaysOpen{}
		}
		name := inst.Connector.Name()
		if _, ok := l.managers[name]; !ok {
			l.managers[name] = NewManager(inst.Connector, opts.Trades, logger)
			l.connectors[name] = inst.Connector
		}
		l.instruments = append(l.instruments, inst)
	}

	// Entries are evaluated in a fixed order so in-tick budget
	// decrements are deterministic.
	sort.Slice(l.instruments, func(i, j int) bool {
		a, b := l.instruments[i], l.instruments[j]
		if a.Connector.Name() != b.Connector.Name() {
			return a.Connector.Name() < b.Connector.Name()
		}
		return a.Symbol < b.Symbol
	})

	return l, nil
}

// Manager returns the position manager for a connector name.
func (l *Loop) Manager(connector string) (*Manager, bool) {
	m, ok := l.managers[connector]
	return m, ok
}

// Equity returns the loop's current equity estimate.
func (l *Loop) Equity() float64 {
	return l.equity
}

// Run ticks until the context is cancelled or the run duration elapses.
// Cancellation is cooperative, checked between ticks.
func (l *Loop) Run(ctx context.Context) error {
	if l.runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.runFor)
		defer cancel()
	}

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		l.Tick(ctx)
		select {
		case <-ctx.Done():
			l.logger.Printf("stopping: %v", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one full cycle: brain cadence, snapshots, position updates,
// entry evaluation under the exposure budget, equity bookkeeping.
func (l *Loop) Tick(ctx context.Context) {
	started := l.now()

	l.maybeRunBrain(ctx, started)
	settings := l.settings.Current()
	params := settings.Params

	type tickSnap struct {
		inst Instrument
		snap domain.IndicatorSnapshot
	}
	snaps := make([]tickSnap, 0, len(l.instruments))
	for _, inst := range l.instruments {
		snap, err := l.snapshot(ctx, inst)
		if err != nil {
			observability.RecordSnapshotFailure(inst.Connector.Name(), inst.Symbol)
			l.logger.Printf("snapshot for %s/%s failed, skipping: %v", inst.Connector.Name(), inst.Symbol, err)
			continue
		}
		l.lastClose[snap.Key] = snap.Close
		snaps = append(snaps, tickSnap{inst: inst, snap: snap})
	}

	// Manage open positions before any new entries.
	for _, ts := range snaps {
		mgr := l.managers[ts.inst.Connector.Name()]
		l.equity += mgr.Update(ctx, ts.snap, params, l.equity)
	}

	budget := NewBudget(l.equity, params.MaxPortfolioExposure, l.openPositions(), l.freshestPrice)

	for _, ts := range snaps {
		inst, snap := ts.inst, ts.snap
		mgr := l.managers[inst.Connector.Name()]

		if mgr.Has(snap.Key) || !inst.Hours.Open(started) {
			continue
		}
		if settings.IsBlocked(inst.Symbol, started) {
			continue
		}
		if !snap.Tradable() {
			continue
		}
		side, ok := setupSide(snap)
		if !ok {
			continue
		}

		rules, err := inst.Connector.Rules(ctx, inst.Symbol)
		if err != nil {
			l.logger.Printf("rules for %s unavailable, skipping entry: %v", inst.Symbol, err)
			continue
		}
		qty := sizing.Size(sizing.Input{
			Equity:          l.equity,
			RiskFraction:    params.RiskPerTrade,
			StopDistance:    params.StopATRMult * snap.ATR,
			Price:           snap.Close,
			ExposureCapFrac: params.MaxNotionalPctHard,
			RemainingBudget: budget.Remaining(),
			Rules:           rules,
		})
		if qty <= 0 {
			continue
		}

		pos, err := mgr.Open(ctx, snap, side, qty, params, l.equity)
		if err != nil {
			l.logger.Printf("entry for %s failed: %v", snap.Key, err)
			continue
		}
		budget.Reserve(pos.Notional(snap.Close))
	}

	l.recordEquity(ctx, started)
	observability.UpdatePortfolio(len(l.openPositions()), l.equity)
	observability.RecordTick(l.now().Sub(started).Seconds())
}

// maybeRunBrain runs one brain cycle when the refresh cadence has
// elapsed. Invoked from the tick loop itself, preserving the single
// writer property.
func (l *Loop) maybeRunBrain(ctx context.Context, now time.Time) {
	if l.brainCtrl == nil || now.Sub(l.lastBrainRun) < l.brainEvery {
		return
	}
	l.lastBrainRun = now
	decision, err := l.brainCtrl.RunCycle(ctx)
	if err != nil {
		observability.RecordBrainCycle("error", "", 0)
		l.logger.Printf("brain cycle failed, keeping prior settings: %v", err)
		return
	}
	observability.RecordBrainCycle("ok", string(decision.Mode), len(l.settings.Current().BlockedSymbols()))
}

// snapshot fetches both timeframes and computes the indicator snapshot,
// archiving the newest bar best-effort.
func (l *Loop) snapshot(ctx context.Context, inst Instrument) (domain.IndicatorSnapshot, error) {
	ltf, err := inst.Connector.FetchBars(ctx, inst.Symbol, inst.Timeframe, l.barHistory)
	if err != nil {
		return domain.IndicatorSnapshot{}, fmt.Errorf("fetch %s bars: %w", inst.Timeframe, err)
	}
	htf, err := inst.Connector.FetchBars(ctx, inst.Symbol, inst.HTFTimeframe, l.barHistory)
	if err != nil {
		return domain.IndicatorSnapshot{}, fmt.Errorf("fetch %s bars: %w", inst.HTFTimeframe, err)
	}

	snap := indicator.Compute(inst.key(), ltf, htf, l.cfg)

	if l.barArchive != nil && len(ltf) > 0 {
		rec := &domain.BarRecord{
			Connector: inst.Connector.Name(),
			Symbol:    inst.Symbol,
			Timeframe: inst.Timeframe,
			Bar:       ltf[len(ltf)-1],
			ATR:       snap.ATR,
		}
		if err := l.barArchive.AppendBulk(ctx, []*domain.BarRecord{rec}); err != nil {
			l.logger.Printf("bar archive append failed: %v", err)
		}
	}
	return snap, nil
}

// openPositions collects open positions across all managers.
func (l *Loop) openPositions() []*domain.Position {
	var out []*domain.Position
	for _, mgr := range l.managers {
		out = append(out, mgr.Positions()...)
	}
	return out
}

// freshestPrice values a position at the streamed last price, falling
// back to this tick's bar close, then to the entry price.
func (l *Loop) freshestPrice(p *domain.Position) float64 {
	if conn, ok := l.connectors[p.Key.Connector]; ok {
		if price, ok := conn.LastPrice(p.Key.Symbol); ok && price > 0 {
			return price
		}
	}
	if c, ok := l.lastClose[p.Key]; ok && c > 0 {
		return c
	}
	return p.EntryPrice
}

// recordEquity appends one equity curve point, best-effort.
func (l *Loop) recordEquity(ctx context.Context, at time.Time) {
	if l.equityLog == nil {
		return
	}
	err := l.equityLog.Append(ctx, domain.EquityPoint{Time: at, Equity: l.equity})
	if err != nil {
		l.logger.Printf("equity append failed: %v", err)
	}
}

// setupSide maps snapshot signals to an entry side. Conflicting signals
// cancel each other.
func setupSide(snap domain.IndicatorSnapshot) (domain.Side, bool) {
	switch {
	case snap.LongSetup && !snap.ShortSetup:
		return domain.SideLong, true
	case snap.ShortSetup && !snap.LongSetup:
		return domain.SideShort, true
	default:
		return "", false
	}
}
