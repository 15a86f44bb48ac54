package brain

import (
	"context"
	"fmt"
	"log"
	"time"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
)

// Controller runs brain cycles: read recent outcomes, evaluate, persist
// new blocks, publish settings, record an audit snapshot. A failed cycle
// leaves the previously published settings in force.
type Controller struct {
	trades   storage.TradeStore
	blocks   storage.BlockedSymbolStore
	snaps    storage.BrainSnapshotStore
	settings *Handle
	logger   *log.Logger
	now      func() time.Time
}

// ControllerOptions configures a Controller. Trades, Blocks and Settings
// are required; Snapshots may be nil to skip audit records.
type ControllerOptions struct {
	Trades    storage.TradeStore
	Blocks    storage.BlockedSymbolStore
	Snapshots storage.BrainSnapshotStore
	Settings  *Handle
	Logger    *log.Logger
	Now       func() time.Time
}

// NewController creates a Controller.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Trades == nil || opts.Blocks == nil || opts.Settings == nil {
		return nil, fmt.Errorf("brain controller requires trade store, block store and settings handle")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		trades:   opts.Trades,
		blocks:   opts.Blocks,
		snaps:    opts.Snapshots,
		settings: opts.Settings,
		logger:   logger,
		now:      now,
	}, nil
}

// RunCycle performs one evaluation and publication. On any error before
// publication the previous settings stay in force and the error is
// returned; snapshot persistence failures are logged but do not fail the
// cycle.
func (c *Controller) RunCycle(ctx context.Context) (*Decision, error) {
	now := c.now()

	samples, err := c.trades.RecentClosed(ctx, BaselineWindow)
	if err != nil {
		return nil, fmt.Errorf("read recent closed trades: %w", err)
	}

	decision := Evaluate(samples, now)

	// New blocks are additive on top of whatever is already in force.
	for i := range decision.Blocked {
		b := decision.Blocked[i]
		if err := c.blocks.Block(ctx, &b); err != nil {
			return nil, fmt.Errorf("block symbol %s: %w", b.Symbol, err)
		}
		c.logger.Printf("blocked %s until %v: %s", b.Symbol, b.Until, b.Reason)
	}

	active, err := c.blocks.Active(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("read active blocks: %w", err)
	}

	published := c.settings.Publish(decision.Params, active, now)
	c.logger.Printf("published settings v%d: mode=%s risk=%.4f exposure=%.2f blocked=%d samples=%d",
		published.Version, decision.Mode, decision.Params.RiskPerTrade,
		decision.Params.MaxPortfolioExposure, len(active), decision.Stats.SampleCount)

	if c.snaps != nil {
		snap := &domain.BrainSnapshot{
			Time:           now,
			Mode:           decision.Mode,
			ShortWinRate:   decision.Stats.ShortWinRate,
			ShortAvgR:      decision.Stats.ShortAvgR,
			ShortEquityChg: decision.Stats.ShortEquityChg,
			BaseWinRate:    decision.Stats.BaseWinRate,
			BaseAvgR:       decision.Stats.BaseAvgR,
			SampleCount:    decision.Stats.SampleCount,
			BlockedSymbols: published.BlockedSymbols(),
			RiskPerTrade:   decision.Params.RiskPerTrade,
			MaxExposure:    decision.Params.MaxPortfolioExposure,
		}
		if err := c.snaps.Insert(ctx, snap); err != nil {
			c.logger.Printf("snapshot insert failed: %v", err)
		}
	}

	return &decision, nil
}
