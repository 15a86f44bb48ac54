// Package brain adapts risk parameters from realized trade outcomes. The
// evaluation itself is a pure function; Controller wires it to storage and
// publishes the result atomically to the trading loop.
package brain

import (
	"time"

	"adaptive-trend-bot/internal/domain"
)

// Evaluation windows and thresholds.
const (
	// ShortWindow is the number of recent trades driving mode selection.
	ShortWindow = 50
	// BaselineWindow is the number of trades forming the comparison base.
	BaselineWindow = 200
	// MinHistory is the minimum closed-trade count before any adaptation.
	MinHistory = 10
	// MinSymbolSamples is the minimum per-symbol sample count before a
	// symbol can be judged an underperformer.
	MinSymbolSamples = 8
	// BlockDuration is how long an underperforming symbol stays blocked.
	BlockDuration = 48 * time.Hour

	defensiveEquityChg  = -0.10
	defensiveAvgR       = -0.25
	aggressiveEquityChg = 0.10
	aggressiveAvgR      = 0.70

	underperfWinRateDrop = 0.20
	underperfAvgRDrop    = 0.15
)

// PresetFor returns the full parameter set for a mode. Only risk per
// trade, portfolio exposure and the trail multiplier vary by mode; the
// stop, target and time-exit geometry is fixed.
func PresetFor(mode domain.Mode) domain.RiskParameters {
	p := domain.RiskParameters{
		Mode:               mode,
		StopATRMult:        1.5,
		TP1RMult:           1.0,
		TP2RMult:           2.5,
		TP1ClosePct:        0.5,
		TP2ClosePct:        0.5,
		BreakEvenAfterR:    0.8,
		MaxBarsInTrade:     48,
		MaxNotionalPctHard: 0.20,
	}

	switch mode {
	case domain.ModeDefensive:
		p.RiskPerTrade = 0.003
		p.MaxPortfolioExposure = 0.30
		p.TrailATRMult = 1.0
	case domain.ModeAggressive:
		p.RiskPerTrade = 0.008
		p.MaxPortfolioExposure = 0.80
		p.TrailATRMult = 1.0
	default:
		p.Mode = domain.ModeNormal
		p.RiskPerTrade = 0.005
		p.MaxPortfolioExposure = 0.60
		p.TrailATRMult = 1.2
	}
	return p
}

// Stats summarizes the evaluation inputs for the audit snapshot.
type Stats struct {
	ShortWinRate   float64
	ShortAvgR      float64
	ShortEquityChg float64
	BaseWinRate    float64
	BaseAvgR       float64
	SampleCount    int
}

// Decision is the pure evaluation output: the selected mode with its
// parameter preset, plus any new symbol blocks. Blocks are additive;
// existing blocks are never cleared by a decision.
type Decision struct {
	Mode    domain.Mode
	Params  domain.RiskParameters
	Blocked []domain.BlockedSymbol
	Stats   Stats
}

// Evaluate derives a decision from closed trades, oldest first. The same
// samples and clock always produce the same decision. With fewer than
// MinHistory samples the decision is the NORMAL preset and no blocks.
func Evaluate(samples []*domain.TradeOutcome, now time.Time) Decision {
	d := Decision{Mode: domain.ModeNormal}
	d.Stats.SampleCount = len(samples)

	if len(samples) < MinHistory {
		d.Params = PresetFor(d.Mode)
		return d
	}

	short := samples
	if len(short) > ShortWindow {
		short = short[len(short)-ShortWindow:]
	}
	base := samples
	if len(base) > BaselineWindow {
		base = base[len(base)-BaselineWindow:]
	}

	d.Stats.ShortWinRate, d.Stats.ShortAvgR = winRateAvgR(short)
	d.Stats.BaseWinRate, d.Stats.BaseAvgR = winRateAvgR(base)
	d.Stats.ShortEquityChg = equityChange(short)

	// Losing regimes take precedence over winning ones.
	switch {
	case d.Stats.ShortEquityChg <= defensiveEquityChg || d.Stats.ShortAvgR <= defensiveAvgR:
		d.Mode = domain.ModeDefensive
	case d.Stats.ShortEquityChg >= aggressiveEquityChg && d.Stats.ShortAvgR >= aggressiveAvgR:
		d.Mode = domain.ModeAggressive
	}
	d.Params = PresetFor(d.Mode)

	d.Blocked = underperformers(base, d.Stats.BaseWinRate, d.Stats.BaseAvgR, now)
	return d
}

// winRateAvgR returns the win fraction and the mean R multiple of the
// samples. Trades with degenerate risk are excluded from the R mean.
func winRateAvgR(samples []*domain.TradeOutcome) (winRate, avgR float64) {
	if len(samples) == 0 {
		return 0, 0
	}

	wins := 0
	var rSum float64
	rCount := 0
	for _, t := range samples {
		if t.RealizedPnL > 0 {
			wins++
		}
		if r, ok := t.RMultiple(); ok {
			rSum += r
			rCount++
		}
	}

	winRate = float64(wins) / float64(len(samples))
	if rCount > 0 {
		avgR = rSum / float64(rCount)
	}
	return winRate, avgR
}

// equityChange is the relative equity move across the window, from the
// first trade's entry equity to the last trade's exit equity.
func equityChange(samples []*domain.TradeOutcome) float64 {
	if len(samples) == 0 {
		return 0
	}
	first := samples[0].EquityAtEntry
	last := samples[len(samples)-1].EquityAtExit
	if first <= 0 {
		return 0
	}
	return (last - first) / first
}

// underperformers finds symbols doing materially worse than the baseline:
// enough samples, win rate and average R both clearly below base, and a
// negative average R in absolute terms.
func underperformers(base []*domain.TradeOutcome, baseWinRate, baseAvgR float64, now time.Time) []domain.BlockedSymbol {
	type symbolStats struct {
		samples []*domain.TradeOutcome
	}
	bySymbol := make(map[string]*symbolStats)
	var order []string
	for _, t := range base {
		s, ok := bySymbol[t.Symbol]
		if !ok {
			s = &symbolStats{}
			bySymbol[t.Symbol] = s
			order = append(order, t.Symbol)
		}
		s.samples = append(s.samples, t)
	}

	winRateFloor := baseWinRate - underperfWinRateDrop
	if winRateFloor < 0 {
		winRateFloor = 0
	}
	avgRFloor := baseAvgR - underperfAvgRDrop

	var blocked []domain.BlockedSymbol
	for _, symbol := range order {
		s := bySymbol[symbol]
		if len(s.samples) < MinSymbolSamples {
			continue
		}
		winRate, avgR := winRateAvgR(s.samples)
		if winRate <= winRateFloor && avgR <= avgRFloor && avgR < 0 {
			until := now.Add(BlockDuration)
			blocked = append(blocked, domain.BlockedSymbol{
				Symbol:    symbol,
				Until:     &until,
				Reason:    "underperformer",
				CreatedAt: now,
			})
		}
	}
	return blocked
}
