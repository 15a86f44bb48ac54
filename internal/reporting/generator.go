// Package reporting builds performance reports from the trade ledger.
package reporting

import (
	"context"
	"sort"
	"time"

	"adaptive-trend-bot/internal/domain"
	"adaptive-trend-bot/internal/storage"
)

// DefaultSampleLimit bounds how many recent closed trades feed a report.
const DefaultSampleLimit = 500

// Generator produces reports from stored trades.
type Generator struct {
	trades storage.TradeStore
	limit  int
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(trades storage.TradeStore) *Generator {
	return &Generator{
		trades: trades,
		limit:  DefaultSampleLimit,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithLimit sets how many recent closed trades are read.
func (g *Generator) WithLimit(limit int) *Generator {
	if limit > 0 {
		g.limit = limit
	}
	return g
}

// Generate builds a report over the most recent closed trades.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	samples, err := g.trades.RecentClosed(ctx, g.limit)
	if err != nil {
		return nil, err
	}

	r := &Report{
		GeneratedAt: g.now(),
		TotalTrades: len(samples),
		Trades:      samples,
	}
	if len(samples) == 0 {
		return r, nil
	}

	r.PeriodStart = samples[0].ClosedAt
	r.PeriodEnd = samples[len(samples)-1].ClosedAt
	r.EquityStart = samples[0].EquityAtEntry
	r.EquityEnd = samples[len(samples)-1].EquityAtExit
	if r.EquityStart > 0 {
		r.EquityChange = (r.EquityEnd - r.EquityStart) / r.EquityStart
	}

	totals := aggregate(samples)
	r.Wins = totals.wins
	r.Losses = r.TotalTrades - totals.wins
	r.WinRate = totals.winRate
	r.AvgR = totals.avgR
	r.TotalPnL = totals.totalPnL

	r.SymbolRows = breakdown(samples, func(t *domain.TradeOutcome) string { return t.Symbol })
	r.ReasonRows = breakdown(samples, func(t *domain.TradeOutcome) string { return t.Reason })

	return r, nil
}

type groupStats struct {
	wins     int
	winRate  float64
	avgR     float64
	totalPnL float64
}

// aggregate computes wins, win rate, average R and total PnL.
func aggregate(samples []*domain.TradeOutcome) groupStats {
	var s groupStats
	var rSum float64
	var rCount int
	for _, t := range samples {
		s.totalPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			s.wins++
		}
		if r, ok := t.RMultiple(); ok {
			rSum += r
			rCount++
		}
	}
	s.winRate = float64(s.wins) / float64(len(samples))
	if rCount > 0 {
		s.avgR = rSum / float64(rCount)
	}
	return s
}

// breakdown groups samples by a label and aggregates each group.
func breakdown(samples []*domain.TradeOutcome, labelOf func(*domain.TradeOutcome) string) []BreakdownRow {
	groups := make(map[string][]*domain.TradeOutcome)
	for _, t := range samples {
		label := labelOf(t)
		groups[label] = append(groups[label], t)
	}

	rows := make([]BreakdownRow, 0, len(groups))
	for label, group := range groups {
		stats := aggregate(group)
		rows = append(rows, BreakdownRow{
			Label:    label,
			Trades:   len(group),
			WinRate:  stats.winRate,
			AvgR:     stats.avgR,
			TotalPnL: stats.totalPnL,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Label < rows[j].Label })
	return rows
}
