package domain

import "time"

// Bar is one OHLCV candle from a venue.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// IndicatorSnapshot is the per-bar output of the indicator pipeline:
// the latest close, a volatility estimate and the boolean entry setups.
type IndicatorSnapshot struct {
	Key        PositionKey
	BarTime    time.Time
	Close      float64
	ATR        float64
	LongSetup  bool
	ShortSetup bool
}

// Tradable reports whether the snapshot can drive sizing decisions.
// A non-positive ATR is a degenerate signal and must be filtered out
// before it reaches position creation.
func (s *IndicatorSnapshot) Tradable() bool {
	return s.ATR > 0 && s.Close > 0
}

// BarRecord is an archived bar with its indicator context, stored
// best-effort for later analysis.
type BarRecord struct {
	Connector string
	Symbol    string
	Timeframe string
	Bar       Bar
	ATR       float64
}
