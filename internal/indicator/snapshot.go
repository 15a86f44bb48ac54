package indicator

import "adaptive-trend-bot/internal/domain"

// Config holds the signal parameters. Defaults reproduce the
// Donchian-breakout trend filter the bot trades live.
type Config struct {
	DonchianLen int
	ATRLen      int
	RSILen      int
	RSILongMax  float64
	RSIShortMin float64
	ADXLen      int
	ADXMin      float64
	TrendEMA    int // applied to the higher-timeframe series
}

// DefaultConfig returns the live signal parameters.
func DefaultConfig() Config {
	return Config{
		DonchianLen: 20,
		ATRLen:      14,
		RSILen:      14,
		RSILongMax:  70,
		RSIShortMin: 30,
		ADXLen:      14,
		ADXMin:      18,
		TrendEMA:    200,
	}
}

// Compute builds an IndicatorSnapshot for the most recent bar.
//
// Long setup: close breaks the prior Donchian high, the higher timeframe
// trend is up (close above HTF EMA), ADX clears the floor and RSI is not
// overbought. Short setup is symmetric.
//
// Returns a snapshot with ATR=0 (untradable) when history is too short.
func Compute(key domain.PositionKey, ltf, htf []domain.Bar, cfg Config) domain.IndicatorSnapshot {
	snap := domain.IndicatorSnapshot{Key: key}
	if len(ltf) == 0 {
		return snap
	}

	last := ltf[len(ltf)-1]
	snap.BarTime = last.Time
	snap.Close = last.Close
	snap.ATR = ATR(ltf, cfg.ATRLen)

	hi, lo, ok := Donchian(ltf, cfg.DonchianLen)
	if !ok || snap.ATR <= 0 || len(htf) == 0 {
		return snap
	}

	htfEMA := EMA(htf, cfg.TrendEMA)
	trendUp := last.Close > htfEMA
	trendDown := last.Close < htfEMA

	adx := ADX(ltf, cfg.ADXLen)
	rsi := RSI(ltf, cfg.RSILen)

	snap.LongSetup = last.Close > hi && trendUp && adx >= cfg.ADXMin && rsi <= cfg.RSILongMax
	snap.ShortSetup = last.Close < lo && trendDown && adx >= cfg.ADXMin && rsi >= 100-cfg.RSIShortMin

	return snap
}
