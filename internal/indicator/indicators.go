// Package indicator computes per-bar features from OHLCV history.
// All functions are pure; the package holds no state between bars.
package indicator

import "adaptive-trend-bot/internal/domain"

// ATR returns the Wilder-smoothed average true range for the last bar,
// or 0 when there is not enough history.
func ATR(bars []domain.Bar, length int) float64 {
	if length <= 0 || len(bars) < length+1 {
		return 0
	}

	trs := trueRanges(bars)

	// Wilder smoothing: seed with the simple mean of the first window,
	// then atr = (prev*(n-1) + tr) / n.
	var atr float64
	for i := 0; i < length; i++ {
		atr += trs[i]
	}
	atr /= float64(length)

	for i := length; i < len(trs); i++ {
		atr = (atr*float64(length-1) + trs[i]) / float64(length)
	}
	return atr
}

// trueRanges returns the true range series, one value per bar after the first.
func trueRanges(bars []domain.Bar) []float64 {
	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := abs(bars[i].High - bars[i-1].Close)
		lc := abs(bars[i].Low - bars[i-1].Close)
		trs = append(trs, max3(hl, hc, lc))
	}
	return trs
}

// Donchian returns the channel bounds over the last length bars,
// excluding the current bar so a breakout compares against prior history.
func Donchian(bars []domain.Bar, length int) (hi, lo float64, ok bool) {
	if length <= 0 || len(bars) < length+1 {
		return 0, 0, false
	}
	window := bars[len(bars)-1-length : len(bars)-1]
	hi = window[0].High
	lo = window[0].Low
	for _, b := range window[1:] {
		if b.High > hi {
			hi = b.High
		}
		if b.Low < lo {
			lo = b.Low
		}
	}
	return hi, lo, true
}

// EMA returns the exponential moving average of closes for the last bar.
func EMA(bars []domain.Bar, span int) float64 {
	if span <= 0 || len(bars) == 0 {
		return 0
	}
	alpha := 2.0 / (float64(span) + 1.0)
	ema := bars[0].Close
	for _, b := range bars[1:] {
		ema = alpha*b.Close + (1-alpha)*ema
	}
	return ema
}

// RSI returns the Wilder relative strength index for the last bar,
// or 50 (neutral) when there is not enough history.
func RSI(bars []domain.Bar, length int) float64 {
	if length <= 0 || len(bars) < length+1 {
		return 50
	}

	alpha := 1.0 / float64(length)
	var avgUp, avgDown float64

	for i := 1; i < len(bars); i++ {
		delta := bars[i].Close - bars[i-1].Close
		up, down := 0.0, 0.0
		if delta > 0 {
			up = delta
		} else {
			down = -delta
		}
		if i == 1 {
			avgUp, avgDown = up, down
			continue
		}
		avgUp = alpha*up + (1-alpha)*avgUp
		avgDown = alpha*down + (1-alpha)*avgDown
	}

	rs := avgUp / (avgDown + 1e-12)
	return 100 - (100 / (1 + rs))
}

// ADX returns a smoothed directional movement index for the last bar,
// or 0 when there is not enough history.
func ADX(bars []domain.Bar, length int) float64 {
	if length <= 0 || len(bars) < 2*length+1 {
		return 0
	}

	n := len(bars) - 1
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	trs := trueRanges(bars)

	for i := 1; i < len(bars); i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	dx := make([]float64, 0, n-length+1)
	for i := length - 1; i < n; i++ {
		var trSum, plusSum, minusSum float64
		for j := i - length + 1; j <= i; j++ {
			trSum += trs[j]
			plusSum += plusDM[j]
			minusSum += minusDM[j]
		}
		plusDI := 100 * plusSum / (trSum + 1e-12)
		minusDI := 100 * minusSum / (trSum + 1e-12)
		dx = append(dx, abs(plusDI-minusDI)/(plusDI+minusDI+1e-12)*100)
	}

	if len(dx) < length {
		return 0
	}
	var sum float64
	for _, v := range dx[len(dx)-length:] {
		sum += v
	}
	return sum / float64(length)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
