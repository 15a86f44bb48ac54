package brain

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"adaptive-trend-bot/internal/domain"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

// outcome builds one closed trade with the given realized PnL against a
// fixed 10 USD risk, so pnl of -4 means an R multiple of -0.4.
func outcome(symbol string, pnl float64, i int) *domain.TradeOutcome {
	opened := testNow.Add(-time.Duration(200-i) * time.Hour)
	return &domain.TradeOutcome{
		TradeID:       fmt.Sprintf("%s-%d", symbol, i),
		Connector:     "bybit",
		Symbol:        symbol,
		Side:          domain.SideLong,
		RealizedPnL:   pnl,
		RiskUSD:       10,
		EquityAtEntry: 10_000,
		EquityAtExit:  10_000,
		OpenedAt:      opened,
		ClosedAt:      opened.Add(time.Hour),
	}
}

func TestEvaluate_InsufficientHistory(t *testing.T) {
	var samples []*domain.TradeOutcome
	for i := 0; i < MinHistory-1; i++ {
		samples = append(samples, outcome("BTCUSDT", -10, i))
	}

	d := Evaluate(samples, testNow)
	if d.Mode != domain.ModeNormal {
		t.Errorf("expected NORMAL below minimum history, got %s", d.Mode)
	}
	if len(d.Blocked) != 0 {
		t.Errorf("expected no blocks below minimum history, got %d", len(d.Blocked))
	}
	if d.Params.RiskPerTrade != 0.005 {
		t.Errorf("expected NORMAL risk 0.005, got %v", d.Params.RiskPerTrade)
	}
}

func TestEvaluate_DefensiveOnDrawdown(t *testing.T) {
	// 20 losers at -0.4R with a -12% equity slide.
	var samples []*domain.TradeOutcome
	for i := 0; i < 20; i++ {
		samples = append(samples, outcome("BTCUSDT", -4, i))
	}
	samples[0].EquityAtEntry = 10_000
	samples[len(samples)-1].EquityAtExit = 8_800

	d := Evaluate(samples, testNow)
	if d.Mode != domain.ModeDefensive {
		t.Fatalf("expected DEFENSIVE, got %s", d.Mode)
	}
	if d.Params.RiskPerTrade != 0.003 || d.Params.MaxPortfolioExposure != 0.30 {
		t.Errorf("unexpected defensive preset: %+v", d.Params)
	}
	if d.Params.TrailATRMult != 1.0 {
		t.Errorf("expected defensive trail 1.0, got %v", d.Params.TrailATRMult)
	}
}

func TestEvaluate_AggressiveNeedsBothSignals(t *testing.T) {
	winners := func() []*domain.TradeOutcome {
		var samples []*domain.TradeOutcome
		for i := 0; i < 20; i++ {
			samples = append(samples, outcome("BTCUSDT", 8, i)) // +0.8R each
		}
		samples[0].EquityAtEntry = 10_000
		samples[len(samples)-1].EquityAtExit = 11_200 // +12%
		return samples
	}

	d := Evaluate(winners(), testNow)
	if d.Mode != domain.ModeAggressive {
		t.Fatalf("expected AGGRESSIVE, got %s", d.Mode)
	}
	if d.Params.RiskPerTrade != 0.008 || d.Params.MaxPortfolioExposure != 0.80 {
		t.Errorf("unexpected aggressive preset: %+v", d.Params)
	}

	// Strong equity but mediocre R stays NORMAL.
	mediocre := winners()
	for _, s := range mediocre {
		s.RealizedPnL = 5 // +0.5R
	}
	d = Evaluate(mediocre, testNow)
	if d.Mode != domain.ModeNormal {
		t.Errorf("expected NORMAL without the R condition, got %s", d.Mode)
	}
}

func TestEvaluate_DefensiveWinsOverAggressive(t *testing.T) {
	// Equity up 12% but average R deeply negative: the losing condition
	// must dominate.
	var samples []*domain.TradeOutcome
	for i := 0; i < 20; i++ {
		samples = append(samples, outcome("BTCUSDT", -4, i))
	}
	samples[0].EquityAtEntry = 10_000
	samples[len(samples)-1].EquityAtExit = 11_200

	d := Evaluate(samples, testNow)
	if d.Mode != domain.ModeDefensive {
		t.Errorf("expected DEFENSIVE to take precedence, got %s", d.Mode)
	}
}

func TestEvaluate_BlocksUnderperformer(t *testing.T) {
	var samples []*domain.TradeOutcome
	for i := 0; i < 22; i++ {
		samples = append(samples, outcome("BTCUSDT", 10, i))
	}
	for i := 0; i < 8; i++ {
		samples = append(samples, outcome("DOGEUSDT", -5, 100+i))
	}

	d := Evaluate(samples, testNow)
	if len(d.Blocked) != 1 {
		t.Fatalf("expected 1 block, got %d", len(d.Blocked))
	}
	b := d.Blocked[0]
	if b.Symbol != "DOGEUSDT" {
		t.Errorf("expected DOGEUSDT blocked, got %s", b.Symbol)
	}
	if b.Until == nil || !b.Until.Equal(testNow.Add(BlockDuration)) {
		t.Errorf("expected 48h block, got %v", b.Until)
	}
	if b.Reason != "underperformer" {
		t.Errorf("unexpected reason %q", b.Reason)
	}
}

func TestEvaluate_TooFewSymbolSamples(t *testing.T) {
	var samples []*domain.TradeOutcome
	for i := 0; i < 22; i++ {
		samples = append(samples, outcome("BTCUSDT", 10, i))
	}
	for i := 0; i < MinSymbolSamples-1; i++ {
		samples = append(samples, outcome("DOGEUSDT", -5, 100+i))
	}

	d := Evaluate(samples, testNow)
	if len(d.Blocked) != 0 {
		t.Errorf("expected no block below the sample minimum, got %d", len(d.Blocked))
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	build := func() []*domain.TradeOutcome {
		var samples []*domain.TradeOutcome
		for i := 0; i < 30; i++ {
			pnl := float64(i%5)*3 - 6
			samples = append(samples, outcome("ETHUSDT", pnl, i))
		}
		return samples
	}

	first := Evaluate(build(), testNow)
	for i := 0; i < 5; i++ {
		if got := Evaluate(build(), testNow); !reflect.DeepEqual(got, first) {
			t.Fatalf("evaluation %d differs from first", i)
		}
	}
}

func TestPresetFor_SharedGeometry(t *testing.T) {
	for _, mode := range []domain.Mode{domain.ModeDefensive, domain.ModeNormal, domain.ModeAggressive} {
		p := PresetFor(mode)
		if p.StopATRMult != 1.5 || p.TP1RMult != 1.0 || p.TP2RMult != 2.5 {
			t.Errorf("%s: unexpected stop/target geometry: %+v", mode, p)
		}
		if p.TP1ClosePct != 0.5 || p.TP2ClosePct != 0.5 {
			t.Errorf("%s: unexpected close fractions: %+v", mode, p)
		}
		if p.BreakEvenAfterR != 0.8 || p.MaxBarsInTrade != 48 || p.MaxNotionalPctHard != 0.20 {
			t.Errorf("%s: unexpected fixed params: %+v", mode, p)
		}
	}
}
