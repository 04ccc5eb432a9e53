package forecast

import (
	"math"
	"testing"
)

func TestBaseProbabilityUp(t *testing.T) {
	cases := []struct {
		predicted, current, want float64
	}{
		{100, 100, 0.5},
		{110, 100, 0.5 + 0.1*0.75},
		{90, 100, 0.5 - 0.1*0.75},
		{300, 100, 0.95},  // delta clamped at +0.45
		{1, 100, 0.05},    // delta clamped at -0.45
		{100, 0, 0.5},     // degenerate current price
	}
	for _, c := range cases {
		got := BaseProbabilityUp(c.predicted, c.current)
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("BaseProbabilityUp(%v, %v) = %v, want %v", c.predicted, c.current, got, c.want)
		}
	}
}

func TestEnhanceProbabilitiesSumToOne(t *testing.T) {
	sigs := []Signals{
		{},
		{Sentiment: 0.8, SentimentPresent: true, Momentum: 0.5, Correlation: -0.3},
		{Sentiment: -1, SentimentPresent: true, Momentum: -1},
	}
	for _, sig := range sigs {
		for _, base := range []float64{0.05, 0.5, 0.95} {
			prob, _ := Enhance(base, sig)
			if math.Abs(prob.Up+prob.Down-1) > 1e-9 {
				t.Fatalf("probabilities must sum to 1: up=%v down=%v", prob.Up, prob.Down)
			}
			if prob.Up < 0.02 || prob.Up > 0.98 {
				t.Fatalf("up probability out of bounds: %v", prob.Up)
			}
		}
	}
}

func TestEnhanceWeights(t *testing.T) {
	prob, _ := Enhance(0.5, Signals{Sentiment: 1, SentimentPresent: true, Momentum: 1})
	want := 0.5 + WeightSentiment + WeightMomentum
	if math.Abs(prob.Up-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, prob.Up)
	}
}

func TestEnhanceAbsentSentimentIsNeutral(t *testing.T) {
	withSig, _ := Enhance(0.6, Signals{Sentiment: 0.9, SentimentPresent: false})
	plain, _ := Enhance(0.6, Signals{})
	if withSig.Up != plain.Up {
		t.Fatalf("absent sentiment must not move the probability: %v vs %v", withSig.Up, plain.Up)
	}
}

func TestEnhanceFactorSchemaIsStable(t *testing.T) {
	_, factors := Enhance(0.5, Signals{})
	if len(factors) != 3 {
		t.Fatalf("expected 3 factors, got %d", len(factors))
	}
	names := []string{"sentiment", "volume_momentum", "market_correlation"}
	for i, f := range factors {
		if f.Name != names[i] {
			t.Fatalf("factor %d: expected %q, got %q", i, names[i], f.Name)
		}
		if f.Impact != 0 {
			t.Fatalf("factor %q: expected zero impact for absent signal, got %v", f.Name, f.Impact)
		}
	}
}

func TestVolumeMomentum(t *testing.T) {
	// Flat volume yields zero momentum.
	flat := hourlySeries(30, func(i int) float64 { return 100 })
	if got := VolumeMomentum(flat); got != 0 {
		t.Fatalf("expected zero momentum on flat volume, got %v", got)
	}

	// Recent surge: short average above long average.
	surge := hourlySeries(30, func(i int) float64 { return 100 })
	for i := len(surge) - 6; i < len(surge); i++ {
		surge[i].Volume = 500
	}
	if got := VolumeMomentum(surge); got <= 0 {
		t.Fatalf("expected positive momentum on volume surge, got %v", got)
	}

	// Too few usable samples yields zero.
	sparse := hourlySeries(5, func(i int) float64 { return 100 })
	if got := VolumeMomentum(sparse); got != 0 {
		t.Fatalf("expected zero momentum below sample floor, got %v", got)
	}
}

func TestCorrelationSignalDampened(t *testing.T) {
	// 10% rise over the trend window: 0.1*5 = 0.5 inside the clamp, halved.
	ref := hourlySeries(24, func(i int) float64 { return 100 * (1 + 0.1*float64(i)/23) })
	got := CorrelationSignal(ref)
	if math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("expected dampened signal 0.25, got %v", got)
	}

	// 30% rise: 0.3*5 clamps at 1, then halves.
	steep := hourlySeries(24, func(i int) float64 { return 100 * (1 + 0.3*float64(i)/23) })
	got = CorrelationSignal(steep)
	if math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected saturated signal 0.5, got %v", got)
	}

	if CorrelationSignal(nil) != 0 {
		t.Fatalf("expected zero signal without reference data")
	}
}
