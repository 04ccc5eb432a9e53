package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"CoinScope/internal/domain/models"
	"CoinScope/internal/forecast"
	icache "CoinScope/internal/service/cache"
	applogger "CoinScope/pkg/logger"
)

type fakeHistory struct {
	mu     sync.Mutex
	series map[string][]models.PricePoint
	calls  int
	fail   bool
}

func (f *fakeHistory) GetSeries(_ context.Context, symbol string, n int) ([]models.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("history down")
	}
	f.calls++
	s := f.series[symbol]
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s, nil
}

func (f *fakeHistory) GetPriceAt(_ context.Context, symbol string, ts time.Time) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.PricePoint
	for i := range f.series[symbol] {
		p := &f.series[symbol][i]
		if !p.Timestamp.After(ts) && (best == nil || p.Timestamp.After(best.Timestamp)) {
			best = p
		}
	}
	if best == nil {
		return 0, false, nil
	}
	return best.Close, true, nil
}

func (f *fakeHistory) LatestPrice(_ context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.series[symbol]
	if len(s) == 0 {
		return 0, fmt.Errorf("no history for %s", symbol)
	}
	return s[len(s)-1].Close, nil
}

type fakeSentiment struct {
	score float64
	ok    bool
	err   error
}

func (f *fakeSentiment) GetSentiment(context.Context, string) (float64, bool, error) {
	return f.score, f.ok, f.err
}

type nopMetrics struct{}

func (nopMetrics) RecordPrediction(string, string)  {}
func (nopMetrics) RecordCache(string)               {}
func (nopMetrics) RecordDegraded(string)            {}
func (nopMetrics) RecordReconcile(string)           {}
func (nopMetrics) RecordIngested(string, string)    {}
func (nopMetrics) RecordLastPrice(string, float64)  {}
func (nopMetrics) RecordError(string)               {}
func (nopMetrics) RecordLatency(string, float64)    {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func risingSeries(symbol string, n int) []models.PricePoint {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PricePoint, n)
	for i := 0; i < n; i++ {
		p := 100 + 0.5*float64(i)
		out[i] = models.PricePoint{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Symbol:    symbol,
			Open:      p, High: p, Low: p, Close: p,
			Volume: 1000,
		}
	}
	return out
}

func newTestEngine(t *testing.T, hist *fakeHistory, sent *fakeSentiment) *PredictionEngine {
	t.Helper()
	l := testLogger(t)
	rc := icache.NewResultCache(icache.NewTTLCache(), 45*time.Minute, 24*time.Hour, l)
	return NewPredictionEngine(hist, sent, rc, nil, nopMetrics{}, l, EngineConfig{})
}

func TestPredictMalformedRequests(t *testing.T) {
	hist := &fakeHistory{series: map[string][]models.PricePoint{"BTC": risingSeries("BTC", 100)}}
	e := newTestEngine(t, hist, &fakeSentiment{})

	cases := []PredictParams{
		{Symbol: "", Horizons: []string{"1h"}},
		{Symbol: "BTC", Horizons: nil},
		{Symbol: "BTC", Horizons: []string{"2h"}},
		{Symbol: "UNKNOWN", Horizons: []string{"1h"}}, // no historical data
	}
	for i, p := range cases {
		if _, err := e.Predict(context.Background(), p); !errors.Is(err, ErrMalformedRequest) {
			t.Fatalf("case %d: expected ErrMalformedRequest, got %v", i, err)
		}
	}
}

func TestPredictBaselinePath(t *testing.T) {
	hist := &fakeHistory{series: map[string][]models.PricePoint{"BTC": risingSeries("BTC", 200)}}
	e := newTestEngine(t, hist, &fakeSentiment{score: 0.3, ok: true})

	res, err := e.Predict(context.Background(), PredictParams{
		Symbol:            "btc ",
		Horizons:          []string{"24h", "1h"},
		IncludeConfidence: true,
		IncludeFactors:    true,
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if res.Symbol != "BTC" {
		t.Fatalf("symbol not normalized: %q", res.Symbol)
	}
	if res.Stale {
		t.Fatalf("fresh compute must not be stale")
	}
	if len(res.Predictions) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(res.Predictions))
	}
	// Response preserves request order.
	if res.Predictions[0].Horizon != "24h" || res.Predictions[1].Horizon != "1h" {
		t.Fatalf("request order not preserved: %s, %s", res.Predictions[0].Horizon, res.Predictions[1].Horizon)
	}
	for _, hp := range res.Predictions {
		if hp.ModelVersion != forecast.BaselineModelVersion {
			t.Fatalf("horizon %s: expected baseline model, got %s", hp.Horizon, hp.ModelVersion)
		}
		if hp.PredictedPrice <= 0 {
			t.Fatalf("horizon %s: non-positive forecast %v", hp.Horizon, hp.PredictedPrice)
		}
		// A steady linear uptrend must extrapolate above the current price
		// and call the direction up.
		if hp.PredictedPrice <= res.CurrentPrice {
			t.Fatalf("horizon %s: uptrend forecast %v not above current %v", hp.Horizon, hp.PredictedPrice, res.CurrentPrice)
		}
		if hp.Probability.Up <= 0.5 {
			t.Fatalf("horizon %s: uptrend up-probability %v not above 0.5", hp.Horizon, hp.Probability.Up)
		}
		if s := hp.Probability.Up + hp.Probability.Down; s < 0.999999 || s > 1.000001 {
			t.Fatalf("horizon %s: probabilities sum to %v", hp.Horizon, s)
		}
		if hp.ConfidenceInterval == nil || len(hp.Factors) != 3 {
			t.Fatalf("horizon %s: missing confidence or factors", hp.Horizon)
		}
	}
}

func TestPredictCachedResultIsIdentical(t *testing.T) {
	hist := &fakeHistory{series: map[string][]models.PricePoint{"BTC": risingSeries("BTC", 200)}}
	e := newTestEngine(t, hist, &fakeSentiment{ok: true})
	p := PredictParams{Symbol: "BTC", Horizons: []string{"1h", "4h"}, IncludeConfidence: true}

	first, err := e.Predict(context.Background(), p)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	callsAfterFirst := hist.calls

	second, err := e.Predict(context.Background(), p)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if hist.calls != callsAfterFirst {
		t.Fatalf("cache hit must not refetch history")
	}
	if !first.Predictions[0].GeneratedAt.Equal(second.Predictions[0].GeneratedAt) {
		t.Fatalf("cached result must be byte-identical: %v vs %v",
			first.Predictions[0].GeneratedAt, second.Predictions[0].GeneratedAt)
	}
}

func TestPredictCacheKeyIgnoresHorizonOrder(t *testing.T) {
	hist := &fakeHistory{series: map[string][]models.PricePoint{"BTC": risingSeries("BTC", 200)}}
	e := newTestEngine(t, hist, &fakeSentiment{ok: true})

	a, err := e.Predict(context.Background(), PredictParams{Symbol: "BTC", Horizons: []string{"1h", "4h"}})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	b, err := e.Predict(context.Background(), PredictParams{Symbol: "BTC", Horizons: []string{"4h", "1h"}})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !a.Predictions[0].GeneratedAt.Equal(b.Predictions[1].GeneratedAt) {
		t.Fatalf("reordered horizons must share a cache entry")
	}
	if b.Predictions[0].Horizon != "4h" {
		t.Fatalf("response order must follow the request, got %s first", b.Predictions[0].Horizon)
	}
}

func TestPredictShortHistoryFallsBack(t *testing.T) {
	hist := &fakeHistory{series: map[string][]models.PricePoint{"DOGE": risingSeries("DOGE", 10)}}
	e := newTestEngine(t, hist, &fakeSentiment{})

	res, err := e.Predict(context.Background(), PredictParams{
		Symbol: "DOGE", Horizons: []string{"1h"}, IncludeConfidence: true,
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	hp := res.Predictions[0]
	if hp.ModelVersion != forecast.FallbackModelVersion {
		t.Fatalf("expected fallback model, got %s", hp.ModelVersion)
	}
	if hp.ConfidenceInterval.Confidence > forecast.FallbackConfidenceCeil {
		t.Fatalf("fallback confidence %v above ceiling", hp.ConfidenceInterval.Confidence)
	}
	found := false
	for _, d := range res.Degraded {
		if d == "baseline_unavailable" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected baseline_unavailable in degraded, got %v", res.Degraded)
	}
}

func TestPredictSinglePointIsNeutral(t *testing.T) {
	hist := &fakeHistory{series: map[string][]models.PricePoint{"NEW": risingSeries("NEW", 1)}}
	e := newTestEngine(t, hist, &fakeSentiment{score: 1, ok: true})

	res, err := e.Predict(context.Background(), PredictParams{
		Symbol: "NEW", Horizons: []string{"4h"}, IncludeConfidence: true, IncludeFactors: true,
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	hp := res.Predictions[0]
	if hp.PredictedPrice != res.CurrentPrice {
		t.Fatalf("neutral projection must sit at current price: %v vs %v", hp.PredictedPrice, res.CurrentPrice)
	}
	if hp.Probability.Up != 0.5 || hp.Probability.Down != 0.5 {
		t.Fatalf("expected 50/50 split, got %v/%v", hp.Probability.Up, hp.Probability.Down)
	}
	if hp.ConfidenceInterval.Confidence != forecast.FallbackConfidenceFloor {
		t.Fatalf("expected confidence floor, got %v", hp.ConfidenceInterval.Confidence)
	}
	// Enhancement is skipped for neutral output even with strong sentiment.
	for _, f := range hp.Factors {
		if f.Impact != 0 {
			t.Fatalf("neutral prediction must carry zero-impact factors, got %v", f)
		}
	}
}

func TestPredictSentimentOutageDegrades(t *testing.T) {
	hist := &fakeHistory{series: map[string][]models.PricePoint{"BTC": risingSeries("BTC", 200)}}
	e := newTestEngine(t, hist, &fakeSentiment{err: errors.New("insights down")})

	res, err := e.Predict(context.Background(), PredictParams{Symbol: "BTC", Horizons: []string{"1h"}})
	if err != nil {
		t.Fatalf("predict must survive sentiment outage: %v", err)
	}
	found := false
	for _, d := range res.Degraded {
		if d == "sentiment_unavailable" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected sentiment_unavailable in degraded, got %v", res.Degraded)
	}
}

func TestPredictFieldStripping(t *testing.T) {
	hist := &fakeHistory{series: map[string][]models.PricePoint{"BTC": risingSeries("BTC", 200)}}
	e := newTestEngine(t, hist, &fakeSentiment{ok: true})

	res, err := e.Predict(context.Background(), PredictParams{
		Symbol: "BTC", Horizons: []string{"1h"}, IncludeConfidence: false, IncludeFactors: false,
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	hp := res.Predictions[0]
	if hp.ConfidenceInterval != nil {
		t.Fatalf("confidence interval must be stripped")
	}
	if hp.Factors != nil {
		t.Fatalf("factors must be stripped")
	}
}

func TestPredictInvalidateForcesRecompute(t *testing.T) {
	hist := &fakeHistory{series: map[string][]models.PricePoint{"BTC": risingSeries("BTC", 200)}}
	e := newTestEngine(t, hist, &fakeSentiment{ok: true})
	p := PredictParams{Symbol: "BTC", Horizons: []string{"1h"}}

	if _, err := e.Predict(context.Background(), p); err != nil {
		t.Fatalf("predict: %v", err)
	}
	calls := hist.calls

	e.Invalidate("BTC")
	if _, err := e.Predict(context.Background(), p); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if hist.calls <= calls {
		t.Fatalf("invalidation must force a history refetch")
	}
}

func TestPredictServesStaleOnHistoryOutage(t *testing.T) {
	hist := &fakeHistory{series: map[string][]models.PricePoint{"BTC": risingSeries("BTC", 200)}}
	l := testLogger(t)
	// Tiny TTL so the entry goes stale quickly while staying retained.
	rc := icache.NewResultCache(icache.NewTTLCache(), 10*time.Millisecond, time.Hour, l)
	e := NewPredictionEngine(hist, &fakeSentiment{ok: true}, rc, nil, nopMetrics{}, l, EngineConfig{})
	p := PredictParams{Symbol: "BTC", Horizons: []string{"1h"}}

	first, err := e.Predict(context.Background(), p)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	hist.fail = true

	second, err := e.Predict(context.Background(), p)
	if err != nil {
		t.Fatalf("expected stale serving, got error: %v", err)
	}
	if !second.Stale {
		t.Fatalf("degraded result must be flagged stale")
	}
	if !second.Predictions[0].GeneratedAt.Equal(first.Predictions[0].GeneratedAt) {
		t.Fatalf("stale result must be the retained copy")
	}
}
