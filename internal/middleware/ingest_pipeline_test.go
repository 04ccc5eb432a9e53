package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"CoinScope/internal/domain/models"
)

type countingProc struct {
	mu    sync.Mutex
	ticks []*models.Tick
}

func (p *countingProc) Process(_ context.Context, t *models.Tick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks = append(p.ticks, t)
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordPrediction(string, string) {}
func (nopMetrics) RecordCache(string)              {}
func (nopMetrics) RecordDegraded(string)           {}
func (nopMetrics) RecordReconcile(string)          {}
func (nopMetrics) RecordIngested(string, string)   {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLatency(string, float64)   {}

func validTick(symbol string) *models.Tick {
	return &models.Tick{Symbol: symbol, Price: 100, Volume: 1, Timestamp: time.Now().UTC()}
}

func TestPipelineRejectsInvalidTicks(t *testing.T) {
	proc := &countingProc{}
	p := NewIngestPipeline(proc, nopMetrics{})

	bad := []*models.Tick{
		nil,
		{Symbol: "", Price: 1, Volume: 1, Timestamp: time.Now()},
		{Symbol: "BTC", Price: -1, Volume: 1, Timestamp: time.Now()},
		{Symbol: "BTC", Price: 1, Volume: 1},
	}
	for i, tk := range bad {
		if err := p.Process(context.Background(), tk); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if len(proc.ticks) != 0 {
		t.Fatalf("invalid ticks must not reach downstream")
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &countingProc{}
	p := NewIngestPipeline(proc, nopMetrics{}, WithMaxRPS(1))

	// Two ticks back-to-back for the same symbol: the second is throttled
	// and silently dropped.
	if err := p.Process(context.Background(), validTick("BTC")); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if err := p.Process(context.Background(), validTick("BTC")); err != nil {
		t.Fatalf("throttled tick must not error: %v", err)
	}
	if len(proc.ticks) != 1 {
		t.Fatalf("expected 1 forwarded tick, got %d", len(proc.ticks))
	}

	// A different symbol has its own budget.
	if err := p.Process(context.Background(), validTick("ETH")); err != nil {
		t.Fatalf("other symbol: %v", err)
	}
	if len(proc.ticks) != 2 {
		t.Fatalf("expected 2 forwarded ticks, got %d", len(proc.ticks))
	}
}

func TestPipelineTransformHook(t *testing.T) {
	proc := &countingProc{}
	p := NewIngestPipeline(proc, nopMetrics{},
		WithTransform(func(tk *models.Tick) *models.Tick {
			tk.Symbol = "X" + tk.Symbol
			return tk
		}))

	if err := p.Process(context.Background(), validTick("BTC")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.ticks[0].Symbol != "XBTC" {
		t.Fatalf("transform not applied: %s", proc.ticks[0].Symbol)
	}
}
