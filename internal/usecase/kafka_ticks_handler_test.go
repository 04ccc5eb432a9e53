package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"CoinScope/internal/domain/models"
)

type fakeStorage struct {
	mu    sync.Mutex
	ticks []*models.Tick
}

func (f *fakeStorage) Init(context.Context) error { return nil }
func (f *fakeStorage) Store(_ context.Context, t *models.Tick) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, t)
	return nil
}
func (f *fakeStorage) StoreBatch(ctx context.Context, ts []*models.Tick) error {
	for _, t := range ts {
		if err := f.Store(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
func (f *fakeStorage) Health(context.Context) error { return nil }
func (f *fakeStorage) Close() error                 { return nil }

type fakeInvalidator struct {
	mu      sync.Mutex
	symbols []string
}

func (f *fakeInvalidator) Invalidate(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbols = append(f.symbols, symbol)
}

func TestKafkaTicksHandlerStoresAndInvalidates(t *testing.T) {
	store := &fakeStorage{}
	inv := &fakeInvalidator{}
	h := NewKafkaTicksHandler("ticks", store, inv, nopMetrics{})

	msg := []byte(`{"symbol":"BTC","t":1750000000,"c":65000.5,"v":1.25}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(store.ticks) != 1 {
		t.Fatalf("expected 1 stored tick, got %d", len(store.ticks))
	}
	tick := store.ticks[0]
	if tick.Symbol != "BTC" || tick.Price != 65000.5 || tick.Volume != 1.25 {
		t.Fatalf("unexpected tick %+v", tick)
	}
	if !tick.Timestamp.Equal(time.Unix(1750000000, 0).UTC()) {
		t.Fatalf("unexpected timestamp %v", tick.Timestamp)
	}

	if len(inv.symbols) != 1 || inv.symbols[0] != "BTC" {
		t.Fatalf("expected cache invalidation for BTC, got %v", inv.symbols)
	}
}

func TestKafkaTicksHandlerNormalizesMilliseconds(t *testing.T) {
	store := &fakeStorage{}
	h := NewKafkaTicksHandler("ticks", store, nil, nopMetrics{})

	msg := []byte(`{"symbol":"ETH","t":1750000000000,"c":3500,"v":2}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !store.ticks[0].Timestamp.Equal(time.Unix(1750000000, 0).UTC()) {
		t.Fatalf("ms timestamp not normalized: %v", store.ticks[0].Timestamp)
	}
}

func TestKafkaTicksHandlerRejectsGarbage(t *testing.T) {
	store := &fakeStorage{}
	h := NewKafkaTicksHandler("ticks", store, nil, nopMetrics{})
	if err := h.Handle(context.Background(), []byte("not json")); err == nil {
		t.Fatalf("expected unmarshal error")
	}
	if len(store.ticks) != 0 {
		t.Fatalf("garbage must not be stored")
	}
}
