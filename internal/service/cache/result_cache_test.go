package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	applogger "CoinScope/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestResultCacheSingleFlight(t *testing.T) {
	rc := NewResultCache(NewTTLCache(), time.Minute, time.Hour, testLogger(t))

	var calls int32
	gate := make(chan struct{})
	producer := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return []byte(`{"v":1}`), nil
	}

	const waiters = 8
	var wg sync.WaitGroup
	results := make([][]byte, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			val, _, err := rc.Do(context.Background(), "BTC", Key("BTC", "1h"), producer)
			if err != nil {
				t.Errorf("waiter %d: %v", i, err)
				return
			}
			results[i] = val
		}(i)
	}

	// Let the waiters pile up behind the single producer before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one producer call, got %d", got)
	}
	for i, r := range results {
		if string(r) != `{"v":1}` {
			t.Fatalf("waiter %d: unexpected payload %q", i, r)
		}
	}
}

func TestResultCacheFreshAndStale(t *testing.T) {
	rc := NewResultCache(NewTTLCache(), 30*time.Millisecond, time.Hour, testLogger(t))
	key := Key("ETH", "1h,4h")

	_, _, err := rc.Do(context.Background(), "ETH", key, func(ctx context.Context) ([]byte, error) {
		return []byte(`{"v":2}`), nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}

	if _, fresh, ok := rc.Get(key); !ok || !fresh {
		t.Fatalf("expected fresh entry, ok=%v fresh=%v", ok, fresh)
	}

	time.Sleep(50 * time.Millisecond)
	payload, fresh, ok := rc.Get(key)
	if !ok || fresh {
		t.Fatalf("expected stale entry, ok=%v fresh=%v", ok, fresh)
	}
	if string(payload) != `{"v":2}` {
		t.Fatalf("stale payload corrupted: %q", payload)
	}
}

func TestResultCacheFailedProducerNotCached(t *testing.T) {
	rc := NewResultCache(NewTTLCache(), time.Minute, time.Hour, testLogger(t))
	key := Key("SOL", "1h")

	_, _, err := rc.Do(context.Background(), "SOL", key, func(ctx context.Context) ([]byte, error) {
		return nil, context.DeadlineExceeded
	})
	if err == nil {
		t.Fatalf("expected producer error")
	}
	if _, _, ok := rc.Get(key); ok {
		t.Fatalf("failed computation must not be cached")
	}
}

func TestResultCacheInvalidate(t *testing.T) {
	rc := NewResultCache(NewTTLCache(), time.Minute, time.Hour, testLogger(t))
	k1 := Key("BTC", "1h")
	k2 := Key("BTC", "1h,4h")
	k3 := Key("ETH", "1h")

	for _, k := range []struct{ sym, key string }{{"BTC", k1}, {"BTC", k2}, {"ETH", k3}} {
		if _, _, err := rc.Do(context.Background(), k.sym, k.key, func(ctx context.Context) ([]byte, error) {
			return []byte(`{}`), nil
		}); err != nil {
			t.Fatalf("do: %v", err)
		}
	}

	rc.Invalidate("BTC")

	if _, _, ok := rc.Get(k1); ok {
		t.Fatalf("expected %q evicted", k1)
	}
	if _, _, ok := rc.Get(k2); ok {
		t.Fatalf("expected %q evicted", k2)
	}
	if _, _, ok := rc.Get(k3); !ok {
		t.Fatalf("other symbols must survive invalidation")
	}
}

func TestResultCachePanickingProducerDoesNotWedgeKey(t *testing.T) {
	rc := NewResultCache(NewTTLCache(), time.Minute, time.Hour, testLogger(t))
	key := Key("BTC", "4h")

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected producer panic to propagate")
			}
		}()
		_, _, _ = rc.Do(context.Background(), "BTC", key, func(ctx context.Context) ([]byte, error) {
			panic("fit blew up")
		})
	}()

	// The key must be usable again: the next caller runs its own producer
	// instead of waiting on a leaked flight entry.
	var calls int32
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	val, shared, err := rc.Do(ctx, "BTC", key, func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`{"v":3}`), nil
	})
	if err != nil {
		t.Fatalf("do after panic: %v", err)
	}
	if shared {
		t.Fatalf("caller after panic must own its computation")
	}
	if atomic.LoadInt32(&calls) != 1 || string(val) != `{"v":3}` {
		t.Fatalf("expected fresh computation, calls=%d val=%q", calls, val)
	}
}

func TestResultCacheWaiterTimeout(t *testing.T) {
	rc := NewResultCache(NewTTLCache(), time.Minute, time.Hour, testLogger(t))
	key := Key("BTC", "7d")

	gate := make(chan struct{})
	go func() {
		_, _, _ = rc.Do(context.Background(), "BTC", key, func(ctx context.Context) ([]byte, error) {
			<-gate
			return []byte(`{}`), nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, shared, err := rc.Do(ctx, "BTC", key, func(ctx context.Context) ([]byte, error) {
		t.Error("waiter must not run the producer")
		return nil, nil
	})
	close(gate)
	if err != ErrWaitTimeout {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}
	if !shared {
		t.Fatalf("timed-out waiter was piggybacking, shared should be true")
	}
}
