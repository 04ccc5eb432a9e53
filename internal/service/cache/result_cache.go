package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	applogger "CoinScope/pkg/logger"
)

// ErrWaitTimeout is returned to single-flight waiters whose context expires
// before the in-flight computation finishes. Callers degrade independently
// instead of staying wedged behind a stuck producer.
var ErrWaitTimeout = errors.New("cache: timed out waiting for in-flight computation")

// errComputeAborted is what waiters observe when the producer panicked out of
// its computation.
var errComputeAborted = errors.New("cache: in-flight computation aborted")

// envelope wraps a cached payload with its logical freshness deadline. The
// physical TTL is longer so a stale copy stays available for degraded serving.
type envelope struct {
	FreshUntil time.Time       `json:"fresh_until"`
	Payload    json.RawMessage `json:"payload"`
}

type flight struct {
	done chan struct{}
	val  []byte
	err  error
}

// ResultCache is the single shared mutable state of the prediction engine:
// a TTL cache of serialized prediction results with a per-key single-flight
// discipline. All mutation goes through Do; no other component writes entries.
type ResultCache struct {
	store     BytesCache
	ttl       time.Duration
	retention time.Duration
	log       *applogger.Logger

	mu           sync.Mutex
	inflight     map[string]*flight
	keysBySymbol map[string]map[string]struct{}
}

func NewResultCache(store BytesCache, ttl, retention time.Duration, log *applogger.Logger) *ResultCache {
	if retention < ttl {
		retention = ttl
	}
	return &ResultCache{
		store:        store,
		ttl:          ttl,
		retention:    retention,
		log:          log,
		inflight:     make(map[string]*flight),
		keysBySymbol: make(map[string]map[string]struct{}),
	}
}

// Key builds the canonical cache key for a (symbol, horizon-set) pair.
func Key(symbol, horizons string) string {
	return "predictions:" + symbol + ":" + horizons
}

// Get returns the cached payload for key. fresh is false for entries past
// their logical TTL; those are only served by the caller when live
// recomputation fails. A backing-store error reads as a miss (cache bypass).
func (c *ResultCache) Get(key string) (payload []byte, fresh, ok bool) {
	b, found, err := c.store.GetBytes(key)
	if err != nil {
		c.log.Warn("result cache read failed, bypassing", applogger.Error(err))
		return nil, false, false
	}
	if !found {
		return nil, false, false
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, false, false
	}
	return env.Payload, time.Now().Before(env.FreshUntil), true
}

// Do runs producer for key under single-flight: concurrent callers for the
// same key await the one in-flight computation instead of triggering
// duplicate model fits. shared reports whether this caller piggybacked on
// another caller's computation. Waiters give up with ErrWaitTimeout when ctx
// expires first.
func (c *ResultCache) Do(ctx context.Context, symbol, key string, producer func(context.Context) ([]byte, error)) (val []byte, shared bool, err error) {
	c.mu.Lock()
	if f, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.val, true, f.err
		case <-ctx.Done():
			return nil, true, ErrWaitTimeout
		}
	}
	f := &flight{done: make(chan struct{})}
	c.inflight[key] = f
	c.mu.Unlock()

	// Cleanup must survive a panicking producer, or the leaked flight entry
	// would wedge every later caller for this key behind ErrWaitTimeout.
	completed := false
	defer func() {
		if !completed {
			f.err = errComputeAborted
		}
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
		close(f.done)
	}()

	f.val, f.err = producer(ctx)
	completed = true

	if f.err == nil {
		c.put(symbol, key, f.val)
	}
	return f.val, false, f.err
}

func (c *ResultCache) put(symbol, key string, payload []byte) {
	env := envelope{FreshUntil: time.Now().Add(c.ttl), Payload: payload}
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := c.store.SetBytes(key, b, c.retention); err != nil {
		c.log.Warn("result cache write failed", applogger.Error(err))
		return
	}
	c.mu.Lock()
	if c.keysBySymbol[symbol] == nil {
		c.keysBySymbol[symbol] = make(map[string]struct{})
	}
	c.keysBySymbol[symbol][key] = struct{}{}
	c.mu.Unlock()
}

// Invalidate evicts every cached entry for symbol. Called when new historical
// data lands for it.
func (c *ResultCache) Invalidate(symbol string) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.keysBySymbol[symbol]))
	for k := range c.keysBySymbol[symbol] {
		keys = append(keys, k)
	}
	delete(c.keysBySymbol, symbol)
	c.mu.Unlock()

	if len(keys) == 0 {
		return
	}
	if err := c.store.DeleteBytes(keys...); err != nil {
		c.log.Warn("result cache invalidate failed",
			applogger.String("symbol", symbol), applogger.Error(err))
	}
}
