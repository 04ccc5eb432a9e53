package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	domsvc "CoinScope/internal/domain/service"
	pkgcache "CoinScope/pkg/cache"
	xhttp "CoinScope/pkg/http"
	applogger "CoinScope/pkg/logger"
)

// Config holds the insights service client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Client calls the sentiment insights service. It wraps every call in a
// circuit breaker so a dead upstream degrades predictions instead of
// stalling them, and retries transient failures with exponential backoff.
type Client struct {
	baseURL    string
	http       *xhttp.Client
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	cache      pkgcache.Service
	cacheTTL   time.Duration
	l          *applogger.Logger
}

// SetCache enables score memoization so a burst of prediction requests does
// not hammer the upstream.
func (c *Client) SetCache(s pkgcache.Service, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c.cache = s
	c.cacheTTL = ttl
}

func New(cfg Config, l *applogger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 2
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "insights",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if l != nil {
				l.Warn("insights breaker state change",
					applogger.String("from", from.String()),
					applogger.String("to", to.String()))
			}
		},
	})
	return &Client{
		baseURL:    cfg.BaseURL,
		http:       xhttp.NewClient(xhttp.WithTimeout(timeout)),
		breaker:    cb,
		maxRetries: retries,
		l:          l,
	}
}

type sentimentResponse struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"` // [-1, 1]
}

// GetSentiment returns the aggregated sentiment score for a symbol.
// ok is false when the upstream is unavailable (breaker open or the
// client is unconfigured); the caller degrades to a neutral signal.
func (c *Client) GetSentiment(ctx context.Context, symbol string) (float64, bool, error) {
	if c.baseURL == "" {
		return 0, false, nil
	}

	cacheKey := "sentiment:" + symbol
	if c.cache != nil {
		var cached float64
		if err := c.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, true, nil
		}
	}

	var resp sentimentResponse
	op := func() error {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.http.SendAndParse(ctx, &xhttp.RequestOptions{
				Method: xhttp.MethodGet,
				URL:    c.baseURL + "/api/v1/sentiment",
				QueryParams: map[string][]string{
					"symbol": {symbol},
				},
			}, &resp)
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			// No point retrying while the breaker rejects calls.
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("insights sentiment %s: %w", symbol, err)
	}

	score := resp.Score
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, score, c.cacheTTL); err != nil && c.l != nil {
			c.l.Warn("sentiment cache set failed", applogger.Error(err))
		}
	}
	return score, true, nil
}

var _ domsvc.SentimentProvider = (*Client)(nil)
