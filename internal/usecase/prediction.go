package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"CoinScope/internal/domain/models"
	domrepo "CoinScope/internal/domain/repository"
	domsvc "CoinScope/internal/domain/service"
	"CoinScope/internal/forecast"
	icache "CoinScope/internal/service/cache"
	applogger "CoinScope/pkg/logger"
)

// ErrMalformedRequest is the only engine failure surfaced to callers: an
// empty horizon set or a symbol with zero historical data. Everything else
// degrades to a best-effort, schema-valid prediction.
var ErrMalformedRequest = errors.New("prediction: malformed request")

// EngineConfig tunes the prediction engine. Zero values fall back to the
// documented defaults.
type EngineConfig struct {
	CacheTTL        time.Duration // logical freshness window, default 45m
	StaleRetention  time.Duration // how long stale copies stay servable, default 24h
	SeriesWindow    int           // minimum history points fetched per compute, default 200
	UpstreamTimeout time.Duration // history/sentiment fetch bound, default 5s
	ComputeTimeout  time.Duration // single-flight producer bound, default 20s
	FitWorkers      int           // bounded fit pool size, default NumCPU
	ReferenceSymbol string        // correlation reference asset, default BTC
}

func (c *EngineConfig) setDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = 45 * time.Minute
	}
	if c.StaleRetention <= 0 {
		c.StaleRetention = 24 * time.Hour
	}
	if c.SeriesWindow <= 0 {
		c.SeriesWindow = 200
	}
	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = 5 * time.Second
	}
	if c.ComputeTimeout <= 0 {
		c.ComputeTimeout = 20 * time.Second
	}
	if c.FitWorkers <= 0 {
		c.FitWorkers = runtime.NumCPU()
	}
	if c.ReferenceSymbol == "" {
		c.ReferenceSymbol = "BTC"
	}
}

// PredictionEngine orchestrates the forecast pipeline: result cache with
// single-flight, history and sentiment fetch with bounded timeouts, baseline
// fit on a bounded worker pool, per-horizon fallback, enhancement, and
// confidence sizing.
type PredictionEngine struct {
	history   domrepo.HistoryStore
	sentiment domsvc.SentimentProvider
	cache     *icache.ResultCache
	tracker   *AccuracyTracker
	metrics   domrepo.Metrics
	log       *applogger.Logger
	cfg       EngineConfig
	fitSem    chan struct{}
}

func NewPredictionEngine(
	history domrepo.HistoryStore,
	sentiment domsvc.SentimentProvider,
	cache *icache.ResultCache,
	tracker *AccuracyTracker,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	cfg EngineConfig,
) *PredictionEngine {
	cfg.setDefaults()
	return &PredictionEngine{
		history:   history,
		sentiment: sentiment,
		cache:     cache,
		tracker:   tracker,
		metrics:   metrics,
		log:       log,
		cfg:       cfg,
		fitSem:    make(chan struct{}, cfg.FitWorkers),
	}
}

// PredictParams is the engine-level request: horizons are deduplicated and
// the response preserves their order.
type PredictParams struct {
	Symbol            string
	Horizons          []string
	IncludeConfidence bool
	IncludeFactors    bool
}

// Predict produces one HorizonPrediction per requested horizon, in request
// order. Cached results within the TTL window are returned as-is; misses are
// computed under single-flight so concurrent callers share one model fit.
func (e *PredictionEngine) Predict(ctx context.Context, p PredictParams) (*models.PredictionResult, error) {
	start := time.Now()
	defer func() { e.metrics.RecordLatency("predict", time.Since(start).Seconds()) }()

	symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", ErrMalformedRequest)
	}
	if len(p.Horizons) == 0 {
		return nil, fmt.Errorf("%w: empty horizon set", ErrMalformedRequest)
	}
	horizons, unknown := domrepo.NormalizeHorizons(p.Horizons)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unsupported horizons %v", ErrMalformedRequest, unknown)
	}
	if len(horizons) == 0 {
		return nil, fmt.Errorf("%w: empty horizon set", ErrMalformedRequest)
	}

	key := icache.Key(symbol, domrepo.CacheKeyHorizons(horizons))
	if payload, fresh, ok := e.cache.Get(key); ok && fresh {
		e.metrics.RecordCache("hit")
		return e.shape(payload, horizons, p)
	}
	e.metrics.RecordCache("miss")

	payload, shared, err := e.cache.Do(ctx, symbol, key, func(ctx context.Context) ([]byte, error) {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.ComputeTimeout)
		defer cancel()
		return e.compute(cctx, symbol, horizons)
	})
	if shared {
		e.metrics.RecordCache("shared")
	}
	if err == nil {
		return e.shape(payload, horizons, p)
	}
	if errors.Is(err, ErrMalformedRequest) {
		return nil, err
	}
	if errors.Is(err, icache.ErrWaitTimeout) {
		// A wedged producer must not wedge its waiters: degrade independently.
		e.metrics.RecordDegraded("singleflight_timeout")
		return e.fallbackOnly(ctx, symbol, horizons, p)
	}

	// Live recomputation failed: a stale copy beats no answer.
	if stalePayload, _, ok := e.cache.Get(key); ok {
		e.metrics.RecordCache("stale")
		if res, serr := e.shape(stalePayload, horizons, p); serr == nil {
			res.Stale = true
			return res, nil
		}
	}
	e.log.Error("prediction compute failed",
		applogger.String("symbol", symbol), applogger.Error(err))
	e.metrics.RecordDegraded("compute_failed")
	return e.fallbackOnly(ctx, symbol, horizons, p)
}

// Invalidate evicts cached predictions for symbol. Called by the ingest path
// when new historical data lands.
func (e *PredictionEngine) Invalidate(symbol string) {
	e.cache.Invalidate(strings.ToUpper(strings.TrimSpace(symbol)))
}

type upstreamSignals struct {
	series    []models.PricePoint
	seriesErr error
	refSeries []models.PricePoint

	sentiment        float64
	sentimentPresent bool

	degraded []string
}

// fetchUpstream fans out the history, reference-asset, and sentiment fetches
// under one bounded timeout, absorbing per-signal failures.
func (e *PredictionEngine) fetchUpstream(ctx context.Context, symbol string, window int) *upstreamSignals {
	uctx, cancel := context.WithTimeout(ctx, e.cfg.UpstreamTimeout)
	defer cancel()

	out := &upstreamSignals{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		series, err := e.history.GetSeries(uctx, symbol, window)
		mu.Lock()
		out.series, out.seriesErr = series, err
		mu.Unlock()
	}()

	if symbol != e.cfg.ReferenceSymbol {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := e.history.GetSeries(uctx, e.cfg.ReferenceSymbol, forecastRefWindow)
			mu.Lock()
			if err != nil {
				out.degraded = append(out.degraded, "reference_unavailable")
			} else {
				out.refSeries = ref
			}
			mu.Unlock()
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		score, ok, err := e.sentiment.GetSentiment(uctx, symbol)
		mu.Lock()
		if err != nil {
			out.degraded = append(out.degraded, "sentiment_unavailable")
		} else if ok {
			out.sentiment, out.sentimentPresent = score, true
		}
		mu.Unlock()
	}()

	wg.Wait()
	sort.Strings(out.degraded)
	return out
}

// forecastRefWindow is how many reference-asset bars the correlation signal needs.
const forecastRefWindow = 48

func (e *PredictionEngine) compute(ctx context.Context, symbol string, horizons []domrepo.Horizon) ([]byte, error) {
	window := e.cfg.SeriesWindow
	maxHours := horizons[0].Hours()
	for _, h := range horizons {
		if h.Hours() > maxHours {
			maxHours = h.Hours()
		}
	}
	if want := 3 * maxHours; want > window {
		window = want
	}

	up := e.fetchUpstream(ctx, symbol, window)
	if up.seriesErr != nil {
		e.metrics.RecordError("history_fetch")
		return nil, fmt.Errorf("fetch series: %w", up.seriesErr)
	}
	if len(up.series) == 0 {
		return nil, fmt.Errorf("%w: no historical data for symbol %q", ErrMalformedRequest, symbol)
	}
	for _, d := range up.degraded {
		e.metrics.RecordDegraded(d)
	}

	currentPrice := up.series[len(up.series)-1].Close

	sig := forecast.Signals{
		Sentiment:        up.sentiment,
		SentimentPresent: up.sentimentPresent,
		Momentum:         forecast.VolumeMomentum(up.series),
		Correlation:      forecast.CorrelationSignal(up.refSeries),
	}

	// The fit is CPU-bound; the bounded pool keeps one expensive symbol from
	// starving unrelated requests.
	var fit *forecast.BaselineFit
	fitErr := forecast.ErrUnavailable
	select {
	case e.fitSem <- struct{}{}:
		fitStart := time.Now()
		fit, fitErr = forecast.FitBaseline(up.series)
		e.metrics.RecordLatency("baseline_fit", time.Since(fitStart).Seconds())
		<-e.fitSem
	case <-ctx.Done():
		e.metrics.RecordDegraded("fit_pool_timeout")
	}
	degraded := up.degraded
	if fitErr != nil {
		degraded = append(degraded, "baseline_unavailable")
	}

	generatedAt := time.Now().UTC()
	ordered := orderedByLength(horizons)
	preds := make([]models.HorizonPrediction, 0, len(ordered))
	for _, h := range ordered {
		preds = append(preds, e.predictHorizon(symbol, fit, fitErr, up.series, h, currentPrice, sig, generatedAt))
	}

	result := &models.PredictionResult{
		Symbol:       symbol,
		CurrentPrice: currentPrice,
		Predictions:  preds,
		Degraded:     degraded,
	}

	if e.tracker != nil {
		go e.tracker.RecordResult(result, generatedAt)
	}
	e.metrics.RecordLastPrice(symbol, currentPrice)

	return json.Marshal(result)
}

func (e *PredictionEngine) predictHorizon(
	symbol string,
	fit *forecast.BaselineFit,
	fitErr error,
	series []models.PricePoint,
	h domrepo.Horizon,
	currentPrice float64,
	sig forecast.Signals,
	generatedAt time.Time,
) models.HorizonPrediction {
	var predicted, residStd float64
	model := forecast.BaselineModelVersion
	useFallback := fitErr != nil

	if !useFallback {
		v, err := fit.Forecast(h)
		if err != nil {
			// Per-horizon failure scope: this horizon degrades, others proceed.
			useFallback = true
		} else {
			predicted, residStd = v, fit.ResidualStd()
		}
	}

	neutral := false
	if useFallback {
		fr := forecast.ProjectFallback(series, h, currentPrice)
		predicted, residStd, neutral = fr.Predicted, fr.ResidStd, fr.Neutral
		model = forecast.FallbackModelVersion
	}

	var prob models.Probability
	var factors []models.Factor
	var ci models.ConfidenceInterval
	if neutral {
		prob, factors = forecast.Enhance(0.5, forecast.Signals{})
		ci = forecast.NeutralInterval(predicted)
	} else {
		baseUp := forecast.BaseProbabilityUp(predicted, currentPrice)
		prob, factors = forecast.Enhance(baseUp, sig)
		ci = forecast.Interval(predicted, residStd, h, currentPrice, useFallback)
	}

	e.metrics.RecordPrediction(symbol, model)
	return models.HorizonPrediction{
		Horizon:            string(h),
		PredictedPrice:     predicted,
		ConfidenceInterval: &ci,
		Probability:        prob,
		Factors:            factors,
		ModelVersion:       model,
		GeneratedAt:        generatedAt,
	}
}

// fallbackOnly serves a degraded, uncached result when both the live compute
// and the stale path are unavailable. It still needs at least one price.
func (e *PredictionEngine) fallbackOnly(ctx context.Context, symbol string, horizons []domrepo.Horizon, p PredictParams) (*models.PredictionResult, error) {
	tctx, cancel := context.WithTimeout(ctx, e.cfg.UpstreamTimeout)
	defer cancel()
	price, err := e.history.LatestPrice(tctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("prediction unavailable for %q: %w", symbol, err)
	}

	generatedAt := time.Now().UTC()
	preds := make([]models.HorizonPrediction, 0, len(horizons))
	for _, h := range orderedByLength(horizons) {
		preds = append(preds, e.predictHorizon(symbol, nil, forecast.ErrUnavailable, nil, h, price, forecast.Signals{}, generatedAt))
	}
	result := &models.PredictionResult{
		Symbol:       symbol,
		CurrentPrice: price,
		Predictions:  preds,
		Degraded:     []string{"fallback_only"},
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return e.shape(b, horizons, p)
}

// shape decodes a cached payload and applies the per-request view: response
// order follows the requested horizons, and the confidence/factor fields are
// stripped when not asked for.
func (e *PredictionEngine) shape(payload []byte, horizons []domrepo.Horizon, p PredictParams) (*models.PredictionResult, error) {
	var res models.PredictionResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}

	byHorizon := make(map[string]models.HorizonPrediction, len(res.Predictions))
	for _, hp := range res.Predictions {
		byHorizon[hp.Horizon] = hp
	}
	shaped := make([]models.HorizonPrediction, 0, len(horizons))
	for _, h := range horizons {
		hp, ok := byHorizon[string(h)]
		if !ok {
			continue
		}
		if !p.IncludeConfidence {
			hp.ConfidenceInterval = nil
		}
		if !p.IncludeFactors {
			hp.Factors = nil
		}
		shaped = append(shaped, hp)
	}
	res.Predictions = shaped
	return &res, nil
}

func orderedByLength(hs []domrepo.Horizon) []domrepo.Horizon {
	cp := make([]domrepo.Horizon, len(hs))
	copy(cp, hs)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Hours() < cp[j].Hours() })
	return cp
}
