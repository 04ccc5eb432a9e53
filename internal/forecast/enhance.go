package forecast

import (
	"CoinScope/internal/domain/models"
)

// Enhancement weights. Empirical policy constants carried over for
// behavioral compatibility; configurable deployments must document any
// deviation from these defaults.
const (
	WeightSentiment = 0.15
	WeightMomentum  = 0.10

	probFloor = 0.02
	probCeil  = 0.98

	shortVolWindow = 6
	longVolWindow  = 24
	minVolSamples  = 10

	corrTrendBars   = 24
	corrTrendScale  = 5.0
	corrDampening   = 0.5
	deltaProbScale  = 0.75
	deltaProbBounds = 0.45
)

// Signals bundles the auxiliary inputs of the enhancement calculator.
type Signals struct {
	Sentiment        float64
	SentimentPresent bool
	Momentum         float64
	Correlation      float64
}

// BaseProbabilityUp derives the directional probability from the forecast
// delta: up = 0.5 + clamp(delta*0.75, -0.45, 0.45).
func BaseProbabilityUp(predicted, current float64) float64 {
	if current <= 0 {
		return 0.5
	}
	delta := (predicted - current) / current
	return 0.5 + clamp(delta*deltaProbScale, -deltaProbBounds, deltaProbBounds)
}

// VolumeMomentum compares the short-window traded volume to the long-window
// average: clamp((shortAvg-longAvg)/longAvg, -1, 1). Fewer than ten usable
// volume samples yields zero.
func VolumeMomentum(points []models.PricePoint) float64 {
	vols := make([]float64, 0, longVolWindow)
	start := len(points) - longVolWindow
	if start < 0 {
		start = 0
	}
	for _, p := range points[start:] {
		if p.Volume > 0 {
			vols = append(vols, p.Volume)
		}
	}
	if len(vols) < minVolSamples {
		return 0
	}

	short := vols
	if len(vols) > shortVolWindow {
		short = vols[len(vols)-shortVolWindow:]
	}
	var shortAvg, longAvg float64
	for _, v := range short {
		shortAvg += v
	}
	shortAvg /= float64(len(short))
	for _, v := range vols {
		longAvg += v
	}
	longAvg /= float64(len(vols))
	if longAvg == 0 {
		return 0
	}
	return clamp((shortAvg-longAvg)/longAvg, -1, 1)
}

// CorrelationSignal derives the reference-asset trend agreement signal from
// the reference symbol's recent closes, applied at half weight. Informational
// only: it is surfaced as a factor but carries no probability weight of its
// own.
func CorrelationSignal(refPoints []models.PricePoint) float64 {
	if len(refPoints) < corrTrendBars {
		return 0
	}
	tail := refPoints[len(refPoints)-corrTrendBars:]
	first := tail[0].Close
	last := tail[len(tail)-1].Close
	if first <= 0 {
		return 0
	}
	trend := (last - first) / first
	return clamp(trend*corrTrendScale, -1, 1) * corrDampening
}

// Enhance adjusts the baseline directional probability with the auxiliary
// signals and reports all three factors for transparency. The factors list
// always carries the same three names, with zero impact for absent signals,
// so the response schema is stable for consumers.
func Enhance(baseUp float64, sig Signals) (models.Probability, []models.Factor) {
	sentiment := 0.0
	if sig.SentimentPresent {
		sentiment = clamp(sig.Sentiment, -1, 1)
	}
	momentum := clamp(sig.Momentum, -1, 1)

	up := clamp(baseUp+sentiment*WeightSentiment+momentum*WeightMomentum, probFloor, probCeil)

	factors := []models.Factor{
		{Name: "sentiment", Impact: sentiment},
		{Name: "volume_momentum", Impact: momentum},
		{Name: "market_correlation", Impact: clamp(sig.Correlation, -1, 1)},
	}
	return models.Probability{Up: up, Down: 1 - up}, factors
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
