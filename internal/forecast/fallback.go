package forecast

import (
	"math"

	"CoinScope/internal/domain/models"
	domrepo "CoinScope/internal/domain/repository"
)

const (
	// FallbackModelVersion tags predictions produced by the weighted
	// moving-average projector so consumers and the accuracy ledger can
	// segment accuracy by model source.
	FallbackModelVersion = "wma-fallback-v1"

	// FallbackConfidenceCeil caps the confidence of any fallback prediction.
	FallbackConfidenceCeil = 0.5
	// FallbackConfidenceFloor is the documented confidence floor, used for
	// neutral predictions when the series has fewer than two points.
	FallbackConfidenceFloor = 0.2
)

// FallbackResult is the degraded, schema-compatible forecast used when the
// baseline model cannot fit.
type FallbackResult struct {
	Predicted float64
	ResidStd  float64
	// Neutral is set when not even two points were available: the projection
	// is the current price with a 50/50 probability split.
	Neutral bool
}

// ProjectFallback extrapolates with a recency-weighted average of the most
// recent closes. It never fails: with fewer than two usable points it returns
// a neutral projection at currentPrice.
func ProjectFallback(points []models.PricePoint, h domrepo.Horizon, currentPrice float64) FallbackResult {
	if len(points) < 2 {
		return FallbackResult{Predicted: currentPrice, Neutral: true}
	}

	window := 24 + 3*h.Hours()
	if window > len(points) {
		window = len(points)
	}
	tail := points[len(points)-window:]

	// Linear recency weights: the newest close counts `window` times the oldest.
	var wsum, vsum float64
	for i, p := range tail {
		w := float64(i + 1)
		wsum += w
		vsum += w * p.Close
	}
	predicted := vsum / wsum

	var mean, ss float64
	for _, p := range tail {
		mean += p.Close
	}
	mean /= float64(window)
	for _, p := range tail {
		d := p.Close - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(window-1))
	if std == 0 || !isFinite(std) {
		std = math.Max(currentPrice*0.02, 1.0)
	}

	if !isFinite(predicted) || predicted <= 0 {
		return FallbackResult{Predicted: currentPrice, Neutral: true}
	}
	return FallbackResult{Predicted: predicted, ResidStd: std}
}
