package forecast

import (
	"math"

	"CoinScope/internal/domain/models"
	domrepo "CoinScope/internal/domain/repository"
)

// z80 is the normal quantile for an 80% central interval.
const z80 = 1.28

const (
	baselineConfidenceFloor = 0.55
	baselineConfidenceCeil  = 0.95
)

// Interval derives the confidence band for a point forecast. The half-width
// grows with residual dispersion and with sqrt(horizon hours), which keeps
// uncertainty non-decreasing in horizon length for a fixed series. The
// confidence score shrinks as the band widens relative to the current price;
// fallback output is capped well below baseline output.
func Interval(predicted, residStd float64, h domrepo.Horizon, current float64, fallback bool) models.ConfidenceInterval {
	w := z80 * residStd * math.Sqrt(float64(h.Hours()))
	if !isFinite(w) || w < 0 {
		w = 0
	}
	lower := predicted - w
	upper := predicted + w
	// Numerical guard: the band must straddle the point forecast.
	if lower > predicted || upper < predicted {
		lower = predicted - math.Abs(w)
		upper = predicted + math.Abs(w)
	}

	score := 0.6
	if current > 0 {
		ratio := (upper - lower) / current
		score = 1 - clamp(ratio, 0, 1)
	}
	if fallback {
		score = clamp(score, FallbackConfidenceFloor, FallbackConfidenceCeil)
	} else {
		score = clamp(score, baselineConfidenceFloor, baselineConfidenceCeil)
	}

	return models.ConfidenceInterval{Lower: lower, Upper: upper, Confidence: score}
}

// NeutralInterval is the degenerate band attached to neutral fallback
// predictions: zero width at the documented confidence floor.
func NeutralInterval(predicted float64) models.ConfidenceInterval {
	return models.ConfidenceInterval{
		Lower:      predicted,
		Upper:      predicted,
		Confidence: FallbackConfidenceFloor,
	}
}
