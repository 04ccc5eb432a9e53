package forecast

import (
	"math"
	"time"

	"CoinScope/internal/domain/models"
	domrepo "CoinScope/internal/domain/repository"
)

const (
	// BaselineModelVersion tags predictions produced by the trend+cycle fit.
	BaselineModelVersion = "trendcycle-v1"

	// MinHistoryPoints is the minimum series length the baseline model accepts.
	MinHistoryPoints = 48

	// seasonalMinSpan is the series span required before a daily cycle
	// component is fitted.
	seasonalMinSpan = 48 * time.Hour
)

// BaselineFit is a fitted trend + daily-cycle model over an hourly close
// series. Fitting is deterministic: the same series always yields the same
// coefficients, so repeated predictions are reproducible.
type BaselineFit struct {
	intercept float64
	slope     float64 // close units per hour

	seasonal    [24]float64 // mean detrended residual per UTC hour
	hasSeasonal bool

	residStd  float64
	firstTime time.Time
	lastTime  time.Time
	lastClose float64
}

// FitBaseline fits the baseline model to an ordered series.
// It returns ErrInsufficientData below MinHistoryPoints and ErrUnavailable
// when the fit is numerically degenerate.
func FitBaseline(points []models.PricePoint) (*BaselineFit, error) {
	n := len(points)
	if n < MinHistoryPoints {
		return nil, ErrInsufficientData
	}

	t0 := points[0].Timestamp
	distinct := map[float64]struct{}{}
	var sumX, sumY, sumXX, sumXY float64
	for _, p := range points {
		x := p.Timestamp.Sub(t0).Hours()
		y := p.Close
		distinct[y] = struct{}{}
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
	}
	if len(distinct) < 2 {
		return nil, ErrUnavailable
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return nil, ErrUnavailable
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn
	if !isFinite(slope) || !isFinite(intercept) {
		return nil, ErrUnavailable
	}

	fit := &BaselineFit{
		intercept: intercept,
		slope:     slope,
		firstTime: t0,
		lastTime:  points[n-1].Timestamp,
		lastClose: points[n-1].Close,
	}

	// Detrended residuals; a daily cycle is only fitted when the series
	// spans at least two full days so every hour bucket can be observed.
	resid := make([]float64, n)
	for i, p := range points {
		x := p.Timestamp.Sub(t0).Hours()
		resid[i] = p.Close - (intercept + slope*x)
	}

	if fit.lastTime.Sub(t0) >= seasonalMinSpan {
		var sums, counts [24]float64
		for i, p := range points {
			h := p.Timestamp.UTC().Hour()
			sums[h] += resid[i]
			counts[h]++
		}
		for h := 0; h < 24; h++ {
			if counts[h] > 0 {
				fit.seasonal[h] = sums[h] / counts[h]
			}
		}
		fit.hasSeasonal = true
		for i, p := range points {
			resid[i] -= fit.seasonal[p.Timestamp.UTC().Hour()]
		}
	}

	var ss float64
	for _, r := range resid {
		ss += r * r
	}
	fit.residStd = math.Sqrt(ss / float64(n-1))
	if !isFinite(fit.residStd) {
		return nil, ErrUnavailable
	}

	return fit, nil
}

// Forecast returns the point forecast at the given horizon past the end of
// the fitted series. It returns ErrUnavailable when the extrapolation leaves
// the positive price domain; the caller degrades that horizon to the
// fallback projector.
func (f *BaselineFit) Forecast(h domrepo.Horizon) (float64, error) {
	target := f.lastTime.Add(h.Duration())
	x := target.Sub(f.firstTime).Hours()
	pred := f.intercept + f.slope*x
	if f.hasSeasonal {
		pred += f.seasonal[target.UTC().Hour()]
	}
	if !isFinite(pred) || pred <= 0 {
		return 0, ErrUnavailable
	}
	return pred, nil
}

// ResidualStd is the standard deviation of the fit residuals, used for
// confidence sizing.
func (f *BaselineFit) ResidualStd() float64 { return f.residStd }

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
