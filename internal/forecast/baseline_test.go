package forecast

import (
	"math"
	"testing"
	"time"

	"CoinScope/internal/domain/models"
	domrepo "CoinScope/internal/domain/repository"
)

func hourlySeries(n int, price func(i int) float64) []models.PricePoint {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PricePoint, n)
	for i := 0; i < n; i++ {
		p := price(i)
		out[i] = models.PricePoint{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Symbol:    "BTC",
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    100,
		}
	}
	return out
}

func TestFitBaselineInsufficientData(t *testing.T) {
	pts := hourlySeries(MinHistoryPoints-1, func(i int) float64 { return 100 + float64(i) })
	if _, err := FitBaseline(pts); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestFitBaselineFlatSeries(t *testing.T) {
	pts := hourlySeries(100, func(i int) float64 { return 50000 })
	if _, err := FitBaseline(pts); err != ErrUnavailable {
		t.Fatalf("expected ErrUnavailable on flat series, got %v", err)
	}
}

func TestFitBaselineRecoversLinearTrend(t *testing.T) {
	// close = 100 + 2*hour, no noise: the fit must recover the slope and
	// forecast the exact extrapolation.
	pts := hourlySeries(100, func(i int) float64 { return 100 + 2*float64(i) })
	fit, err := FitBaseline(pts)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	got, err := fit.Forecast(domrepo.H4h)
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	want := 100 + 2*float64(99+4)
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if fit.ResidualStd() > 1e-6 {
		t.Fatalf("expected zero residual std, got %v", fit.ResidualStd())
	}
}

func TestFitBaselineDeterministic(t *testing.T) {
	pts := hourlySeries(120, func(i int) float64 {
		return 200 + 0.5*float64(i) + 3*math.Sin(float64(i)/5)
	})
	a, err := FitBaseline(pts)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	b, err := FitBaseline(pts)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	for _, h := range domrepo.DefaultHorizons() {
		va, _ := a.Forecast(h)
		vb, _ := b.Forecast(h)
		if va != vb {
			t.Fatalf("horizon %s: non-deterministic forecast %v vs %v", h, va, vb)
		}
	}
}

func TestFitBaselineSeasonalComponent(t *testing.T) {
	// Three days of data with a clean daily cycle on top of a flat-ish trend.
	pts := hourlySeries(72, func(i int) float64 {
		return 1000 + 0.01*float64(i) + 10*math.Sin(2*math.Pi*float64(i%24)/24)
	})
	fit, err := FitBaseline(pts)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if !fit.hasSeasonal {
		t.Fatalf("expected seasonal component over a 72h span")
	}
	// The cycle absorbs most of the variation, so residual std must be far
	// below the cycle amplitude.
	if fit.ResidualStd() > 2 {
		t.Fatalf("seasonal fit left residual std %v", fit.ResidualStd())
	}
}

func TestForecastRejectsNonPositive(t *testing.T) {
	// Steep decline: far horizons extrapolate below zero.
	pts := hourlySeries(60, func(i int) float64 { return 100 - 1.5*float64(i) })
	fit, err := FitBaseline(pts)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if _, err := fit.Forecast(domrepo.H7d); err != ErrUnavailable {
		t.Fatalf("expected ErrUnavailable for non-positive forecast, got %v", err)
	}
}
