package forecast

import (
	"math"
	"testing"

	"CoinScope/internal/domain/models"
	domrepo "CoinScope/internal/domain/repository"
)

func TestProjectFallbackNeutralOnTinySeries(t *testing.T) {
	for _, pts := range [][]models.PricePoint{nil, hourlySeries(1, func(i int) float64 { return 42 })} {
		fr := ProjectFallback(pts, domrepo.H1h, 42)
		if !fr.Neutral {
			t.Fatalf("expected neutral projection for %d points", len(pts))
		}
		if fr.Predicted != 42 {
			t.Fatalf("neutral projection must sit at current price, got %v", fr.Predicted)
		}
	}
}

func TestProjectFallbackRecencyWeighting(t *testing.T) {
	// Rising series: the recency-weighted average must land above the plain
	// mean of the window but below the newest close.
	pts := hourlySeries(50, func(i int) float64 { return 100 + float64(i) })
	fr := ProjectFallback(pts, domrepo.H1h, 149)
	if fr.Neutral {
		t.Fatalf("unexpected neutral")
	}
	window := 24 + 3*1
	tail := pts[len(pts)-window:]
	var mean float64
	for _, p := range tail {
		mean += p.Close
	}
	mean /= float64(window)
	if fr.Predicted <= mean || fr.Predicted >= tail[len(tail)-1].Close {
		t.Fatalf("expected mean < predicted < last close, got %v (mean %v)", fr.Predicted, mean)
	}
}

func TestProjectFallbackWindowGrowsWithHorizon(t *testing.T) {
	pts := hourlySeries(300, func(i int) float64 { return 100 + float64(i) })
	short := ProjectFallback(pts, domrepo.H1h, 399)
	long := ProjectFallback(pts, domrepo.H7d, 399)
	// A wider window reaches further back into the rising series, so the
	// long-horizon projection must sit lower.
	if long.Predicted >= short.Predicted {
		t.Fatalf("expected wider window to lower the projection: %v vs %v", long.Predicted, short.Predicted)
	}
}

func TestProjectFallbackFlatSeriesStd(t *testing.T) {
	pts := hourlySeries(40, func(i int) float64 { return 500 })
	fr := ProjectFallback(pts, domrepo.H4h, 500)
	if fr.Neutral {
		t.Fatalf("unexpected neutral with %d points", len(pts))
	}
	want := math.Max(500*0.02, 1.0)
	if fr.ResidStd != want {
		t.Fatalf("expected floor std %v for flat series, got %v", want, fr.ResidStd)
	}
}
