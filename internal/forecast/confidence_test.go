package forecast

import (
	"testing"

	domrepo "CoinScope/internal/domain/repository"
)

func TestIntervalWidthMonotonicInHorizon(t *testing.T) {
	var prev float64 = -1
	for _, h := range domrepo.DefaultHorizons() {
		ci := Interval(50000, 120, h, 50000, false)
		width := ci.Upper - ci.Lower
		if width < prev {
			t.Fatalf("horizon %s: width %v narrower than shorter horizon %v", h, width, prev)
		}
		if ci.Lower > 50000 || ci.Upper < 50000 {
			t.Fatalf("horizon %s: band [%v, %v] does not straddle the forecast", h, ci.Lower, ci.Upper)
		}
		prev = width
	}
}

func TestIntervalConfidenceShrinksWithWidth(t *testing.T) {
	tight := Interval(50000, 10, domrepo.H1h, 50000, false)
	wide := Interval(50000, 5000, domrepo.H24h, 50000, false)
	if wide.Confidence > tight.Confidence {
		t.Fatalf("wider band must not raise confidence: %v vs %v", wide.Confidence, tight.Confidence)
	}
}

func TestIntervalBaselineBounds(t *testing.T) {
	// Tiny residual: score clamps at the baseline ceiling.
	hi := Interval(100, 1e-9, domrepo.H1h, 100, false)
	if hi.Confidence != 0.95 {
		t.Fatalf("expected ceiling 0.95, got %v", hi.Confidence)
	}
	// Huge residual: score clamps at the baseline floor.
	lo := Interval(100, 1e6, domrepo.H7d, 100, false)
	if lo.Confidence != 0.55 {
		t.Fatalf("expected floor 0.55, got %v", lo.Confidence)
	}
}

func TestIntervalFallbackBounds(t *testing.T) {
	hi := Interval(100, 1e-9, domrepo.H1h, 100, true)
	if hi.Confidence != FallbackConfidenceCeil {
		t.Fatalf("expected fallback ceiling %v, got %v", FallbackConfidenceCeil, hi.Confidence)
	}
	lo := Interval(100, 1e6, domrepo.H7d, 100, true)
	if lo.Confidence != FallbackConfidenceFloor {
		t.Fatalf("expected fallback floor %v, got %v", FallbackConfidenceFloor, lo.Confidence)
	}
}

func TestNeutralInterval(t *testing.T) {
	ci := NeutralInterval(42)
	if ci.Lower != 42 || ci.Upper != 42 {
		t.Fatalf("expected zero-width band, got [%v, %v]", ci.Lower, ci.Upper)
	}
	if ci.Confidence != FallbackConfidenceFloor {
		t.Fatalf("expected confidence %v, got %v", FallbackConfidenceFloor, ci.Confidence)
	}
}
