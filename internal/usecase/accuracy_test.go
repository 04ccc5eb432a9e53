package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"CoinScope/internal/domain/models"
	domrepo "CoinScope/internal/domain/repository"
	internalrepo "CoinScope/internal/repository"
)

func TestReconcileSettlesMaturedRecord(t *testing.T) {
	ledger := internalrepo.NewMemoryLedger()
	hist := &fakeHistory{series: map[string][]models.PricePoint{"BTC": risingSeries("BTC", 200)}}
	tr := NewAccuracyTracker(ledger, hist, nopMetrics{}, testLogger(t))

	// Prediction made 2h ago with a 1h horizon: matured, price available.
	at := hist.series["BTC"][150].Timestamp
	if err := tr.Record(context.Background(), "BTC", domrepo.H1h, 100, 110, "trendcycle-v1", at); err != nil {
		t.Fatalf("record: %v", err)
	}

	settled, err := tr.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if settled != 1 {
		t.Fatalf("expected 1 settled, got %d", settled)
	}

	recs, err := tr.History(context.Background(), "BTC", domrepo.H1h, at.Add(-time.Hour), at.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if !rec.Settled() {
		t.Fatalf("record not settled")
	}

	actual := *rec.ActualPrice
	wantPct := math.Abs(actual-110) / actual * 100
	if math.Abs(*rec.AbsPctError-wantPct) > 1e-9 {
		t.Fatalf("abs pct error: expected %v, got %v", wantPct, *rec.AbsPctError)
	}
	// Predicted up from base 100 and the series kept rising, so the
	// direction call must be a hit.
	if !*rec.DirectionHit {
		t.Fatalf("expected direction hit")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	ledger := internalrepo.NewMemoryLedger()
	hist := &fakeHistory{series: map[string][]models.PricePoint{"BTC": risingSeries("BTC", 200)}}
	tr := NewAccuracyTracker(ledger, hist, nopMetrics{}, testLogger(t))

	at := hist.series["BTC"][100].Timestamp
	if err := tr.Record(context.Background(), "BTC", domrepo.H4h, 150, 140, "wma-fallback-v1", at); err != nil {
		t.Fatalf("record: %v", err)
	}

	if settled, err := tr.Reconcile(context.Background()); err != nil || settled != 1 {
		t.Fatalf("first pass: settled=%d err=%v", settled, err)
	}
	if settled, err := tr.Reconcile(context.Background()); err != nil || settled != 0 {
		t.Fatalf("second pass must be a no-op: settled=%d err=%v", settled, err)
	}
}

func TestReconcileKeepsPendingOnDataGap(t *testing.T) {
	ledger := internalrepo.NewMemoryLedger()
	// No history at all: the realized price is unavailable.
	hist := &fakeHistory{series: map[string][]models.PricePoint{}}
	tr := NewAccuracyTracker(ledger, hist, nopMetrics{}, testLogger(t))

	at := time.Now().UTC().Add(-2 * time.Hour)
	if err := tr.Record(context.Background(), "GONE", domrepo.H1h, 10, 11, "trendcycle-v1", at); err != nil {
		t.Fatalf("record: %v", err)
	}

	settled, err := tr.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if settled != 0 {
		t.Fatalf("gap record must stay pending, settled=%d", settled)
	}

	// Still listed as matured and unsettled for a later pass.
	recs, err := ledger.ListMatured(context.Background(), time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("list matured: %v", err)
	}
	if len(recs) != 1 || recs[0].Settled() {
		t.Fatalf("expected 1 pending record, got %v", recs)
	}
}

func TestRecordSetsMaturity(t *testing.T) {
	ledger := internalrepo.NewMemoryLedger()
	hist := &fakeHistory{series: map[string][]models.PricePoint{}}
	tr := NewAccuracyTracker(ledger, hist, nopMetrics{}, testLogger(t))

	at := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	if err := tr.Record(context.Background(), "BTC", domrepo.H7d, 100, 120, "trendcycle-v1", at); err != nil {
		t.Fatalf("record: %v", err)
	}
	recs, err := ledger.ListMatured(context.Background(), at.Add(8*24*time.Hour), 10)
	if err != nil {
		t.Fatalf("list matured: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if !recs[0].MaturityTime.Equal(at.Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected maturity %v", recs[0].MaturityTime)
	}
}
